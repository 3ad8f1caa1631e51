package engine

import (
	"errors"
	"fmt"
	"log"
)

// Resolve loads the record ref points at.
func (e *Engine) Resolve(ref Ref) (*Record, error) {
	log.Printf("engine: evaluating %s", ref)
	if !e.registry.Has(ref.Kind) {
		return nil, fmt.Errorf("%w: %s: %w", ErrDanglingReference, ref, ErrUnregisteredKind)
	}
	rec, err := e.Get(ref.Kind, ref.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: table %s has no id %d", ErrDanglingReference, ref.Kind, ref.ID)
	}
	return rec, err
}

// ResolveDeep replaces every Ref reachable from r's fields, including refs
// nested in maps and lists and inside resolved records, with the loaded
// record. Each (kind, id) is loaded once so reference cycles terminate with
// shared *Record values.
func (e *Engine) ResolveDeep(r *Record) error {
	seen := make(map[Ref]*Record)
	if r.HasID() {
		seen[Ref{Kind: r.Kind, ID: r.ID}] = r
	}
	return e.resolveFields(r, seen)
}

func (e *Engine) resolveFields(r *Record, seen map[Ref]*Record) error {
	for name, value := range r.Fields {
		resolved, err := e.walk(value, seen)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", r.Kind, name, err)
		}
		r.Fields[name] = resolved
	}
	return nil
}

func (e *Engine) walk(value any, seen map[Ref]*Record) (any, error) {
	switch x := value.(type) {
	case Ref:
		if rec, ok := seen[x]; ok {
			return rec, nil
		}
		rec, err := e.Resolve(x)
		if err != nil {
			return nil, err
		}
		seen[x] = rec
		if err := e.resolveFields(rec, seen); err != nil {
			return nil, err
		}
		return rec, nil
	case *Record:
		if x == nil {
			return x, nil
		}
		if x.HasID() {
			key := Ref{Kind: x.Kind, ID: x.ID}
			if rec, ok := seen[key]; ok {
				return rec, nil
			}
			seen[key] = x
		}
		if err := e.resolveFields(x, seen); err != nil {
			return nil, err
		}
		return x, nil
	case Fields:
		return x, e.walkMap(x, seen)
	case map[string]any:
		return x, e.walkMap(x, seen)
	case []any:
		for i, item := range x {
			resolved, err := e.walk(item, seen)
			if err != nil {
				return nil, err
			}
			x[i] = resolved
		}
		return x, nil
	}
	return value, nil
}

func (e *Engine) walkMap(m map[string]any, seen map[Ref]*Record) error {
	for k, item := range m {
		resolved, err := e.walk(item, seen)
		if err != nil {
			return err
		}
		m[k] = resolved
	}
	return nil
}
