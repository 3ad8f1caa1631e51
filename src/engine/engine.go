package engine

import (
	"errors"
	"fmt"
	"iter"
	"log"

	"github.com/stake-plus/govcurator/src/store"
)

// Engine validates records against their schemas and is the only writer of
// the underlying tables.
type Engine struct {
	registry *Registry
	codec    *Codec
	tables   store.Tables
}

// New checks the registry and returns an engine over tables.
func New(registry *Registry, tables store.Tables) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: nil registry")
	}
	if tables == nil {
		return nil, fmt.Errorf("engine: nil tables")
	}
	if err := registry.Check(); err != nil {
		return nil, err
	}
	return &Engine{
		registry: registry,
		codec:    NewCodec(registry),
		tables:   tables,
	}, nil
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Codec() *Codec { return e.codec }

func (e *Engine) table(kind string) (store.Table, *Schema, error) {
	schema, err := e.registry.Lookup(kind)
	if err != nil {
		return nil, nil, err
	}
	return e.tables.Table(kind), schema, nil
}

// Save validates r, resolves uniqueness collisions according to policy,
// upserts it and writes the assigned id back onto r.
func (e *Engine) Save(r *Record) error {
	if r == nil {
		return fmt.Errorf("engine: save nil record")
	}
	table, schema, err := e.table(r.Kind)
	if err != nil {
		return err
	}
	if r.Fields == nil {
		r.Fields = Fields{}
	}
	if err := e.prepare(table, schema, r); err != nil {
		return err
	}

	doc, err := e.codec.EncodeFields(r.Fields)
	if err != nil {
		return fmt.Errorf("engine: save %s: %w", r.Kind, err)
	}
	id, err := table.Upsert(r.ID, doc)
	if err != nil {
		return fmt.Errorf("engine: save %s: %w", r.Kind, err)
	}
	r.ID = id
	return nil
}

// Validate runs the schema checks Save runs, without uniqueness or writes.
func (e *Engine) Validate(r *Record) error {
	schema, err := e.registry.Lookup(r.Kind)
	if err != nil {
		return err
	}
	if r.Fields == nil {
		r.Fields = Fields{}
	}
	return e.fill(schema, r)
}

func (e *Engine) prepare(table store.Table, schema *Schema, r *Record) error {
	if err := e.fill(schema, r); err != nil {
		return err
	}

	for _, f := range schema.Fields {
		if !f.Unique {
			continue
		}
		if err := e.resolveCollision(table, r, []string{f.Name}, f.OnCollision); err != nil {
			return err
		}
	}

	if scope := schema.CompositeScope(); len(scope) > 0 {
		if err := e.resolveCollision(table, r, scope, schema.CompositeCollision); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fill(schema *Schema, r *Record) error {
	for _, f := range schema.Fields {
		value, present := r.Fields[f.Name]
		if !present {
			if f.Required {
				return &FieldError{Kind: schema.Kind, Field: f.Name, Err: ErrRequiredField}
			}
			value = f.defaultValue()
		}
		value = f.Type.coerce(value)
		r.Fields[f.Name] = value

		if err := f.validate(value); err != nil {
			return &FieldError{Kind: schema.Kind, Field: f.Name, Value: value, Err: ErrValidation, Cause: err}
		}
	}
	return nil
}

func (e *Engine) resolveCollision(table store.Table, r *Record, scope []string, policy CollisionPolicy) error {
	preds := make([]Predicate, 0, len(scope))
	for _, name := range scope {
		preds = append(preds, Where(name, r.Fields[name]))
	}

	existing, err := e.findIn(table, And(preds...))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == r.ID {
		return nil
	}

	switch policy {
	case Reject:
		return fmt.Errorf("%w: %s%v already held by %s/%d", ErrUniqueCollision, r.Kind, scope, r.Kind, existing.ID)
	default:
		log.Printf("engine: collision with %s/%d in table %s on %v, overwriting", existing.Kind, existing.ID, table.Name(), scope)
		r.ID = existing.ID
		return nil
	}
}

// Delete removes r from its table. r must have been saved.
func (e *Engine) Delete(r *Record) error {
	if !r.HasID() {
		return fmt.Errorf("%w: cannot delete non-existent document", ErrNoIdentifier)
	}
	table, _, err := e.table(r.Kind)
	if err != nil {
		return err
	}
	if err := table.Delete(r.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s/%d", ErrNotFound, r.Kind, r.ID)
		}
		return err
	}
	return nil
}

// Get loads a record by id.
func (e *Engine) Get(kind string, id int64) (*Record, error) {
	table, _, err := e.table(kind)
	if err != nil {
		return nil, err
	}
	doc, ok, err := table.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, kind, id)
	}
	return e.decode(kind, id, doc)
}

// Find returns the first record of kind matching match.
func (e *Engine) Find(kind string, match Predicate) (*Record, error) {
	table, _, err := e.table(kind)
	if err != nil {
		return nil, err
	}
	return e.findIn(table, match)
}

// Search returns every record of kind matching match.
func (e *Engine) Search(kind string, match Predicate) ([]*Record, error) {
	table, _, err := e.table(kind)
	if err != nil {
		return nil, err
	}

	var decodeErr error
	entries, err := table.Search(e.documentPredicate(match, &decodeErr))
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	out := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		rec, err := e.decode(kind, entry.ID, entry.Doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// All iterates every record of kind. Each range over the sequence re-reads
// the table.
func (e *Engine) All(kind string) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		table, _, err := e.table(kind)
		if err != nil {
			yield(nil, err)
			return
		}
		for entry, err := range table.All() {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			rec, err := e.decode(kind, entry.ID, entry.Doc)
			if !yield(rec, err) {
				return
			}
		}
	}
}

func (e *Engine) findIn(table store.Table, match Predicate) (*Record, error) {
	var decodeErr error
	entry, ok, err := table.Find(e.documentPredicate(match, &decodeErr))
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if !ok {
		return nil, fmt.Errorf("%w: no match in %s", ErrNotFound, table.Name())
	}
	return e.decode(table.Name(), entry.ID, entry.Doc)
}

// documentPredicate adapts a field predicate to raw documents. The first
// decode failure is recorded and the document treated as a non-match.
func (e *Engine) documentPredicate(match Predicate, decodeErr *error) store.Predicate {
	if match == nil {
		return nil
	}
	return func(doc store.Document) bool {
		fields, err := e.codec.DecodeDocument(doc)
		if err != nil {
			if *decodeErr == nil {
				*decodeErr = err
			}
			return false
		}
		return match(fields)
	}
}

func (e *Engine) decode(kind string, id int64, doc store.Document) (*Record, error) {
	fields, err := e.codec.DecodeDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("engine: decode %s/%d: %w", kind, id, err)
	}
	if schema, err := e.registry.Lookup(kind); err == nil {
		for _, f := range schema.Fields {
			if v, ok := fields[f.Name]; ok {
				fields[f.Name] = f.Type.coerce(v)
			}
		}
	}
	return &Record{Kind: kind, ID: id, Fields: fields}, nil
}
