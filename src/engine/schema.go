package engine

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Schema is the static field list of one record kind.
type Schema struct {
	Kind   string
	Fields []Field
	// CompositeCollision applies to the composite scope declared through
	// UniqueWith.
	CompositeCollision CollisionPolicy
}

// Field returns the named descriptor.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CompositeScope returns the fields of the composite uniqueness scope. When
// several fields declare UniqueWith the last one in declaration order wins.
func (s *Schema) CompositeScope() []string {
	var scope []string
	for _, f := range s.Fields {
		if len(f.UniqueWith) > 0 {
			scope = append([]string{f.Name}, f.UniqueWith...)
		}
	}
	return scope
}

func (s *Schema) validateDecl() error {
	if s.Kind == "" {
		return fmt.Errorf("engine: schema without kind")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("engine: %s: field without name", s.Kind)
		}
		if seen[f.Name] {
			return fmt.Errorf("engine: %s: duplicate field %q", s.Kind, f.Name)
		}
		seen[f.Name] = true
	}
	for _, f := range s.Fields {
		for _, other := range f.UniqueWith {
			if !seen[other] {
				return fmt.Errorf("engine: %s.%s: unique_with names unknown field %q", s.Kind, f.Name, other)
			}
		}
	}
	return nil
}

// Registry maps kind names to schemas. One registry is built at startup and
// shared by the codec and engine it is handed to.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds schemas; a kind may only be registered once.
func (r *Registry) Register(schemas ...*Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemas {
		if s == nil {
			continue
		}
		if err := s.validateDecl(); err != nil {
			return err
		}
		if _, dup := r.schemas[s.Kind]; dup {
			return fmt.Errorf("engine: kind %s already registered", s.Kind)
		}
		log.Printf("engine: registering kind %s", s.Kind)
		r.schemas[s.Kind] = s
	}
	return nil
}

// Lookup returns the schema for kind or ErrUnregisteredKind.
func (r *Registry) Lookup(kind string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredKind, kind)
	}
	return s, nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	_, err := r.Lookup(kind)
	return err == nil
}

// Kinds lists registered kinds in name order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Check fails if any reference field targets a kind that is not registered.
func (r *Registry) Check() error {
	for _, kind := range r.Kinds() {
		s, _ := r.Lookup(kind)
		for _, f := range s.Fields {
			if f.Type != TypeRef || f.RefKind == "" {
				continue
			}
			if !r.Has(f.RefKind) {
				return fmt.Errorf("%w: %s.%s references %s", ErrUnregisteredKind, s.Kind, f.Name, f.RefKind)
			}
		}
	}
	return nil
}
