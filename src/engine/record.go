package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stake-plus/govcurator/src/store"
)

// NoID marks a record that has never been saved.
const NoID int64 = 0

// Fields is a record's name to value mapping.
type Fields map[string]any

// Record is a detached snapshot of one stored document. The engine writes
// ID back after the first successful save; it never changes afterwards.
type Record struct {
	Kind   string
	ID     int64
	Fields Fields
}

// NewRecord returns an unsaved record of kind.
func NewRecord(kind string, fields Fields) *Record {
	if fields == nil {
		fields = Fields{}
	}
	return &Record{Kind: kind, Fields: fields}
}

// HasID reports whether the record has been persisted.
func (r *Record) HasID() bool { return r != nil && r.ID != NoID }

// Ref returns a lazy reference to r.
func (r *Record) Ref() (Ref, error) {
	if !r.HasID() {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnpersistedReference, r.Describe())
	}
	return Ref{Kind: r.Kind, ID: r.ID}, nil
}

func (r *Record) Get(name string) any { return r.Fields[name] }

func (r *Record) Set(name string, value any) {
	if r.Fields == nil {
		r.Fields = Fields{}
	}
	r.Fields[name] = value
}

func (r *Record) Int(name string) int64 {
	i, _ := store.AsInt(r.Fields[name])
	return i
}

func (r *Record) Bool(name string) bool {
	b, _ := r.Fields[name].(bool)
	return b
}

func (r *Record) Text(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

func (r *Record) List(name string) []any {
	l, _ := r.Fields[name].([]any)
	return l
}

func (r *Record) Map(name string) map[string]any {
	switch m := r.Fields[name].(type) {
	case map[string]any:
		return m
	case Fields:
		return m
	}
	return nil
}

func (r *Record) Time(name string) time.Time {
	t, _ := r.Fields[name].(time.Time)
	return t
}

// Describe renders the record for logs.
func (r *Record) Describe() string {
	if r == nil {
		return "<nil>"
	}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, r.Fields[k]))
	}
	id := "new"
	if r.HasID() {
		id = fmt.Sprint(r.ID)
	}
	return fmt.Sprintf("%s/%s{%s}", r.Kind, id, strings.Join(parts, " "))
}

// Ref is an unresolved pointer to a record of Kind with ID.
type Ref struct {
	Kind string
	ID   int64
}

func (r Ref) String() string { return fmt.Sprintf("%s/%d", r.Kind, r.ID) }
