package store

import (
	"encoding/json"
	"errors"
	"iter"
	"reflect"
	"sort"
	"strconv"
)

// ErrNotFound is returned when a document id is not present in a table.
var ErrNotFound = errors.New("store: document not found")

// Document is the serialized field mapping of a single record.
type Document map[string]any

// Predicate matches documents during Find and Search.
type Predicate func(Document) bool

// Entry pairs a document with its table-scoped identifier.
type Entry struct {
	ID  int64
	Doc Document
}

// Table is one logical table per record kind. Identifiers are allocated
// monotonically per table; an explicit id on Upsert overwrites.
type Table interface {
	Name() string
	Upsert(id int64, doc Document) (int64, error)
	Get(id int64) (Document, bool, error)
	Find(match Predicate) (Entry, bool, error)
	Search(match Predicate) ([]Entry, error)
	Delete(id int64) error
	All() iter.Seq2[Entry, error]
}

// Tables hands out tables by name.
type Tables interface {
	Table(name string) Table
}

// Clone deep-copies maps and slices so callers never share state with a table.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Document:
		return Clone(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// Normalize converts json.Number values to int64 where integral, float64
// otherwise, recursing into nested containers.
func Normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return string(x)
	case map[string]any:
		for k, vv := range x {
			x[k] = Normalize(vv)
		}
		return x
	case []any:
		for i, vv := range x {
			x[i] = Normalize(vv)
		}
		return x
	default:
		return v
	}
}

// Equal compares two field values, treating all integer kinds as int64.
func Equal(a, b any) bool {
	if ai, ok := AsInt(a); ok {
		bi, ok := AsInt(b)
		return ok && ai == bi
	}
	return reflect.DeepEqual(a, b)
}

// AsInt reports the int64 value of any signed or unsigned integer, an
// integral float, or a json.Number.
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int64:
		return x, true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
		return 0, false
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
