package engine

import (
	"time"

	"github.com/stake-plus/govcurator/src/store"
)

// Predicate matches decoded record fields.
type Predicate func(Fields) bool

// Where matches records whose field name equals value.
func Where(name string, value any) Predicate {
	return func(f Fields) bool {
		got, ok := f[name]
		return ok && valuesEqual(got, value)
	}
}

// And matches when every predicate matches.
func And(preds ...Predicate) Predicate {
	return func(f Fields) bool {
		for _, p := range preds {
			if p != nil && !p(f) {
				return false
			}
		}
		return true
	}
}

// Everything matches every record.
func Everything() Predicate {
	return func(Fields) bool { return true }
}

func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if ra, ok := asRef(a); ok {
		rb, ok := asRef(b)
		return ok && ra == rb
	}
	return store.Equal(a, b)
}

func asRef(v any) (Ref, bool) {
	switch x := v.(type) {
	case Ref:
		return x, true
	case *Record:
		if x.HasID() {
			return Ref{Kind: x.Kind, ID: x.ID}, true
		}
	}
	return Ref{}, false
}
