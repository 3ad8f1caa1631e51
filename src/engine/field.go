package engine

import (
	"fmt"
	"time"

	"github.com/stake-plus/govcurator/src/store"
)

// FieldType is the declared runtime type of a field.
type FieldType uint8

const (
	TypeAny FieldType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeList
	TypeMap
	TypeTime
	TypeRef
)

func (t FieldType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	case TypeTime:
		return "time"
	case TypeRef:
		return "ref"
	default:
		return "any"
	}
}

func (t FieldType) zero() any {
	switch t {
	case TypeBool:
		return false
	case TypeInt:
		return int64(0)
	case TypeFloat:
		return float64(0)
	case TypeString:
		return ""
	case TypeList:
		return []any{}
	case TypeMap:
		return map[string]any{}
	case TypeTime:
		return time.Time{}
	default:
		return nil
	}
}

// coerce folds equivalent Go representations onto the canonical one for t:
// every integer kind becomes int64, Fields becomes map[string]any.
func (t FieldType) coerce(v any) any {
	switch t {
	case TypeInt:
		if i, ok := store.AsInt(v); ok {
			return i
		}
	case TypeFloat:
		if i, ok := store.AsInt(v); ok {
			return float64(i)
		}
		if f, ok := v.(float32); ok {
			return float64(f)
		}
	case TypeMap:
		switch m := v.(type) {
		case Fields:
			return map[string]any(m)
		case store.Document:
			return map[string]any(m)
		}
	}
	return v
}

func (t FieldType) check(v any) error {
	ok := true
	switch t {
	case TypeBool:
		_, ok = v.(bool)
	case TypeInt:
		_, ok = v.(int64)
	case TypeFloat:
		_, ok = v.(float64)
	case TypeString:
		_, ok = v.(string)
	case TypeList:
		_, ok = v.([]any)
	case TypeMap:
		_, ok = v.(map[string]any)
	case TypeTime:
		_, ok = v.(time.Time)
	case TypeRef:
		// References are optional unless the field is required.
		switch r := v.(type) {
		case nil, Ref:
		case *Record:
			ok = r != nil
		default:
			ok = false
		}
	}
	if !ok {
		return fmt.Errorf("%T is not an instance of %s", v, t)
	}
	return nil
}

// CollisionPolicy decides what Save does when a uniqueness scope already
// holds another record.
type CollisionPolicy uint8

const (
	// Overwrite makes the record being saved adopt the colliding record's id.
	Overwrite CollisionPolicy = iota
	// Reject fails the save with ErrUniqueCollision.
	Reject
)

func (p CollisionPolicy) String() string {
	if p == Reject {
		return "reject"
	}
	return "overwrite"
}

// Field describes one attribute of a record kind.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Default builds the value for an absent, non-required field. When nil
	// the zero value of Type is used.
	Default func() any
	// Validator replaces the runtime type check when set.
	Validator func(value any) error
	Unique    bool
	// UniqueWith names the other fields of a composite uniqueness scope.
	UniqueWith  []string
	OnCollision CollisionPolicy
	// RefKind names the kind a TypeRef field points at; checked at startup.
	RefKind string
}

func (f Field) defaultValue() any {
	if f.Default != nil {
		return f.Default()
	}
	return f.Type.zero()
}

func (f Field) validate(v any) error {
	if f.Validator != nil {
		return f.Validator(v)
	}
	return f.Type.check(v)
}
