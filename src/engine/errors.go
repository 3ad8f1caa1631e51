package engine

import (
	"errors"
	"fmt"
)

var (
	ErrRequiredField        = errors.New("engine: required field missing")
	ErrValidation           = errors.New("engine: field validation failed")
	ErrUniqueCollision      = errors.New("engine: uniqueness collision")
	ErrDanglingReference    = errors.New("engine: dangling reference")
	ErrUnregisteredKind     = errors.New("engine: unregistered kind")
	ErrUnpersistedReference = errors.New("engine: reference to unpersisted record")
	ErrNoIdentifier         = errors.New("engine: record has no identifier")
	ErrNotFound             = errors.New("engine: record not found")
)

// FieldError is the schema error family: Err is ErrRequiredField or
// ErrValidation, Cause carries the validator's own error when present.
type FieldError struct {
	Kind  string
	Field string
	Value any
	Err   error
	Cause error
}

func (e *FieldError) Error() string {
	if e.Err == ErrRequiredField {
		return fmt.Sprintf("%s.%s is a required field", e.Kind, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s.%s: invalid value %#v: %v", e.Kind, e.Field, e.Value, e.Cause)
	}
	return fmt.Sprintf("%s.%s: invalid value %#v", e.Kind, e.Field, e.Value)
}

func (e *FieldError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// IsSchemaError reports whether err came from field validation.
func IsSchemaError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}
