package domain

import (
	"errors"
	"fmt"
)

// Metamodel errors. Schema, field and validation errors are returned
// synchronously by the call that caused them; the rest come back from the
// network-bound sync operations.
var (
	ErrSchemaDefinition = errors.New("invalid schema definition")
	ErrNoSuchField      = errors.New("no such field")
	ErrValidation       = errors.New("invalid field value")
	ErrCoercion         = errors.New("cannot coerce value to entity")
	ErrNoMatch          = errors.New("no matching objects")
	ErrAmbiguousMatch   = errors.New("multiple matching objects")
	ErrTransport        = errors.New("transport failure")
	ErrNotPersisted     = errors.New("entity has no id")
	ErrCycle            = errors.New("entity graph contains a cycle")
	ErrUnknownType      = errors.New("unknown entity type")
)

// Backend errors.
var (
	ErrNotFound           = errors.New("object not found")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldError describes a failure tied to one field of one entity type.
// errors.Is matches both the wrapped sentinel and the underlying cause.
type FieldError struct {
	Type  string // entity type name, empty for free-standing declarations
	Field string
	Kind  string
	Err   error // sentinel
	Cause error
}

func (e *FieldError) Error() string {
	name := e.Field
	if e.Type != "" {
		name = e.Type + "." + e.Field
	}
	if name == "" {
		name = e.Kind
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", name, e.Err, e.Cause)
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *FieldError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// TransportError carries the request that failed. It always matches ErrTransport.
type TransportError struct {
	Op     string
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NoSuchField builds the error returned by Get/Set on an undeclared name.
func NoSuchField(typeName, field string) error {
	return &FieldError{Type: typeName, Field: field, Err: ErrNoSuchField}
}
