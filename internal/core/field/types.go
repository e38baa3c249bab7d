// Package field implements the value side of the metamodel.
//
// The lineage of a value is FieldType -> Declaration -> Field:
//
//	field.TextType                    // a field type (kind "text")
//	decl := field.Text()              // a declaration, reusable across entities of one type
//	f, _ := decl.New("Love")          // a field instance holding one validated value
//	f.Get()                           // "Love"
//
// Declarations may carry a construction parameter. Reference and collection
// declarations take the Target entity type every assigned value must conform to.
package field

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/ella-cms/scribble/internal/core/domain"
)

// Kind is the unique identifier of a field type.
type Kind string

const (
	KindText       Kind = "text"
	KindBool       Kind = "bool"
	KindID         Kind = "id"
	KindPassword   Kind = "password"
	KindJSON       Kind = "json"
	KindDatetime   Kind = "datetime"
	KindReference  Kind = "reference"
	KindCollection Kind = "collection"
	KindEmail      Kind = "email"
	KindURL        Kind = "url"
)

// ValidateFunc turns raw input into the stored value or fails.
// It is called with the declaration the value is being validated for.
type ValidateFunc func(d *Declaration, raw any) (any, error)

// SerializeFunc maps a stored value to its wire representation.
type SerializeFunc func(v any) any

// DeclareFunc checks and normalises a declaration's construction parameter.
type DeclareFunc func(param any) (any, error)

// TypeSpec describes a new field type. Only Kind is mandatory.
//
// Validation precedence: Validate when set; otherwise, when Default is set,
// missing or falsy input resolves to Default; otherwise input passes unchanged.
type TypeSpec struct {
	Kind      Kind
	Validate  ValidateFunc
	Default   any
	Serialize SerializeFunc
	Declare   DeclareFunc
}

// FieldType is an immutable value kind. Its Declare method is the
// declaration constructor.
type FieldType struct {
	kind      Kind
	validate  ValidateFunc
	serialize SerializeFunc
	declare   DeclareFunc
	def       any
}

// DefineType builds a FieldType from spec.
func DefineType(spec TypeSpec) (*FieldType, error) {
	if spec.Kind == "" {
		return nil, fmt.Errorf("define field type: kind must be a non-empty string: %w", domain.ErrSchemaDefinition)
	}

	t := &FieldType{
		kind:      spec.Kind,
		serialize: spec.Serialize,
		declare:   spec.Declare,
		def:       spec.Default,
	}

	switch {
	case spec.Validate != nil:
		t.validate = spec.Validate
	case spec.Default != nil:
		def := spec.Default
		t.validate = func(_ *Declaration, raw any) (any, error) {
			if !Truthy(raw) {
				return def, nil
			}
			return raw, nil
		}
	default:
		t.validate = func(_ *Declaration, raw any) (any, error) { return raw, nil }
	}
	return t, nil
}

// MustDefineType is DefineType for package-level declarations.
func MustDefineType(spec TypeSpec) *FieldType {
	t, err := DefineType(spec)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *FieldType) Kind() Kind { return t.kind }

// Default returns the value missing input resolves to, if the type has one.
func (t *FieldType) Default() any { return t.def }

// Declare returns a declaration of this type. param is the optional
// construction parameter (nil for none).
func (t *FieldType) Declare(param any) (*Declaration, error) {
	if t.declare != nil {
		p, err := t.declare(param)
		if err != nil {
			return nil, fmt.Errorf("declare %s field: %w", t.kind, err)
		}
		param = p
	}
	return &Declaration{ftype: t, param: param}, nil
}

// MustDeclare is Declare for schema literals.
func (t *FieldType) MustDeclare(param any) *Declaration {
	d, err := t.Declare(param)
	if err != nil {
		panic(err)
	}
	return d
}

// Truthy reports whether v counts as present for default resolution and
// bool coercion: nil, false, zero numbers, NaN, "" and nil pointers are falsy.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}
