// Package entity turns named sets of field declarations into entity types
// and holds the live instances built from them.
//
// A Type is defined once and never changes afterwards. All of its
// instances share the same declarations; an Entity only stores the fields
// that are currently set.
package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/field"
)

// IDField is the implicit identifier every type declares.
const IDField = "id"

// FieldDef attaches a declaration to a field name.
type FieldDef struct {
	Name string
	Decl *field.Declaration
}

// Spec describes an entity type. Fields keep their order.
type Spec struct {
	Type   string
	Fields []FieldDef
}

// Type is an immutable entity schema. Identity is by construction: two
// Define calls with identical specs produce two distinct types.
type Type struct {
	name  string
	decls map[string]*field.Declaration
	order []string
	log   zerolog.Logger
}

// Option configures a Type at definition time.
type Option func(*Type)

// WithLogger sets where construction warnings go. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(t *Type) { t.log = l }
}

// Define builds a Type from spec. The implicit id field comes first.
func Define(spec Spec, opts ...Option) (*Type, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("define entity: type must be a non-empty string: %w", domain.ErrSchemaDefinition)
	}

	t := &Type{
		name:  spec.Type,
		decls: make(map[string]*field.Declaration, len(spec.Fields)+1),
		order: make([]string, 0, len(spec.Fields)+1),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.attach(IDField, field.ID())
	for _, f := range spec.Fields {
		switch {
		case f.Name == "":
			return nil, fmt.Errorf("define entity %q: empty field name: %w", spec.Type, domain.ErrSchemaDefinition)
		case f.Decl == nil:
			return nil, fmt.Errorf("define entity %q: field %q has no declaration: %w", spec.Type, f.Name, domain.ErrSchemaDefinition)
		}
		if _, dup := t.decls[f.Name]; dup {
			return nil, fmt.Errorf("define entity %q: field %q declared twice: %w", spec.Type, f.Name, domain.ErrSchemaDefinition)
		}
		t.attach(f.Name, f.Decl)
	}
	return t, nil
}

// MustDefine is Define for package-level schemas.
func MustDefine(spec Spec, opts ...Option) *Type {
	t, err := Define(spec, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Type) attach(name string, d *field.Declaration) {
	t.decls[name] = d.Named(t.name, name)
	t.order = append(t.order, name)
}

func (t *Type) Name() string { return t.name }

// TypeName implements field.Target.
func (t *Type) TypeName() string { return t.name }

// Declaration returns the declaration bound to name.
func (t *Type) Declaration(name string) (*field.Declaration, bool) {
	d, ok := t.decls[name]
	return d, ok
}

// FieldNames lists the declared fields, id first.
func (t *Type) FieldNames() []string {
	return append([]string(nil), t.order...)
}

// New builds an instance. init is nil, a map of field values, or a bare
// number meaning {id: n}. Keys without a declaration are logged and dropped.
func (t *Type) New(init any) (*Entity, error) {
	bag, err := toBag(init)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", t.name, err)
	}

	e := &Entity{typ: t, fields: make(map[string]*field.Field, len(bag))}
	for _, name := range t.order {
		raw, ok := bag[name]
		if !ok {
			continue
		}
		f, err := t.decls[name].New(raw)
		if err != nil {
			return nil, err
		}
		e.fields[name] = f
	}

	if len(bag) > len(e.fields) {
		var unexpected []string
		for k := range bag {
			if _, ok := t.decls[k]; !ok {
				unexpected = append(unexpected, k)
			}
		}
		if len(unexpected) > 0 {
			sort.Strings(unexpected)
			t.log.Warn().
				Str("type", t.name).
				Strs("fields", unexpected).
				Msg("unexpected fields dropped while constructing entity")
		}
	}
	return e, nil
}

// Coerce implements field.Target: instances of t pass unchanged, anything
// else goes through New.
func (t *Type) Coerce(raw any) (field.Entity, error) {
	if e, ok := raw.(*Entity); ok {
		if e == nil {
			return nil, fmt.Errorf("nil %s entity: %w", t.name, domain.ErrCoercion)
		}
		if e.typ == t {
			return e, nil
		}
	}
	e, err := t.New(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCoercion, err)
	}
	return e, nil
}

func toBag(init any) (map[string]any, error) {
	switch x := init.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return x, nil
	case map[string]string:
		bag := make(map[string]any, len(x))
		for k, v := range x {
			bag[k] = v
		}
		return bag, nil
	case *Entity:
		if x == nil {
			return nil, fmt.Errorf("cannot build from nil entity: %w", domain.ErrCoercion)
		}
		return nil, fmt.Errorf("cannot build from %s entity: %w", x.typ.name, domain.ErrCoercion)
	}
	if isNumeric(init) {
		return map[string]any{IDField: init}, nil
	}
	return nil, fmt.Errorf("unsupported initializer %T: %w", init, domain.ErrCoercion)
}

func isNumeric(v any) bool {
	switch x := v.(type) {
	case json.Number:
		_, err := x.Float64()
		return err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
	case float64:
		return !math.IsInf(x, 0) && !math.IsNaN(x)
	case float32:
		return !math.IsInf(float64(x), 0) && !math.IsNaN(float64(x))
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
