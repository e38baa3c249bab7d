package entity

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/field"
)

// Entity is a live object conforming to a Type. It owns its fields; a
// reference field owns the nested entity it holds.
type Entity struct {
	typ    *Type
	mu     sync.RWMutex
	fields map[string]*field.Field
}

// FieldSnapshot is one entry of FieldsArray.
type FieldSnapshot struct {
	Name  string
	Kind  field.Kind
	Value any
	Field *field.Field
}

func (e *Entity) Type() *Type      { return e.typ }
func (e *Entity) TypeName() string { return e.typ.name }

func (e *Entity) field(name string) *field.Field {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fields[name]
}

// Field returns the field instance for name when it is set.
func (e *Entity) Field(name string) (*field.Field, bool) {
	f := e.field(name)
	return f, f != nil
}

// Has reports whether name is declared and currently set.
func (e *Entity) Has(name string) bool {
	return e.field(name) != nil
}

// Get returns the value of name, or nil when it is declared but unset.
func (e *Entity) Get(name string) (any, error) {
	if _, ok := e.typ.decls[name]; !ok {
		return nil, domain.NoSuchField(e.typ.name, name)
	}
	if f := e.field(name); f != nil {
		return f.Get(), nil
	}
	return nil, nil
}

// Set validates v and stores it under name. It returns the previous value,
// or nil when the field was not set before.
func (e *Entity) Set(name string, v any) (any, error) {
	decl, ok := e.typ.decls[name]
	if !ok {
		return nil, domain.NoSuchField(e.typ.name, name)
	}
	acyclic := func(v any) error {
		if e.reachableFrom(v) {
			return &domain.FieldError{Type: e.typ.name, Field: name, Kind: string(decl.Kind()), Err: domain.ErrCycle}
		}
		return nil
	}
	if f := e.field(name); f != nil {
		return f.SetIf(v, acyclic)
	}

	f, err := decl.New(v)
	if err != nil {
		return nil, err
	}
	if err := acyclic(f.Get()); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.fields[name] = f
	e.mu.Unlock()
	return nil, nil
}

// Unset removes name and returns its previous value.
func (e *Entity) Unset(name string) (any, error) {
	if _, ok := e.typ.decls[name]; !ok {
		return nil, domain.NoSuchField(e.typ.name, name)
	}
	e.mu.Lock()
	f := e.fields[name]
	delete(e.fields, name)
	e.mu.Unlock()
	if f == nil {
		return nil, nil
	}
	return f.Get(), nil
}

// Observe subscribes fn to changes of a set field.
func (e *Entity) Observe(name string, fn func(old, cur any)) (cancel func(), err error) {
	if _, ok := e.typ.decls[name]; !ok {
		return nil, domain.NoSuchField(e.typ.name, name)
	}
	f := e.field(name)
	if f == nil {
		return nil, fmt.Errorf("observe %s.%s: field is not set: %w", e.typ.name, name, domain.ErrNoSuchField)
	}
	return f.Subscribe(fn), nil
}

// ID returns the identifier when it is set to a non-zero value.
func (e *Entity) ID() (any, bool) {
	f := e.field(IDField)
	if f == nil {
		return nil, false
	}
	id := f.Get()
	return id, field.Truthy(id)
}

// IsNew reports whether the entity has never been persisted.
func (e *Entity) IsNew() bool {
	_, ok := e.ID()
	return !ok
}

// Values returns the wire form of every set field, nested entities included.
// Fields whose wire value is nil are omitted.
func (e *Entity) Values() map[string]any {
	out := make(map[string]any, len(e.typ.order))
	for _, name := range e.typ.order {
		f := e.field(name)
		if f == nil {
			continue
		}
		if v := f.DBValue(); v != nil {
			out[name] = v
		}
	}
	return out
}

// FieldsArray lists the set fields in declaration order.
func (e *Entity) FieldsArray() []FieldSnapshot {
	var out []FieldSnapshot
	for _, name := range e.typ.order {
		f := e.field(name)
		if f == nil {
			continue
		}
		out = append(out, FieldSnapshot{Name: name, Kind: f.Kind(), Value: f.Get(), Field: f})
	}
	return out
}

// Nested returns the entities held directly by reference and collection
// fields, in declaration order.
func (e *Entity) Nested() []*Entity {
	var out []*Entity
	for _, name := range e.typ.order {
		f := e.field(name)
		if f == nil {
			continue
		}
		switch v := f.Get().(type) {
		case *Entity:
			out = append(out, v)
		case []any:
			for _, el := range v {
				if n, ok := el.(*Entity); ok {
					out = append(out, n)
				}
			}
		}
	}
	return out
}

// reachableFrom reports whether e can be reached through the entities held
// by a reference or collection value.
func (e *Entity) reachableFrom(v any) bool {
	var roots []*Entity
	switch x := v.(type) {
	case *Entity:
		roots = append(roots, x)
	case []any:
		for _, el := range x {
			if n, ok := el.(*Entity); ok {
				roots = append(roots, n)
			}
		}
	}
	seen := make(map[*Entity]bool)
	var walk func(n *Entity) bool
	walk = func(n *Entity) bool {
		if n == nil || seen[n] {
			return false
		}
		if n == e {
			return true
		}
		seen[n] = true
		for _, c := range n.Nested() {
			if walk(c) {
				return true
			}
		}
		return false
	}
	for _, r := range roots {
		if walk(r) {
			return true
		}
	}
	return false
}

// Merge copies every set field of src into e. Fields only e has are kept.
func (e *Entity) Merge(src *Entity) error {
	if src.typ != e.typ {
		return fmt.Errorf("merge %s into %s: %w", src.typ.name, e.typ.name, domain.ErrCoercion)
	}
	for _, snap := range src.FieldsArray() {
		if _, err := e.Set(snap.Name, snap.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Values())
}

func (e *Entity) String() string {
	if id, ok := e.ID(); ok {
		return fmt.Sprintf("%s(%v)", e.typ.name, id)
	}
	return e.typ.name + "(new)"
}
