package entity

import (
	"fmt"
	"sync"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/field"
)

// Registry is the schema catalog: logical name -> Type. It is filled at
// start-up and only read afterwards.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
	order []string
	opts  []Option
}

// NewRegistry returns an empty registry; opts apply to every Define.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{types: make(map[string]*Type), opts: opts}
}

// Define builds a type and registers it under spec.Type.
func (r *Registry) Define(spec Spec) (*Type, error) {
	t, err := Define(spec, r.opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[t.name]; ok {
		return nil, fmt.Errorf("define entity %q: already registered: %w", t.name, domain.ErrSchemaDefinition)
	}
	r.types[t.name] = t
	r.order = append(r.order, t.name)
	return t, nil
}

func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// MustLookup panics when name is not registered.
func (r *Registry) MustLookup(name string) *Type {
	t, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("entity: type %q is not registered", name))
	}
	return t
}

// Names lists registered types in definition order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Ref returns a target resolved by name at validation time, so a schema can
// point at itself or at a type registered later.
func (r *Registry) Ref(name string) field.Target {
	return ref{reg: r, name: name}
}

type ref struct {
	reg  *Registry
	name string
}

func (x ref) TypeName() string { return x.name }

func (x ref) Coerce(raw any) (field.Entity, error) {
	t, ok := x.reg.Lookup(x.name)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", domain.ErrCoercion, domain.ErrUnknownType, x.name)
	}
	return t.Coerce(raw)
}
