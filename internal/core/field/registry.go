package field

import (
	"fmt"
	"sync"

	"github.com/ella-cms/scribble/internal/core/domain"
)

// Registry maps kinds to field types.
type Registry struct {
	mu    sync.RWMutex
	types map[Kind]*FieldType
	order []Kind
}

// Default holds the built-in field types.
var Default = mustRegistry(
	TextType, BoolType, IDType, PasswordType, JSONType, DatetimeType,
	ReferenceType, CollectionType, EmailType, URLType,
)

func NewRegistry() *Registry {
	return &Registry{types: make(map[Kind]*FieldType)}
}

func mustRegistry(types ...*FieldType) *Registry {
	r := NewRegistry()
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds t. Kinds are unique within a registry.
func (r *Registry) Register(t *FieldType) error {
	if t == nil {
		return fmt.Errorf("register field type: nil type: %w", domain.ErrSchemaDefinition)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[t.kind]; ok {
		return fmt.Errorf("register field type %q: already registered: %w", t.kind, domain.ErrSchemaDefinition)
	}
	r.types[t.kind] = t
	r.order = append(r.order, t.kind)
	return nil
}

func (r *Registry) Lookup(k Kind) (*FieldType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[k]
	return t, ok
}

// Kinds lists registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Kind(nil), r.order...)
}

// Register adds t to the Default registry.
func Register(t *FieldType) error { return Default.Register(t) }

// Lookup resolves a kind in the Default registry.
func Lookup(k Kind) (*FieldType, bool) { return Default.Lookup(k) }
