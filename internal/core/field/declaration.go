package field

import (
	"errors"

	"github.com/ella-cms/scribble/internal/core/domain"
)

// Entity is what a reference or collection field needs from a nested entity.
type Entity interface {
	TypeName() string
	Values() map[string]any
}

// Target is the entity type a reference or collection declaration is
// restricted to. Coerce returns raw unchanged when it was built by exactly
// this type and otherwise runs it through the type's constructor.
type Target interface {
	TypeName() string
	Coerce(raw any) (Entity, error)
}

// Declaration binds a FieldType to its construction parameter and, once
// attached to an entity type, to a field name. It is immutable; Named
// returns a bound copy.
type Declaration struct {
	ftype *FieldType
	param any
	owner string
	name  string
}

func (d *Declaration) Type() *FieldType { return d.ftype }
func (d *Declaration) Kind() Kind       { return d.ftype.kind }

// Name returns the field name the declaration was attached under, or "".
func (d *Declaration) Name() string { return d.name }

// Owner returns the name of the entity type the declaration belongs to.
func (d *Declaration) Owner() string { return d.owner }

// Param returns the processed construction parameter.
func (d *Declaration) Param() any { return d.param }

// Target returns the entity type parameter of a reference or collection
// declaration, or nil when the declaration is unrestricted.
func (d *Declaration) Target() Target {
	t, _ := d.param.(Target)
	return t
}

// Named returns a copy of d attached to field name of entity type owner.
func (d *Declaration) Named(owner, name string) *Declaration {
	c := *d
	c.owner = owner
	c.name = name
	return &c
}

// Validate runs the type's validator. Failures are *domain.FieldError
// matching domain.ErrCoercion for nested-entity failures and
// domain.ErrValidation otherwise.
func (d *Declaration) Validate(raw any) (any, error) {
	v, err := d.ftype.validate(d, raw)
	if err == nil {
		return v, nil
	}

	var fe *domain.FieldError
	if errors.As(err, &fe) && fe.Field == d.name && fe.Type == d.owner {
		return nil, err
	}
	sentinel := domain.ErrValidation
	if errors.Is(err, domain.ErrCoercion) {
		sentinel = domain.ErrCoercion
	}
	return nil, &domain.FieldError{
		Type:  d.owner,
		Field: d.name,
		Kind:  string(d.ftype.kind),
		Err:   sentinel,
		Cause: err,
	}
}

// Serialize maps a stored value to its wire form.
func (d *Declaration) Serialize(v any) any {
	if v == nil || d.ftype.serialize == nil {
		return v
	}
	return d.ftype.serialize(v)
}

// New builds a field instance holding the validated raw value.
func (d *Declaration) New(raw any) (*Field, error) {
	v, err := d.Validate(raw)
	if err != nil {
		return nil, err
	}
	return &Field{decl: d, cell: NewCell(v)}, nil
}
