package field

// Field is one live value conforming to a Declaration. The value always
// passed the declaration's validator.
type Field struct {
	decl *Declaration
	cell *Cell[any]
}

func (f *Field) Declaration() *Declaration { return f.decl }
func (f *Field) Name() string              { return f.decl.name }
func (f *Field) Kind() Kind                { return f.decl.Kind() }

// Get returns the current value.
func (f *Field) Get() any { return f.cell.Get() }

// Set validates raw, stores it and returns the previous value.
func (f *Field) Set(raw any) (any, error) {
	return f.SetIf(raw, nil)
}

// SetIf is Set with a veto: accept sees the validated value and nothing is
// stored when it returns an error.
func (f *Field) SetIf(raw any, accept func(v any) error) (any, error) {
	v, err := f.decl.Validate(raw)
	if err != nil {
		return nil, err
	}
	if accept != nil {
		if err := accept(v); err != nil {
			return nil, err
		}
	}
	return f.cell.Set(v), nil
}

// DBValue returns the representation the backend understands.
func (f *Field) DBValue() any {
	return f.decl.Serialize(f.cell.Get())
}

// Subscribe observes every subsequent Set.
func (f *Field) Subscribe(fn func(old, cur any)) (cancel func()) {
	return f.cell.Subscribe(fn)
}
