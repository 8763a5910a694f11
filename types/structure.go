package types

import (
	"fmt"

	"tinygo.org/x/go-llvm"
)

// Field is one named member of a structure.
type Field struct {
	Name string
	Type Type
}

// Structure is a named, ordered set of fields laid out unpacked in
// declaration order. It is built in two phases, DeclareStructure then
// SetFields, so that fields may refer back to the structure through a
// pointer.
type Structure struct {
	name     string
	fields   []Field
	index    map[string]int
	complete bool
	id       TypeID
}

// DeclareStructure creates an incomplete structure. Its layout cannot be
// used until SetFields succeeds.
func DeclareStructure(name string) *Structure {
	slot := registry.nominal()
	return &Structure{
		name: name,
		id:   registry.intern(descriptor{Kind: StructKind, Slot: slot}),
	}
}

// NewStructure declares a structure and sets its fields in one step.
func NewStructure(name string, fields ...Field) (*Structure, error) {
	s := DeclareStructure(name)
	if err := s.SetFields(fields...); err != nil {
		return nil, err
	}
	return s, nil
}

// SetFields completes the structure. Field names must be unique and a
// field must not contain the structure by value.
func (s *Structure) SetFields(fields ...Field) error {
	if s.complete {
		return fmt.Errorf("%w: structure %s already has fields", ErrInvalidField, s.name)
	}
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field %d of %s has no name", ErrInvalidField, i, s.name)
		}
		if f.Type == nil {
			return fmt.Errorf("%w: field %q of %s has no type", ErrInvalidField, f.Name, s.name)
		}
		if _, dup := index[f.Name]; dup {
			return fmt.Errorf("%w: %q in structure %s", ErrDuplicateField, f.Name, s.name)
		}
		if contains(f.Type, s) {
			return fmt.Errorf("%w: field %q of %s holds the structure by value", ErrInvalidField, f.Name, s.name)
		}
		index[f.Name] = i
	}
	s.fields = append([]Field(nil), fields...)
	s.index = index
	s.complete = true
	return nil
}

// contains reports whether t holds target inline, following structure
// fields and array elements but not pointers, references or slices.
func contains(t Type, target *Structure) bool {
	switch t := t.(type) {
	case *Structure:
		if t == target {
			return true
		}
		for _, f := range t.fields {
			if contains(f.Type, target) {
				return true
			}
		}
	case *Array:
		return contains(t.elem, target)
	}
	return false
}

func (s *Structure) Kind() Kind     { return StructKind }
func (s *Structure) ID() TypeID     { return s.id }
func (s *Structure) Name() string   { return s.name }
func (s *Structure) String() string { return s.name }

func (s *Structure) GoString() string {
	return fmt.Sprintf("<Structure '%s', %d fields>", s.name, len(s.fields))
}

// Complete reports whether SetFields has been called.
func (s *Structure) Complete() bool { return s.complete }

// Fields returns a copy of the field list.
func (s *Structure) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field looks a field up by name.
func (s *Structure) Field(name string) (int, Field, error) {
	if !s.complete {
		return 0, Field{}, fmt.Errorf("%w: structure %s has no fields yet", ErrIncompleteType, s.name)
	}
	i, ok := s.index[name]
	if !ok {
		return 0, Field{}, &UnknownFieldError{Struct: s.name, Name: name}
	}
	return i, s.fields[i], nil
}

func (s *Structure) lower(e *Emitter) (llvm.Type, error) {
	if !s.complete {
		return llvm.Type{}, fmt.Errorf("%w: structure %s has no fields yet", ErrIncompleteType, s.name)
	}
	// Register the named type before lowering the fields so a field that
	// points back at s finds it.
	named := e.Context.StructCreateNamed(s.name)
	e.lowered[s.id] = named
	e.stored[s.id] = named

	elems := make([]llvm.Type, len(s.fields))
	for i, f := range s.fields {
		ft, err := e.Storage(f.Type)
		if err != nil {
			delete(e.lowered, s.id)
			delete(e.stored, s.id)
			return llvm.Type{}, fmt.Errorf("field %q of %s: %w", f.Name, s.name, err)
		}
		elems[i] = ft
	}
	named.StructSetBody(elems, false)
	return named, nil
}

func (s *Structure) storage(e *Emitter) (llvm.Type, error) { return e.Lower(s) }

// FieldAddress returns the address of field name within the structure at
// addr.
func (s *Structure) FieldAddress(e *Emitter, addr llvm.Value, name string) (llvm.Value, Type, error) {
	i, f, err := s.Field(name)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	st, err := e.Lower(s)
	if err != nil {
		return llvm.Value{}, nil, err
	}
	return e.Builder.CreateStructGEP(st, addr, i, name+".addr"), f.Type, nil
}

// GetField loads field name. Aggregate fields are not loaded; their
// address is returned typed as a Reference.
func (s *Structure) GetField(e *Emitter, addr llvm.Value, name string) (Value, error) {
	gep, ft, err := s.FieldAddress(e, addr, name)
	if err != nil {
		return Value{}, err
	}
	if IsAggregate(ft) {
		return Value{Val: gep, Type: NewReference(ft)}, nil
	}
	fieldTy, err := e.Storage(ft)
	if err != nil {
		return Value{}, err
	}
	return Value{Val: e.Builder.CreateLoad(fieldTy, gep, name), Type: ft}, nil
}

// SetField stores v into field name.
func (s *Structure) SetField(e *Emitter, addr llvm.Value, name string, v llvm.Value) error {
	gep, _, err := s.FieldAddress(e, addr, name)
	if err != nil {
		return err
	}
	e.Builder.CreateStore(v, gep)
	return nil
}
