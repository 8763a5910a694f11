package types

import (
	"tinygo.org/x/go-llvm"
)

// Reference marks a value held or passed by address rather than by value.
// It emits no instructions of its own.
type Reference struct {
	Value Type
	id    TypeID
}

func NewReference(t Type) *Reference {
	if r, ok := t.(*Reference); ok {
		return r
	}
	return &Reference{
		Value: t,
		id:    registry.intern(descriptor{Kind: ReferenceKind, Elem: t.ID()}),
	}
}

func (r *Reference) Kind() Kind     { return ReferenceKind }
func (r *Reference) ID() TypeID     { return r.id }
func (r *Reference) String() string { return "<Reference " + r.Value.String() + ">" }

// AddressType is the backend pointer-to-wrapped type.
func (r *Reference) AddressType(e *Emitter) llvm.Type { return e.ptrType() }

func (r *Reference) lower(e *Emitter) (llvm.Type, error)   { return e.ptrType(), nil }
func (r *Reference) storage(e *Emitter) (llvm.Type, error) { return e.ptrType(), nil }
