// Package types is the type system and IR emission layer: scalar, pointer,
// array, slice, structure, reference and vector types, the addressing and
// layout algorithms for them, and the instruction selection tables used to
// lower arithmetic, comparison and unary operators to LLVM IR.
package types

import (
	"fmt"

	"tinygo.org/x/go-llvm"
)

type Kind int

const (
	InvalidKind Kind = iota
	IntKind
	FloatKind
	PointerKind
	ArrayKind
	SliceKind
	StructKind
	ReferenceKind
	VectorKind
)

func (k Kind) String() string {
	switch k {
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case PointerKind:
		return "pointer"
	case ArrayKind:
		return "array"
	case SliceKind:
		return "slice"
	case StructKind:
		return "struct"
	case ReferenceKind:
		return "reference"
	case VectorKind:
		return "vector"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Type is implemented by every type descriptor in this package. The set is
// closed: lowering to LLVM goes through the unexported methods.
type Type interface {
	String() string
	Kind() Kind
	// ID is the interned identity of the type, see Registry.
	ID() TypeID

	// lower returns the SSA value type.
	lower(e *Emitter) (llvm.Type, error)
	// storage returns the in-memory type used when the type is held
	// inline in another aggregate.
	storage(e *Emitter) (llvm.Type, error)
}

// Value pairs an LLVM value with the type it was emitted for.
type Value struct {
	Val  llvm.Value
	Type Type
}

// IsAggregate reports whether values of t are manipulated by address:
// element and field accesses hand out a Reference instead of loading.
func IsAggregate(t Type) bool {
	switch t.Kind() {
	case StructKind, ArrayKind, SliceKind:
		return true
	}
	return false
}

// ArgType returns the type used for t at a function boundary. Structures and
// slice descriptors are always passed by address.
func ArgType(t Type) Type {
	switch t.Kind() {
	case StructKind, SliceKind:
		return NewReference(t)
	}
	return t
}

// Deref strips a Reference wrapper, if any.
func Deref(t Type) Type {
	if r, ok := t.(*Reference); ok {
		return r.Value
	}
	return t
}
