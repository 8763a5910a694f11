package types

import (
	"fmt"

	"fortio.org/safecast"
	"tinygo.org/x/go-llvm"
)

// Vector is a fixed number of scalar lanes held in one SIMD value. Lanes have
// no addresses; they are read and written through GetLane and SetLane.
type Vector struct {
	elem  *Scalar
	lanes int
	id    TypeID
}

func NewVector(elem *Scalar, lanes int) (*Vector, error) {
	if elem == nil {
		return nil, fmt.Errorf("%w: vector needs an element type", ErrInvalidShape)
	}
	if lanes <= 0 {
		return nil, fmt.Errorf("%w: vector of %d lanes", ErrInvalidShape, lanes)
	}
	n, err := safecast.Conv[uint32](lanes)
	if err != nil {
		return nil, fmt.Errorf("%w: %d lanes: %v", ErrInvalidShape, lanes, err)
	}
	return &Vector{
		elem:  elem,
		lanes: lanes,
		id:    registry.intern(descriptor{Kind: VectorKind, Elem: elem.ID(), Lanes: n}),
	}, nil
}

func (v *Vector) Kind() Kind    { return VectorKind }
func (v *Vector) ID() TypeID    { return v.id }
func (v *Vector) Elem() *Scalar { return v.elem }
func (v *Vector) Lanes() int    { return v.lanes }

func (v *Vector) String() string { return fmt.Sprintf("<Vector %d x %s>", v.lanes, v.elem) }

func (v *Vector) GoString() string { return fmt.Sprintf("Vector(%s, %d)", v.elem, v.lanes) }

func (v *Vector) lower(e *Emitter) (llvm.Type, error) {
	elemTy, err := e.Lower(v.elem)
	if err != nil {
		return llvm.Type{}, err
	}
	return llvm.VectorType(elemTy, v.lanes), nil
}

func (v *Vector) storage(e *Emitter) (llvm.Type, error) { return v.lower(e) }

// Zero returns the all-zero vector constant.
func (v *Vector) Zero(e *Emitter) Value {
	ty, _ := e.Lower(v)
	return Value{Val: llvm.ConstNull(ty), Type: v}
}

func (v *Vector) checkLane(index int) error {
	if index < 0 || index >= v.lanes {
		return &LaneIndexError{Index: index, Lanes: v.lanes}
	}
	return nil
}

// GetLane extracts lane index.
func (v *Vector) GetLane(e *Emitter, vec llvm.Value, index int) (Value, error) {
	if err := v.checkLane(index); err != nil {
		return Value{}, err
	}
	lane := e.Builder.CreateExtractElement(vec, e.constI32(index), "lane")
	return Value{Val: lane, Type: v.elem}, nil
}

// SetLane returns a new vector equal to vec with lane index replaced.
func (v *Vector) SetLane(e *Emitter, vec llvm.Value, index int, x llvm.Value) (Value, error) {
	if err := v.checkLane(index); err != nil {
		return Value{}, err
	}
	out := e.Builder.CreateInsertElement(vec, x, e.constI32(index), "vec")
	return Value{Val: out, Type: v}, nil
}

// Load reads a whole vector from a scalar-element pointer. The address must
// be aligned to the vector width; that is the caller's responsibility.
func (v *Vector) Load(e *Emitter, ptr llvm.Value) (Value, error) {
	ty, err := e.Lower(v)
	if err != nil {
		return Value{}, err
	}
	return Value{Val: e.Builder.CreateLoad(ty, ptr, "vload"), Type: v}, nil
}

// Store writes vec to ptr with the same alignment contract as Load.
func (v *Vector) Store(e *Emitter, ptr llvm.Value, vec llvm.Value) {
	e.Builder.CreateStore(vec, ptr)
}
