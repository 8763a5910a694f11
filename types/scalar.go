package types

import (
	"fmt"
	"reflect"

	"tinygo.org/x/go-llvm"
)

// Scalar is a float or a signed/unsigned integer of fixed bit width.
type Scalar struct {
	name   string
	width  uint32
	float  bool
	signed bool
	native reflect.Type
	id     TypeID
}

// Process-wide scalar singletons.
var (
	Double = mustScalar("Double", 64, true, true, nil)
	Float  = mustScalar("Float", 32, true, true, nil)
	Long   = mustScalar("Long", 64, false, true, nil)
	Int    = mustScalar("Int", 32, false, true, nil)
	Bool   = mustScalar("Bool", 8, false, false, reflect.TypeOf(false))
	Byte   = mustScalar("Byte", 8, false, true, nil)
	Char   = mustScalar("Char", 8, false, false, nil)

	// I1 is the type of comparison results.
	I1 = mustScalar("I1", 1, false, false, reflect.TypeOf(false))
)

// Index is the type of every offset and extent in address arithmetic.
var Index = Long

var scalarsByName = map[string]*Scalar{
	"Double": Double,
	"Float":  Float,
	"Long":   Long,
	"Int":    Int,
	"Bool":   Bool,
	"Byte":   Byte,
	"Char":   Char,
	"I1":     I1,
}

// ScalarByName returns one of the predefined scalars.
func ScalarByName(name string) (*Scalar, bool) {
	s, ok := scalarsByName[name]
	return s, ok
}

// NewScalar registers a scalar of the given width and category. The name is
// for display only; identity is (width, float, signed).
func NewScalar(name string, width uint32, float, signed bool) (*Scalar, error) {
	return newScalar(name, width, float, signed, nil)
}

func mustScalar(name string, width uint32, float, signed bool, native reflect.Type) *Scalar {
	s, err := newScalar(name, width, float, signed, native)
	if err != nil {
		panic(err)
	}
	return s
}

func newScalar(name string, width uint32, float, signed bool, native reflect.Type) (*Scalar, error) {
	if native == nil {
		var ok bool
		native, ok = nativeScalar(width, float, signed)
		if !ok {
			return nil, fmt.Errorf("%w: %s of %d bits", ErrUnsupportedWidth, category(float), width)
		}
	}
	if float {
		signed = true
	}
	s := &Scalar{
		name:   name,
		width:  width,
		float:  float,
		signed: signed,
		native: native,
	}
	s.id = registry.intern(descriptor{Kind: s.Kind(), Width: width, Float: float, Signed: signed})
	return s, nil
}

func category(float bool) string {
	if float {
		return "float"
	}
	return "integer"
}

func nativeScalar(width uint32, float, signed bool) (reflect.Type, bool) {
	if float {
		switch width {
		case 32:
			return reflect.TypeOf(float32(0)), true
		case 64:
			return reflect.TypeOf(float64(0)), true
		}
		return nil, false
	}
	switch width {
	case 1:
		return reflect.TypeOf(false), true
	case 8:
		if signed {
			return reflect.TypeOf(int8(0)), true
		}
		return reflect.TypeOf(uint8(0)), true
	case 16:
		if signed {
			return reflect.TypeOf(int16(0)), true
		}
		return reflect.TypeOf(uint16(0)), true
	case 32:
		if signed {
			return reflect.TypeOf(int32(0)), true
		}
		return reflect.TypeOf(uint32(0)), true
	case 64:
		if signed {
			return reflect.TypeOf(int64(0)), true
		}
		return reflect.TypeOf(uint64(0)), true
	}
	return nil, false
}

func (s *Scalar) String() string { return s.name }

func (s *Scalar) GoString() string { return fmt.Sprintf("<Scalar '%s'>", s.name) }

func (s *Scalar) Kind() Kind {
	if s.float {
		return FloatKind
	}
	return IntKind
}

func (s *Scalar) ID() TypeID { return s.id }

func (s *Scalar) Width() uint32 { return s.width }

func (s *Scalar) IsFloat() bool { return s.float }

func (s *Scalar) IsSigned() bool { return s.signed }

func (s *Scalar) lower(e *Emitter) (llvm.Type, error) {
	if !s.float {
		return e.Context.IntType(int(s.width)), nil
	}
	if s.width == 32 {
		return e.Context.FloatType(), nil
	}
	return e.Context.DoubleType(), nil
}

func (s *Scalar) storage(e *Emitter) (llvm.Type, error) { return s.lower(e) }

// Const builds a compile-time constant of this type from an integer literal.
func (s *Scalar) Const(e *Emitter, n int64) Value {
	ty, _ := e.Lower(s)
	if s.float {
		return Value{Val: llvm.ConstFloat(ty, float64(n)), Type: s}
	}
	return Value{Val: llvm.ConstInt(ty, uint64(n), true), Type: s}
}

// ConstFloat builds a floating point constant; integral types truncate.
func (s *Scalar) ConstFloat(e *Emitter, f float64) Value {
	if !s.float {
		return s.Const(e, int64(f))
	}
	ty, _ := e.Lower(s)
	return Value{Val: llvm.ConstFloat(ty, f), Type: s}
}

// Cast converts v to this type, emitting the widening, narrowing or
// float/int conversion its categories call for.
func (s *Scalar) Cast(e *Emitter, v Value) (Value, error) {
	from, ok := v.Type.(*Scalar)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s to %s", ErrInvalidCast, v.Type, s)
	}
	if SameType(from, s) {
		return Value{Val: v.Val, Type: s}, nil
	}
	to, _ := e.Lower(s)
	b := e.Builder

	if s.width == 1 {
		// Truth value of a number.
		if from.float {
			zero := llvm.ConstNull(v.Val.Type())
			return Value{Val: b.CreateFCmp(llvm.FloatUNE, v.Val, zero, "tobool"), Type: s}, nil
		}
		zero := llvm.ConstNull(v.Val.Type())
		return Value{Val: b.CreateICmp(llvm.IntNE, v.Val, zero, "tobool"), Type: s}, nil
	}

	var out llvm.Value
	switch {
	case from.float && s.float:
		switch {
		case s.width > from.width:
			out = b.CreateFPExt(v.Val, to, "fpext")
		case s.width < from.width:
			out = b.CreateFPTrunc(v.Val, to, "fptrunc")
		default:
			out = v.Val
		}
	case from.float:
		if s.signed {
			out = b.CreateFPToSI(v.Val, to, "fptosi")
		} else {
			out = b.CreateFPToUI(v.Val, to, "fptoui")
		}
	case s.float:
		if from.signed {
			out = b.CreateSIToFP(v.Val, to, "sitofp")
		} else {
			out = b.CreateUIToFP(v.Val, to, "uitofp")
		}
	default:
		switch {
		case s.width > from.width && from.signed:
			out = b.CreateSExt(v.Val, to, "sext")
		case s.width > from.width:
			out = b.CreateZExt(v.Val, to, "zext")
		case s.width < from.width:
			out = b.CreateTrunc(v.Val, to, "trunc")
		default:
			// Same bits, different signedness.
			out = v.Val
		}
	}
	return Value{Val: out, Type: s}, nil
}
