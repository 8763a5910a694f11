package types

import (
	"fmt"

	"tinygo.org/x/go-llvm"
)

// mathOperand checks that v is a float scalar or a vector of floats and
// returns the intrinsic overload suffix for it.
func mathOperand(name string, v Value) (string, error) {
	cat, err := CategoryOf(v.Type)
	if err != nil {
		return "", err
	}
	if cat != Floating {
		return "", fmt.Errorf("%w: %s on %s", ErrUnsupportedOperator, name, v.Type)
	}
	s, lanes := scalarOf(v.Type)
	return powOverload(s.width, lanes), nil
}

func (e *Emitter) callMath(name string, v Value) (Value, error) {
	overload, err := mathOperand(name, v)
	if err != nil {
		return Value{}, err
	}
	ty := v.Val.Type()
	fnTy, fn := e.intrinsic("llvm."+name+"."+overload, ty, ty)
	return Value{Val: e.Builder.CreateCall(fnTy, fn, []llvm.Value{v.Val}, name+"_tmp"), Type: v.Type}, nil
}

// Exp lowers e**x through llvm.exp.
func (e *Emitter) Exp(x Value) (Value, error) {
	return e.callMath("exp", x)
}

// Sqrt lowers the square root through llvm.sqrt.
func (e *Emitter) Sqrt(x Value) (Value, error) {
	return e.callMath("sqrt", x)
}

// Log lowers the natural logarithm of x, or its logarithm in base when base
// is non-nil as log(x)/log(base). Both operands share one float type.
func (e *Emitter) Log(x Value, base *Value) (Value, error) {
	lx, err := e.callMath("log", x)
	if err != nil {
		return Value{}, err
	}
	if base == nil {
		return lx, nil
	}
	if !SameType(x.Type, base.Type) {
		return Value{}, fmt.Errorf("%w: log of %s in base %s", ErrUnsupportedOperator, x.Type, base.Type)
	}
	lb, err := e.callMath("log", *base)
	if err != nil {
		return Value{}, err
	}
	return Value{Val: e.Builder.CreateFDiv(lx.Val, lb.Val, "logb_tmp"), Type: x.Type}, nil
}
