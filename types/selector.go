package types

import (
	"fmt"

	"tinygo.org/x/go-llvm"
)

// Op is an operator the instruction selector can lower.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	Pow
	Neg
	Eq
	Ne
	Gt
	Ge
	Lt
	Le
	numOps
)

var opNames = [...]string{
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
	Pow: "**",
	Neg: "neg",
	Eq:  "==",
	Ne:  "!=",
	Gt:  ">",
	Ge:  ">=",
	Lt:  "<",
	Le:  "<=",
}

func (o Op) String() string {
	if o >= 0 && o < numOps {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Ops lists every operator, in declaration order.
func Ops() []Op {
	ops := make([]Op, 0, numOps)
	for o := Add; o < numOps; o++ {
		ops = append(ops, o)
	}
	return ops
}

func (o Op) IsComparison() bool { return o >= Eq && o <= Le }

// Category splits types into the two instruction families.
type Category int

const (
	Integral Category = iota
	Floating
)

func (c Category) String() string {
	if c == Floating {
		return "floating"
	}
	return "integral"
}

// CategoryOf classifies scalars by their float flag and vectors by their
// element. Other types have no operator lowering.
func CategoryOf(t Type) (Category, error) {
	switch t := t.(type) {
	case *Scalar:
		if t.float {
			return Floating, nil
		}
		return Integral, nil
	case *Vector:
		return CategoryOf(t.elem)
	}
	return 0, fmt.Errorf("%w: no operators on %s", ErrUnsupportedOperator, t)
}

type opKey struct {
	Op       Op
	Category Category
}

type binaryFunc func(e *Emitter, t Type, l, r llvm.Value) llvm.Value

type unaryFunc func(e *Emitter, v llvm.Value) llvm.Value

// binaryOps is the arithmetic table. Integer division has no entry:
// signedness and truncation policy belong to the driver.
var binaryOps = map[opKey]binaryFunc{
	{Add, Floating}: func(e *Emitter, _ Type, l, r llvm.Value) llvm.Value {
		return e.Builder.CreateFAdd(l, r, "fadd_tmp")
	},
	{Add, Integral}: func(e *Emitter, _ Type, l, r llvm.Value) llvm.Value {
		return e.Builder.CreateAdd(l, r, "add_tmp")
	},
	{Sub, Floating}: func(e *Emitter, _ Type, l, r llvm.Value) llvm.Value {
		return e.Builder.CreateFSub(l, r, "fsub_tmp")
	},
	{Sub, Integral}: func(e *Emitter, _ Type, l, r llvm.Value) llvm.Value {
		return e.Builder.CreateSub(l, r, "sub_tmp")
	},
	{Mul, Floating}: func(e *Emitter, _ Type, l, r llvm.Value) llvm.Value {
		return e.Builder.CreateFMul(l, r, "fmul_tmp")
	},
	{Mul, Integral}: func(e *Emitter, _ Type, l, r llvm.Value) llvm.Value {
		return e.Builder.CreateMul(l, r, "mul_tmp")
	},
	{Div, Floating}: func(e *Emitter, _ Type, l, r llvm.Value) llvm.Value {
		return e.Builder.CreateFDiv(l, r, "fdiv_tmp")
	},
	{Pow, Floating}: emitPow,
	{Pow, Integral}: emitPow,
}

var unaryOps = map[opKey]unaryFunc{
	{Neg, Floating}: func(e *Emitter, v llvm.Value) llvm.Value {
		return e.Builder.CreateFNeg(v, "fneg_tmp")
	},
	{Neg, Integral}: func(e *Emitter, v llvm.Value) llvm.Value {
		return e.Builder.CreateNeg(v, "neg_tmp")
	},
}

// Float comparisons are unordered, so a NaN operand compares true for every
// predicate except equality semantics defined by the U* family.
var floatPredicates = map[Op]llvm.FloatPredicate{
	Eq: llvm.FloatUEQ,
	Ne: llvm.FloatUNE,
	Gt: llvm.FloatUGT,
	Ge: llvm.FloatUGE,
	Lt: llvm.FloatULT,
	Le: llvm.FloatULE,
}

var intPredicates = map[Op]llvm.IntPredicate{
	Eq: llvm.IntEQ,
	Ne: llvm.IntNE,
	Gt: llvm.IntSGT,
	Ge: llvm.IntSGE,
	Lt: llvm.IntSLT,
	Le: llvm.IntSLE,
}

// Supported reports whether op has a lowering for the category.
func Supported(op Op, cat Category) bool {
	key := opKey{op, cat}
	if _, ok := binaryOps[key]; ok {
		return true
	}
	if _, ok := unaryOps[key]; ok {
		return true
	}
	if !op.IsComparison() {
		return false
	}
	if cat == Floating {
		_, ok := floatPredicates[op]
		return ok
	}
	_, ok := intPredicates[op]
	return ok
}

func unsupported(op Op, t Type) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedOperator, op, t)
}

func checkOperands(op Op, l, r Value) error {
	if !SameType(l.Type, r.Type) {
		return fmt.Errorf("%w: %s between %s and %s", ErrUnsupportedOperator, op, l.Type, r.Type)
	}
	return nil
}

// Binary lowers an arithmetic or comparison operator on two operands of the
// same type.
func (e *Emitter) Binary(op Op, l, r Value) (Value, error) {
	if op.IsComparison() {
		return e.Compare(op, l, r)
	}
	if err := checkOperands(op, l, r); err != nil {
		return Value{}, err
	}
	cat, err := CategoryOf(l.Type)
	if err != nil {
		return Value{}, err
	}
	fn, ok := binaryOps[opKey{op, cat}]
	if !ok {
		return Value{}, unsupported(op, l.Type)
	}
	return Value{Val: fn(e, l.Type, l.Val, r.Val), Type: l.Type}, nil
}

// Unary lowers a unary operator.
func (e *Emitter) Unary(op Op, v Value) (Value, error) {
	cat, err := CategoryOf(v.Type)
	if err != nil {
		return Value{}, err
	}
	fn, ok := unaryOps[opKey{op, cat}]
	if !ok {
		return Value{}, unsupported(op, v.Type)
	}
	return Value{Val: fn(e, v.Val), Type: v.Type}, nil
}

// Compare lowers a comparison. The result is I1, or a vector of I1 for
// vector operands, regardless of the operand category.
func (e *Emitter) Compare(op Op, l, r Value) (Value, error) {
	if err := checkOperands(op, l, r); err != nil {
		return Value{}, err
	}
	cat, err := CategoryOf(l.Type)
	if err != nil {
		return Value{}, err
	}
	result, err := compareResult(l.Type)
	if err != nil {
		return Value{}, err
	}
	name := "cmp_" + cat.String()
	if cat == Floating {
		pred, ok := floatPredicates[op]
		if !ok {
			return Value{}, unsupported(op, l.Type)
		}
		return Value{Val: e.Builder.CreateFCmp(pred, l.Val, r.Val, name), Type: result}, nil
	}
	pred, ok := intPredicates[op]
	if !ok {
		return Value{}, unsupported(op, l.Type)
	}
	return Value{Val: e.Builder.CreateICmp(pred, l.Val, r.Val, name), Type: result}, nil
}

func compareResult(t Type) (Type, error) {
	if v, ok := t.(*Vector); ok {
		return NewVector(I1, v.lanes)
	}
	return I1, nil
}

// scalarOf returns the scalar element of t and its lane count, zero for a
// plain scalar.
func scalarOf(t Type) (*Scalar, int) {
	if v, ok := t.(*Vector); ok {
		return v.elem, v.lanes
	}
	return t.(*Scalar), 0
}

// powOverload is the intrinsic name suffix: f64, f32, v4f32, ...
func powOverload(width uint32, lanes int) string {
	if lanes > 0 {
		return fmt.Sprintf("v%df%d", lanes, width)
	}
	return fmt.Sprintf("f%d", width)
}

// emitPow calls the shared llvm.pow intrinsic. Integral operands are
// converted to double and the result converted back.
func emitPow(e *Emitter, t Type, l, r llvm.Value) llvm.Value {
	s, lanes := scalarOf(t)
	if s.float {
		ty := l.Type()
		fnTy, fn := e.intrinsic("llvm.pow."+powOverload(s.width, lanes), ty, ty, ty)
		return e.Builder.CreateCall(fnTy, fn, []llvm.Value{l, r}, "pow_tmp")
	}

	fty := e.Context.DoubleType()
	if lanes > 0 {
		fty = llvm.VectorType(fty, lanes)
	}
	toFloat := e.Builder.CreateSIToFP
	toInt := e.Builder.CreateFPToSI
	if !s.signed {
		toFloat = e.Builder.CreateUIToFP
		toInt = e.Builder.CreateFPToUI
	}
	lf := toFloat(l, fty, "pow_base")
	rf := toFloat(r, fty, "pow_exp")
	fnTy, fn := e.intrinsic("llvm.pow."+powOverload(64, lanes), fty, fty, fty)
	p := e.Builder.CreateCall(fnTy, fn, []llvm.Value{lf, rf}, "pow_tmp")
	return toInt(p, l.Type(), "pow_int")
}
