package types

import (
	"fmt"

	"tinygo.org/x/go-llvm"
)

// Emitter is the IR backend capability the types emit into: an LLVM context,
// the module being built and the builder whose insertion point is the
// current basic block. An Emitter is single-writer: one compilation at a
// time per context.
type Emitter struct {
	Context llvm.Context
	Module  llvm.Module
	Builder llvm.Builder

	lowered map[TypeID]llvm.Type
	stored  map[TypeID]llvm.Type
}

func NewEmitter(ctx llvm.Context, module llvm.Module, builder llvm.Builder) *Emitter {
	return &Emitter{
		Context: ctx,
		Module:  module,
		Builder: builder,
		lowered: make(map[TypeID]llvm.Type),
		stored:  make(map[TypeID]llvm.Type),
	}
}

// Lower returns the LLVM type of SSA values of t. Results are cached per
// emitter, so named structures are created once per context.
func (e *Emitter) Lower(t Type) (llvm.Type, error) {
	if lt, ok := e.lowered[t.ID()]; ok {
		return lt, nil
	}
	lt, err := t.lower(e)
	if err != nil {
		return llvm.Type{}, err
	}
	e.lowered[t.ID()] = lt
	return lt, nil
}

// Storage returns the in-memory LLVM type of t when it is held inline in an
// array element or a structure field.
func (e *Emitter) Storage(t Type) (llvm.Type, error) {
	if st, ok := e.stored[t.ID()]; ok {
		return st, nil
	}
	st, err := t.storage(e)
	if err != nil {
		return llvm.Type{}, err
	}
	e.stored[t.ID()] = st
	return st, nil
}

func (e *Emitter) ptrType() llvm.Type {
	return llvm.PointerType(e.Context.Int8Type(), 0)
}

// IndexType is the integer type used for all address arithmetic.
func (e *Emitter) IndexType() llvm.Type {
	return e.Context.Int64Type()
}

// ConstIndex creates a constant of the index type.
func (e *Emitter) ConstIndex(v int64) llvm.Value {
	return llvm.ConstInt(e.IndexType(), uint64(v), true)
}

func (e *Emitter) constI32(v int) llvm.Value {
	return llvm.ConstInt(e.Context.Int32Type(), uint64(v), false)
}

// AsIndex converts an integer value to the index type. Signed sources are
// sign-extended and unsigned ones zero-extended.
func (e *Emitter) AsIndex(v Value) (llvm.Value, error) {
	s, ok := v.Type.(*Scalar)
	if !ok || s.float {
		return llvm.Value{}, fmt.Errorf("%w: %s is not an integer index", ErrInvalidCast, v.Type)
	}
	idx, err := Index.Cast(e, v)
	if err != nil {
		return llvm.Value{}, err
	}
	return idx.Val, nil
}

// Alloca reserves a stack slot of type ty in the entry block of the
// function under construction and restores the insertion point.
func (e *Emitter) Alloca(ty llvm.Type, name string) llvm.Value {
	current := e.Builder.GetInsertBlock()
	fn := current.Parent()
	entry := fn.EntryBasicBlock()
	first := entry.FirstInstruction()

	if first.IsNil() {
		e.Builder.SetInsertPointAtEnd(entry)
	} else {
		e.Builder.SetInsertPointBefore(first)
	}

	alloca := e.Builder.CreateAlloca(ty, name)
	e.Builder.SetInsertPointAtEnd(current)
	return alloca
}

// intrinsic returns the declaration of an LLVM intrinsic or runtime helper,
// adding it to the module on first use.
func (e *Emitter) intrinsic(name string, ret llvm.Type, params ...llvm.Type) (llvm.Type, llvm.Value) {
	fnType := llvm.FunctionType(ret, params, false)
	fn := e.Module.NamedFunction(name)
	if fn.IsNil() {
		fn = llvm.AddFunction(e.Module, name, fnType)
	}
	return fnType, fn
}
