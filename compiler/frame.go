package compiler

import (
	"fmt"

	"github.com/thiremani/nitro/types"
	"tinygo.org/x/go-llvm"
)

// Frame is the emission state of one function body.
type Frame struct {
	c  *Compiler
	fn *Func
}

func (f *Frame) Emitter() *types.Emitter { return f.c.emitter }

func (f *Frame) Builder() llvm.Builder { return f.c.builder }

func (f *Frame) Func() *Func { return f.fn }

// Arg returns the value bound to name, a parameter or a local.
func (f *Frame) Arg(name string) (types.Value, error) {
	s, ok := f.c.Scopes.Get(name)
	if !ok {
		return types.Value{}, fmt.Errorf("%w: %q in %s", ErrUnknownSymbol, name, f.fn.Name())
	}
	return s.Value(), nil
}

// Lookup is Arg without the error.
func (f *Frame) Lookup(name string) (types.Value, bool) {
	s, ok := f.c.Scopes.Get(name)
	if !ok {
		return types.Value{}, false
	}
	return s.Value(), true
}

// Bind names v in the innermost scope.
func (f *Frame) Bind(name string, v types.Value) {
	f.c.Scopes.Put(name, &Symbol{Val: v.Val, Type: v.Type})
}

// Index returns a constant of the index type.
func (f *Frame) Index(n int64) llvm.Value {
	return f.c.emitter.ConstIndex(n)
}

// Local reserves an entry-block slot for a value of type t and binds it to
// name. Arrays come back as their base address; everything else as a
// Reference to the slot.
func (f *Frame) Local(name string, t types.Type) (types.Value, error) {
	e := f.c.emitter
	var v types.Value
	switch t := t.(type) {
	case *types.Array:
		addr, err := t.Allocate(e)
		if err != nil {
			return types.Value{}, err
		}
		v = types.Value{Val: addr, Type: t}
	case *types.Slice:
		_, err := t.Allocate(e)
		return types.Value{}, err
	default:
		st, err := e.Storage(t)
		if err != nil {
			return types.Value{}, err
		}
		v = types.Value{Val: e.Alloca(st, name), Type: types.NewReference(t)}
	}
	f.Bind(name, v)
	return v, nil
}

// Load reads through a Reference to a scalar, vector or pointer slot.
// Aggregates stay addresses and are returned unchanged.
func (f *Frame) Load(ref types.Value) (types.Value, error) {
	r, ok := ref.Type.(*types.Reference)
	if !ok || types.IsAggregate(r.Value) {
		return ref, nil
	}
	ty, err := f.c.emitter.Storage(r.Value)
	if err != nil {
		return types.Value{}, err
	}
	return types.Value{Val: f.c.builder.CreateLoad(ty, ref.Val, "load"), Type: r.Value}, nil
}

// Store writes v through a Reference slot of the same type.
func (f *Frame) Store(ref types.Value, v types.Value) error {
	r, ok := ref.Type.(*types.Reference)
	if !ok {
		return fmt.Errorf("%w: store into %s", types.ErrInvalidCast, ref.Type)
	}
	if !types.SameType(r.Value, v.Type) {
		return fmt.Errorf("%w: store %s into %s", types.ErrInvalidCast, v.Type, ref.Type)
	}
	f.c.builder.CreateStore(v.Val, ref.Val)
	return nil
}

// Return emits the function return. Nothing may be emitted after it in the
// same block.
func (f *Frame) Return(v types.Value) error {
	want := f.fn.Sig.Result
	if want == nil {
		return fmt.Errorf("%w: %s returns nothing", ErrResultType, f.fn.Name())
	}
	if !types.SameType(want, v.Type) {
		return fmt.Errorf("%w: %s returns %s, got %s", ErrResultType, f.fn.Name(), want, v.Type)
	}
	f.c.builder.CreateRet(v.Val)
	return nil
}
