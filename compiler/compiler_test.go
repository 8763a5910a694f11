package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thiremani/nitro/types"
	"tinygo.org/x/go-llvm"
)

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	ctx := llvm.NewContext()
	c := NewCompiler(ctx, "test")
	t.Cleanup(func() {
		c.Dispose()
		ctx.Dispose()
	})
	return c
}

func TestDefineBindsParams(t *testing.T) {
	c := newTestCompiler(t)
	s, err := types.NewStructure("Pair", types.Field{Name: "a", Type: types.Long}, types.Field{Name: "b", Type: types.Long})
	require.NoError(t, err)

	sig := Signature{
		Name:   "sum",
		Params: []Param{{Name: "p", Type: s}, {Name: "k", Type: types.Long}},
		Result: types.Long,
	}
	fn, err := c.Define(sig, func(f *Frame) error {
		p, err := f.Arg("p")
		if err != nil {
			return err
		}
		assert.Equal(t, types.ReferenceKind, p.Type.Kind(), "structures are passed by address")
		k, err := f.Arg("k")
		if err != nil {
			return err
		}
		a, err := s.GetField(f.Emitter(), p.Val, "a")
		if err != nil {
			return err
		}
		v, err := f.Emitter().Binary(types.Add, a, k)
		if err != nil {
			return err
		}
		return f.Return(v)
	})
	require.NoError(t, err)
	assert.Equal(t, "sum", fn.Name())
	assert.Same(t, fn, c.Funcs["sum"])
	assert.Equal(t, "sum(p <Reference Pair>, k Long) Long", sig.String())
	require.NoError(t, c.Verify())

	ir := c.GenerateIR()
	assert.Contains(t, ir, "define i64 @sum(ptr %p, i64 %k)")
	assert.Contains(t, ir, "%Pair = type { i64, i64 }")

	// Parameters are gone once the body is done.
	assert.Equal(t, 1, c.Scopes.Depth())
	_, ok := c.Scopes.Get("p")
	assert.False(t, ok)
}

func TestDefineErrors(t *testing.T) {
	c := newTestCompiler(t)
	arr, err := types.NewArray(types.Long, types.Dims(4))
	require.NoError(t, err)
	st, err := types.NewStructure("Box", types.Field{Name: "v", Type: types.Long})
	require.NoError(t, err)

	noop := func(*Frame) error { return nil }
	_, err = c.Define(Signature{Name: "ok"}, noop)
	require.NoError(t, err)

	tests := []struct {
		name string
		sig  Signature
		body func(*Frame) error
		want error
		msg  string
	}{
		{"duplicate", Signature{Name: "ok"}, noop, ErrDuplicateFunc, ""},
		{"invalid name", Signature{Name: "bad__name"}, noop, nil, "double underscore"},
		{"array result", Signature{Name: "ra", Result: arr}, noop, ErrAggregateResult, ""},
		{"struct result", Signature{Name: "rs", Result: st}, noop, ErrAggregateResult, ""},
		{"missing return", Signature{Name: "mr", Result: types.Long}, noop, ErrMissingReturn, ""},
		{"duplicate param", Signature{Name: "dp", Params: []Param{{"x", types.Long}, {"x", types.Long}}}, noop, nil, "duplicate parameter"},
		{"untyped param", Signature{Name: "up", Params: []Param{{"x", nil}}}, noop, nil, "needs a name and a type"},
		{"unknown symbol", Signature{Name: "us"}, func(f *Frame) error {
			_, err := f.Arg("nothing")
			return err
		}, ErrUnknownSymbol, ""},
		{"wrong result", Signature{Name: "wr", Result: types.Long}, func(f *Frame) error {
			return f.Return(types.Double.Const(f.Emitter(), 1))
		}, ErrResultType, ""},
		{"void result", Signature{Name: "vr"}, func(f *Frame) error {
			return f.Return(types.Long.Const(f.Emitter(), 1))
		}, ErrResultType, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Define(tt.sig, tt.body)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.sig.Name, ce.Func)
		})
	}
	assert.Len(t, c.Errors, len(tests))
	assert.Len(t, c.Funcs, 1)
	require.NoError(t, c.Verify())
}

func TestLocalsAndLoop(t *testing.T) {
	c := newTestCompiler(t)
	sig := Signature{
		Name:   "triangle",
		Params: []Param{{Name: "n", Type: types.Int}},
		Result: types.Long,
	}
	_, err := c.Define(sig, func(f *Frame) error {
		e := f.Emitter()
		acc, err := f.Local("acc", types.Long)
		if err != nil {
			return err
		}
		if err := f.Store(acc, types.Long.Const(e, 0)); err != nil {
			return err
		}
		n, err := f.Arg("n")
		if err != nil {
			return err
		}
		err = f.Range("i", n, func(i types.Value) error {
			// Locals and parameters stay visible inside the loop.
			bound, ok := f.Lookup("i")
			require.True(t, ok)
			require.Equal(t, i.Val, bound.Val)
			cur, err := f.Load(acc)
			if err != nil {
				return err
			}
			next, err := e.Binary(types.Add, cur, i)
			if err != nil {
				return err
			}
			return f.Store(acc, next)
		})
		if err != nil {
			return err
		}
		_, ok := f.Lookup("i")
		require.False(t, ok, "loop variable is scoped to the body")
		total, err := f.Load(acc)
		if err != nil {
			return err
		}
		return f.Return(total)
	})
	require.NoError(t, err)
	require.NoError(t, c.Verify())

	ir := c.GenerateIR()
	for _, block := range []string{"i_cond:", "i_body:", "i_exit:"} {
		assert.Contains(t, ir, block)
	}
	assert.Contains(t, ir, "phi i64")
	assert.Contains(t, ir, "sext i32 %n to i64")

	// Every alloca sits in the entry block.
	entry := ir[strings.Index(ir, "entry:"):strings.Index(ir, "i_cond:")]
	assert.Equal(t, strings.Count(ir, "alloca"), strings.Count(entry, "alloca"))
}

func TestLocalKinds(t *testing.T) {
	c := newTestCompiler(t)
	arr, err := types.NewArray(types.Double, types.Dims(2, 2))
	require.NoError(t, err)
	sl, err := types.NewSlice(types.Double, nil)
	require.NoError(t, err)

	_, err = c.Define(Signature{Name: "locals"}, func(f *Frame) error {
		a, err := f.Local("grid", arr)
		if err != nil {
			return err
		}
		assert.True(t, types.SameType(arr, a.Type), "arrays are their own address")

		v, err := f.Local("x", types.Double)
		if err != nil {
			return err
		}
		assert.Equal(t, types.ReferenceKind, v.Type.Kind())

		_, err = f.Local("view", sl)
		assert.ErrorIs(t, err, types.ErrNotAllocatable)

		err = f.Store(v, types.Long.Const(f.Emitter(), 1))
		assert.ErrorIs(t, err, types.ErrInvalidCast)
		err = f.Store(types.Double.Const(f.Emitter(), 1), types.Double.Const(f.Emitter(), 1))
		assert.ErrorIs(t, err, types.ErrInvalidCast)

		loaded, err := f.Load(a)
		if err != nil {
			return err
		}
		assert.Equal(t, a, loaded, "aggregates are not loaded")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, c.Verify())
	assert.Contains(t, c.GenerateIR(), "alloca [4 x double]")
}

func TestDefineRecoversAfterFailure(t *testing.T) {
	c := newTestCompiler(t)
	boom := errors.New("boom")
	_, err := c.Define(Signature{Name: "broken", Result: types.Long}, func(f *Frame) error {
		f.Emitter().Builder.CreateAdd(f.Index(1), f.Index(2), "dead")
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.True(t, c.builder.GetInsertBlock().IsNil(), "no block of the erased function is left current")
	assert.True(t, c.Module.NamedFunction("broken").IsNil())

	_, err = c.Define(Signature{Name: "one", Result: types.Long}, func(f *Frame) error {
		return f.Return(types.Long.Const(f.Emitter(), 1))
	})
	require.NoError(t, err)
	require.NoError(t, c.Verify())
	assert.NotContains(t, c.GenerateIR(), "dead")
}

func TestRangeRejectsFloatCount(t *testing.T) {
	c := newTestCompiler(t)
	_, err := c.Define(Signature{Name: "bad_range"}, func(f *Frame) error {
		return f.Range("i", types.Double.ConstFloat(f.Emitter(), 3), func(types.Value) error { return nil })
	})
	require.ErrorIs(t, err, types.ErrInvalidCast)
}

func TestRangeZeroExtendsUnsignedCount(t *testing.T) {
	c := newTestCompiler(t)
	_, err := c.Define(Signature{Name: "count", Params: []Param{{Name: "n", Type: types.Char}}}, func(f *Frame) error {
		n, err := f.Arg("n")
		if err != nil {
			return err
		}
		return f.Range("i", n, func(types.Value) error { return nil })
	})
	require.NoError(t, err)
	require.NoError(t, c.Verify())
	assert.Contains(t, c.GenerateIR(), "zext i8 %n to i64")
}
