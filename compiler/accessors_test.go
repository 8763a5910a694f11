package compiler_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thiremani/nitro/compiler"
	"github.com/thiremani/nitro/host"
	"github.com/thiremani/nitro/jit"
	"github.com/thiremani/nitro/types"
	"tinygo.org/x/go-llvm"
)

func load(t *testing.T, decls ...compiler.Named) (*compiler.Compiler, *jit.Engine) {
	t.Helper()
	ctx := llvm.NewContext()
	c := compiler.NewCompiler(ctx, "accessors")
	require.NoError(t, c.GenerateAccessors(decls))
	en, err := jit.New(c)
	require.NoError(t, err)
	t.Cleanup(func() {
		en.Dispose()
		c.Dispose()
		ctx.Dispose()
	})
	return c, en
}

func call(t *testing.T, en *jit.Engine, name string, args ...any) any {
	t.Helper()
	fn, err := en.Func(name)
	require.NoError(t, err)
	out, err := fn.Call(args...)
	require.NoError(t, err)
	return out
}

func TestArrayAccessors(t *testing.T) {
	grid, err := types.NewArray(types.Double, types.Dims(2, 3))
	require.NoError(t, err)
	c, en := load(t, compiler.Named{Name: "grid", Type: grid})

	for _, name := range []string{"grid_get", "grid_set", "grid_ravel"} {
		assert.Contains(t, c.Funcs, name)
	}
	assert.NotContains(t, c.Funcs, "grid_dim", "arrays have static extents")

	data := make([]float64, 6)
	buf := host.MustNew(data, 2, 3)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			call(t, en, "grid_set", buf, i, j, float64(10*i+j))
		}
	}
	assert.Equal(t, []float64{0, 1, 2, 10, 11, 12}, data)
	assert.Equal(t, 12.0, call(t, en, "grid_get", buf, 1, 2))

	flat := make([]float64, 6)
	n := call(t, en, "grid_ravel", buf, host.MustNew(flat))
	assert.Equal(t, int64(6), n)
	assert.Equal(t, data, flat)
}

func TestSliceAccessors(t *testing.T) {
	s, err := types.NewSlice(types.Long, types.Shape{types.Dynamic, types.Static(2)})
	require.NoError(t, err)
	_, en := load(t, compiler.Named{Name: "pairs", Type: s})

	buf := host.MustNew([]int64{1, 2, 3, 4, 5, 6}, 3, 2)
	assert.Equal(t, int64(3), call(t, en, "pairs_dim", buf, 0))
	assert.Equal(t, int64(2), call(t, en, "pairs_dim", buf, 1))
	assert.Equal(t, int64(4), call(t, en, "pairs_get", buf, 1, 1))

	call(t, en, "pairs_set", buf, 2, 0, int64(50))
	assert.Equal(t, int64(50), buf.Data()[4])

	flat := make([]int64, 6)
	assert.Equal(t, int64(6), call(t, en, "pairs_ravel", buf, host.MustNew(flat)))
	assert.Equal(t, buf.Data(), flat)

	// A different leading extent through the same accessor.
	short := host.MustNew([]int64{7, 8}, 1, 2)
	assert.Equal(t, int64(1), call(t, en, "pairs_dim", short, 0))
	assert.Equal(t, int64(2), call(t, en, "pairs_ravel", short, host.MustNew(flat)))

	// Static axes must match.
	fn, err := en.Func("pairs_get")
	require.NoError(t, err)
	_, err = fn.Call(host.MustNew([]int64{1, 2, 3}, 1, 3), 0, 0)
	require.ErrorIs(t, err, types.ErrUnsupportedHostValue)
}

func TestPointerAccessors(t *testing.T) {
	p, err := types.NewPointer(types.Int, nil)
	require.NoError(t, err)
	c, en := load(t, compiler.Named{Name: "ints", Type: p})
	assert.NotContains(t, c.Funcs, "ints_ravel", "the leading extent of a pointer is unknown")

	data := []int32{5, 6, 7}
	buf := host.MustNew(data)
	call(t, en, "ints_set", buf, 1, int32(-6))
	assert.Equal(t, int32(-6), call(t, en, "ints_get", buf, 1))
	assert.Equal(t, []int32{5, -6, 7}, data)
}

type particle struct {
	X, Y float64
	Mass float32
	ID   int64
	Pos  [3]float64
}

func TestStructAccessors(t *testing.T) {
	vec3, err := types.NewArray(types.Double, types.Dims(3))
	require.NoError(t, err)
	s, err := types.NewStructure("Particle",
		types.Field{Name: "x", Type: types.Double},
		types.Field{Name: "y", Type: types.Double},
		types.Field{Name: "mass", Type: types.Float},
		types.Field{Name: "id", Type: types.Long},
		types.Field{Name: "pos", Type: vec3},
	)
	require.NoError(t, err)
	c, en := load(t, compiler.Named{Name: "particle", Type: s})

	assert.Contains(t, c.Funcs, "particle_get_pos")
	assert.NotContains(t, c.Funcs, "particle_set_pos", "inline arrays are written through their address")
	assert.True(t, types.SameType(types.NewReference(vec3), c.Funcs["particle_get_pos"].Sig.Result))

	p := &particle{X: 1, Y: 2, Mass: 0.5, ID: 9, Pos: [3]float64{4, 5, 6}}
	assert.Equal(t, 2.0, call(t, en, "particle_get_y", p))
	assert.Equal(t, float32(0.5), call(t, en, "particle_get_mass", p))

	call(t, en, "particle_set_id", p, int64(77))
	call(t, en, "particle_set_x", p, -1.25)
	assert.Equal(t, int64(77), p.ID)
	assert.Equal(t, -1.25, p.X)

	// The address of the inline array points into the host struct.
	addr := call(t, en, "particle_get_pos", p)
	require.IsType(t, unsafe.Pointer(nil), addr)
	assert.Equal(t, unsafe.Pointer(&p.Pos[0]), addr)
}

func TestStructVectorFieldAccessors(t *testing.T) {
	quad, err := types.NewVector(types.Float, 4)
	require.NoError(t, err)
	s, err := types.NewStructure("Sample",
		types.Field{Name: "x", Type: types.Float},
		types.Field{Name: "v", Type: quad},
		types.Field{Name: "z", Type: types.Long},
	)
	require.NoError(t, err)
	_, en := load(t, compiler.Named{Name: "sample", Type: s})

	in := map[string]any{"x": 1.5, "v": []float32{1, 2, 3, 4}, "z": 7}
	assert.Equal(t, int64(7), call(t, en, "sample_get_z", in))
	assert.Equal(t, float32(1.5), call(t, en, "sample_get_x", in))
}

func TestVectorAccessors(t *testing.T) {
	v, err := types.NewVector(types.Float, 4)
	require.NoError(t, err)
	c, en := load(t, compiler.Named{Name: "quad", Type: v})
	assert.Len(t, c.Funcs, 2)

	size, err := types.Sizeof(v)
	require.NoError(t, err)
	a, err := host.AlignedCopy([]float32{1, 2, 3, 4}, int(size))
	require.NoError(t, err)
	b, err := host.AlignedCopy([]float32{2, 2, 2, 2}, int(size))
	require.NoError(t, err)
	out, err := host.Aligned[float32](4, int(size))
	require.NoError(t, err)

	assert.Equal(t, float32(20), call(t, en, "quad_dot", host.MustNew(a), host.MustNew(b)))
	call(t, en, "quad_fma", host.MustNew(a), host.MustNew(b), host.MustNew(a), host.MustNew(out))
	assert.Equal(t, []float32{3, 6, 9, 12}, out)
}

func TestNestedAggregates(t *testing.T) {
	pair, err := types.NewStructure("Pair",
		types.Field{Name: "a", Type: types.Long},
		types.Field{Name: "b", Type: types.Long},
	)
	require.NoError(t, err)
	pairs, err := types.NewArray(pair, types.Dims(3))
	require.NoError(t, err)
	c, en := load(t,
		compiler.Named{Name: "pair", Type: pair},
		compiler.Named{Name: "pairs", Type: pairs},
	)
	assert.NotContains(t, c.Funcs, "pairs_set")

	type hostPair struct{ A, B int64 }
	data := []hostPair{{1, 2}, {3, 4}, {5, 6}}
	elem := call(t, en, "pairs_get", host.MustNew(data), 2)
	assert.Equal(t, int64(6), call(t, en, "pair_get_b", elem))
}

func TestGenerateAccessorsJoinsErrors(t *testing.T) {
	ctx := llvm.NewContext()
	defer ctx.Dispose()
	c := compiler.NewCompiler(ctx, "bad")
	defer c.Dispose()

	open := types.DeclareStructure("Open")
	ok, err := types.NewArray(types.Long, types.Dims(2))
	require.NoError(t, err)

	err = c.GenerateAccessors([]compiler.Named{
		{Name: "open", Type: open},
		{Name: "good", Type: ok},
		{Name: "Double", Type: ok},
		{Name: "num", Type: types.Long},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIncompleteType)
	assert.Contains(t, err.Error(), "reserved type name")
	assert.Contains(t, err.Error(), "no accessors for Long")
	assert.Contains(t, c.Funcs, "good_get")
	require.NoError(t, c.Verify())
}
