package types

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowMajor is a minimal HostBuffer over a Go slice.
type rowMajor[T any] struct {
	data    []T
	shape   []int
	strides []int
}

func newRowMajor[T any](data []T, shape ...int) *rowMajor[T] {
	var zero T
	stride := int(unsafe.Sizeof(zero))
	strides := make([]int, len(shape))
	for k := len(shape) - 1; k >= 0; k-- {
		strides[k] = stride
		stride *= shape[k]
	}
	return &rowMajor[T]{data: data, shape: shape, strides: strides}
}

func (b *rowMajor[T]) BasePointer() unsafe.Pointer { return unsafe.Pointer(unsafe.SliceData(b.data)) }
func (b *rowMajor[T]) Shape() []int                { return b.shape }
func (b *rowMajor[T]) Strides() []int              { return b.strides }
func (b *rowMajor[T]) ElemSize() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func TestConvertScalar(t *testing.T) {
	v, err := Convert(Long, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = Convert(Double, 3)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)

	v, err = Convert(Int, true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	v, err = Convert(Bool, 2)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = Convert(Long, "42")
	require.ErrorIs(t, err, ErrUnsupportedHostValue)
}

func TestConvertBuffer(t *testing.T) {
	data := make([]int64, 12)
	a, err := NewArray(Long, Dims(2, 3, 2))
	require.NoError(t, err)

	v, err := Convert(a, newRowMajor(data, 2, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, unsafe.Pointer(&data[0]), v)

	// Arity mismatch is reported with both counts.
	_, err = Convert(a, newRowMajor(data, 12))
	var sam *ShapeArityMismatchError
	require.ErrorAs(t, err, &sam)
	assert.Equal(t, 3, sam.Expected)
	assert.Equal(t, 1, sam.Got)
	require.ErrorIs(t, err, ErrShapeArityMismatch)

	_, err = Convert(a, newRowMajor(data, 3, 2, 2))
	require.ErrorIs(t, err, ErrUnsupportedHostValue)

	_, err = Convert(a, newRowMajor(make([]int32, 12), 2, 3, 2))
	require.ErrorIs(t, err, ErrUnsupportedHostValue)

	// Plain Go slices are not buffers.
	_, err = Convert(a, data)
	require.ErrorIs(t, err, ErrUnsupportedHostValue)

	strided := newRowMajor(data, 2, 3, 2)
	strided.strides = []int{8, 16, 48}
	_, err = Convert(a, strided)
	require.ErrorIs(t, err, ErrUnsupportedHostValue)
}

func TestConvertSliceDescriptor(t *testing.T) {
	data := make([]float64, 27)
	s, err := NewSlice(Double, Shape{Dynamic, Static(3), Static(3)})
	require.NoError(t, err)

	v, err := Convert(s, newRowMajor(data, 3, 3, 3))
	require.NoError(t, err)
	rv := reflect.ValueOf(v)
	assert.Equal(t, unsafe.Pointer(&data[0]), rv.Field(0).Interface())
	extents := rv.Field(1)
	require.Equal(t, 3, extents.Len())
	for k := 0; k < 3; k++ {
		assert.Equal(t, int64(3), extents.Index(k).Int())
	}

	// By reference the descriptor is boxed.
	v, err = Convert(NewReference(s), newRowMajor(data, 3, 3, 3))
	require.NoError(t, err)
	p, ok := v.(unsafe.Pointer)
	require.True(t, ok)
	assert.Equal(t, unsafe.Pointer(&data[0]), *(*unsafe.Pointer)(p))
	assert.Equal(t, int64(3), *(*int64)(unsafe.Add(p, 8)))
}

type point struct {
	X   float64
	N   int32
	Tag int8
}

func TestConvertStructure(t *testing.T) {
	s, err := NewStructure("Point", Field{"x", Double}, Field{"n", Int}, Field{"tag", Byte})
	require.NoError(t, err)

	v, err := Convert(s, map[string]any{"x": 1.5, "tag": 3})
	require.NoError(t, err)
	rv := reflect.ValueOf(v)
	assert.Equal(t, 1.5, rv.Field(0).Float())
	assert.Equal(t, int64(0), rv.Field(1).Int())
	assert.Equal(t, int64(3), rv.Field(2).Int())

	_, err = Convert(s, map[string]any{"z": 1})
	var ufe *UnknownFieldError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "z", ufe.Name)

	v, err = Convert(s, point{X: 2, N: 7, Tag: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(7), reflect.ValueOf(v).Field(1).Int())

	_, err = Convert(s, struct{ A, B float64 }{})
	require.ErrorIs(t, err, ErrUnsupportedHostValue)

	// A pointer to a matching Go struct is passed without copying.
	host := &point{X: 4}
	v, err = Convert(NewReference(s), host)
	require.NoError(t, err)
	assert.Equal(t, unsafe.Pointer(host), v)
}

func TestConvertStructureInlineArray(t *testing.T) {
	arr, err := NewArray(Long, Dims(3))
	require.NoError(t, err)
	s, err := NewStructure("Triple", Field{"v", arr})
	require.NoError(t, err)

	v, err := Convert(s, map[string]any{"v": newRowMajor([]int64{4, 5, 6}, 3)})
	require.NoError(t, err)
	got := reflect.ValueOf(v).Field(0).Interface()
	assert.Equal(t, [3]int64{4, 5, 6}, got)
}

func TestConvertStructureWithVector(t *testing.T) {
	quad, err := NewVector(Float, 4)
	require.NoError(t, err)
	s, err := NewStructure("Sample", Field{"x", Float}, Field{"v", quad}, Field{"z", Long})
	require.NoError(t, err)

	v, err := Convert(NewReference(s), map[string]any{"x": 0.5, "v": []float64{1, 2, 3, 4}, "z": 7})
	require.NoError(t, err)
	p, ok := v.(unsafe.Pointer)
	require.True(t, ok)
	assert.Zero(t, uintptr(p)%16, "copy is aligned for whole-vector loads")
	assert.Equal(t, float32(0.5), *(*float32)(p))
	assert.Equal(t, [4]float32{1, 2, 3, 4}, *(*[4]float32)(unsafe.Add(p, 16)))
	assert.Equal(t, int64(7), *(*int64)(unsafe.Add(p, 32)))
}

func TestConvertVector(t *testing.T) {
	vt, err := NewVector(Float, 4)
	require.NoError(t, err)

	v, err := Convert(vt, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, [4]float32{1, 2, 3, 4}, v)

	_, err = Convert(vt, []float64{1, 2, 3})
	require.ErrorIs(t, err, ErrUnsupportedHostValue)

	_, err = Convert(vt, 1.0)
	require.ErrorIs(t, err, ErrUnsupportedHostValue)
}
