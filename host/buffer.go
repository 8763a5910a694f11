// Package host adapts Go slices to the zero-copy buffer view that compiled
// functions accept for pointer, array and slice parameters.
package host

import (
	"fmt"
	"unsafe"

	"github.com/thiremani/nitro/types"
)

// Buffer is a row-major view of a Go slice with an N-dimensional shape. The
// compiled code reads and writes the slice memory directly.
type Buffer[T any] struct {
	data    []T
	shape   []int
	strides []int
}

var _ types.HostBuffer = (*Buffer[float64])(nil)

// New wraps data with the given shape. With no shape the buffer is
// one-dimensional. The product of the extents must equal len(data).
func New[T any](data []T, shape ...int) (*Buffer[T], error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	n := 1
	for k, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: axis %d has negative extent %d", types.ErrInvalidShape, k, d)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, data has %d", types.ErrInvalidShape, shape, n, len(data))
	}

	var zero T
	size := int(unsafe.Sizeof(zero))
	strides := make([]int, len(shape))
	stride := size
	for k := len(shape) - 1; k >= 0; k-- {
		strides[k] = stride
		stride *= shape[k]
	}
	return &Buffer[T]{
		data:    data,
		shape:   append([]int(nil), shape...),
		strides: strides,
	}, nil
}

// MustNew is New for shapes known to be valid, as in tests.
func MustNew[T any](data []T, shape ...int) *Buffer[T] {
	b, err := New(data, shape...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Buffer[T]) BasePointer() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b.data))
}

func (b *Buffer[T]) Shape() []int   { return append([]int(nil), b.shape...) }
func (b *Buffer[T]) Strides() []int { return append([]int(nil), b.strides...) }

func (b *Buffer[T]) ElemSize() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Data returns the wrapped slice.
func (b *Buffer[T]) Data() []T { return b.data }

// At returns the element at a full index, computed on the host.
func (b *Buffer[T]) At(index ...int) (T, error) {
	var zero T
	off, err := types.FlatIndex(b.shape, index)
	if err != nil {
		return zero, err
	}
	if off < 0 || off >= len(b.data) {
		return zero, fmt.Errorf("%w: index %v outside shape %v", types.ErrInvalidShape, index, b.shape)
	}
	return b.data[off], nil
}
