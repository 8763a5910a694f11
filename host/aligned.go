package host

import (
	"fmt"
	"unsafe"
)

// Aligned returns a zeroed slice of n elements whose first element sits on
// an align-byte boundary, as whole-vector loads and stores require. align
// must be a power of two.
func Aligned[T any](n, align int) ([]T, error) {
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("alignment %d is not a power of two", align)
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return make([]T, n), nil
	}
	pad := (align + size - 1) / size
	backing := make([]T, n+pad+1)
	for i := 0; i <= pad; i++ {
		if uintptr(unsafe.Pointer(&backing[i]))%uintptr(align) == 0 {
			return backing[i : i+n : i+n], nil
		}
	}
	return nil, fmt.Errorf("cannot align %d-byte elements to %d bytes", size, align)
}

// AlignedCopy returns an aligned copy of data.
func AlignedCopy[T any](data []T, align int) ([]T, error) {
	out, err := Aligned[T](len(data), align)
	if err != nil {
		return nil, err
	}
	copy(out, data)
	return out, nil
}
