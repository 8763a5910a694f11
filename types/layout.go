package types

import (
	"fmt"
)

// PointerSize is the size and alignment of every address on the supported
// 64-bit hosts.
const PointerSize = 8

// Sizeof returns the in-memory size of t in bytes, following the natural C
// layout the backend uses for unpacked structures.
func Sizeof(t Type) (int64, error) {
	switch t := t.(type) {
	case *Scalar:
		return scalarBytes(t), nil
	case *Pointer, *Reference:
		return PointerSize, nil
	case *Array:
		elem, err := Sizeof(t.elem)
		if err != nil {
			return 0, err
		}
		return int64(t.Len()) * elem, nil
	case *Slice:
		return PointerSize + PointerSize*int64(t.NDim()), nil
	case *Structure:
		l, err := structLayout(t)
		if err != nil {
			return 0, err
		}
		return l.size, nil
	case *Vector:
		size, _ := vectorLayout(t)
		return size, nil
	}
	return 0, fmt.Errorf("%w: no layout for %v", ErrInvalidShape, t)
}

// Alignof returns the alignment of t in bytes.
func Alignof(t Type) (int64, error) {
	switch t := t.(type) {
	case *Scalar:
		return scalarBytes(t), nil
	case *Pointer, *Reference, *Slice:
		return PointerSize, nil
	case *Array:
		if t.Len() == 0 {
			return 1, nil
		}
		return Alignof(t.elem)
	case *Structure:
		l, err := structLayout(t)
		if err != nil {
			return 0, err
		}
		return l.align, nil
	case *Vector:
		_, a := vectorLayout(t)
		return a, nil
	}
	return 0, fmt.Errorf("%w: no layout for %v", ErrInvalidShape, t)
}

// Offsetof returns the byte offset of field name within s.
func Offsetof(s *Structure, name string) (int64, error) {
	i, _, err := s.Field(name)
	if err != nil {
		return 0, err
	}
	l, err := structLayout(s)
	if err != nil {
		return 0, err
	}
	return l.offsets[i], nil
}

type layout struct {
	size    int64
	align   int64
	offsets []int64
}

func structLayout(s *Structure) (layout, error) {
	if !s.complete {
		return layout{}, fmt.Errorf("%w: structure %s has no fields yet", ErrIncompleteType, s.name)
	}
	var offset int64
	maxAlign := int64(1)
	offsets := make([]int64, len(s.fields))
	for i, f := range s.fields {
		size, err := Sizeof(f.Type)
		if err != nil {
			return layout{}, fmt.Errorf("field %q of %s: %w", f.Name, s.name, err)
		}
		a, err := Alignof(f.Type)
		if err != nil {
			return layout{}, fmt.Errorf("field %q of %s: %w", f.Name, s.name, err)
		}
		offset = align(offset, a)
		offsets[i] = offset
		offset += size
		if a > maxAlign {
			maxAlign = a
		}
	}
	return layout{size: align(offset, maxAlign), align: maxAlign, offsets: offsets}, nil
}

// scalarBytes rounds the bit width up to whole bytes; I1 occupies one.
func scalarBytes(s *Scalar) int64 {
	return int64((s.width + 7) / 8)
}

// vectorLayout sizes a vector as its lanes packed together, aligned to the
// next power of two.
func vectorLayout(v *Vector) (size, alignment int64) {
	raw := int64(v.lanes) * scalarBytes(v.elem)
	alignment = 1
	for alignment < raw {
		alignment <<= 1
	}
	return align(raw, alignment), alignment
}

// align returns x rounded up to a multiple of a.
func align(x, a int64) int64 {
	return (x + a - 1) &^ (a - 1)
}
