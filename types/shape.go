package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Axis is one dimension of a shape: either a static extent or Dynamic, an
// extent only known at the call boundary.
type Axis struct {
	extent  int
	dynamic bool
}

// Dynamic marks an axis whose extent is supplied at run time.
var Dynamic = Axis{dynamic: true}

// Static returns an axis of fixed extent n.
func Static(n int) Axis {
	return Axis{extent: n}
}

// Extent returns the static extent, or false for a dynamic axis.
func (a Axis) Extent() (int, bool) {
	if a.dynamic {
		return 0, false
	}
	return a.extent, true
}

func (a Axis) IsDynamic() bool { return a.dynamic }

func (a Axis) String() string {
	if a.dynamic {
		return "?"
	}
	return strconv.Itoa(a.extent)
}

// Shape is an ordered list of axes, major axis first.
type Shape []Axis

// Dims builds a shape from integer extents; a negative extent means Dynamic.
func Dims(extents ...int) Shape {
	s := make(Shape, len(extents))
	for i, n := range extents {
		if n < 0 {
			s[i] = Dynamic
			continue
		}
		s[i] = Static(n)
	}
	return s
}

// ParseShape reads the textual form used in declaration files: extents
// separated by commas or 'x', with '?' for a dynamic axis.
func ParseShape(text string) (Shape, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "(")
	text = strings.TrimSuffix(text, ")")
	if text == "" {
		return nil, fmt.Errorf("%w: empty shape", ErrInvalidShape)
	}
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == 'x' })
	s := make(Shape, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "?" || p == "Any" {
			s = append(s, Dynamic)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: axis %q: %v", ErrInvalidShape, p, err)
		}
		s = append(s, Static(n))
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s Shape) validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no axes", ErrInvalidShape)
	}
	for i, a := range s {
		if !a.dynamic && a.extent < 0 {
			return fmt.Errorf("%w: axis %d has negative extent %d", ErrInvalidShape, i, a.extent)
		}
	}
	return nil
}

// IsStatic reports whether every axis has a known extent.
func (s Shape) IsStatic() bool {
	for _, a := range s {
		if a.dynamic {
			return false
		}
	}
	return true
}

// Len returns the number of elements of a fully static shape.
func (s Shape) Len() (int, bool) {
	n := 1
	for _, a := range s {
		if a.dynamic {
			return 0, false
		}
		n *= a.extent
	}
	return n, true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, a := range s {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}

// GoString renders the shape the way constructors spell it, e.g. (Any, 3).
func (s Shape) GoString() string {
	parts := make([]string, len(s))
	for i, a := range s {
		if a.dynamic {
			parts[i] = "Any"
		} else {
			parts[i] = strconv.Itoa(a.extent)
		}
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (s Shape) clone() Shape {
	return append(Shape(nil), s...)
}

// shapeRepr nests the shape around the element name: [2 x [? x Long]].
func shapeRepr(elem Type, s Shape) string {
	inner := elem.String()
	if len(s) > 1 {
		inner = shapeRepr(elem, s[1:])
	}
	return fmt.Sprintf("[%s x %s]", s[0], inner)
}

// FlatIndex computes the row-major linear offset of index within extents.
// It is the host-side reference for the emitted address arithmetic.
func FlatIndex(extents, index []int) (int, error) {
	if len(extents) != len(index) {
		return 0, fmt.Errorf("%w: index has %d axes, shape has %d", ErrShapeArityMismatch, len(index), len(extents))
	}
	offset := 0
	stride := 1
	for k := len(index) - 1; k >= 0; k-- {
		offset += index[k] * stride
		stride *= extents[k]
	}
	return offset, nil
}
