package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to the driver. Every failure returned by this package
// matches one of them with errors.Is.
var (
	ErrShapeArityMismatch   = errors.New("shape arity mismatch")
	ErrUnknownField         = errors.New("unknown field")
	ErrUnsupportedOperator  = errors.New("unsupported operator")
	ErrLaneIndexOutOfRange  = errors.New("lane index out of range")
	ErrInvalidCast          = errors.New("invalid cast")
	ErrNotAllocatable       = errors.New("type is not allocatable")
	ErrUnsupportedHostValue = errors.New("unsupported host value")

	ErrUnsupportedWidth = errors.New("unsupported width")
	ErrInvalidShape     = errors.New("invalid shape")
	ErrIncompleteType   = errors.New("incomplete type")
	ErrDuplicateField   = errors.New("duplicate field")
	ErrInvalidField     = errors.New("invalid field")
)

// ShapeArityMismatchError is returned when an index tuple does not match the
// number of axes of an aggregate.
type ShapeArityMismatchError struct {
	Type     Type
	Expected int
	Got      int
}

func (e *ShapeArityMismatchError) Error() string {
	return fmt.Sprintf("%s: index has %d axes, %s has %d", ErrShapeArityMismatch, e.Got, e.Type, e.Expected)
}

func (e *ShapeArityMismatchError) Unwrap() error { return ErrShapeArityMismatch }

// UnknownFieldError names the missing field.
type UnknownFieldError struct {
	Struct string
	Name   string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s %q in structure %s", ErrUnknownField, e.Name, e.Struct)
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

// LaneIndexError reports a lane index outside [0, Lanes).
type LaneIndexError struct {
	Index int
	Lanes int
}

func (e *LaneIndexError) Error() string {
	return fmt.Sprintf("%s: lane %d, vector has %d lanes", ErrLaneIndexOutOfRange, e.Index, e.Lanes)
}

func (e *LaneIndexError) Unwrap() error { return ErrLaneIndexOutOfRange }
