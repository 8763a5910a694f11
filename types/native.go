package types

import (
	"fmt"
	"reflect"
	"unsafe"

	"fortio.org/safecast"
)

// HostBuffer is the view a host object offers for zero-copy marshaling: the
// address of its first element, its per-axis extents and byte strides, and
// the size of one element. Aggregates accept nothing else.
type HostBuffer interface {
	BasePointer() unsafe.Pointer
	Shape() []int
	Strides() []int
	ElemSize() int
}

var unsafePointerType = reflect.TypeOf(unsafe.Pointer(nil))

// Native returns the Go type whose memory representation matches the C
// representation of a t value at a call boundary. Addresses are
// unsafe.Pointer; structures and slice descriptors are their inline layout.
func Native(t Type) (reflect.Type, error) {
	switch t.(type) {
	case *Pointer, *Array, *Reference:
		return unsafePointerType, nil
	}
	return NativeStorage(t)
}

// NativeStorage returns the Go type matching the inline layout of t as an
// array element or structure field.
func NativeStorage(t Type) (reflect.Type, error) {
	switch t := t.(type) {
	case *Scalar:
		return t.native, nil
	case *Pointer, *Reference:
		return unsafePointerType, nil
	case *Array:
		elem, err := NativeStorage(t.elem)
		if err != nil {
			return nil, err
		}
		return reflect.ArrayOf(t.Len(), elem), nil
	case *Slice:
		return reflect.StructOf([]reflect.StructField{
			{Name: "Data", Type: unsafePointerType},
			{Name: "Shape", Type: reflect.ArrayOf(t.NDim(), reflect.TypeOf(int64(0)))},
		}), nil
	case *Structure:
		return structNative(t)
	case *Vector:
		// Lanes past the declared count are padding.
		size, _ := vectorLayout(t)
		return reflect.ArrayOf(int(size/scalarBytes(t.elem)), t.elem.native), nil
	}
	return nil, fmt.Errorf("%w: no native form for %v", ErrUnsupportedHostValue, t)
}

var byteType = reflect.TypeOf(byte(0))

// nativeField names the Go field that mirrors declared field i.
func nativeField(i int) string { return fmt.Sprintf("F%d", i) }

// structNative mirrors s with explicit padding, so every field sits at the
// offset structLayout gives it even where a vector needs more alignment than
// its Go array.
func structNative(s *Structure) (reflect.Type, error) {
	l, err := structLayout(s)
	if err != nil {
		return nil, err
	}
	fields := make([]reflect.StructField, 0, len(s.fields))
	var at int64
	pad := func(n int64) {
		if n > 0 {
			fields = append(fields, reflect.StructField{
				Name: fmt.Sprintf("Pad%d", len(fields)),
				Type: reflect.ArrayOf(int(n), byteType),
			})
			at += n
		}
	}
	for i, f := range s.fields {
		ft, err := NativeStorage(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q of %s: %w", f.Name, s.name, err)
		}
		pad(l.offsets[i] - at)
		fields = append(fields, reflect.StructField{Name: nativeField(i), Type: ft})
		at += int64(ft.Size())
	}
	pad(l.size - at)
	return reflect.StructOf(fields), nil
}

// newAligned allocates a zeroed t at an address that is a multiple of
// align, which may exceed the alignment Go gives t. The result is a pointer
// Value of type *t.
func newAligned(t reflect.Type, align int64) reflect.Value {
	if align <= int64(t.Align()) {
		return reflect.New(t)
	}
	// Slots are 8-aligned and their stride is 8 more than a multiple of
	// align, so consecutive slots start at every multiple of 8 modulo align.
	slot := reflect.StructOf([]reflect.StructField{
		{Name: "Word", Type: reflect.ArrayOf(0, reflect.TypeOf(uint64(0)))},
		{Name: "Value", Type: t},
		{Name: "Tail", Type: reflect.ArrayOf(8, byteType)},
	})
	n := max(int(align/8), 1)
	slots := reflect.New(reflect.ArrayOf(n, slot)).Elem()
	for k := 0; k < n; k++ {
		p := slots.Index(k).Field(1).Addr()
		if uintptr(p.UnsafePointer())%uintptr(align) == 0 {
			return p
		}
	}
	return slots.Index(0).Field(1).Addr()
}

// Convert turns a host value into the native representation of t, ready to
// be passed to a compiled function. Numeric scalars accept any Go number or
// bool. Pointer, Array and Slice accept only a contiguous HostBuffer whose
// element size matches and whose shape fits; the buffer memory is shared,
// never copied. A Reference to a structure accepts a pointer to a Go struct
// with the same layout without copying.
func Convert(t Type, host any) (any, error) {
	v, err := convertValue(t, host)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func convertValue(t Type, host any) (reflect.Value, error) {
	switch t := t.(type) {
	case *Scalar:
		return convertScalar(t, host)
	case *Pointer:
		return convertBuffer(t, host)
	case *Array:
		return convertBuffer(t, host)
	case *Slice:
		return convertSlice(t, host)
	case *Structure:
		return convertStructure(t, host)
	case *Reference:
		return convertReference(t, host)
	case *Vector:
		return convertVector(t, host)
	}
	return reflect.Value{}, unsupportedHost(t, host)
}

func unsupportedHost(t Type, host any) error {
	return fmt.Errorf("%w: %T for %v", ErrUnsupportedHostValue, host, t)
}

func convertScalar(s *Scalar, host any) (reflect.Value, error) {
	hv := reflect.ValueOf(host)
	out := reflect.New(s.native).Elem()
	switch hv.Kind() {
	case reflect.Bool:
		if out.Kind() == reflect.Bool {
			out.SetBool(hv.Bool())
			return out, nil
		}
		n := int64(0)
		if hv.Bool() {
			n = 1
		}
		hv = reflect.ValueOf(n)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
	default:
		return reflect.Value{}, unsupportedHost(s, host)
	}
	if out.Kind() == reflect.Bool {
		out.SetBool(!hv.IsZero())
		return out, nil
	}
	out.Set(hv.Convert(s.native))
	return out, nil
}

// checkBuffer validates a host buffer against an addressable type: matching
// arity, element size, static extents and row-major contiguity.
func checkBuffer(a Addressable, host any) (HostBuffer, error) {
	buf, ok := host.(HostBuffer)
	if !ok {
		return nil, unsupportedHost(a, host)
	}
	shape := buf.Shape()
	if len(shape) != a.NDim() {
		return nil, &ShapeArityMismatchError{Type: a, Expected: a.NDim(), Got: len(shape)}
	}
	elemSize, err := Sizeof(a.Elem())
	if err != nil {
		return nil, err
	}
	if int64(buf.ElemSize()) != elemSize {
		return nil, fmt.Errorf("%w: element size %d, %v needs %d", ErrUnsupportedHostValue, buf.ElemSize(), a, elemSize)
	}
	want := a.Shape()
	for k, n := range shape {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative extent %d on axis %d", ErrInvalidShape, n, k)
		}
		if static, ok := want[k].Extent(); ok && static != n {
			return nil, fmt.Errorf("%w: axis %d has extent %d, %v needs %d", ErrUnsupportedHostValue, k, n, a, static)
		}
	}
	if !contiguous(shape, buf.Strides(), buf.ElemSize()) {
		return nil, fmt.Errorf("%w: buffer is not row-major contiguous", ErrUnsupportedHostValue)
	}
	return buf, nil
}

func contiguous(shape, strides []int, elemSize int) bool {
	if len(strides) != len(shape) {
		return false
	}
	want := elemSize
	for k := len(shape) - 1; k >= 0; k-- {
		if shape[k] > 1 && strides[k] != want {
			return false
		}
		want *= shape[k]
	}
	return true
}

func convertBuffer(a Addressable, host any) (reflect.Value, error) {
	if p, ok := host.(unsafe.Pointer); ok {
		return reflect.ValueOf(p), nil
	}
	buf, err := checkBuffer(a, host)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(buf.BasePointer()), nil
}

func convertSlice(s *Slice, host any) (reflect.Value, error) {
	buf, err := checkBuffer(s, host)
	if err != nil {
		return reflect.Value{}, err
	}
	nt, err := NativeStorage(s)
	if err != nil {
		return reflect.Value{}, err
	}
	desc := reflect.New(nt).Elem()
	desc.Field(0).Set(reflect.ValueOf(buf.BasePointer()))
	extents := desc.Field(1)
	for k, n := range buf.Shape() {
		x, err := extentCount(n)
		if err != nil {
			return reflect.Value{}, err
		}
		extents.Index(k).SetInt(x)
	}
	return desc, nil
}

// convertStructure builds a structure value from a map of field names or
// from a Go struct whose fields line up with the declared ones.
func convertStructure(s *Structure, host any) (reflect.Value, error) {
	nt, err := NativeStorage(s)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(nt).Elem()

	hv := reflect.ValueOf(host)
	for hv.Kind() == reflect.Pointer && !hv.IsNil() {
		hv = hv.Elem()
	}
	switch hv.Kind() {
	case reflect.Map:
		if hv.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, unsupportedHost(s, host)
		}
		iter := hv.MapRange()
		for iter.Next() {
			name := iter.Key().String()
			i, f, err := s.Field(name)
			if err != nil {
				return reflect.Value{}, err
			}
			if err := setField(out.FieldByName(nativeField(i)), f, iter.Value().Interface()); err != nil {
				return reflect.Value{}, err
			}
		}
	case reflect.Struct:
		if hv.NumField() != len(s.fields) {
			return reflect.Value{}, fmt.Errorf("%w: %s has %d fields, structure %s has %d",
				ErrUnsupportedHostValue, hv.Type(), hv.NumField(), s.name, len(s.fields))
		}
		for i, f := range s.fields {
			if err := setField(out.FieldByName(nativeField(i)), f, hv.Field(i).Interface()); err != nil {
				return reflect.Value{}, err
			}
		}
	default:
		return reflect.Value{}, unsupportedHost(s, host)
	}
	return out, nil
}

func setField(dst reflect.Value, f Field, host any) error {
	if a, ok := f.Type.(*Array); ok {
		// Arrays are inline in a structure, so the buffer is copied in.
		buf, err := checkBuffer(a, host)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		size, err := Sizeof(a)
		if err != nil {
			return err
		}
		n, err := safecast.Conv[int](size)
		if err != nil {
			return err
		}
		src := unsafe.Slice((*byte)(buf.BasePointer()), n)
		copy(unsafe.Slice((*byte)(dst.Addr().UnsafePointer()), n), src)
		return nil
	}
	v, err := convertValue(f.Type, host)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	dst.Set(v)
	return nil
}

// convertReference forwards to the wrapped type and adds one level of
// address-of. A pointer to a layout-compatible Go struct is passed as is.
func convertReference(r *Reference, host any) (reflect.Value, error) {
	if p, ok := host.(unsafe.Pointer); ok {
		return reflect.ValueOf(p), nil
	}
	if s, ok := r.Value.(*Structure); ok {
		hv := reflect.ValueOf(host)
		if hv.Kind() == reflect.Pointer && !hv.IsNil() && sameLayout(s, hv.Type().Elem()) {
			return reflect.ValueOf(hv.UnsafePointer()), nil
		}
	}
	switch r.Value.(type) {
	case *Pointer, *Array:
		// Already an address.
		return convertValue(r.Value, host)
	}
	v, err := convertValue(r.Value, host)
	if err != nil {
		return reflect.Value{}, err
	}
	align, err := Alignof(r.Value)
	if err != nil {
		return reflect.Value{}, err
	}
	p := newAligned(v.Type(), align)
	p.Elem().Set(v)
	return reflect.ValueOf(p.UnsafePointer()), nil
}

// sameLayout reports whether the Go struct type gt has exactly the byte
// layout of s, field by field.
func sameLayout(s *Structure, gt reflect.Type) bool {
	if gt.Kind() != reflect.Struct || !s.complete || gt.NumField() != len(s.fields) {
		return false
	}
	size, err := Sizeof(s)
	if err != nil || int64(gt.Size()) != size {
		return false
	}
	for i, f := range s.fields {
		gf := gt.Field(i)
		off, err := Offsetof(s, f.Name)
		if err != nil || int64(gf.Offset) != off {
			return false
		}
		fs, err := Sizeof(f.Type)
		if err != nil || int64(gf.Type.Size()) != fs {
			return false
		}
		if sc, ok := f.Type.(*Scalar); ok && !compatibleScalar(sc, gf.Type) {
			return false
		}
	}
	return true
}

func compatibleScalar(s *Scalar, gt reflect.Type) bool {
	switch gt.Kind() {
	case reflect.Float32, reflect.Float64:
		return s.float
	case reflect.Bool:
		return s.native.Kind() == reflect.Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return !s.float
	}
	return false
}

func convertVector(v *Vector, host any) (reflect.Value, error) {
	hv := reflect.ValueOf(host)
	if hv.Kind() != reflect.Slice && hv.Kind() != reflect.Array {
		return reflect.Value{}, unsupportedHost(v, host)
	}
	if hv.Len() != v.lanes {
		return reflect.Value{}, fmt.Errorf("%w: %d values for %v", ErrUnsupportedHostValue, hv.Len(), v)
	}
	nt, err := NativeStorage(v)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(nt).Elem()
	for i := 0; i < v.lanes; i++ {
		lane, err := convertScalar(v.elem, hv.Index(i).Interface())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("lane %d: %w", i, err)
		}
		out.Index(i).Set(lane)
	}
	return out, nil
}
