package types

import (
	"fmt"

	"fortio.org/safecast"
	"tinygo.org/x/go-llvm"
)

// Addressable is a contiguous, possibly multi-dimensional block of elements
// laid out in row-major order. It is implemented by Pointer, Array and Slice.
type Addressable interface {
	Type
	Elem() Type
	Shape() Shape
	NDim() int

	// Indices are integer values of any width; unsigned ones are
	// zero-extended to Index.
	//
	// ElementAt loads the element at index, or returns its address typed as
	// Reference(elem) when the element is itself an aggregate.
	ElementAt(e *Emitter, base llvm.Value, index []Value) (Value, error)
	// StoreAt stores v at index.
	StoreAt(e *Emitter, base llvm.Value, index []Value, v llvm.Value) error
	// Subslice consumes a leading prefix of the axes and returns a view of
	// the remaining ones together with the address of its descriptor.
	Subslice(e *Emitter, base llvm.Value, prefix []Value) (*Slice, llvm.Value, error)
	// Dim returns the extent of axis as an index value.
	Dim(e *Emitter, base llvm.Value, axis int) (llvm.Value, error)
	// Null returns the null address of the type, a sentinel only.
	Null(e *Emitter) llvm.Value
	// Allocate reserves stack storage for the whole block.
	Allocate(e *Emitter) (llvm.Value, error)
}

// addresser is what the shared flattening code needs from each aggregate.
type addresser interface {
	Addressable
	// data returns the address of element zero.
	data(e *Emitter, base llvm.Value) (llvm.Value, error)
	// extent returns the extent of axis, folded when static.
	extent(e *Emitter, base llvm.Value, axis int) (dim, error)
}

// dim is an extent or stride during address computation: a static factor
// times an optional run-time product.
type dim struct {
	n   int64
	val llvm.Value
	dyn bool
}

func staticDim(n int) dim {
	return dim{n: int64(n)}
}

// times multiplies two factors. Static parts fold into one constant; only
// run-time parts emit a multiply.
func (d dim) times(e *Emitter, x dim) dim {
	out := dim{n: d.n * x.n, val: d.val, dyn: d.dyn}
	if x.dyn {
		if out.dyn {
			out.val = e.Builder.CreateMul(out.val, x.val, "stride")
		} else {
			out.val = x.val
			out.dyn = true
		}
	}
	return out
}

func (d dim) value(e *Emitter) llvm.Value {
	if !d.dyn {
		return e.ConstIndex(d.n)
	}
	if d.n == 1 {
		return d.val
	}
	return e.Builder.CreateMul(d.val, e.ConstIndex(d.n), "stride")
}

// scale emits idx * stride, skipping the multiply for a unit stride.
func (e *Emitter) scale(idx llvm.Value, stride dim) llvm.Value {
	if !stride.dyn && stride.n == 1 {
		return idx
	}
	return e.Builder.CreateMul(idx, stride.value(e), "scaled")
}

// flatten converts the leading len(index) coordinates into a single linear
// element offset. Axes past the index contribute their product as the
// initial stride, which is what sub-slicing needs; for a full index the
// initial stride is one. The sum is built right to left and the leading
// extent is never read.
func flatten(a addresser, e *Emitter, base llvm.Value, index []Value) (llvm.Value, error) {
	n := a.NDim()
	m := len(index)

	stride := staticDim(1)
	for k := n - 1; k >= m; k-- {
		x, err := a.extent(e, base, k)
		if err != nil {
			return llvm.Value{}, err
		}
		stride = stride.times(e, x)
	}

	var offset llvm.Value
	for k := m - 1; k >= 0; k-- {
		idx, err := e.AsIndex(index[k])
		if err != nil {
			return llvm.Value{}, err
		}
		term := e.scale(idx, stride)
		if offset.IsNil() {
			offset = term
		} else {
			offset = e.Builder.CreateAdd(offset, term, "offset")
		}
		if k == 0 {
			break
		}
		x, err := a.extent(e, base, k)
		if err != nil {
			return llvm.Value{}, err
		}
		stride = stride.times(e, x)
	}
	return offset, nil
}

func checkArity(a Addressable, index []Value) error {
	if len(index) != a.NDim() {
		return &ShapeArityMismatchError{Type: a, Expected: a.NDim(), Got: len(index)}
	}
	return nil
}

// elementAddr computes the address of one element with a single GEP.
func elementAddr(a addresser, e *Emitter, base llvm.Value, index []Value) (llvm.Value, error) {
	if err := checkArity(a, index); err != nil {
		return llvm.Value{}, err
	}
	elemTy, err := e.Storage(a.Elem())
	if err != nil {
		return llvm.Value{}, err
	}
	data, err := a.data(e, base)
	if err != nil {
		return llvm.Value{}, err
	}
	offset, err := flatten(a, e, base, index)
	if err != nil {
		return llvm.Value{}, err
	}
	return e.Builder.CreateGEP(elemTy, data, []llvm.Value{offset}, "addr"), nil
}

func elementAt(a addresser, e *Emitter, base llvm.Value, index []Value) (Value, error) {
	addr, err := elementAddr(a, e, base, index)
	if err != nil {
		return Value{}, err
	}
	elem := a.Elem()
	if IsAggregate(elem) {
		return Value{Val: addr, Type: NewReference(elem)}, nil
	}
	elemTy, err := e.Storage(elem)
	if err != nil {
		return Value{}, err
	}
	return Value{Val: e.Builder.CreateLoad(elemTy, addr, "v"), Type: elem}, nil
}

func storeAt(a addresser, e *Emitter, base llvm.Value, index []Value, v llvm.Value) error {
	addr, err := elementAddr(a, e, base, index)
	if err != nil {
		return err
	}
	e.Builder.CreateStore(v, addr)
	return nil
}

func subslice(a addresser, e *Emitter, base llvm.Value, prefix []Value) (*Slice, llvm.Value, error) {
	n := a.NDim()
	m := len(prefix)
	if m == 0 || m >= n {
		return nil, llvm.Value{}, &ShapeArityMismatchError{Type: a, Expected: n, Got: m}
	}
	sub, err := NewSlice(a.Elem(), a.Shape()[m:])
	if err != nil {
		return nil, llvm.Value{}, err
	}
	elemTy, err := e.Storage(a.Elem())
	if err != nil {
		return nil, llvm.Value{}, err
	}
	descTy, err := e.Lower(sub)
	if err != nil {
		return nil, llvm.Value{}, err
	}
	data, err := a.data(e, base)
	if err != nil {
		return nil, llvm.Value{}, err
	}
	offset, err := flatten(a, e, base, prefix)
	if err != nil {
		return nil, llvm.Value{}, err
	}
	subData := e.Builder.CreateGEP(elemTy, data, []llvm.Value{offset}, "sub.data")

	desc := e.Alloca(descTy, "subslice")
	e.Builder.CreateStore(subData, e.Builder.CreateStructGEP(descTy, desc, 0, "sub.data.addr"))
	for j := 0; j < n-m; j++ {
		x, err := a.extent(e, base, m+j)
		if err != nil {
			return nil, llvm.Value{}, err
		}
		slot := e.Builder.CreateInBoundsGEP(descTy, desc, []llvm.Value{e.constI32(0), e.constI32(1), e.constI32(j)}, "sub.extent.addr")
		e.Builder.CreateStore(x.value(e), slot)
	}
	return sub, desc, nil
}

func dimOf(a addresser, e *Emitter, base llvm.Value, axis int) (llvm.Value, error) {
	if axis < 0 || axis >= a.NDim() {
		return llvm.Value{}, fmt.Errorf("%w: axis %d of %s", ErrInvalidShape, axis, a)
	}
	x, err := a.extent(e, base, axis)
	if err != nil {
		return llvm.Value{}, err
	}
	return x.value(e), nil
}

// block holds the element type and shape shared by all aggregates.
type block struct {
	elem  Type
	shape Shape
	id    TypeID
}

func newBlock(kind Kind, elem Type, shape Shape) (block, error) {
	if elem == nil {
		return block{}, fmt.Errorf("%w: nil element type", ErrInvalidShape)
	}
	if err := shape.validate(); err != nil {
		return block{}, err
	}
	id := registry.intern(descriptor{Kind: kind, Elem: elem.ID(), Shape: shape.String()})
	return block{elem: elem, shape: shape.clone(), id: id}, nil
}

func (b *block) Elem() Type   { return b.elem }
func (b *block) Shape() Shape { return b.shape.clone() }
func (b *block) NDim() int    { return len(b.shape) }
func (b *block) ID() TypeID   { return b.id }

func (b *block) staticExtent(axis int) (dim, bool) {
	n, ok := b.shape[axis].Extent()
	return staticDim(n), ok
}

// Pointer is a raw pointer to a block whose leading extent is unknown and
// whose remaining extents are static.
type Pointer struct {
	block
}

// NewPointer builds a pointer type. A nil shape means one dynamic axis.
func NewPointer(elem Type, shape Shape) (*Pointer, error) {
	if shape == nil {
		shape = Shape{Dynamic}
	}
	for i := 1; i < len(shape); i++ {
		if shape[i].IsDynamic() {
			return nil, fmt.Errorf("%w: pointer axis %d must be static", ErrInvalidShape, i)
		}
	}
	b, err := newBlock(PointerKind, elem, shape)
	if err != nil {
		return nil, err
	}
	return &Pointer{block: b}, nil
}

func (p *Pointer) Kind() Kind { return PointerKind }

func (p *Pointer) String() string { return "<Pointer " + shapeRepr(p.elem, p.shape) + ">" }

func (p *Pointer) GoString() string {
	return fmt.Sprintf("Pointer(%s, shape=%#v)", p.elem, p.shape)
}

func (p *Pointer) lower(e *Emitter) (llvm.Type, error)   { return e.ptrType(), nil }
func (p *Pointer) storage(e *Emitter) (llvm.Type, error) { return e.ptrType(), nil }

func (p *Pointer) data(_ *Emitter, base llvm.Value) (llvm.Value, error) { return base, nil }

func (p *Pointer) extent(_ *Emitter, _ llvm.Value, axis int) (dim, error) {
	d, ok := p.staticExtent(axis)
	if !ok {
		return dim{}, fmt.Errorf("%w: extent of axis %d of %s is not carried at run time", ErrInvalidShape, axis, p)
	}
	return d, nil
}

func (p *Pointer) ElementAt(e *Emitter, base llvm.Value, index []Value) (Value, error) {
	return elementAt(p, e, base, index)
}

func (p *Pointer) StoreAt(e *Emitter, base llvm.Value, index []Value, v llvm.Value) error {
	return storeAt(p, e, base, index, v)
}

func (p *Pointer) Subslice(e *Emitter, base llvm.Value, prefix []Value) (*Slice, llvm.Value, error) {
	return subslice(p, e, base, prefix)
}

func (p *Pointer) Dim(e *Emitter, base llvm.Value, axis int) (llvm.Value, error) {
	return dimOf(p, e, base, axis)
}

func (p *Pointer) Null(e *Emitter) llvm.Value { return llvm.ConstPointerNull(e.ptrType()) }

// Allocate reserves [N x elem] in the entry block when every extent is
// static. A dynamic leading extent has no size to reserve.
func (p *Pointer) Allocate(e *Emitter) (llvm.Value, error) {
	n, ok := p.shape.Len()
	if !ok {
		return llvm.Value{}, fmt.Errorf("%w: %s has a dynamic extent", ErrNotAllocatable, p)
	}
	elemTy, err := e.Storage(p.elem)
	if err != nil {
		return llvm.Value{}, err
	}
	return e.Alloca(llvm.ArrayType(elemTy, n), "pointer"), nil
}

// Array is an owned block with every extent static. Values of an array type
// are the address of element zero; the storage is [N x elem].
type Array struct {
	block
}

func NewArray(elem Type, shape Shape) (*Array, error) {
	if !shape.IsStatic() {
		return nil, fmt.Errorf("%w: array shape %s must be static", ErrInvalidShape, shape)
	}
	b, err := newBlock(ArrayKind, elem, shape)
	if err != nil {
		return nil, err
	}
	return &Array{block: b}, nil
}

func (a *Array) Kind() Kind { return ArrayKind }

func (a *Array) String() string { return "<Array " + shapeRepr(a.elem, a.shape) + ">" }

func (a *Array) GoString() string {
	return fmt.Sprintf("Array(%s, shape=%#v)", a.elem, a.shape)
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	n, _ := a.shape.Len()
	return n
}

func (a *Array) lower(e *Emitter) (llvm.Type, error) { return e.ptrType(), nil }

func (a *Array) storage(e *Emitter) (llvm.Type, error) {
	elemTy, err := e.Storage(a.elem)
	if err != nil {
		return llvm.Type{}, err
	}
	return llvm.ArrayType(elemTy, a.Len()), nil
}

func (a *Array) data(_ *Emitter, base llvm.Value) (llvm.Value, error) { return base, nil }

func (a *Array) extent(_ *Emitter, _ llvm.Value, axis int) (dim, error) {
	d, _ := a.staticExtent(axis)
	return d, nil
}

func (a *Array) ElementAt(e *Emitter, base llvm.Value, index []Value) (Value, error) {
	return elementAt(a, e, base, index)
}

func (a *Array) StoreAt(e *Emitter, base llvm.Value, index []Value, v llvm.Value) error {
	return storeAt(a, e, base, index, v)
}

func (a *Array) Subslice(e *Emitter, base llvm.Value, prefix []Value) (*Slice, llvm.Value, error) {
	return subslice(a, e, base, prefix)
}

func (a *Array) Dim(e *Emitter, base llvm.Value, axis int) (llvm.Value, error) {
	return dimOf(a, e, base, axis)
}

func (a *Array) Null(e *Emitter) llvm.Value { return llvm.ConstPointerNull(e.ptrType()) }

// Allocate emits a stack allocation of the whole block in the entry block
// and returns its base address.
func (a *Array) Allocate(e *Emitter) (llvm.Value, error) {
	st, err := e.Storage(a)
	if err != nil {
		return llvm.Value{}, err
	}
	return e.Alloca(st, "array"), nil
}

// Slice is a non-owning view. Its values are descriptors
// { ptr data, [N x i64] extents } handled by address; static extents are
// folded at compile time, dynamic ones are read from the descriptor.
type Slice struct {
	block
}

// NewSlice builds a slice type. A nil shape means one dynamic axis.
func NewSlice(elem Type, shape Shape) (*Slice, error) {
	if shape == nil {
		shape = Shape{Dynamic}
	}
	b, err := newBlock(SliceKind, elem, shape)
	if err != nil {
		return nil, err
	}
	return &Slice{block: b}, nil
}

func (s *Slice) Kind() Kind { return SliceKind }

func (s *Slice) String() string { return "<Slice " + shapeRepr(s.elem, s.shape) + ">" }

func (s *Slice) GoString() string {
	return fmt.Sprintf("Slice(%s, shape=%#v)", s.elem, s.shape)
}

func (s *Slice) lower(e *Emitter) (llvm.Type, error) {
	return e.Context.StructType([]llvm.Type{
		e.ptrType(),
		llvm.ArrayType(e.IndexType(), s.NDim()),
	}, false), nil
}

func (s *Slice) storage(e *Emitter) (llvm.Type, error) { return s.lower(e) }

func (s *Slice) data(e *Emitter, base llvm.Value) (llvm.Value, error) {
	descTy, err := e.Lower(s)
	if err != nil {
		return llvm.Value{}, err
	}
	addr := e.Builder.CreateStructGEP(descTy, base, 0, "data.addr")
	return e.Builder.CreateLoad(e.ptrType(), addr, "data"), nil
}

func (s *Slice) extent(e *Emitter, base llvm.Value, axis int) (dim, error) {
	if d, ok := s.staticExtent(axis); ok {
		return d, nil
	}
	v, err := s.DimAt(e, base, e.constI32(axis))
	if err != nil {
		return dim{}, err
	}
	return dim{n: 1, val: v, dyn: true}, nil
}

// DimAt loads the extent of a run-time selected axis from the descriptor.
func (s *Slice) DimAt(e *Emitter, base llvm.Value, axis llvm.Value) (llvm.Value, error) {
	descTy, err := e.Lower(s)
	if err != nil {
		return llvm.Value{}, err
	}
	addr := e.Builder.CreateInBoundsGEP(descTy, base, []llvm.Value{e.constI32(0), e.constI32(1), axis}, "extent.addr")
	return e.Builder.CreateLoad(e.IndexType(), addr, "extent"), nil
}

func (s *Slice) ElementAt(e *Emitter, base llvm.Value, index []Value) (Value, error) {
	return elementAt(s, e, base, index)
}

func (s *Slice) StoreAt(e *Emitter, base llvm.Value, index []Value, v llvm.Value) error {
	return storeAt(s, e, base, index, v)
}

func (s *Slice) Subslice(e *Emitter, base llvm.Value, prefix []Value) (*Slice, llvm.Value, error) {
	return subslice(s, e, base, prefix)
}

func (s *Slice) Dim(e *Emitter, base llvm.Value, axis int) (llvm.Value, error) {
	return dimOf(s, e, base, axis)
}

func (s *Slice) Null(e *Emitter) llvm.Value { return llvm.ConstPointerNull(e.ptrType()) }

func (s *Slice) Allocate(_ *Emitter) (llvm.Value, error) {
	return llvm.Value{}, fmt.Errorf("%w: %s is a view and never owns storage", ErrNotAllocatable, s)
}

// extentCount narrows a host extent for descriptor storage.
func extentCount(n int) (int64, error) {
	v, err := safecast.Conv[int64](n)
	if err != nil {
		return 0, fmt.Errorf("%w: extent %d: %v", ErrInvalidShape, n, err)
	}
	return v, nil
}
