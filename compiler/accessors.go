package compiler

import (
	"errors"
	"fmt"

	"github.com/thiremani/nitro/types"
)

// Named is a declared type and the name its accessors are generated under.
type Named struct {
	Name string
	Type types.Type
}

// GenerateAccessors emits the accessor functions of every declared type.
// A type whose accessors fail does not stop the others; all failures are
// joined in the result.
func (c *Compiler) GenerateAccessors(decls []Named) error {
	var errs []error
	for _, d := range decls {
		if err := c.Accessors(d.Name, d.Type); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Accessors emits the C-ABI accessors of one declared type:
//
//	aggregates  <name>_get, <name>_set, <name>_ravel, <name>_dim (slices)
//	structures  <name>_get_<field>, <name>_set_<field>
//	vectors     <name>_dot, <name>_fma
func (c *Compiler) Accessors(name string, t types.Type) error {
	if err := ValidateSymbolName(name); err != nil {
		return err
	}
	switch t := t.(type) {
	case types.Addressable:
		return c.aggregateAccessors(name, t)
	case *types.Structure:
		return c.structAccessors(name, t)
	case *types.Vector:
		return c.vectorAccessors(name, t)
	}
	return fmt.Errorf("no accessors for %s", t)
}

func indexParams(n int) []Param {
	params := make([]Param, n)
	for k := range params {
		params[k] = Param{Name: fmt.Sprintf("i%d", k), Type: types.Index}
	}
	return params
}

func (f *Frame) indices(n int) ([]types.Value, error) {
	idx := make([]types.Value, n)
	for k := range idx {
		v, err := f.Arg(fmt.Sprintf("i%d", k))
		if err != nil {
			return nil, err
		}
		idx[k] = v
	}
	return idx, nil
}

// elemResult is what reading one element yields: the scalar itself or the
// address of an aggregate element.
func elemResult(elem types.Type) types.Type {
	if types.IsAggregate(elem) {
		return types.NewReference(elem)
	}
	return elem
}

func (c *Compiler) aggregateAccessors(name string, a types.Addressable) error {
	n := a.NDim()
	base := Param{Name: "base", Type: a}

	get := Signature{
		Name:   accessorName(name, GET),
		Params: append([]Param{base}, indexParams(n)...),
		Result: elemResult(a.Elem()),
	}
	if _, err := c.Define(get, func(f *Frame) error {
		b, err := f.Arg("base")
		if err != nil {
			return err
		}
		idx, err := f.indices(n)
		if err != nil {
			return err
		}
		v, err := a.ElementAt(f.Emitter(), b.Val, idx)
		if err != nil {
			return err
		}
		return f.Return(v)
	}); err != nil {
		return err
	}

	if types.IsAggregate(a.Elem()) {
		return nil
	}

	params := append([]Param{base}, indexParams(n)...)
	set := Signature{
		Name:   accessorName(name, SET),
		Params: append(params, Param{Name: "v", Type: a.Elem()}),
	}
	if _, err := c.Define(set, func(f *Frame) error {
		b, err := f.Arg("base")
		if err != nil {
			return err
		}
		idx, err := f.indices(n)
		if err != nil {
			return err
		}
		v, err := f.Arg("v")
		if err != nil {
			return err
		}
		return a.StoreAt(f.Emitter(), b.Val, idx, v.Val)
	}); err != nil {
		return err
	}

	if _, ok := a.(*types.Pointer); ok {
		// The leading extent of a raw pointer is not known, so there is
		// nothing to iterate over.
		return nil
	}
	if err := c.ravel(name, a); err != nil {
		return err
	}

	if s, ok := a.(*types.Slice); ok {
		return c.sliceDim(name, s)
	}
	return nil
}

// ravel copies every element in row-major order into a flat destination
// and returns the number copied.
func (c *Compiler) ravel(name string, a types.Addressable) error {
	dstType, err := types.NewPointer(a.Elem(), nil)
	if err != nil {
		return err
	}
	sig := Signature{
		Name:   accessorName(name, RAVEL),
		Params: []Param{{Name: "base", Type: a}, {Name: "dst", Type: dstType}},
		Result: types.Index,
	}
	_, err = c.Define(sig, func(f *Frame) error {
		e := f.Emitter()
		b, err := f.Arg("base")
		if err != nil {
			return err
		}
		dst, err := f.Arg("dst")
		if err != nil {
			return err
		}
		count, err := f.Local("count", types.Index)
		if err != nil {
			return err
		}
		if err := f.Store(count, types.Index.Const(e, 0)); err != nil {
			return err
		}

		var nest func(axis int, idx []types.Value) error
		nest = func(axis int, idx []types.Value) error {
			if axis == a.NDim() {
				v, err := a.ElementAt(e, b.Val, idx)
				if err != nil {
					return err
				}
				k, err := f.Load(count)
				if err != nil {
					return err
				}
				if err := dstType.StoreAt(e, dst.Val, []types.Value{k}, v.Val); err != nil {
					return err
				}
				next, err := e.Binary(types.Add, k, types.Index.Const(e, 1))
				if err != nil {
					return err
				}
				return f.Store(count, next)
			}
			extent, err := a.Dim(e, b.Val, axis)
			if err != nil {
				return err
			}
			n := types.Value{Val: extent, Type: types.Index}
			return f.Range(fmt.Sprintf("i%d", axis), n, func(i types.Value) error {
				return nest(axis+1, append(append([]types.Value(nil), idx...), i))
			})
		}
		if err := nest(0, nil); err != nil {
			return err
		}
		total, err := f.Load(count)
		if err != nil {
			return err
		}
		return f.Return(total)
	})
	return err
}

func (c *Compiler) sliceDim(name string, s *types.Slice) error {
	sig := Signature{
		Name:   accessorName(name, DIM),
		Params: []Param{{Name: "base", Type: s}, {Name: "axis", Type: types.Index}},
		Result: types.Index,
	}
	_, err := c.Define(sig, func(f *Frame) error {
		b, err := f.Arg("base")
		if err != nil {
			return err
		}
		axis, err := f.Arg("axis")
		if err != nil {
			return err
		}
		d, err := s.DimAt(f.Emitter(), b.Val, axis.Val)
		if err != nil {
			return err
		}
		return f.Return(types.Value{Val: d, Type: types.Index})
	})
	return err
}

func (c *Compiler) structAccessors(name string, s *types.Structure) error {
	if !s.Complete() {
		return fmt.Errorf("%w: %s", types.ErrIncompleteType, s)
	}
	self := Param{Name: "s", Type: s}
	for _, field := range s.Fields() {
		get := Signature{
			Name:   accessorName(name, GET, field.Name),
			Params: []Param{self},
			Result: elemResult(field.Type),
		}
		if _, err := c.Define(get, func(f *Frame) error {
			sv, err := f.Arg("s")
			if err != nil {
				return err
			}
			v, err := s.GetField(f.Emitter(), sv.Val, field.Name)
			if err != nil {
				return err
			}
			return f.Return(v)
		}); err != nil {
			return err
		}

		if types.IsAggregate(field.Type) {
			continue
		}
		set := Signature{
			Name:   accessorName(name, SET, field.Name),
			Params: []Param{self, {Name: "v", Type: field.Type}},
		}
		if _, err := c.Define(set, func(f *Frame) error {
			sv, err := f.Arg("s")
			if err != nil {
				return err
			}
			v, err := f.Arg("v")
			if err != nil {
				return err
			}
			return s.SetField(f.Emitter(), sv.Val, field.Name, v.Val)
		}); err != nil {
			return err
		}
	}
	return nil
}

// vectorAccessors emits whole-vector kernels over flat element buffers. The
// buffers must be aligned to the vector size.
func (c *Compiler) vectorAccessors(name string, v *types.Vector) error {
	ptr, err := types.NewPointer(v.Elem(), nil)
	if err != nil {
		return err
	}
	load := func(f *Frame, arg string) (types.Value, error) {
		p, err := f.Arg(arg)
		if err != nil {
			return types.Value{}, err
		}
		return v.Load(f.Emitter(), p.Val)
	}

	dot := Signature{
		Name:   accessorName(name, DOT),
		Params: []Param{{Name: "a", Type: ptr}, {Name: "b", Type: ptr}},
		Result: v.Elem(),
	}
	if _, err := c.Define(dot, func(f *Frame) error {
		e := f.Emitter()
		a, err := load(f, "a")
		if err != nil {
			return err
		}
		b, err := load(f, "b")
		if err != nil {
			return err
		}
		prod, err := e.Binary(types.Mul, a, b)
		if err != nil {
			return err
		}
		sum, err := v.GetLane(e, prod.Val, 0)
		if err != nil {
			return err
		}
		for lane := 1; lane < v.Lanes(); lane++ {
			x, err := v.GetLane(e, prod.Val, lane)
			if err != nil {
				return err
			}
			if sum, err = e.Binary(types.Add, sum, x); err != nil {
				return err
			}
		}
		return f.Return(sum)
	}); err != nil {
		return err
	}

	fma := Signature{
		Name: accessorName(name, FMA),
		Params: []Param{
			{Name: "a", Type: ptr}, {Name: "b", Type: ptr},
			{Name: "c", Type: ptr}, {Name: "out", Type: ptr},
		},
	}
	_, err = c.Define(fma, func(f *Frame) error {
		e := f.Emitter()
		a, err := load(f, "a")
		if err != nil {
			return err
		}
		b, err := load(f, "b")
		if err != nil {
			return err
		}
		cv, err := load(f, "c")
		if err != nil {
			return err
		}
		prod, err := e.Binary(types.Mul, a, b)
		if err != nil {
			return err
		}
		res, err := e.Binary(types.Add, prod, cv)
		if err != nil {
			return err
		}
		out, err := f.Arg("out")
		if err != nil {
			return err
		}
		v.Store(e, out.Val, res.Val)
		return nil
	})
	return err
}
