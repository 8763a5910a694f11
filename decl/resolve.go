package decl

import (
	"fmt"
	"strings"

	"github.com/thiremani/nitro/compiler"
	"github.com/thiremani/nitro/types"
)

// Set is a resolved group of declarations, in declaration order.
type Set struct {
	order []string
	types map[string]types.Type
}

func (s *Set) Lookup(name string) (types.Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Named lists the declarations for accessor generation.
func (s *Set) Named() []compiler.Named {
	out := make([]compiler.Named, len(s.order))
	for i, name := range s.order {
		out[i] = compiler.Named{Name: name, Type: s.types[name]}
	}
	return out
}

type resolver struct {
	aggregates map[string]*AggregateDecl
	vectors    map[string]*VectorDecl
	structs    map[string]*types.Structure
	done       map[string]types.Type
	visiting   map[string]bool
}

// Resolve turns declarations into types. Structures are declared first and
// completed last, so a structure may reach itself through a pointer or slice
// declared alongside it. Holding itself by value is an error.
func Resolve(f *File) (*Set, error) {
	r := &resolver{
		aggregates: make(map[string]*AggregateDecl),
		vectors:    make(map[string]*VectorDecl),
		structs:    make(map[string]*types.Structure),
		done:       make(map[string]types.Type),
		visiting:   make(map[string]bool),
	}
	set := &Set{types: make(map[string]types.Type)}

	seen := make(map[string]bool)
	claim := func(name string) error {
		if err := compiler.ValidateSymbolName(name); err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		seen[name] = true
		set.order = append(set.order, name)
		return nil
	}

	for _, sd := range f.Structs {
		if err := claim(sd.Name); err != nil {
			return nil, err
		}
		r.structs[sd.Name] = types.DeclareStructure(sd.Name)
	}
	for i := range f.Aggregates {
		ad := &f.Aggregates[i]
		if err := claim(ad.Name); err != nil {
			return nil, err
		}
		r.aggregates[ad.Name] = ad
	}
	for i := range f.Vectors {
		vd := &f.Vectors[i]
		if err := claim(vd.Name); err != nil {
			return nil, err
		}
		r.vectors[vd.Name] = vd
	}

	for name := range r.aggregates {
		if _, err := r.resolve(name); err != nil {
			return nil, err
		}
	}
	for name := range r.vectors {
		if _, err := r.resolve(name); err != nil {
			return nil, err
		}
	}

	fields := make(map[string][]types.Field, len(f.Structs))
	for _, sd := range f.Structs {
		fs := make([]types.Field, len(sd.Fields))
		for i, fd := range sd.Fields {
			ft, err := r.resolve(strings.TrimSpace(fd.Type))
			if err != nil {
				return nil, fmt.Errorf("structure %s field %q: %w", sd.Name, fd.Name, err)
			}
			fs[i] = types.Field{Name: fd.Name, Type: ft}
		}
		fields[sd.Name] = fs
	}
	if err := checkCycles(f.Structs, fields, r.structs); err != nil {
		return nil, err
	}
	for _, sd := range f.Structs {
		if err := r.structs[sd.Name].SetFields(fields[sd.Name]...); err != nil {
			return nil, err
		}
	}

	for _, name := range set.order {
		t, err := r.resolve(name)
		if err != nil {
			return nil, err
		}
		set.types[name] = t
	}
	return set, nil
}

func (r *resolver) resolve(name string) (types.Type, error) {
	if name == "Index" {
		return types.Index, nil
	}
	if s, ok := types.ScalarByName(name); ok {
		return s, nil
	}
	if s, ok := r.structs[name]; ok {
		return s, nil
	}
	if t, ok := r.done[name]; ok {
		return t, nil
	}
	if r.visiting[name] {
		return nil, fmt.Errorf("%w: %s refers to itself", ErrCycle, name)
	}

	var (
		t   types.Type
		err error
	)
	r.visiting[name] = true
	switch {
	case r.aggregates[name] != nil:
		t, err = r.aggregate(r.aggregates[name])
	case r.vectors[name] != nil:
		t, err = r.vector(r.vectors[name])
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	delete(r.visiting, name)
	if err != nil {
		return nil, err
	}
	r.done[name] = t
	return t, nil
}

func (r *resolver) aggregate(ad *AggregateDecl) (types.Type, error) {
	elem, err := r.resolve(strings.TrimSpace(ad.Elem))
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", ad.Name, err)
	}
	var shape types.Shape
	if strings.TrimSpace(ad.Shape) != "" {
		if shape, err = types.ParseShape(ad.Shape); err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", ad.Name, err)
		}
	}

	var t types.Type
	switch strings.ToLower(strings.TrimSpace(ad.Kind)) {
	case "pointer":
		t, err = types.NewPointer(elem, shape)
	case "array":
		t, err = types.NewArray(elem, shape)
	case "slice":
		t, err = types.NewSlice(elem, shape)
	default:
		return nil, fmt.Errorf("%w: %q for %s", ErrUnknownKind, ad.Kind, ad.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", ad.Name, err)
	}
	return t, nil
}

func (r *resolver) vector(vd *VectorDecl) (types.Type, error) {
	elem, err := r.resolve(strings.TrimSpace(vd.Elem))
	if err != nil {
		return nil, fmt.Errorf("vector %s: %w", vd.Name, err)
	}
	s, ok := elem.(*types.Scalar)
	if !ok {
		return nil, fmt.Errorf("vector %s: element %s is not a scalar", vd.Name, elem)
	}
	v, err := types.NewVector(s, vd.Lanes)
	if err != nil {
		return nil, fmt.Errorf("vector %s: %w", vd.Name, err)
	}
	return v, nil
}

// inline returns the structures t holds by value.
func inline(t types.Type) []*types.Structure {
	switch t := t.(type) {
	case *types.Structure:
		return []*types.Structure{t}
	case *types.Array:
		return inline(t.Elem())
	}
	return nil
}

// checkCycles walks the by-value containment graph before any structure is
// completed, since an incomplete structure cannot report its own fields.
func checkCycles(decls []StructDecl, fields map[string][]types.Field, structs map[string]*types.Structure) error {
	const (
		unvisited = iota
		active
		finished
	)
	state := make(map[string]int, len(decls))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case active:
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(path, name), " -> "))
		case finished:
			return nil
		}
		state[name] = active
		for _, f := range fields[name] {
			for _, s := range inline(f.Type) {
				if structs[s.Name()] != s {
					continue
				}
				if err := visit(s.Name(), append(path, name)); err != nil {
					return err
				}
			}
		}
		state[name] = finished
		return nil
	}

	for _, sd := range decls {
		if err := visit(sd.Name, nil); err != nil {
			return err
		}
	}
	return nil
}
