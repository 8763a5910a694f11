package compiler

import (
	"strings"

	"github.com/thiremani/nitro/types"
	"tinygo.org/x/go-llvm"
)

type Param struct {
	Name string
	Type types.Type
}

// Signature describes a C-ABI function. Structures and slices are passed by
// address; a nil Result means the function returns nothing.
type Signature struct {
	Name   string
	Params []Param
	Result types.Type
}

// ParamTypes returns the types as seen at the call boundary.
func (s Signature) ParamTypes() []types.Type {
	out := make([]types.Type, len(s.Params))
	for i, p := range s.Params {
		out[i] = types.ArgType(p.Type)
	}
	return out
}

func (s Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteByte(' ')
		b.WriteString(types.ArgType(p.Type).String())
	}
	b.WriteByte(')')
	if s.Result != nil {
		b.WriteByte(' ')
		b.WriteString(s.Result.String())
	}
	return b.String()
}

// Func is a function defined in the module.
type Func struct {
	Sig   Signature
	Value llvm.Value
	Type  llvm.Type
}

func (f *Func) Name() string { return f.Sig.Name }
