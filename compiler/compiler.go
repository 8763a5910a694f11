// Package compiler defines C-ABI functions over the types package: it binds
// parameters, manages scopes and entry-block allocas, emits counted loops and
// returns, and generates accessor functions for declared types.
package compiler

import (
	"errors"
	"fmt"

	"github.com/thiremani/nitro/types"
	"tinygo.org/x/go-llvm"
)

var (
	ErrDuplicateFunc   = errors.New("function already defined")
	ErrAggregateResult = errors.New("aggregates cannot be returned by value")
	ErrMissingReturn   = errors.New("missing return")
	ErrResultType      = errors.New("result type mismatch")
	ErrUnknownSymbol   = errors.New("unknown symbol")
)

// CompileError records a function whose emission failed. The function is
// removed from the module; the rest of the module stays usable.
type CompileError struct {
	Func string
	Err  error
}

func (ce *CompileError) Error() string {
	return fmt.Sprintf("%s: %v", ce.Func, ce.Err)
}

func (ce *CompileError) Unwrap() error { return ce.Err }

// Symbol is a named value visible to a function body.
type Symbol struct {
	Val      llvm.Value
	Type     types.Type
	FuncArg  bool
	ReadOnly bool
}

func (s *Symbol) Value() types.Value {
	return types.Value{Val: s.Val, Type: s.Type}
}

type Compiler struct {
	Name    string
	Scopes  *Scopes[*Symbol]
	Context llvm.Context
	Module  llvm.Module
	builder llvm.Builder
	emitter *types.Emitter
	Funcs   map[string]*Func
	Errors  []*CompileError
}

func NewCompiler(ctx llvm.Context, name string) *Compiler {
	module := ctx.NewModule(name)
	builder := ctx.NewBuilder()

	return &Compiler{
		Name:    name,
		Scopes:  NewScopes[*Symbol](),
		Context: ctx,
		Module:  module,
		builder: builder,
		emitter: types.NewEmitter(ctx, module, builder),
		Funcs:   make(map[string]*Func),
		Errors:  []*CompileError{},
	}
}

// Emitter exposes the type emission layer bound to this module.
func (c *Compiler) Emitter() *types.Emitter { return c.emitter }

// Define emits the function described by sig. body receives a Frame
// positioned in the entry block with every parameter bound by name. When
// body or the epilogue fails, the partial function is erased, the failure is
// appended to Errors and returned.
func (c *Compiler) Define(sig Signature, body func(*Frame) error) (*Func, error) {
	fn, err := c.define(sig, body)
	if err != nil {
		ce := &CompileError{Func: sig.Name, Err: err}
		c.Errors = append(c.Errors, ce)
		return nil, ce
	}
	c.Funcs[sig.Name] = fn
	return fn, nil
}

func (c *Compiler) define(sig Signature, body func(*Frame) error) (*Func, error) {
	if err := ValidateSymbolName(sig.Name); err != nil {
		return nil, err
	}
	if _, ok := c.Funcs[sig.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateFunc, sig.Name)
	}
	if !c.Module.NamedFunction(sig.Name).IsNil() {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateFunc, sig.Name)
	}

	funcType, err := c.funcType(sig)
	if err != nil {
		return nil, err
	}
	function := llvm.AddFunction(c.Module, sig.Name, funcType)
	fn := &Func{Sig: sig, Value: function, Type: funcType}

	entry := c.Context.AddBasicBlock(function, "entry")
	savedBlock := c.builder.GetInsertBlock()
	c.builder.SetInsertPointAtEnd(entry)
	defer func() {
		if savedBlock.IsNil() {
			// An erased function must not stay the insertion point.
			c.builder.ClearInsertionPoint()
			return
		}
		c.builder.SetInsertPointAtEnd(savedBlock)
	}()

	c.Scopes.Push(FuncScope)
	defer c.Scopes.Pop()
	for i, p := range sig.Params {
		param := function.Param(i)
		param.SetName(p.Name)
		c.Scopes.Put(p.Name, &Symbol{
			Val:      param,
			Type:     types.ArgType(p.Type),
			FuncArg:  true,
			ReadOnly: true,
		})
	}

	f := &Frame{c: c, fn: fn}
	if err := body(f); err != nil {
		function.EraseFromParentAsFunction()
		return nil, err
	}
	if !c.terminated() {
		if sig.Result != nil {
			function.EraseFromParentAsFunction()
			return nil, fmt.Errorf("%w: %s returns %s", ErrMissingReturn, sig.Name, sig.Result)
		}
		c.builder.CreateRetVoid()
	}
	return fn, nil
}

func (c *Compiler) funcType(sig Signature) (llvm.Type, error) {
	params := make([]llvm.Type, len(sig.Params))
	seen := make(map[string]struct{}, len(sig.Params))
	for i, p := range sig.Params {
		if p.Name == "" || p.Type == nil {
			return llvm.Type{}, fmt.Errorf("parameter %d of %s needs a name and a type", i, sig.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return llvm.Type{}, fmt.Errorf("duplicate parameter %q in %s", p.Name, sig.Name)
		}
		seen[p.Name] = struct{}{}
		t, err := c.emitter.Lower(types.ArgType(p.Type))
		if err != nil {
			return llvm.Type{}, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		params[i] = t
	}

	ret := c.Context.VoidType()
	if sig.Result != nil {
		switch sig.Result.Kind() {
		case types.StructKind, types.SliceKind, types.ArrayKind:
			return llvm.Type{}, fmt.Errorf("%w: %s", ErrAggregateResult, sig.Result)
		}
		t, err := c.emitter.Lower(sig.Result)
		if err != nil {
			return llvm.Type{}, err
		}
		ret = t
	}
	return llvm.FunctionType(ret, params, false), nil
}

// terminated reports whether the current block already ends in a branch or
// return.
func (c *Compiler) terminated() bool {
	last := c.builder.GetInsertBlock().LastInstruction()
	if last.IsNil() {
		return false
	}
	switch last.InstructionOpcode() {
	case llvm.Ret, llvm.Br, llvm.Switch, llvm.Unreachable:
		return true
	}
	return false
}

// Verify runs the LLVM module verifier.
func (c *Compiler) Verify() error {
	if err := llvm.VerifyModule(c.Module, llvm.ReturnStatusAction); err != nil {
		return fmt.Errorf("module %s: %w", c.Name, err)
	}
	return nil
}

// GenerateIR returns the textual IR of the module.
func (c *Compiler) GenerateIR() string {
	return c.Module.String()
}

// Dispose releases the builder. The module is owned by whoever consumes it,
// usually a jit.Engine, or by the context.
func (c *Compiler) Dispose() {
	c.builder.Dispose()
}
