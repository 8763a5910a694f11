// Package jit compiles a module to native code with MCJIT and exposes its
// functions as Go-callable values.
package jit

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/thiremani/nitro/compiler"
	"github.com/thiremani/nitro/types"
	"tinygo.org/x/go-llvm"
)

var (
	initOnce sync.Once

	ErrUnknownFunc = errors.New("unknown function")
	ErrArgCount    = errors.New("wrong number of arguments")
)

func initNative() {
	initOnce.Do(func() {
		llvm.LinkInMCJIT()
		llvm.InitializeNativeTarget()
		llvm.InitializeNativeAsmPrinter()
	})
}

type options struct {
	optLevel uint
}

type Option func(*options)

// WithOptLevel sets the MCJIT optimization level, 0 to 3. The default is 2.
func WithOptLevel(level uint) Option {
	return func(o *options) { o.optLevel = level }
}

// Engine owns the compiled module. Callables stay valid until Dispose.
type Engine struct {
	ee    llvm.ExecutionEngine
	funcs map[string]*compiler.Func
	mu    sync.Mutex
	bound map[string]*Callable
}

// New verifies the compiler's module and hands it to a fresh MCJIT engine,
// which takes ownership of the module.
func New(c *compiler.Compiler, opts ...Option) (*Engine, error) {
	o := options{optLevel: 2}
	for _, opt := range opts {
		opt(&o)
	}
	if err := c.Verify(); err != nil {
		return nil, err
	}

	initNative()
	mcjit := llvm.NewMCJITCompilerOptions()
	mcjit.SetMCJITOptimizationLevel(o.optLevel)
	ee, err := llvm.NewMCJITCompiler(c.Module, mcjit)
	if err != nil {
		return nil, fmt.Errorf("create MCJIT engine for %s: %w", c.Name, err)
	}
	return &Engine{
		ee:    ee,
		funcs: c.Funcs,
		bound: make(map[string]*Callable),
	}, nil
}

// Address returns the native entry point of a defined function.
func (en *Engine) Address(name string) (uintptr, error) {
	fn, ok := en.funcs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFunc, name)
	}
	return uintptr(en.ee.PointerToGlobal(fn.Value)), nil
}

// Func binds a defined function to a Go function value through purego.
// Vectors cannot cross the call boundary by value.
func (en *Engine) Func(name string) (*Callable, error) {
	en.mu.Lock()
	defer en.mu.Unlock()
	if cl, ok := en.bound[name]; ok {
		return cl, nil
	}

	fn, ok := en.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, name)
	}
	ft, err := funcType(fn.Sig)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	addr, err := en.Address(name)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(ft)
	purego.RegisterFunc(ptr.Interface(), addr)

	cl := &Callable{sig: fn.Sig, fn: ptr.Elem()}
	en.bound[name] = cl
	return cl, nil
}

// Dispose frees the engine and the module it owns.
func (en *Engine) Dispose() {
	en.ee.Dispose()
}

func boundaryType(t types.Type) (reflect.Type, error) {
	if t.Kind() == types.VectorKind {
		return nil, fmt.Errorf("%w: %s by value", types.ErrUnsupportedHostValue, t)
	}
	return types.Native(t)
}

func funcType(sig compiler.Signature) (reflect.Type, error) {
	in := make([]reflect.Type, len(sig.Params))
	for i, t := range sig.ParamTypes() {
		rt, err := boundaryType(t)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", sig.Params[i].Name, err)
		}
		in[i] = rt
	}
	var out []reflect.Type
	if sig.Result != nil {
		rt, err := boundaryType(sig.Result)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		out = append(out, rt)
	}
	return reflect.FuncOf(in, out, false), nil
}

// Callable is a compiled function bound to Go.
type Callable struct {
	sig compiler.Signature
	fn  reflect.Value
}

func (cl *Callable) Signature() compiler.Signature { return cl.sig }

// Call converts each host argument to its native form with types.Convert
// and invokes the function. The result is nil for functions without one.
func (cl *Callable) Call(args ...any) (any, error) {
	params := cl.sig.ParamTypes()
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgCount, cl.sig.Name, len(params), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		v, err := types.Convert(params[i], arg)
		if err != nil {
			return nil, fmt.Errorf("%s argument %q: %w", cl.sig.Name, cl.sig.Params[i].Name, err)
		}
		in[i] = reflect.ValueOf(v)
	}
	out := cl.fn.Call(in)
	runtime.KeepAlive(args)
	runtime.KeepAlive(in)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}
