package compiler

type ScopeKind int

const (
	FuncScope ScopeKind = iota
	BlockScope
)

type Scope[T any] struct {
	Elems     map[string]T
	ScopeKind ScopeKind
}

// Scopes is a stack of lexical scopes, innermost last. The bottom scope
// belongs to the module and is never popped.
type Scopes[T any] struct {
	stack []Scope[T]
}

func NewScopes[T any]() *Scopes[T] {
	s := &Scopes[T]{}
	s.Push(FuncScope)
	return s
}

func (s *Scopes[T]) Push(sk ScopeKind) {
	s.stack = append(s.stack, Scope[T]{Elems: make(map[string]T), ScopeKind: sk})
}

func (s *Scopes[T]) Pop() {
	if len(s.stack) == 1 {
		panic("cannot pop module scope")
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// Depth is the number of open scopes, the module scope included.
func (s *Scopes[T]) Depth() int { return len(s.stack) }

func (s *Scopes[T]) Put(name string, elem T) {
	s.stack[len(s.stack)-1].Elems[name] = elem
}

// Get searches from the innermost scope outward and stops at the enclosing
// function scope, so a body never sees another function's names.
func (s *Scopes[T]) Get(name string) (T, bool) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if e, ok := s.stack[i].Elems[name]; ok {
			return e, true
		}
		if s.stack[i].ScopeKind == FuncScope {
			break
		}
	}

	var zero T
	return zero, false
}
