package compiler

import (
	"github.com/thiremani/nitro/types"
	"tinygo.org/x/go-llvm"
)

// Range emits a counted loop for i in [0, n). body runs with i bound to name
// in a fresh block scope. n is widened to Index by its signedness.
func (f *Frame) Range(name string, n types.Value, body func(i types.Value) error) error {
	b := f.c.builder
	count, err := f.c.emitter.AsIndex(n)
	if err != nil {
		return err
	}
	curr := b.GetInsertBlock()
	fn := curr.Parent()

	cond := f.c.Context.AddBasicBlock(fn, name+"_cond")
	loop := f.c.Context.AddBasicBlock(fn, name+"_body")
	exit := f.c.Context.AddBasicBlock(fn, name+"_exit")

	b.CreateBr(cond)
	b.SetInsertPointAtEnd(cond)

	iter := b.CreatePHI(f.c.emitter.IndexType(), name)
	iter.AddIncoming([]llvm.Value{f.Index(0)}, []llvm.BasicBlock{curr})

	loopCond := b.CreateICmp(llvm.IntSLT, iter, count, name+"_lt")
	b.CreateCondBr(loopCond, loop, exit)

	b.SetInsertPointAtEnd(loop)
	f.c.Scopes.Push(BlockScope)
	i := types.Value{Val: iter, Type: types.Index}
	f.Bind(name, i)
	err = body(i)
	f.c.Scopes.Pop()
	if err != nil {
		return err
	}

	// The body may have opened blocks of its own; the back edge leaves from
	// wherever it ended.
	latch := b.GetInsertBlock()
	next := b.CreateAdd(iter, f.Index(1), name+"_next")
	b.CreateBr(cond)
	iter.AddIncoming([]llvm.Value{next}, []llvm.BasicBlock{latch})

	b.SetInsertPointAtEnd(exit)
	return nil
}
