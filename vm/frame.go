package vm

import (
	"github.com/mohalang/moha/bytecode"
	"github.com/mohalang/moha/object"
)

// Frame is the execution context of a single call: the bytecode being run,
// the instruction pointer into it, the local variable slots STORE_VAR/
// LOAD_VAR address, and this call's own operand stack. Unlike the teacher's
// Frame, which shares one stack across the whole call chain via a base
// pointer, each moha Frame owns its stack outright — matching
// original_source/moha/vm/runtime.py's Frame class, which gives every call
// its own `valuestack`.
type Frame struct {
	bc     *bytecode.Bytecode
	ip     int
	locals []object.Value
	stack  []object.Value
}

// NewFrame allocates a Frame ready to execute bc from its first
// instruction, with one local slot per name bc.Vars registered at compile
// time (parameters first, then the recursion self-reference slot if any).
func NewFrame(bc *bytecode.Bytecode) *Frame {
	return &Frame{
		bc:     bc,
		locals: make([]object.Value, bc.Vars.Size()),
	}
}

// Instructions returns the instruction stream this frame is executing.
func (f *Frame) Instructions() bytecode.Instructions {
	return f.bc.Instructions
}

func (f *Frame) push(v object.Value) {
	f.stack = append(f.stack, v)
}

func (f *Frame) pop() object.Value {
	n := len(f.stack)
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v
}
