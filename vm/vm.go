// Package vm interprets the bytecode the compiler package produces: a
// frame-stack dispatch loop over bytecode.Instructions, following the
// overall shape of a "Writing a Compiler in Go"-style VM but replacing its
// shared-stack/base-pointer Frame and lexical OpGetFree/closure machinery
// with moha's per-call Frame (see frame.go) and dynamic, call-stack-walking
// LOAD_GLOBAL, grounded on original_source/moha/vm/runtime.py's
// interpret_bytecode.
package vm

import (
	"fmt"

	"github.com/mohalang/moha/bytecode"
	"github.com/mohalang/moha/object"
	"github.com/mohalang/moha/symtab"
)

// Importer resolves an import path ("import \"path\";" or "from \"path\"
// import a, b;") to the Module value produced by compiling and running it.
// The vm package never implements this itself — an Importer obtained from
// loader.Loader.ImporterFor is injected via New, so that loading a module (which needs to compile and
// run its own bytecode through a VM) never creates an import cycle with vm.
type Importer interface {
	Import(path string) (*object.Module, error)
}

// VM executes a single top-level program: one frame stack, starting from
// the program's own compiled bytecode.
type VM struct {
	frame  *Frame
	frames []*Frame

	importer Importer

	lastPopped object.Value
}

// New returns a VM ready to run bc. importer may be nil if the program is
// known not to use import/from; an attempt to IMPORT_MODULE with a nil
// importer fails with an error rather than panicking.
func New(bc *bytecode.Bytecode, importer Importer) *VM {
	return &VM{
		frame:      NewFrame(bc),
		importer:   importer,
		lastPopped: object.NullValue,
	}
}

// NewWithLocals is New, except the top-level frame's locals are seeded from
// a previous run's values instead of starting zeroed. The repl package uses
// this, alongside compiler.NewWithState, to carry variables forward across
// REPL lines compiled as separate bytecode chunks sharing one vars table:
// since symtab.Table only ever appends, a name's index never changes across
// chunks, so copying the old values into the front of the new (larger or
// equal) locals slice is always correct.
func NewWithLocals(bc *bytecode.Bytecode, importer Importer, locals []object.Value) *VM {
	v := New(bc, importer)
	copy(v.frame.locals, locals)
	return v
}

// Locals returns the top-level frame's current local variable values, for
// handing to NewWithLocals on the next REPL line.
func (vm *VM) Locals() []object.Value {
	return vm.frame.locals
}

// LastPoppedStackItem returns the most recently discarded stack value —
// the result of the last top-level expression statement, by convention
// used to print a REPL/debug result after Run returns.
func (vm *VM) LastPoppedStackItem() object.Value {
	return vm.lastPopped
}

// Run executes instructions until the outermost frame runs off the end of
// its bytecode, a RETURN_VALUE or EXIT unwinds past the outermost frame, or
// an opcode handler reports an error.
func (vm *VM) Run() error {
	for {
		frame := vm.frame
		ins := frame.Instructions()
		if frame.ip >= len(ins) {
			if len(vm.frames) == 0 {
				return nil
			}
			// A called function without a return falls off its end:
			// resume the caller with null as the call's result.
			vm.frame = vm.popFrame()
			vm.frame.push(object.NullValue)
			continue
		}

		op := bytecode.Opcode(ins[frame.ip])
		frame.ip++

		switch op {
		case bytecode.OpPop:
			vm.lastPopped = frame.pop()

		case bytecode.OpNoop:
			// no-op

		case bytecode.OpExit:
			if len(vm.frames) == 0 {
				return nil
			}
			vm.frame = vm.popFrame()
			vm.frame.push(object.NullValue)

		case bytecode.OpAbort:
			val := frame.pop()
			return fmt.Errorf("abort: %s", val.String())

		case bytecode.OpLoadConst:
			idx := vm.readOperand(frame)
			frame.push(frame.bc.Constants[idx].(object.Value))

		case bytecode.OpLoadVar:
			idx := vm.readOperand(frame)
			frame.push(frame.locals[idx])

		case bytecode.OpStoreVar:
			idx := vm.readOperand(frame)
			frame.locals[idx] = frame.pop()

		case bytecode.OpLoadGlobal:
			idx := vm.readOperand(frame)
			name := frame.bc.Names.KeyAt(idx)
			frame.push(vm.resolveGlobal(name))

		case bytecode.OpBuildArray:
			n := vm.readOperand(frame)
			elements := make([]object.Value, n)
			for i := n - 1; i >= 0; i-- {
				elements[i] = frame.pop()
			}
			frame.push(&object.Array{Elements: elements})

		case bytecode.OpBuildMap:
			vm.readOperand(frame) // size hint, unused: object.Obj grows freely
			frame.push(object.NewObj())

		case bytecode.OpStoreMap:
			value := frame.pop()
			key := frame.pop()
			container := frame.pop()
			if err := object.SetAttr(container, key, value); err != nil {
				return err
			}
			frame.push(container)

		case bytecode.OpMapGetItem:
			attr := frame.pop()
			container := frame.pop()
			val, err := object.GetAttr(container, attr)
			if err != nil {
				return err
			}
			if fn, ok := val.(*object.Function); ok {
				val = &object.BoundMethod{Fn: fn, Receiver: container}
			}
			frame.push(val)

		case bytecode.OpMapSetItem:
			attr := frame.pop()
			container := frame.pop()
			value := frame.pop()
			if err := object.SetAttr(container, attr, value); err != nil {
				return err
			}

		case bytecode.OpMapDelItem:
			attr := frame.pop()
			container := frame.pop()
			if err := object.DelAttr(container, attr); err != nil {
				return err
			}

		case bytecode.OpMapHasItem:
			elem := frame.pop()
			container := frame.pop()
			result, err := object.HasItem(container, elem)
			if err != nil {
				return err
			}
			frame.push(result)

		case bytecode.OpCallFunc:
			if err := vm.callFunc(frame, vm.readOperand(frame)); err != nil {
				return err
			}

		case bytecode.OpReturnValue:
			retval := frame.pop()
			if len(vm.frames) == 0 {
				vm.lastPopped = retval
				return nil
			}
			vm.frame = vm.popFrame()
			vm.frame.push(retval)

		case bytecode.OpJmp:
			frame.ip = vm.readOperand(frame)

		case bytecode.OpJmpTrue:
			target := vm.readOperand(frame)
			if object.Truthy(frame.pop()) {
				frame.ip = target
			}

		case bytecode.OpJumpIfFalseOrPop:
			target := vm.readOperand(frame)
			top := frame.pop()
			if !object.Truthy(top) {
				frame.ip = target
				frame.push(top)
			}

		case bytecode.OpJumpIfTrueOrPop:
			target := vm.readOperand(frame)
			top := frame.pop()
			if object.Truthy(top) {
				frame.ip = target
				frame.push(top)
			}

		case bytecode.OpBinaryAdd, bytecode.OpBinarySub, bytecode.OpBinaryMul,
			bytecode.OpBinaryDiv, bytecode.OpBinaryMod, bytecode.OpBinaryLShift,
			bytecode.OpBinaryRShift, bytecode.OpBinaryAnd, bytecode.OpBinaryOr,
			bytecode.OpBinaryXor:
			right := frame.pop()
			left := frame.pop()
			result, err := binaryArith(op, left, right)
			if err != nil {
				return err
			}
			frame.push(result)

		case bytecode.OpBinaryEqual:
			left := frame.pop()
			right := frame.pop()
			frame.push(object.NativeBool(object.Equal(left, right)))

		case bytecode.OpBinaryNe, bytecode.OpBinaryLt, bytecode.OpBinaryLe,
			bytecode.OpBinaryGt, bytecode.OpBinaryGe:
			left := frame.pop()
			right := frame.pop()
			result, err := binaryCompare(op, left, right)
			if err != nil {
				return err
			}
			frame.push(result)

		case bytecode.OpUnaryNegative:
			result, err := object.Neg(frame.pop())
			if err != nil {
				return err
			}
			frame.push(result)

		case bytecode.OpUnaryPositive:
			result, err := object.Pos(frame.pop())
			if err != nil {
				return err
			}
			frame.push(result)

		case bytecode.OpUnaryInvert:
			result, err := object.Invert(frame.pop())
			if err != nil {
				return err
			}
			frame.push(result)

		case bytecode.OpNot, bytecode.OpUnaryNot:
			frame.push(object.NativeBool(!object.Truthy(frame.pop())))

		case bytecode.OpImportModule:
			if err := vm.importModule(frame); err != nil {
				return err
			}

		case bytecode.OpImportMember:
			if err := vm.importMember(frame, vm.readOperand(frame)); err != nil {
				return err
			}

		default:
			return fmt.Errorf("vm: unhandled opcode %d", op)
		}
	}
}

// callFunc implements CALL_FUNC's three-way dispatch: a function value
// fetched via attribute access (obj.method) arrives as a *object.BoundMethod
// and has its receiver prepended to args; an instance-method or builtin
// Function runs its Native handler immediately; a compiled Function pushes
// the current frame and switches execution into a fresh one, seeding its
// self-reference local if the callee has one surplus slot beyond its
// parameters.
func (vm *VM) callFunc(frame *Frame, n int) error {
	args := make([]object.Value, n)
	for i := 0; i < n; i++ {
		args[i] = frame.pop()
	}

	callee := frame.pop()
	if bm, ok := callee.(*object.BoundMethod); ok {
		args = append([]object.Value{bm.Receiver}, args...)
		callee = bm.Fn
	}

	fn, ok := callee.(*object.Function)
	if !ok {
		return fmt.Errorf("vm: value of kind %s is not callable", callee.Kind())
	}

	if fn.Variant != object.CompiledFunc {
		if fn.Native == nil {
			return fmt.Errorf("unresolved variable: %s", fn.Name)
		}
		result, err := fn.Native(args)
		if err != nil {
			return err
		}
		frame.push(result)
		return nil
	}

	callFrame := NewFrame(fn.Code)
	copy(callFrame.locals, args)
	if fn.Code.Vars.Size() > len(args) {
		callFrame.locals[len(args)] = fn
	}
	vm.frames = append(vm.frames, vm.frame)
	vm.frame = callFrame
	return nil
}

func (vm *VM) importModule(frame *Frame) error {
	pathVal := frame.pop()
	path, ok := pathVal.(*object.Str)
	if !ok {
		return fmt.Errorf("import: module path must be a string, got %s", pathVal.Kind())
	}
	if vm.importer == nil {
		return fmt.Errorf("import: no module loader configured")
	}
	mod, err := vm.importer.Import(path.Value)
	if err != nil {
		return err
	}
	frame.push(mod)
	return nil
}

func (vm *VM) importMember(frame *Frame, idx int) error {
	memberVal := frame.pop()
	memberName, ok := memberVal.(*object.Str)
	if !ok {
		return fmt.Errorf("import: member name must be a string, got %s", memberVal.Kind())
	}
	modVal := frame.pop()
	mod, ok := modVal.(*object.Module)
	if !ok {
		return fmt.Errorf("import: expected a module value, got %s", modVal.Kind())
	}
	member, found := mod.Get(memberName.Value)
	if !found {
		return fmt.Errorf("module %q has no member %q", mod.Path, memberName.Value)
	}
	frame.locals[idx] = member
	frame.push(mod)
	return nil
}

// resolveGlobal implements LOAD_GLOBAL's dynamic scoping: walk the frame
// stack from the most recent caller outward, returning the first enclosing
// frame's value for name. If no caller binds it, name resolves to a
// top-level builtin (print/str/id); if it isn't one of those either, a
// placeholder Function is returned whose absent Native handler turns into
// an "unresolved variable" error only if it's actually called.
func (vm *VM) resolveGlobal(name string) object.Value {
	for i := len(vm.frames) - 1; i >= 0; i-- {
		caller := vm.frames[i]
		if idx := caller.bc.Vars.Get(name); idx != symtab.NotFound {
			return caller.locals[idx]
		}
	}
	if fn := object.GetBuiltinByName(name); fn != nil {
		return fn
	}
	return &object.Function{Variant: object.BuiltinFunc, Name: name}
}

func (vm *VM) popFrame() *Frame {
	n := len(vm.frames)
	f := vm.frames[n-1]
	vm.frames = vm.frames[:n-1]
	return f
}

func (vm *VM) readOperand(frame *Frame) int {
	v := int(bytecode.ReadUint16(frame.Instructions()[frame.ip:]))
	frame.ip += 2
	return v
}

func binaryArith(op bytecode.Opcode, left, right object.Value) (object.Value, error) {
	switch op {
	case bytecode.OpBinaryAdd:
		return object.Add(left, right)
	case bytecode.OpBinarySub:
		return object.Sub(left, right)
	case bytecode.OpBinaryMul:
		return object.Mul(left, right)
	case bytecode.OpBinaryDiv:
		return object.Div(left, right)
	case bytecode.OpBinaryMod:
		return object.Mod(left, right)
	case bytecode.OpBinaryLShift:
		return object.LShift(left, right)
	case bytecode.OpBinaryRShift:
		return object.RShift(left, right)
	case bytecode.OpBinaryAnd:
		return object.And(left, right)
	case bytecode.OpBinaryOr:
		return object.Or(left, right)
	case bytecode.OpBinaryXor:
		return object.Xor(left, right)
	default:
		return nil, fmt.Errorf("vm: unhandled arithmetic opcode %d", op)
	}
}

// binaryCompare handles the comparison family, whose operands arrive
// popped in left-then-right order (see compiler.compileInfix): the first
// pop is the compile-time left operand, the second is the right.
func binaryCompare(op bytecode.Opcode, left, right object.Value) (object.Value, error) {
	switch op {
	case bytecode.OpBinaryNe:
		return object.Ne(left, right)
	case bytecode.OpBinaryLt:
		return object.Lt(left, right)
	case bytecode.OpBinaryLe:
		return object.Le(left, right)
	case bytecode.OpBinaryGt:
		return object.Gt(left, right)
	case bytecode.OpBinaryGe:
		return object.Ge(left, right)
	default:
		return nil, fmt.Errorf("vm: unhandled comparison opcode %d", op)
	}
}
