// Package compiler translates moha's AST into bytecode.
//
// Unlike a scope-stack compiler, every def/closure body is compiled by a
// fresh child Compiler (its own vars/names tables and instruction stream),
// directly mirroring original_source/moha/vm/compiler.py's
// `inner_ctx = Compiler()` construction in visit_def/visit_closure. There is
// no free-variable capture: a name not found in the compiling function's own
// vars table compiles to LOAD_GLOBAL, resolved dynamically by the vm walking
// its frame stack at run time.
package compiler

import (
	"fmt"

	"github.com/mohalang/moha/ast"
	"github.com/mohalang/moha/bytecode"
	"github.com/mohalang/moha/object"
	"github.com/mohalang/moha/symtab"
)

// Compiler holds the compile-time state for a single function body (or the
// top-level program, which is compiled the same way as a function with no
// parameters).
type Compiler struct {
	instructions bytecode.Instructions
	constants    []bytecode.Constant

	// vars tracks names assigned or bound as parameters within this
	// function body; it backs LOAD_VAR/STORE_VAR.
	vars *symtab.Table

	// names tracks identifiers referenced but never assigned in this
	// function body; it backs LOAD_GLOBAL.
	names *symtab.Table

	lastInstruction     emittedInstruction
	previousInstruction emittedInstruction
}

type emittedInstruction struct {
	Opcode   bytecode.Opcode
	Position int
}

// New returns a Compiler for a fresh function body (or top-level program).
func New() *Compiler {
	return &Compiler{
		vars:  symtab.New(),
		names: symtab.New(),
	}
}

// NewWithState returns a top-level Compiler that starts with an empty
// instruction stream but reuses vars, names and constants from a previous
// compilation. The repl package uses this to compile each line as its own
// bytecode while keeping previously defined variables and constants alive
// across the session, the same trick the teacher's book-accurate REPL
// plays with its SymbolTable and constants pool.
func NewWithState(vars, names *symtab.Table, constants []bytecode.Constant) *Compiler {
	return &Compiler{
		vars:      vars,
		names:     names,
		constants: constants,
	}
}

// Bytecode returns the instructions and metadata compiled so far.
func (c *Compiler) Bytecode() *bytecode.Bytecode {
	return &bytecode.Bytecode{
		Instructions: c.instructions,
		Constants:    c.constants,
		Vars:         c.vars,
		Names:        c.names,
	}
}

// Compile walks node, emitting bytecode into c's instruction stream.
func (c *Compiler) Compile(node ast.Node) error {
	switch node := node.(type) {

	case *ast.Program:
		return c.compileStatements(node.Statements)

	case *ast.BlockStatement:
		return c.compileStatements(node.Statements)

	case *ast.ExpressionStatement:
		if err := c.Compile(node.Expression); err != nil {
			return err
		}
		c.emit(bytecode.OpPop)

	case *ast.AssignStatement:
		return c.compileAssign(node)

	case *ast.ReturnStatement:
		if err := c.Compile(node.ReturnValue); err != nil {
			return err
		}
		c.emit(bytecode.OpReturnValue)

	case *ast.AbortStatement:
		if err := c.Compile(node.Value); err != nil {
			return err
		}
		c.emit(bytecode.OpAbort)

	case *ast.PassStatement:
		c.emit(bytecode.OpNoop)

	case *ast.UnboundStatement:
		if err := c.Compile(node.Target.Left); err != nil {
			return err
		}
		if err := c.Compile(node.Target.Index); err != nil {
			return err
		}
		c.emit(bytecode.OpMapDelItem)

	case *ast.IfStatement:
		return c.compileGuarded(node.Guards, false)

	case *ast.DoStatement:
		return c.compileGuarded(node.Guards, true)

	case *ast.DefStatement:
		return c.compileDef(node)

	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral(node)

	case *ast.CallExpression:
		return c.compileCall(node)

	case *ast.PrefixExpression:
		return c.compilePrefix(node)

	case *ast.InfixExpression:
		return c.compileInfix(node)

	case *ast.IndexExpression:
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		if err := c.Compile(node.Index); err != nil {
			return err
		}
		c.emit(bytecode.OpMapGetItem)

	case *ast.ArrayLiteral:
		for _, el := range node.Elements {
			if err := c.Compile(el); err != nil {
				return err
			}
		}
		c.emit(bytecode.OpBuildArray, len(node.Elements))

	case *ast.ObjectLiteral:
		c.emit(bytecode.OpBuildMap, len(node.Keys))
		for i, key := range node.Keys {
			if err := c.Compile(key); err != nil {
				return err
			}
			if err := c.Compile(node.Values[i]); err != nil {
				return err
			}
			c.emit(bytecode.OpStoreMap)
		}

	case *ast.Identifier:
		if idx := c.vars.Get(node.Value); idx != symtab.NotFound {
			c.emit(bytecode.OpLoadVar, idx)
		} else {
			c.emit(bytecode.OpLoadGlobal, c.names.Add(node.Value))
		}

	case *ast.IntegerLiteral:
		c.emit(bytecode.OpLoadConst, c.addConstant(&object.Int{Value: node.Value}))

	case *ast.FloatLiteral:
		c.emit(bytecode.OpLoadConst, c.addConstant(&object.Float{Value: node.Value}))

	case *ast.StringLiteral:
		c.emit(bytecode.OpLoadConst, c.addConstant(&object.Str{Value: node.Value}))

	case *ast.BooleanLiteral:
		c.emit(bytecode.OpLoadConst, c.addConstant(object.NativeBool(node.Value)))

	case *ast.NullLiteral:
		c.emit(bytecode.OpLoadConst, c.addConstant(object.NullValue))

	case *ast.ImportModuleStatement:
		c.emit(bytecode.OpLoadConst, c.addConstant(&object.Str{Value: node.Path}))
		c.emit(bytecode.OpImportModule)
		c.emit(bytecode.OpStoreVar, c.vars.Add(node.Name))

	case *ast.ImportMembersStatement:
		c.emit(bytecode.OpLoadConst, c.addConstant(&object.Str{Value: node.Path}))
		c.emit(bytecode.OpImportModule)
		for _, member := range node.Members {
			c.emit(bytecode.OpLoadConst, c.addConstant(&object.Str{Value: member.Value}))
			c.emit(bytecode.OpImportMember, c.vars.Add(member.Value))
		}
		c.emit(bytecode.OpPop)

	case *ast.ExportStatement:
		c.emit(bytecode.OpNoop)

	default:
		return fmt.Errorf("compiler: unsupported node type %T", node)
	}

	return nil
}

func (c *Compiler) compileStatements(stmts []ast.Statement) error {
	for _, s := range stmts {
		if err := c.Compile(s); err != nil {
			return err
		}
	}
	return nil
}

// compileAssign compiles "target = value;". Value is always compiled first;
// a plain identifier target stores it into a (possibly newly registered)
// local var, while an obj.attr/obj[expr] target compiles the container and
// key exactly as a read would and emits MAP_SETITEM in place of the
// MAP_GETITEM an IndexExpression read would produce.
func (c *Compiler) compileAssign(node *ast.AssignStatement) error {
	if err := c.Compile(node.Value); err != nil {
		return err
	}

	switch target := node.Target.(type) {
	case *ast.Identifier:
		c.emit(bytecode.OpStoreVar, c.vars.Add(target.Value))
	case *ast.IndexExpression:
		if err := c.Compile(target.Left); err != nil {
			return err
		}
		if err := c.Compile(target.Index); err != nil {
			return err
		}
		c.emit(bytecode.OpMapSetItem)
	default:
		return fmt.Errorf("compiler: invalid assignment target %T", node.Target)
	}
	return nil
}

// compileGuarded emits the shared back-patching skeleton for guarded if/do:
// for each guard, compile its condition and a JMP_TRUE to the clause's body;
// when no guard matches, an if aborts the function (EXIT) while a do falls
// out of the loop (JMP to the end). Each clause body ends with a jump either
// to the end (if) or back to the top (do, to re-test all guards).
func (c *Compiler) compileGuarded(guards []ast.GuardedCommand, loop bool) error {
	begin := len(c.instructions)

	jumpTruePositions := make([]int, len(guards))
	for i, g := range guards {
		if err := c.Compile(g.Condition); err != nil {
			return err
		}
		jumpTruePositions[i] = c.emit(bytecode.OpJmpTrue, 0)
	}

	var fallThroughPos int
	if loop {
		fallThroughPos = c.emit(bytecode.OpJmp, 0)
	} else {
		c.emit(bytecode.OpExit)
	}

	jumpDonePositions := make([]int, 0, len(guards))
	for i, g := range guards {
		c.changeOperand(jumpTruePositions[i], len(c.instructions))
		if err := c.Compile(g.Body); err != nil {
			return err
		}
		if loop {
			c.emit(bytecode.OpJmp, begin)
		} else {
			jumpDonePositions = append(jumpDonePositions, c.emit(bytecode.OpJmp, 0))
		}
	}

	end := len(c.instructions)
	if loop {
		c.changeOperand(fallThroughPos, end)
	} else {
		for _, pos := range jumpDonePositions {
			c.changeOperand(pos, end)
		}
	}
	return nil
}

// compileDef compiles a named function definition. The function's own name
// is registered both in the enclosing (outer) vars table, so the def is
// callable by name after this statement, and as the function body's local
// slot right after its parameters, so the vm's CALL_FUNC can bind that slot to the
// function's own value for recursive calls (see vm.Run's CALL_FUNC case).
func (c *Compiler) compileDef(node *ast.DefStatement) error {
	inner := New()
	for _, p := range node.Parameters {
		inner.vars.Add(p.Value)
	}
	outerIdx := c.vars.Add(node.Name.Value)
	inner.vars.Add(node.Name.Value)

	if err := inner.Compile(node.Body); err != nil {
		return err
	}

	fn := &object.Function{
		Variant:   object.CompiledFunc,
		Name:      node.Name.Value,
		Code:      inner.Bytecode(),
		NumParams: len(node.Parameters),
		NumVars:   inner.vars.Size(),
	}
	c.emit(bytecode.OpLoadConst, c.addConstant(fn))
	c.emit(bytecode.OpStoreVar, outerIdx)
	return nil
}

// compileFunctionLiteral compiles an anonymous function. Unlike a named
// def, no self-reference slot is reserved: an anonymous function cannot
// recurse by name.
func (c *Compiler) compileFunctionLiteral(node *ast.FunctionLiteral) error {
	inner := New()
	for _, p := range node.Parameters {
		inner.vars.Add(p.Value)
	}

	if err := inner.Compile(node.Body); err != nil {
		return err
	}

	fn := &object.Function{
		Variant:   object.CompiledFunc,
		Code:      inner.Bytecode(),
		NumParams: len(node.Parameters),
		NumVars:   inner.vars.Size(),
	}
	c.emit(bytecode.OpLoadConst, c.addConstant(fn))
	return nil
}

// compileCall compiles the callee, then the arguments in reverse, so that
// CALL_FUNC's repeated pop-and-append at run time recovers the original
// left-to-right argument order.
func (c *Compiler) compileCall(node *ast.CallExpression) error {
	if err := c.Compile(node.Function); err != nil {
		return err
	}
	for i := len(node.Arguments) - 1; i >= 0; i-- {
		if err := c.Compile(node.Arguments[i]); err != nil {
			return err
		}
	}
	c.emit(bytecode.OpCallFunc, len(node.Arguments))
	return nil
}

func (c *Compiler) compilePrefix(node *ast.PrefixExpression) error {
	if err := c.Compile(node.Right); err != nil {
		return err
	}
	switch node.Operator {
	case "!":
		c.emit(bytecode.OpNot)
	case "-":
		c.emit(bytecode.OpUnaryNegative)
	case "+":
		c.emit(bytecode.OpUnaryPositive)
	case "~":
		c.emit(bytecode.OpUnaryInvert)
	default:
		return fmt.Errorf("compiler: unknown prefix operator %q", node.Operator)
	}
	return nil
}

// compileInfix dispatches each binary operator to the stack order its vm
// handler expects. Short-circuit "&&"/"||" emit a conditional jump between
// their operands instead of a binary opcode. Comparisons (and "in", which
// shares the comparison family's right-then-left convention) compile their
// right operand before their left, so that the left operand — or, for "in",
// the tested element — ends up on top of the stack; every other binary
// operator compiles left before right.
func (c *Compiler) compileInfix(node *ast.InfixExpression) error {
	switch node.Operator {
	case "&&":
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		pos := c.emit(bytecode.OpJumpIfFalseOrPop, 0)
		if err := c.Compile(node.Right); err != nil {
			return err
		}
		c.changeOperand(pos, len(c.instructions))
		return nil

	case "||":
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		pos := c.emit(bytecode.OpJumpIfTrueOrPop, 0)
		if err := c.Compile(node.Right); err != nil {
			return err
		}
		c.changeOperand(pos, len(c.instructions))
		return nil

	case "==", "!=", "<", "<=", ">", ">=", "in":
		if err := c.Compile(node.Right); err != nil {
			return err
		}
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		switch node.Operator {
		case "==":
			c.emit(bytecode.OpBinaryEqual)
		case "!=":
			c.emit(bytecode.OpBinaryNe)
		case "<":
			c.emit(bytecode.OpBinaryLt)
		case "<=":
			c.emit(bytecode.OpBinaryLe)
		case ">":
			c.emit(bytecode.OpBinaryGt)
		case ">=":
			c.emit(bytecode.OpBinaryGe)
		case "in":
			c.emit(bytecode.OpMapHasItem)
		}
		return nil

	default:
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		if err := c.Compile(node.Right); err != nil {
			return err
		}
		switch node.Operator {
		case "+":
			c.emit(bytecode.OpBinaryAdd)
		case "-":
			c.emit(bytecode.OpBinarySub)
		case "*":
			c.emit(bytecode.OpBinaryMul)
		case "/":
			c.emit(bytecode.OpBinaryDiv)
		case "%":
			c.emit(bytecode.OpBinaryMod)
		case "<<":
			c.emit(bytecode.OpBinaryLShift)
		case ">>":
			c.emit(bytecode.OpBinaryRShift)
		case "&":
			c.emit(bytecode.OpBinaryAnd)
		case "|":
			c.emit(bytecode.OpBinaryOr)
		case "&^":
			c.emit(bytecode.OpBinaryXor)
		default:
			return fmt.Errorf("compiler: unknown infix operator %q", node.Operator)
		}
		return nil
	}
}

func (c *Compiler) addConstant(v bytecode.Constant) int {
	c.constants = append(c.constants, v)
	return len(c.constants) - 1
}

func (c *Compiler) emit(op bytecode.Opcode, operands ...int) int {
	ins := bytecode.Make(op, operands...)
	pos := len(c.instructions)
	c.instructions = append(c.instructions, ins...)

	c.previousInstruction = c.lastInstruction
	c.lastInstruction = emittedInstruction{Opcode: op, Position: pos}
	return pos
}

// changeOperand overwrites a previously emitted 2-byte operand in place,
// used to back-patch forward jump targets once they're known.
func (c *Compiler) changeOperand(pos int, operand int) {
	op := bytecode.Opcode(c.instructions[pos])
	newInstruction := bytecode.Make(op, operand)
	copy(c.instructions[pos:], newInstruction)
}
