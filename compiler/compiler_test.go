package compiler

import (
	"fmt"
	"testing"

	"github.com/mohalang/moha/bytecode"
	"github.com/mohalang/moha/lexer"
	"github.com/mohalang/moha/object"
	"github.com/mohalang/moha/parser"
)

type compilerTestCase struct {
	input                string
	expectedConstants    []interface{}
	expectedInstructions []bytecode.Instructions
}

func runCompilerTests(t *testing.T, tests []compilerTestCase) {
	t.Helper()

	for _, tt := range tests {
		p := parser.New(lexer.New(tt.input))
		program := p.ParseProgram()
		if len(p.Errors()) != 0 {
			t.Fatalf("input %q: parser errors: %v", tt.input, p.Errors())
		}

		c := New()
		if err := c.Compile(program); err != nil {
			t.Fatalf("input %q: compile error: %s", tt.input, err)
		}

		bc := c.Bytecode()

		if err := testInstructions(tt.expectedInstructions, bc.Instructions); err != nil {
			t.Errorf("input %q: %s", tt.input, err)
		}
		if err := testConstants(tt.expectedConstants, bc.Constants); err != nil {
			t.Errorf("input %q: %s", tt.input, err)
		}
	}
}

func concatInstructions(s []bytecode.Instructions) bytecode.Instructions {
	var out bytecode.Instructions
	for _, ins := range s {
		out = append(out, ins...)
	}
	return out
}

func testInstructions(expected []bytecode.Instructions, actual bytecode.Instructions) error {
	concatted := concatInstructions(expected)

	if len(actual) != len(concatted) {
		return fmt.Errorf("wrong instructions length.\nwant=%q\ngot =%q", concatted, actual)
	}

	for i, ins := range concatted {
		if actual[i] != ins {
			return fmt.Errorf("wrong instruction at %d.\nwant=%q\ngot =%q", i, concatted, actual)
		}
	}
	return nil
}

func testConstants(expected []interface{}, actual []bytecode.Constant) error {
	if len(expected) != len(actual) {
		return fmt.Errorf("wrong constants length. want=%d got=%d", len(expected), len(actual))
	}

	for i, exp := range expected {
		switch exp := exp.(type) {
		case int64:
			v, ok := actual[i].(*object.Int)
			if !ok || v.Value != exp {
				return fmt.Errorf("constant %d: want Int(%d), got %#v", i, exp, actual[i])
			}
		case float64:
			v, ok := actual[i].(*object.Float)
			if !ok || v.Value != exp {
				return fmt.Errorf("constant %d: want Float(%v), got %#v", i, exp, actual[i])
			}
		case string:
			v, ok := actual[i].(*object.Str)
			if !ok || v.Value != exp {
				return fmt.Errorf("constant %d: want Str(%q), got %#v", i, exp, actual[i])
			}
		case []bytecode.Instructions:
			fn, ok := actual[i].(*object.Function)
			if !ok {
				return fmt.Errorf("constant %d: want *object.Function, got %#v", i, actual[i])
			}
			if err := testInstructions(exp, fn.Code.Instructions); err != nil {
				return fmt.Errorf("constant %d: %w", i, err)
			}
		default:
			return fmt.Errorf("constant %d: unsupported expected type %T", i, exp)
		}
	}
	return nil
}

func TestIntegerArithmetic(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "1 + 2;",
			expectedConstants: []interface{}{int64(1), int64(2)},
			expectedInstructions: []bytecode.Instructions{
				bytecode.Make(bytecode.OpLoadConst, 0),
				bytecode.Make(bytecode.OpLoadConst, 1),
				bytecode.Make(bytecode.OpBinaryAdd),
				bytecode.Make(bytecode.OpPop),
			},
		},
		{
			input:             "1 - 2;",
			expectedConstants: []interface{}{int64(1), int64(2)},
			expectedInstructions: []bytecode.Instructions{
				bytecode.Make(bytecode.OpLoadConst, 0),
				bytecode.Make(bytecode.OpLoadConst, 1),
				bytecode.Make(bytecode.OpBinarySub),
				bytecode.Make(bytecode.OpPop),
			},
		},
	}

	runCompilerTests(t, tests)
}

func TestComparisonOperandOrder(t *testing.T) {
	// Comparisons compile right-then-left so the vm can pop left then right.
	tests := []compilerTestCase{
		{
			input:             "1 < 2;",
			expectedConstants: []interface{}{int64(2), int64(1)},
			expectedInstructions: []bytecode.Instructions{
				bytecode.Make(bytecode.OpLoadConst, 0),
				bytecode.Make(bytecode.OpLoadConst, 1),
				bytecode.Make(bytecode.OpBinaryLt),
				bytecode.Make(bytecode.OpPop),
			},
		},
	}

	runCompilerTests(t, tests)
}

func TestBooleanAndNullLiterals(t *testing.T) {
	p := parser.New(lexer.New("true;"))
	program := p.ParseProgram()
	c := New()
	if err := c.Compile(program); err != nil {
		t.Fatalf("compile error: %s", err)
	}
	bc := c.Bytecode()
	b, ok := bc.Constants[0].(*object.Bool)
	if !ok || b.Value != true {
		t.Fatalf("expected constant Bool(true), got %#v", bc.Constants[0])
	}

	want := []bytecode.Instructions{
		bytecode.Make(bytecode.OpLoadConst, 0),
		bytecode.Make(bytecode.OpPop),
	}
	if err := testInstructions(want, bc.Instructions); err != nil {
		t.Errorf("%s", err)
	}
}

func TestAssignStoresVar(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "x = 1;",
			expectedConstants: []interface{}{int64(1)},
			expectedInstructions: []bytecode.Instructions{
				bytecode.Make(bytecode.OpLoadConst, 0),
				bytecode.Make(bytecode.OpStoreVar, 0),
			},
		},
		{
			input:             "x = 1; x;",
			expectedConstants: []interface{}{int64(1)},
			expectedInstructions: []bytecode.Instructions{
				bytecode.Make(bytecode.OpLoadConst, 0),
				bytecode.Make(bytecode.OpStoreVar, 0),
				bytecode.Make(bytecode.OpLoadVar, 0),
				bytecode.Make(bytecode.OpPop),
			},
		},
	}

	runCompilerTests(t, tests)
}

func TestUndeclaredIdentifierLoadsGlobal(t *testing.T) {
	p := parser.New(lexer.New("y;"))
	program := p.ParseProgram()
	c := New()
	if err := c.Compile(program); err != nil {
		t.Fatalf("compile error: %s", err)
	}
	bc := c.Bytecode()

	want := concatInstructions([]bytecode.Instructions{
		bytecode.Make(bytecode.OpLoadGlobal, 0),
		bytecode.Make(bytecode.OpPop),
	})
	if err := testInstructions([]bytecode.Instructions{want}, bc.Instructions); err != nil {
		t.Errorf("%s", err)
	}
	if bc.Names.Size() != 1 || bc.Names.Get("y") != 0 {
		t.Fatalf("expected name y registered at index 0, got names table size %d", bc.Names.Size())
	}
}

func TestIfStatementSingleGuardAborts(t *testing.T) {
	input := `if (true) { pass; }`

	p := parser.New(lexer.New(input))
	program := p.ParseProgram()
	c := New()
	if err := c.Compile(program); err != nil {
		t.Fatalf("compile error: %s", err)
	}
	bc := c.Bytecode()

	expected := []bytecode.Instructions{
		bytecode.Make(bytecode.OpLoadConst, 0), // 0000 condition
		bytecode.Make(bytecode.OpJmpTrue, 7),   // 0003
		bytecode.Make(bytecode.OpExit),         // 0006
		bytecode.Make(bytecode.OpNoop),         // 0007 body (pass)
		bytecode.Make(bytecode.OpJmp, 11),      // 0008 jump past the construct
	}
	if err := testInstructions(expected, bc.Instructions); err != nil {
		t.Errorf("%s", err)
	}
}

func TestDefStatementRegistersRecursionSlot(t *testing.T) {
	input := `def f(a) { return a; }`

	p := parser.New(lexer.New(input))
	program := p.ParseProgram()
	c := New()
	if err := c.Compile(program); err != nil {
		t.Fatalf("compile error: %s", err)
	}
	bc := c.Bytecode()

	if bc.Vars.Size() != 1 || bc.Vars.Get("f") != 0 {
		t.Fatalf("expected f registered in outer vars at index 0")
	}

	fn, ok := bc.Constants[0].(*object.Function)
	if !ok {
		t.Fatalf("expected *object.Function constant, got %#v", bc.Constants[0])
	}
	if fn.NumParams != 1 {
		t.Fatalf("expected 1 param, got %d", fn.NumParams)
	}
	// params (1) + self-reference recursion slot (1) = 2 local vars.
	if fn.NumVars != 2 {
		t.Fatalf("expected 2 local vars (param + recursion slot), got %d", fn.NumVars)
	}
}

func TestImportModuleStatement(t *testing.T) {
	input := `import "./util.mo" as u;`

	p := parser.New(lexer.New(input))
	program := p.ParseProgram()
	c := New()
	if err := c.Compile(program); err != nil {
		t.Fatalf("compile error: %s", err)
	}
	bc := c.Bytecode()

	expected := []bytecode.Instructions{
		bytecode.Make(bytecode.OpLoadConst, 0),
		bytecode.Make(bytecode.OpImportModule),
		bytecode.Make(bytecode.OpStoreVar, 0),
	}
	if err := testInstructions(expected, bc.Instructions); err != nil {
		t.Errorf("%s", err)
	}
	if bc.Vars.Get("u") != 0 {
		t.Fatalf("expected u registered as var 0")
	}
}

func TestArrayAndMapLiterals(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "[1, 2, 3];",
			expectedConstants: []interface{}{int64(1), int64(2), int64(3)},
			expectedInstructions: []bytecode.Instructions{
				bytecode.Make(bytecode.OpLoadConst, 0),
				bytecode.Make(bytecode.OpLoadConst, 1),
				bytecode.Make(bytecode.OpLoadConst, 2),
				bytecode.Make(bytecode.OpBuildArray, 3),
				bytecode.Make(bytecode.OpPop),
			},
		},
		{
			input:             `{"a": 1};`,
			expectedConstants: []interface{}{"a", int64(1)},
			expectedInstructions: []bytecode.Instructions{
				bytecode.Make(bytecode.OpBuildMap, 1),
				bytecode.Make(bytecode.OpLoadConst, 0),
				bytecode.Make(bytecode.OpLoadConst, 1),
				bytecode.Make(bytecode.OpStoreMap),
				bytecode.Make(bytecode.OpPop),
			},
		},
	}

	runCompilerTests(t, tests)
}

func TestCallExpressionArgumentOrder(t *testing.T) {
	input := `f(1, 2);`

	p := parser.New(lexer.New(input))
	program := p.ParseProgram()
	c := New()
	if err := c.Compile(program); err != nil {
		t.Fatalf("compile error: %s", err)
	}
	bc := c.Bytecode()

	// The callee f is an undeclared identifier -> LOAD_GLOBAL, then
	// arguments are compiled in reverse (2, 1) so CALL_FUNC's pop order
	// recovers left-to-right.
	expected := []bytecode.Instructions{
		bytecode.Make(bytecode.OpLoadGlobal, 0),
		bytecode.Make(bytecode.OpLoadConst, 0), // argument 2, compiled first (reverse order)
		bytecode.Make(bytecode.OpLoadConst, 1), // argument 1, compiled second
		bytecode.Make(bytecode.OpCallFunc, 2),
		bytecode.Make(bytecode.OpPop),
	}
	if err := testInstructions(expected, bc.Instructions); err != nil {
		t.Errorf("%s", err)
	}
}
