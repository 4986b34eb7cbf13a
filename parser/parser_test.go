package parser

import (
	"fmt"
	"testing"

	"github.com/mohalang/moha/ast"
	"github.com/mohalang/moha/lexer"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(lexer.New(input))
	program := p.ParseProgram()
	checkParserErrors(t, p)
	return program
}

func checkParserErrors(t *testing.T, p *Parser) {
	t.Helper()
	errs := p.Errors()
	if len(errs) == 0 {
		return
	}
	for _, msg := range errs {
		t.Errorf("parser error: %s", msg)
	}
	t.FailNow()
}

func TestAssignStatement(t *testing.T) {
	program := parseProgram(t, `x = 5;`)

	if len(program.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program.Statements))
	}

	stmt, ok := program.Statements[0].(*ast.AssignStatement)
	if !ok {
		t.Fatalf("expected *ast.AssignStatement, got %T", program.Statements[0])
	}

	ident, ok := stmt.Target.(*ast.Identifier)
	if !ok || ident.Value != "x" {
		t.Fatalf("expected target identifier x, got %#v", stmt.Target)
	}

	lit, ok := stmt.Value.(*ast.IntegerLiteral)
	if !ok || lit.Value != 5 {
		t.Fatalf("expected value 5, got %#v", stmt.Value)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"-a * b;", "((-a) * b)"},
		{"!-a;", "(!(-a))"},
		{"a + b + c;", "((a + b) + c)"},
		{"a + b - c;", "((a + b) - c)"},
		{"a * b * c;", "((a * b) * c)"},
		{"a + b * c;", "(a + (b * c))"},
		{"a < b == c > d;", "(((a < b) == c) > d)"},
		{"a && b || c;", "((a && b) || c)"},
		{"a || b && c;", "(a || (b && c))"},
		{"!a && b;", "((!a) && b)"},
		{"1 & 2 | 3;", "((1 & 2) | 3)"},
		{"1 << 2 + 1;", "(1 << (2 + 1))"},
		{"a in b && c;", "((a in b) && c)"},
		{"a.b.c;", "((a[\"b\"])[\"c\"])"},
	}

	for _, tt := range tests {
		program := parseProgram(t, tt.input)
		got := program.String()
		if got != tt.expected {
			t.Errorf("input %q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestGuardedIfStatement(t *testing.T) {
	program := parseProgram(t, `if (x < y) { return x; } (x >= y) { return y; }`)

	stmt, ok := program.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected *ast.IfStatement, got %T", program.Statements[0])
	}
	if len(stmt.Guards) != 2 {
		t.Fatalf("expected 2 guards, got %d", len(stmt.Guards))
	}
	if len(stmt.Guards[0].Body.Statements) != 1 {
		t.Fatalf("expected 1 statement in first guard body, got %d", len(stmt.Guards[0].Body.Statements))
	}
}

func TestDefStatement(t *testing.T) {
	program := parseProgram(t, `def add(a, b) { return a + b; }`)

	stmt, ok := program.Statements[0].(*ast.DefStatement)
	if !ok {
		t.Fatalf("expected *ast.DefStatement, got %T", program.Statements[0])
	}
	if stmt.Name.Value != "add" {
		t.Fatalf("expected name add, got %s", stmt.Name.Value)
	}
	if len(stmt.Parameters) != 2 || stmt.Parameters[0].Value != "a" || stmt.Parameters[1].Value != "b" {
		t.Fatalf("unexpected parameters: %#v", stmt.Parameters)
	}
}

func TestCallExpression(t *testing.T) {
	program := parseProgram(t, `add(1, 2 * 3);`)

	stmt := program.Statements[0].(*ast.ExpressionStatement)
	call, ok := stmt.Expression.(*ast.CallExpression)
	if !ok {
		t.Fatalf("expected *ast.CallExpression, got %T", stmt.Expression)
	}
	if len(call.Arguments) != 2 {
		t.Fatalf("expected 2 arguments, got %d", len(call.Arguments))
	}
}

func TestArrayAndIndex(t *testing.T) {
	program := parseProgram(t, `arr[1 + 1];`)

	stmt := program.Statements[0].(*ast.ExpressionStatement)
	idx, ok := stmt.Expression.(*ast.IndexExpression)
	if !ok {
		t.Fatalf("expected *ast.IndexExpression, got %T", stmt.Expression)
	}
	if _, ok := idx.Left.(*ast.Identifier); !ok {
		t.Fatalf("expected identifier on the left of index, got %T", idx.Left)
	}
}

func TestObjectLiteral(t *testing.T) {
	program := parseProgram(t, `{"a": 1, b: 2};`)

	stmt := program.Statements[0].(*ast.ExpressionStatement)
	obj, ok := stmt.Expression.(*ast.ObjectLiteral)
	if !ok {
		t.Fatalf("expected *ast.ObjectLiteral, got %T", stmt.Expression)
	}
	if len(obj.Keys) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(obj.Keys))
	}
	for i, key := range obj.Keys {
		if _, ok := key.(*ast.StringLiteral); !ok {
			t.Fatalf("key %d: expected *ast.StringLiteral, got %T", i, key)
		}
	}
}

func TestImportForms(t *testing.T) {
	tests := []struct {
		input string
		check func(*testing.T, ast.Statement)
	}{
		{
			`import "./util.mo";`,
			func(t *testing.T, s ast.Statement) {
				stmt := s.(*ast.ImportModuleStatement)
				if stmt.Name != "util.mo" && stmt.Name != "util" {
					t.Fatalf("unexpected derived alias: %s", stmt.Name)
				}
			},
		},
		{
			`import "./util.mo" as u;`,
			func(t *testing.T, s ast.Statement) {
				stmt := s.(*ast.ImportModuleStatement)
				if stmt.Name != "u" {
					t.Fatalf("expected alias u, got %s", stmt.Name)
				}
			},
		},
		{
			`from "./util.mo" import a, b;`,
			func(t *testing.T, s ast.Statement) {
				stmt := s.(*ast.ImportMembersStatement)
				if len(stmt.Members) != 2 {
					t.Fatalf("expected 2 members, got %d", len(stmt.Members))
				}
			},
		},
	}

	for _, tt := range tests {
		program := parseProgram(t, tt.input)
		tt.check(t, program.Statements[0])
	}
}

func TestAbortPassUnbound(t *testing.T) {
	program := parseProgram(t, `abort "boom"; pass; unbound a.b;`)

	if len(program.Statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(program.Statements))
	}
	if _, ok := program.Statements[0].(*ast.AbortStatement); !ok {
		t.Fatalf("expected *ast.AbortStatement, got %T", program.Statements[0])
	}
	if _, ok := program.Statements[1].(*ast.PassStatement); !ok {
		t.Fatalf("expected *ast.PassStatement, got %T", program.Statements[1])
	}
	if _, ok := program.Statements[2].(*ast.UnboundStatement); !ok {
		t.Fatalf("expected *ast.UnboundStatement, got %T", program.Statements[2])
	}
}

func TestAttributeAssignment(t *testing.T) {
	program := parseProgram(t, `obj.field = 1;`)

	stmt, ok := program.Statements[0].(*ast.AssignStatement)
	if !ok {
		t.Fatalf("expected *ast.AssignStatement, got %T", program.Statements[0])
	}
	if _, ok := stmt.Target.(*ast.IndexExpression); !ok {
		t.Fatalf("expected *ast.IndexExpression target, got %T", stmt.Target)
	}
}

func TestParserReportsErrors(t *testing.T) {
	p := New(lexer.New(`x = ;`))
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatalf("expected parse errors for malformed input")
	}
}

func ExampleParser_functionLiteral() {
	p := New(lexer.New(`y = def(a) { return a; };`))
	program := p.ParseProgram()
	fmt.Println(len(p.Errors()), len(program.Statements))
	// Output: 0 1
}
