// Package parser implements the syntactic analyzer for the moha programming language.
//
// The parser takes a stream of tokens from the lexer and constructs an
// Abstract Syntax Tree (AST) that represents the structure of the program.
// It implements a recursive descent parser with Pratt parsing (precedence
// climbing) for expressions, following the grammar laid out informally by
// original_source/moha/vm/grammar and the visitor shape of
// original_source/moha/vm/compiler.py: guarded if/do, def/anonymous
// function literals, attribute/index assignment, and the module
// import/export statements.
//
// The main entry point is [New], which creates a new [Parser], and
// [Parser.ParseProgram], which parses a complete moha program and returns
// its AST.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mohalang/moha/ast"
	"github.com/mohalang/moha/lexer"
	"github.com/mohalang/moha/token"
)

// Operator precedence levels, lowest to highest. The chain mirrors the
// grammar's nesting: or_test > and_test > not_test > comp > or_expr >
// xor_expr > and_expr > shift_expr > arith_expr > term > factor.
const (
	_ int = iota
	Lowest
	Or          // ||
	And         // && (also the binding level of a "!" operand)
	Compare     // == != < <= > >= in
	BitOr       // |
	BitXor      // &^
	BitAnd      // &
	Shift       // << >>
	Sum         // + -
	Product     // * / %
	Prefix      // -x, +x, ~x
	Call        // f(x)
	Index       // a[x], a.x
)

var precedences = map[token.Type]int{
	token.OR:       Or,
	token.AND:      And,
	token.EQ:       Compare,
	token.NOT_EQ:   Compare,
	token.LT:       Compare,
	token.LTE:      Compare,
	token.GT:       Compare,
	token.GTE:      Compare,
	token.IN:       Compare,
	token.PIPE:     BitOr,
	token.CARET:    BitXor,
	token.AMP:      BitAnd,
	token.SHL:      Shift,
	token.SHR:      Shift,
	token.PLUS:     Sum,
	token.MINUS:    Sum,
	token.ASTERISK: Product,
	token.SLASH:    Product,
	token.PERCENT:  Product,
	token.LPAREN:   Call,
	token.LBRACKET: Index,
	token.DOT:      Index,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser is a recursive-descent/Pratt parser over a token.Type stream.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	currentToken token.Token
	peekToken    token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a new [Parser] reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(token.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(token.NULL, p.parseNullLiteral)
	p.registerPrefix(token.BANG, p.parseNotExpression)
	p.registerPrefix(token.MINUS, p.parseUnaryExpression)
	p.registerPrefix(token.PLUS, p.parseUnaryExpression)
	p.registerPrefix(token.TILDE, p.parseUnaryExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(token.LBRACE, p.parseObjectLiteral)
	p.registerPrefix(token.DEF, p.parseFunctionLiteral)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	for _, t := range []token.Type{
		token.OR, token.AND, token.EQ, token.NOT_EQ, token.LT, token.LTE,
		token.GT, token.GTE, token.IN, token.PIPE, token.CARET, token.AMP,
		token.SHL, token.SHR, token.PLUS, token.MINUS, token.ASTERISK,
		token.SLASH, token.PERCENT,
	} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)
	p.registerInfix(token.DOT, p.parseDotExpression)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

// Errors returns the list of errors encountered while parsing.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) peekError(t token.Type) {
	p.errors = append(p.errors, fmt.Sprintf(
		"line %d: expected next token to be %s, got %s instead",
		p.peekToken.Line, t, p.peekToken.Type))
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: ", p.currentToken.Line)+fmt.Sprintf(format, args...))
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return Lowest
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.currentToken.Type]; ok {
		return prec
	}
	return Lowest
}

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) currentTokenIs(t token.Type) bool { return p.currentToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool    { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// skipSemicolon consumes a trailing ";" if present; moha statements all
// require one, but parsing tolerates its absence at EOF the way the
// teacher's parser tolerates a missing trailing semicolon.
func (p *Parser) skipSemicolon() {
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
}

// ParseProgram parses a complete moha source file and returns its AST.
// Check [Parser.Errors] afterward to see if any parse errors occurred.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.currentTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.currentToken.Type {
	case token.DEF:
		if p.peekTokenIs(token.IDENT) {
			return p.parseDefStatement()
		}
		return p.parseAssignOrExpressionStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.DO:
		return p.parseDoStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.ABORT:
		return p.parseAbortStatement()
	case token.PASS:
		return p.parsePassStatement()
	case token.UNBOUND:
		return p.parseUnboundStatement()
	case token.IMPORT:
		return p.parseImportModuleStatement()
	case token.FROM:
		return p.parseImportMembersStatement()
	case token.EXPORT:
		return p.parseExportStatement()
	default:
		return p.parseAssignOrExpressionStatement()
	}
}

func (p *Parser) parseDefStatement() *ast.DefStatement {
	stmt := &ast.DefStatement{Token: p.currentToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	stmt.Parameters = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{Token: p.currentToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	lit.Parameters = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	lit.Body = p.parseBlockStatement()
	return lit
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	var params []*ast.Identifier

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params
	}
	p.nextToken()
	params = append(params, &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		params = append(params, &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal})
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return params
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.currentToken}

	p.nextToken()
	for !p.currentTokenIs(token.RBRACE) && !p.currentTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

// parseGuards parses the one-or-more "(" cond ")" "{" body "}" clauses that
// follow an "if" or "do" keyword. Unlike an if/else chain, guards are not
// linked by a keyword; the parser simply keeps consuming clauses while the
// next token opens one.
func (p *Parser) parseGuards() []ast.GuardedCommand {
	var guards []ast.GuardedCommand

	for p.peekTokenIs(token.LPAREN) {
		p.nextToken() // currentToken == LPAREN
		p.nextToken()
		cond := p.parseExpression(Lowest)

		if !p.expectPeek(token.RPAREN) {
			return guards
		}
		if !p.expectPeek(token.LBRACE) {
			return guards
		}
		body := p.parseBlockStatement()
		guards = append(guards, ast.GuardedCommand{Condition: cond, Body: body})
	}

	if len(guards) == 0 {
		p.errorf("expected at least one (condition) { ... } guard")
	}
	return guards
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{Token: p.currentToken}
	stmt.Guards = p.parseGuards()
	return stmt
}

func (p *Parser) parseDoStatement() *ast.DoStatement {
	stmt := &ast.DoStatement{Token: p.currentToken}
	stmt.Guards = p.parseGuards()
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.currentToken}
	p.nextToken()
	stmt.ReturnValue = p.parseExpression(Lowest)
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseAbortStatement() *ast.AbortStatement {
	stmt := &ast.AbortStatement{Token: p.currentToken}
	p.nextToken()
	stmt.Value = p.parseExpression(Lowest)
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parsePassStatement() *ast.PassStatement {
	stmt := &ast.PassStatement{Token: p.currentToken}
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseUnboundStatement() *ast.UnboundStatement {
	stmt := &ast.UnboundStatement{Token: p.currentToken}
	p.nextToken()

	expr := p.parseExpression(Lowest)
	target, ok := expr.(*ast.IndexExpression)
	if !ok {
		p.errorf("unbound target must be an attribute or index expression, got %T", expr)
		return nil
	}
	stmt.Target = target
	p.skipSemicolon()
	return stmt
}

// moduleAlias derives the default binding name for "import \"path\";" from
// the last path segment with any extension stripped, e.g. "./libs/math.mo"
// -> "math".
func moduleAlias(path string) string {
	base := path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}

func (p *Parser) parseImportModuleStatement() *ast.ImportModuleStatement {
	stmt := &ast.ImportModuleStatement{Token: p.currentToken}

	if !p.expectPeek(token.STRING) {
		return nil
	}
	stmt.Path = p.currentToken.Literal
	stmt.Name = moduleAlias(stmt.Path)

	if p.peekTokenIs(token.AS) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Name = p.currentToken.Literal
	}
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseImportMembersStatement() *ast.ImportMembersStatement {
	stmt := &ast.ImportMembersStatement{Token: p.currentToken}

	if !p.expectPeek(token.STRING) {
		return nil
	}
	stmt.Path = p.currentToken.Literal

	if !p.expectPeek(token.IMPORT) {
		return nil
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Members = append(stmt.Members, &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Members = append(stmt.Members, &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal})
	}
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseExportStatement() *ast.ExportStatement {
	stmt := &ast.ExportStatement{Token: p.currentToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Names = append(stmt.Names, &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Names = append(stmt.Names, &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal})
	}
	p.skipSemicolon()
	return stmt
}

// parseAssignOrExpressionStatement parses a leading expression, then
// decides whether it is an assignment target (followed by "=") or a plain
// expression statement. This lookahead is what lets "x = 1;" and
// "obj.attr = 1;" share a grammar rule with ordinary expression statements.
func (p *Parser) parseAssignOrExpressionStatement() ast.Statement {
	tok := p.currentToken
	expr := p.parseExpression(Lowest)

	if p.peekTokenIs(token.ASSIGN) {
		switch expr.(type) {
		case *ast.Identifier, *ast.IndexExpression:
		default:
			p.errorf("invalid assignment target %T", expr)
			return nil
		}
		p.nextToken() // currentToken == ASSIGN
		p.nextToken()
		value := p.parseExpression(Lowest)
		p.skipSemicolon()
		return &ast.AssignStatement{Token: tok, Target: expr, Value: value}
	}

	p.skipSemicolon()
	return &ast.ExpressionStatement{Token: tok, Expression: expr}
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.currentToken.Type]
	if prefix == nil {
		p.errorf("no prefix parse function for %s found", p.currentToken.Type)
		return nil
	}
	left := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	value, err := strconv.ParseInt(p.currentToken.Literal, 0, 64)
	if err != nil {
		p.errorf("could not parse %q as integer", p.currentToken.Literal)
		return nil
	}
	return &ast.IntegerLiteral{Token: p.currentToken, Value: value}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	value, err := strconv.ParseFloat(p.currentToken.Literal, 64)
	if err != nil {
		p.errorf("could not parse %q as float", p.currentToken.Literal)
		return nil
	}
	return &ast.FloatLiteral{Token: p.currentToken, Value: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.currentToken, Value: p.currentToken.Literal}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.currentToken, Value: p.currentTokenIs(token.TRUE)}
}

func (p *Parser) parseNullLiteral() ast.Expression {
	return &ast.NullLiteral{Token: p.currentToken}
}

// parseNotExpression parses "!" as a prefix that binds more loosely than
// comparisons but tighter than "&&"/"||", per not_test's place in the
// grammar between and_test and comp.
func (p *Parser) parseNotExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.currentToken, Operator: p.currentToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(And)
	return expr
}

// parseUnaryExpression parses -x, +x and ~x, the tight-binding factor-level
// unary operators.
func (p *Parser) parseUnaryExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.currentToken, Operator: p.currentToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(Prefix)
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Token: p.currentToken, Operator: p.currentToken.Literal, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseCallExpression(fn ast.Expression) ast.Expression {
	expr := &ast.CallExpression{Token: p.currentToken, Function: fn}
	expr.Arguments = p.parseExpressionList(token.RPAREN)
	return expr
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	var list []ast.Expression

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(Lowest))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(Lowest))
	}

	if !p.expectPeek(end) {
		return nil
	}
	return list
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	lit := &ast.ArrayLiteral{Token: p.currentToken}
	lit.Elements = p.parseExpressionList(token.RBRACKET)
	return lit
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	expr := &ast.IndexExpression{Token: p.currentToken, Left: left}
	p.nextToken()
	expr.Index = p.parseExpression(Lowest)
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expr
}

// parseDotExpression parses "left.attr" into the same IndexExpression used
// for "left[expr]", with Index set to an implicit string literal naming the
// attribute (see ast.IndexExpression's doc comment).
func (p *Parser) parseDotExpression(left ast.Expression) ast.Expression {
	expr := &ast.IndexExpression{Token: p.currentToken, Left: left}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	expr.Index = &ast.StringLiteral{Token: p.currentToken, Value: p.currentToken.Literal}
	return expr
}

// parseObjectLiteral parses "{k1: v1, ..., kn: vn}". A key may be a quoted
// string or a bare identifier; both compile down to the same string
// constant (see original_source's visit_object_identifier_entry and
// visit_object_string_entry, which differ only in surface syntax).
func (p *Parser) parseObjectLiteral() ast.Expression {
	lit := &ast.ObjectLiteral{Token: p.currentToken}

	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()

		var key ast.Expression
		switch p.currentToken.Type {
		case token.STRING:
			key = &ast.StringLiteral{Token: p.currentToken, Value: p.currentToken.Literal}
		case token.IDENT:
			key = &ast.StringLiteral{Token: p.currentToken, Value: p.currentToken.Literal}
		default:
			p.errorf("expected object key, got %s", p.currentToken.Type)
			return nil
		}

		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(Lowest)

		lit.Keys = append(lit.Keys, key)
		lit.Values = append(lit.Values, value)

		if !p.peekTokenIs(token.RBRACE) && !p.expectPeek(token.COMMA) {
			return nil
		}
	}

	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return lit
}
