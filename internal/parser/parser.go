// Package parser provides the reference source parser.
//
// It covers global code: variable declarations, function declarations,
// if/while/return, import/export in module code, and an expression grammar
// with literals, identifiers, unary and binary operators, assignment, calls
// and static member access. Constructs outside that subset are reported as
// capability gaps (frontend.ErrNotImplemented) so a host can fall back to
// another implementation; malformed text is reported as *frontend.SyntaxError.
package parser

import (
	"context"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

// Parser is the reference frontend.Parser. The zero value is ready to use.
type Parser struct{}

// New returns a reference parser.
func New() *Parser {
	return &Parser{}
}

// Parse implements frontend.Parser.
func (*Parser) Parse(ctx context.Context, text string, goal ast.Goal) (*ast.Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(text, goal)
}

// Parse parses text with the given goal.
//
// Returns:
//   - (*Program, nil): Successfully parsed
//   - (nil, *frontend.UnsupportedError): Valid construct outside the supported subset
//   - (nil, *frontend.SyntaxError): Malformed text
func Parse(text string, goal ast.Goal) (*ast.Program, error) {
	p := &parser{
		lex:     newLexer(text),
		goal:    goal,
		strict:  goal == ast.GoalModule,
		scope:   newScope(nil, true),
		exports: make(map[string]bool),
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	body, err := p.parseStatements(true)
	if err != nil {
		return nil, err
	}
	for _, ref := range p.exportRefs {
		if !p.scope.lexical[ref.name] && !p.scope.vars[ref.name] {
			return nil, frontend.Syntaxf(ref.pos, "export of undeclared binding %q", ref.name)
		}
	}
	return &ast.Program{Goal: goal, Strict: p.strict, Body: body}, nil
}

type parser struct {
	lex   *lexer
	tok   token
	ahead *token

	goal    ast.Goal
	strict  bool
	fnDepth int
	scope   *scope

	exports    map[string]bool
	exportRefs []exportRef
}

type exportRef struct {
	name string
	pos  ast.Position
}

// ---------------------------------------------------------------------------
// Token handling
// ---------------------------------------------------------------------------

func (p *parser) advance() error {
	if p.ahead != nil {
		p.tok = *p.ahead
		p.ahead = nil
		return nil
	}
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) peek() (token, error) {
	if p.ahead == nil {
		tok, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.ahead = &tok
	}
	return *p.ahead, nil
}

func (p *parser) unexpected() error {
	return frontend.Syntaxf(p.tok.pos, "unexpected %s", p.tok.describe())
}

func (p *parser) unsupported(construct string) error {
	return frontend.Unsupported(frontend.StageParse, construct, p.tok.pos)
}

func (p *parser) expect(punct string) error {
	if !p.tok.punct(punct) {
		return frontend.Syntaxf(p.tok.pos, "expected %q but found %s", punct, p.tok.describe())
	}
	return p.advance()
}

func (p *parser) expectContextual(word string) error {
	if !p.tok.is(tokIdent, word) {
		return frontend.Syntaxf(p.tok.pos, "expected %q but found %s", word, p.tok.describe())
	}
	return p.advance()
}

// consumeSemicolon applies automatic semicolon insertion.
func (p *parser) consumeSemicolon() error {
	if p.tok.punct(";") {
		return p.advance()
	}
	if p.tok.punct("}") || p.tok.kind == tokEOF || p.tok.nlBefore {
		return nil
	}
	return p.unexpected()
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

type scope struct {
	parent  *scope
	fn      bool
	lexical map[string]bool
	vars    map[string]bool
}

func newScope(parent *scope, fn bool) *scope {
	return &scope{parent: parent, fn: fn, lexical: make(map[string]bool), vars: make(map[string]bool)}
}

func (p *parser) atTopLevel() bool {
	return p.scope.parent == nil
}

func (p *parser) declareLexical(name string, pos ast.Position) error {
	if p.scope.lexical[name] || p.scope.vars[name] {
		return frontend.Syntaxf(pos, "redeclaration of %q", name)
	}
	p.scope.lexical[name] = true
	return nil
}

// declareVar hoists name to the nearest function scope, rejecting clashes
// with lexical bindings on the way.
func (p *parser) declareVar(name string, pos ast.Position) error {
	for s := p.scope; s != nil; s = s.parent {
		if s.lexical[name] {
			return frontend.Syntaxf(pos, "redeclaration of %q", name)
		}
		s.vars[name] = true
		if s.fn {
			break
		}
	}
	return nil
}

func (p *parser) declare(kind ast.DeclKind, name string, pos ast.Position) error {
	if kind == ast.DeclVar {
		return p.declareVar(name, pos)
	}
	return p.declareLexical(name, pos)
}

func (p *parser) bindingIdentifier() (string, ast.Position, error) {
	t := p.tok
	switch t.kind {
	case tokIdent:
	case tokKeyword:
		return "", t.pos, frontend.Syntaxf(t.pos, "unexpected keyword %q", t.text)
	default:
		return "", t.pos, p.unexpected()
	}
	if p.strict {
		if strictReserved[t.text] {
			return "", t.pos, frontend.Syntaxf(t.pos, "%q is a reserved identifier in strict mode", t.text)
		}
		if t.text == "eval" || t.text == "arguments" {
			return "", t.pos, frontend.Syntaxf(t.pos, "%q can't be defined or assigned to in strict mode code", t.text)
		}
	}
	if p.goal == ast.GoalModule && t.text == "await" {
		return "", t.pos, frontend.Syntaxf(t.pos, "\"await\" is a reserved identifier in module code")
	}
	return t.text, t.pos, p.advance()
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseStatements parses a statement list up to end of input (top) or a
// closing brace, honouring a leading "use strict" directive.
func (p *parser) parseStatements(top bool) ([]ast.Statement, error) {
	var body []ast.Statement
	prologue := true
	for {
		if p.tok.kind == tokEOF {
			if top {
				return body, nil
			}
			return nil, p.unexpected()
		}
		if !top && p.tok.punct("}") {
			return body, nil
		}

		directive := prologue && p.tok.kind == tokString
		raw := p.tok.text

		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)

		if directive {
			if es, ok := stmt.(*ast.ExpressionStatement); ok {
				if _, ok := es.Expr.(*ast.StringLiteral); ok {
					if raw == `"use strict"` || raw == `'use strict'` {
						p.strict = true
					}
					continue
				}
			}
		}
		prologue = false
	}
}

func (p *parser) parseStatement() (ast.Statement, error) {
	t := p.tok
	switch t.kind {
	case tokPunct:
		switch t.text {
		case ";":
			return &ast.EmptyStatement{At: t.pos}, p.advance()
		case "{":
			return p.parseBlock()
		}
	case tokKeyword:
		switch t.text {
		case "var":
			return p.parseVariable(ast.DeclVar)
		case "const":
			return p.parseVariable(ast.DeclConst)
		case "function":
			return p.parseFunction()
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "return":
			return p.parseReturn()
		case "import":
			next, err := p.peek()
			if err != nil {
				return nil, err
			}
			if next.punct("(") || next.punct(".") {
				return nil, p.unsupported("dynamic import")
			}
			return p.parseImport()
		case "export":
			return p.parseExport()
		case "with":
			if p.strict {
				return nil, frontend.Syntaxf(t.pos, "strict mode code may not contain 'with' statements")
			}
			return nil, p.unsupported("with statement")
		case "class":
			return nil, p.unsupported("class declaration")
		case "for", "do", "switch", "try", "throw", "break", "continue", "debugger":
			return nil, p.unsupported(t.text + " statement")
		}
	case tokIdent:
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case t.text == "let" && startsLetBinding(next):
			return p.parseVariable(ast.DeclLet)
		case t.text == "async" && next.keyword("function") && !next.nlBefore:
			return nil, p.unsupported("async function")
		case next.punct(":"):
			return nil, p.unsupported("labeled statement")
		}
	}
	return p.parseExpressionStatement()
}

func startsLetBinding(next token) bool {
	return next.kind == tokIdent || next.punct("[") || next.punct("{")
}

// parseSubStatement parses the body of if/while, where declarations are not
// allowed.
func (p *parser) parseSubStatement() (ast.Statement, error) {
	t := p.tok
	if t.keyword("const") {
		return nil, frontend.Syntaxf(t.pos, "lexical declaration cannot appear in a single-statement context")
	}
	if t.is(tokIdent, "let") {
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.punct("[") {
			return nil, frontend.Syntaxf(t.pos, "lexical declaration cannot appear in a single-statement context")
		}
		if next.kind == tokIdent || next.punct("{") {
			return nil, frontend.Syntaxf(t.pos, "lexical declaration cannot appear in a single-statement context")
		}
	}
	if t.keyword("function") && p.strict {
		return nil, frontend.Syntaxf(t.pos, "function declarations are not allowed in a single-statement context in strict mode")
	}
	return p.parseStatement()
}

func (p *parser) parseExpressionStatement() (ast.Statement, error) {
	pos := p.tok.pos
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeSemicolon(); err != nil {
		return nil, err
	}
	return &ast.ExpressionStatement{At: pos, Expr: expr}, nil
}

func (p *parser) parseBlock() (ast.Statement, error) {
	pos := p.tok.pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	p.scope = newScope(p.scope, false)
	body, err := p.parseStatements(false)
	p.scope = p.scope.parent
	if err != nil {
		return nil, err
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return &ast.BlockStatement{At: pos, Body: body}, nil
}

func (p *parser) parseVariable(kind ast.DeclKind) (*ast.VariableDeclaration, error) {
	decl := &ast.VariableDeclaration{At: p.tok.pos, Kind: kind}
	if err := p.advance(); err != nil {
		return nil, err
	}

	for {
		if p.tok.punct("[") || p.tok.punct("{") {
			return nil, p.unsupported("destructuring declaration")
		}
		name, pos, err := p.bindingIdentifier()
		if err != nil {
			return nil, err
		}
		if kind != ast.DeclVar && name == "let" {
			return nil, frontend.Syntaxf(pos, "\"let\" is disallowed as a lexically bound name")
		}
		if err := p.declare(kind, name, pos); err != nil {
			return nil, err
		}

		d := ast.Declarator{At: pos, Name: name}
		if p.tok.punct("=") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if d.Init, err = p.parseAssignment(); err != nil {
				return nil, err
			}
		} else if kind == ast.DeclConst {
			return nil, frontend.Syntaxf(pos, "missing = in const declaration")
		}
		decl.Declarations = append(decl.Declarations, d)

		if !p.tok.punct(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return decl, p.consumeSemicolon()
}

func (p *parser) parseFunction() (*ast.FunctionDeclaration, error) {
	fn := &ast.FunctionDeclaration{At: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.punct("*") {
		return nil, p.unsupported("generator function")
	}

	name, pos, err := p.bindingIdentifier()
	if err != nil {
		return nil, err
	}
	fn.Name = name
	if p.scope.fn {
		err = p.declareVar(name, pos)
	} else {
		err = p.declareLexical(name, pos)
	}
	if err != nil {
		return nil, err
	}

	if err := p.expect("("); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	duplicate := false
	for !p.tok.punct(")") {
		switch {
		case p.tok.punct("..."):
			return nil, p.unsupported("rest parameter")
		case p.tok.punct("[") || p.tok.punct("{"):
			return nil, p.unsupported("destructuring parameter")
		}
		param, _, err := p.bindingIdentifier()
		if err != nil {
			return nil, err
		}
		if p.tok.punct("=") {
			return nil, p.unsupported("default parameter")
		}
		duplicate = duplicate || seen[param]
		seen[param] = true
		fn.Params = append(fn.Params, param)
		if !p.tok.punct(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if !p.tok.punct("{") {
		return nil, frontend.Syntaxf(p.tok.pos, "expected \"{\" but found %s", p.tok.describe())
	}
	bodyPos := p.tok.pos
	if err := p.advance(); err != nil {
		return nil, err
	}

	outerStrict, outerScope := p.strict, p.scope
	p.scope = newScope(outerScope, true)
	for _, param := range fn.Params {
		p.scope.vars[param] = true
	}
	p.fnDepth++
	fn.Body, err = p.parseStatements(false)
	p.fnDepth--
	bodyStrict := p.strict
	p.strict, p.scope = outerStrict, outerScope
	if err != nil {
		return nil, err
	}
	if bodyStrict && duplicate {
		return nil, frontend.Syntaxf(bodyPos, "duplicate parameter names are not allowed in strict mode")
	}
	return fn, p.expect("}")
}

func (p *parser) parseParenCondition() (ast.Expression, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return test, p.expect(")")
}

func (p *parser) parseIf() (ast.Statement, error) {
	stmt := &ast.IfStatement{At: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if stmt.Test, err = p.parseParenCondition(); err != nil {
		return nil, err
	}
	if stmt.Consequent, err = p.parseSubStatement(); err != nil {
		return nil, err
	}
	if p.tok.keyword("else") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if stmt.Alternate, err = p.parseSubStatement(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseWhile() (ast.Statement, error) {
	stmt := &ast.WhileStatement{At: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if stmt.Test, err = p.parseParenCondition(); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.parseSubStatement(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseReturn() (ast.Statement, error) {
	stmt := &ast.ReturnStatement{At: p.tok.pos}
	if p.fnDepth == 0 {
		return nil, frontend.Syntaxf(stmt.At, "return not in function")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if !p.tok.punct(";") && !p.tok.punct("}") && p.tok.kind != tokEOF && !p.tok.nlBefore {
		var err error
		if stmt.Argument, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	return stmt, p.consumeSemicolon()
}

func (p *parser) checkModuleItem(what string) error {
	if p.goal != ast.GoalModule {
		return frontend.Syntaxf(p.tok.pos, "%s declarations may only appear in module code", what)
	}
	if !p.atTopLevel() {
		return frontend.Syntaxf(p.tok.pos, "%s declarations may only appear at top level of a module", what)
	}
	return nil
}

func (p *parser) parseModuleSource() (string, error) {
	if p.tok.kind != tokString {
		return "", frontend.Syntaxf(p.tok.pos, "expected module specifier but found %s", p.tok.describe())
	}
	src := p.tok.str
	return src, p.advance()
}

func (p *parser) parseImport() (ast.Statement, error) {
	if err := p.checkModuleItem("import"); err != nil {
		return nil, err
	}
	decl := &ast.ImportDeclaration{At: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var err error
	if p.tok.kind == tokString {
		if decl.Source, err = p.parseModuleSource(); err != nil {
			return nil, err
		}
		return decl, p.finishImport()
	}

	if p.tok.kind == tokIdent {
		local, pos, err := p.bindingIdentifier()
		if err != nil {
			return nil, err
		}
		if err := p.declareLexical(local, pos); err != nil {
			return nil, err
		}
		decl.Specifiers = append(decl.Specifiers, ast.ImportSpecifier{Imported: "default", Local: local})
		if p.tok.punct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if !p.tok.punct("{") && !p.tok.punct("*") {
				return nil, p.unexpected()
			}
		}
	}

	switch {
	case p.tok.punct("*"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectContextual("as"); err != nil {
			return nil, err
		}
		local, pos, err := p.bindingIdentifier()
		if err != nil {
			return nil, err
		}
		if err := p.declareLexical(local, pos); err != nil {
			return nil, err
		}
		decl.Specifiers = append(decl.Specifiers, ast.ImportSpecifier{Imported: "*", Local: local})
	case p.tok.punct("{"):
		if err := p.parseImportList(decl); err != nil {
			return nil, err
		}
	}

	if err := p.expectContextual("from"); err != nil {
		return nil, err
	}
	if decl.Source, err = p.parseModuleSource(); err != nil {
		return nil, err
	}
	return decl, p.finishImport()
}

func (p *parser) parseImportList(decl *ast.ImportDeclaration) error {
	if err := p.advance(); err != nil {
		return err
	}
	for !p.tok.punct("}") {
		if p.tok.kind == tokString {
			return p.unsupported("string module export name")
		}
		if p.tok.kind != tokIdent && p.tok.kind != tokKeyword {
			return p.unexpected()
		}
		imported := p.tok
		var local string
		var pos ast.Position
		var err error
		next, err := p.peek()
		if err != nil {
			return err
		}
		if next.is(tokIdent, "as") {
			if err := p.advance(); err != nil {
				return err
			}
			if err := p.advance(); err != nil {
				return err
			}
			local, pos, err = p.bindingIdentifier()
		} else {
			local, pos, err = p.bindingIdentifier()
		}
		if err != nil {
			return err
		}
		if err := p.declareLexical(local, pos); err != nil {
			return err
		}
		decl.Specifiers = append(decl.Specifiers, ast.ImportSpecifier{Imported: imported.text, Local: local})

		if !p.tok.punct(",") {
			break
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	return p.expect("}")
}

func (p *parser) finishImport() error {
	if (p.tok.keyword("with") || p.tok.is(tokIdent, "assert")) && !p.tok.nlBefore {
		return p.unsupported("import attributes")
	}
	return p.consumeSemicolon()
}

func (p *parser) recordExport(name string, pos ast.Position) error {
	if p.exports[name] {
		return frontend.Syntaxf(pos, "duplicate export %q", name)
	}
	p.exports[name] = true
	return nil
}

func (p *parser) parseExport() (ast.Statement, error) {
	if err := p.checkModuleItem("export"); err != nil {
		return nil, err
	}
	decl := &ast.ExportDeclaration{At: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}

	t := p.tok
	switch {
	case t.keyword("var") || t.keyword("const") || t.is(tokIdent, "let"):
		kind := ast.DeclKind(t.text)
		vd, err := p.parseVariable(kind)
		if err != nil {
			return nil, err
		}
		for _, d := range vd.Declarations {
			if err := p.recordExport(d.Name, d.At); err != nil {
				return nil, err
			}
		}
		decl.Declaration = vd
		return decl, nil

	case t.keyword("function"):
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		if err := p.recordExport(fn.Name, fn.At); err != nil {
			return nil, err
		}
		decl.Declaration = fn
		return decl, nil

	case t.keyword("class"):
		return nil, p.unsupported("class declaration")

	case t.is(tokIdent, "async"):
		return nil, p.unsupported("async function")

	case t.keyword("default"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch {
		case p.tok.keyword("function"):
			return nil, p.unsupported("export default function")
		case p.tok.keyword("class"):
			return nil, p.unsupported("class declaration")
		}
		if err := p.recordExport("default", t.pos); err != nil {
			return nil, err
		}
		var err error
		if decl.Default, err = p.parseAssignment(); err != nil {
			return nil, err
		}
		return decl, p.consumeSemicolon()

	case t.punct("*"):
		return nil, p.unsupported("re-export")

	case t.punct("{"):
		return decl, p.parseExportList(decl)
	}
	return nil, p.unexpected()
}

func (p *parser) parseExportList(decl *ast.ExportDeclaration) error {
	if err := p.advance(); err != nil {
		return err
	}
	var refs []exportRef
	for !p.tok.punct("}") {
		if p.tok.kind == tokString {
			return p.unsupported("string module export name")
		}
		if p.tok.kind != tokIdent && p.tok.kind != tokKeyword {
			return p.unexpected()
		}
		local := p.tok
		spec := ast.ExportSpecifier{Local: local.text, Exported: local.text}
		if err := p.advance(); err != nil {
			return err
		}
		if p.tok.is(tokIdent, "as") {
			if err := p.advance(); err != nil {
				return err
			}
			if p.tok.kind == tokString {
				return p.unsupported("string module export name")
			}
			if p.tok.kind != tokIdent && p.tok.kind != tokKeyword {
				return p.unexpected()
			}
			spec.Exported = p.tok.text
			if err := p.advance(); err != nil {
				return err
			}
		}
		if err := p.recordExport(spec.Exported, local.pos); err != nil {
			return err
		}
		refs = append(refs, exportRef{name: local.text, pos: local.pos})
		decl.Specifiers = append(decl.Specifiers, spec)

		if !p.tok.punct(",") {
			break
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	if p.tok.is(tokIdent, "from") {
		return p.unsupported("re-export")
	}
	for _, ref := range refs {
		if keywords[ref.name] {
			return frontend.Syntaxf(ref.pos, "unexpected keyword %q", ref.name)
		}
	}
	p.exportRefs = append(p.exportRefs, refs...)
	return p.consumeSemicolon()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *parser) parseExpression() (ast.Expression, error) {
	expr, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if p.tok.punct(",") {
		return nil, p.unsupported("comma expression")
	}
	return expr, nil
}

func (p *parser) parseAssignment() (ast.Expression, error) {
	if p.tok.kind == tokIdent {
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.punct("=>") && !next.nlBefore {
			return nil, p.unsupported("arrow function")
		}
		if p.tok.text == "async" && next.kind == tokIdent && !next.nlBefore {
			return nil, p.unsupported("async arrow function")
		}
	}

	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokPunct || !assignOps[p.tok.text] {
		return left, nil
	}

	op := p.tok.text
	target, ok := left.(*ast.Identifier)
	if !ok {
		if _, member := left.(*ast.MemberExpression); member {
			return nil, p.unsupported("property assignment")
		}
		return nil, frontend.Syntaxf(left.Pos(), "invalid assignment target")
	}
	if p.strict && (target.Name == "eval" || target.Name == "arguments") {
		return nil, frontend.Syntaxf(target.At, "%q can't be defined or assigned to in strict mode code", target.Name)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	value, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &ast.AssignmentExpression{At: left.Pos(), Op: op, Target: target, Value: value}, nil
}

func (p *parser) parseConditional() (ast.Expression, error) {
	test, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if !p.tok.punct("?") {
		return test, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	cons, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	alt, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &ast.ConditionalExpression{At: test.Pos(), Test: test, Consequent: cons, Alternate: alt}, nil
}

func (p *parser) binaryOp() (string, int) {
	if p.tok.kind != tokPunct && p.tok.kind != tokKeyword {
		return "", 0
	}
	return p.tok.text, binaryPrec[p.tok.text]
}

func (p *parser) startsUnary() bool {
	return (p.tok.kind == tokPunct || p.tok.kind == tokKeyword) && (unaryOps[p.tok.text] || p.tok.text == "delete")
}

// parseBinary is a precedence-climbing parser over binaryPrec. "**" is
// right-associative; everything else associates left.
func (p *parser) parseBinary(minPrec int) (ast.Expression, error) {
	leftUnary := p.startsUnary()
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, prec := p.binaryOp()
		if prec == 0 || prec < minPrec {
			return left, nil
		}
		if op == "**" && leftUnary {
			return nil, frontend.Syntaxf(p.tok.pos, "unparenthesized unary expression can't appear on the left-hand side of \"**\"")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		next := prec + 1
		if op == "**" {
			next = prec
		}
		right, err := p.parseBinary(next)
		if err != nil {
			return nil, err
		}
		switch op {
		case "&&", "||", "??":
			left = &ast.LogicalExpression{At: left.Pos(), Op: op, Left: left, Right: right}
		default:
			left = &ast.BinaryExpression{At: left.Pos(), Op: op, Left: left, Right: right}
		}
		leftUnary = false
	}
}

func (p *parser) parseUnary() (ast.Expression, error) {
	t := p.tok
	switch {
	case t.punct("++") || t.punct("--"):
		return nil, p.unsupported("update expression")
	case t.keyword("delete"):
		return nil, p.unsupported("delete expression")
	case t.is(tokIdent, "await") && p.goal == ast.GoalModule:
		return nil, p.unsupported("await expression")
	case (t.kind == tokPunct || t.kind == tokKeyword) && unaryOps[t.text]:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpression{At: t.pos, Op: t.text, Operand: operand}, nil
	}

	expr, err := p.parseCallMember()
	if err != nil {
		return nil, err
	}
	if (p.tok.punct("++") || p.tok.punct("--")) && !p.tok.nlBefore {
		return nil, p.unsupported("update expression")
	}
	return expr, nil
}

func (p *parser) parseCallMember() (ast.Expression, error) {
	switch {
	case p.tok.keyword("new"):
		return nil, p.unsupported("new expression")
	case p.tok.keyword("super"):
		return nil, p.unsupported("super")
	}

	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.tok.punct("."):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind == tokPrivateName {
				return nil, p.unsupported("private field")
			}
			if p.tok.kind != tokIdent && p.tok.kind != tokKeyword {
				return nil, p.unexpected()
			}
			expr = &ast.MemberExpression{At: expr.Pos(), Object: expr, Property: p.tok.text}
			if err := p.advance(); err != nil {
				return nil, err
			}
		case p.tok.punct("?."):
			return nil, p.unsupported("optional chaining")
		case p.tok.punct("["):
			return nil, p.unsupported("computed member access")
		case p.tok.kind == tokTemplate:
			return nil, p.unsupported("tagged template")
		case p.tok.punct("("):
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpression{At: expr.Pos(), Callee: expr, Arguments: args}
		default:
			return expr, nil
		}
	}
}

func (p *parser) parseArguments() ([]ast.Expression, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var args []ast.Expression
	for !p.tok.punct(")") {
		if p.tok.punct("...") {
			return nil, p.unsupported("spread argument")
		}
		arg, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.tok.punct(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return args, p.expect(")")
}

func (p *parser) parsePrimary() (ast.Expression, error) {
	t := p.tok
	switch t.kind {
	case tokNumber:
		if t.legacyOctal && p.strict {
			return nil, frontend.Syntaxf(t.pos, "octal literals are not allowed in strict mode")
		}
		return &ast.NumericLiteral{At: t.pos, Value: t.num}, p.advance()

	case tokBigInt:
		return nil, p.unsupported("BigInt literal")

	case tokString:
		if t.legacyOctal && p.strict {
			return nil, frontend.Syntaxf(t.pos, "octal escape sequences are not allowed in strict mode")
		}
		return &ast.StringLiteral{At: t.pos, Value: t.str}, p.advance()

	case tokTemplate:
		return nil, p.unsupported("template literal")

	case tokPrivateName:
		return nil, p.unsupported("private field")

	case tokIdent:
		if t.text == "async" {
			next, err := p.peek()
			if err != nil {
				return nil, err
			}
			if next.keyword("function") && !next.nlBefore {
				return nil, p.unsupported("async function")
			}
		}
		if p.strict && strictReserved[t.text] {
			return nil, frontend.Syntaxf(t.pos, "%q is a reserved identifier in strict mode", t.text)
		}
		return &ast.Identifier{At: t.pos, Name: t.text}, p.advance()

	case tokKeyword:
		switch t.text {
		case "true", "false":
			return &ast.BooleanLiteral{At: t.pos, Value: t.text == "true"}, p.advance()
		case "null":
			return &ast.NullLiteral{At: t.pos}, p.advance()
		case "this":
			return nil, p.unsupported("this")
		case "function":
			return nil, p.unsupported("function expression")
		case "class":
			return nil, p.unsupported("class expression")
		case "import":
			return nil, p.unsupported("dynamic import")
		}
		return nil, frontend.Syntaxf(t.pos, "unexpected keyword %q", t.text)

	case tokPunct:
		switch t.text {
		case "(":
			return p.parseParenthesized()
		case "[":
			return nil, p.unsupported("array literal")
		case "{":
			return nil, p.unsupported("object literal")
		case "/", "/=":
			return nil, p.unsupported("regular expression literal")
		}
	}
	return nil, p.unexpected()
}

func (p *parser) parseParenthesized() (ast.Expression, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.punct(")") {
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.punct("=>") {
			return nil, p.unsupported("arrow function")
		}
		return nil, p.unexpected()
	}
	if p.tok.punct("...") {
		return nil, p.unsupported("arrow function")
	}

	first, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	count := 1
	for p.tok.punct(",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.punct(")") {
			break
		}
		if _, err := p.parseAssignment(); err != nil {
			return nil, err
		}
		count++
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if p.tok.punct("=>") {
		return nil, p.unsupported("arrow function")
	}
	if count > 1 {
		return nil, p.unsupported("comma expression")
	}
	return first, nil
}
