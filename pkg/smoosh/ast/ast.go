// Package ast defines the syntax tree exchanged between parsers and emitters.
//
// The tree covers the subset of the language the reference frontend
// understands. Parsers may produce nodes the emitter cannot lower; the
// emitter reports those as capability gaps rather than errors.
package ast

import "fmt"

// Goal selects the grammar a source text is parsed with.
type Goal int

const (
	// GoalScript parses classic scripts (default).
	GoalScript Goal = iota
	// GoalModule parses module code: import/export allowed, always strict.
	GoalModule
)

func (g Goal) String() string {
	switch g {
	case GoalScript:
		return "script"
	case GoalModule:
		return "module"
	default:
		return fmt.Sprintf("goal(%d)", int(g))
	}
}

// ParseGoal converts "script" or "module" to a Goal.
func ParseGoal(s string) (Goal, error) {
	switch s {
	case "", "script":
		return GoalScript, nil
	case "module":
		return GoalModule, nil
	default:
		return GoalScript, fmt.Errorf("unknown goal %q (want script or module)", s)
	}
}

// Position is a location in source text. Line and Column are 1-based.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is implemented by every tree node.
type Node interface {
	Pos() Position
	node()
}

// Statement is a node in statement position.
type Statement interface {
	Node
	stmt()
}

// Expression is a node in expression position.
type Expression interface {
	Node
	expr()
}

// Program is the root of a parsed source text.
type Program struct {
	Goal   Goal
	Strict bool
	Body   []Statement
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

type ExpressionStatement struct {
	At   Position
	Expr Expression
}

// DeclKind is the keyword of a variable declaration.
type DeclKind string

const (
	DeclVar   DeclKind = "var"
	DeclLet   DeclKind = "let"
	DeclConst DeclKind = "const"
)

type Declarator struct {
	At   Position
	Name string
	Init Expression // nil when absent
}

type VariableDeclaration struct {
	At           Position
	Kind         DeclKind
	Declarations []Declarator
}

type EmptyStatement struct {
	At Position
}

type BlockStatement struct {
	At   Position
	Body []Statement
}

type IfStatement struct {
	At         Position
	Test       Expression
	Consequent Statement
	Alternate  Statement // nil when absent
}

type WhileStatement struct {
	At   Position
	Test Expression
	Body Statement
}

type FunctionDeclaration struct {
	At     Position
	Name   string
	Params []string
	Body   []Statement
}

type ReturnStatement struct {
	At       Position
	Argument Expression // nil for a bare return
}

// ImportSpecifier binds Imported from the source module as Local.
// Imported is "default" for default imports and "*" for namespace imports.
type ImportSpecifier struct {
	Imported string `json:"imported"`
	Local    string `json:"local"`
}

type ImportDeclaration struct {
	At         Position
	Source     string
	Specifiers []ImportSpecifier
}

// ExportSpecifier exports Local under the name Exported.
type ExportSpecifier struct {
	Local    string `json:"local"`
	Exported string `json:"exported"`
}

// ExportDeclaration is one of: export <declaration>, export default <expr>,
// export { specifiers }.
type ExportDeclaration struct {
	At          Position
	Declaration Statement  // export var/let/const/function
	Default     Expression // export default
	Specifiers  []ExportSpecifier
}

func (s *ExpressionStatement) Pos() Position { return s.At }
func (s *VariableDeclaration) Pos() Position { return s.At }
func (s *EmptyStatement) Pos() Position      { return s.At }
func (s *BlockStatement) Pos() Position      { return s.At }
func (s *IfStatement) Pos() Position         { return s.At }
func (s *WhileStatement) Pos() Position      { return s.At }
func (s *FunctionDeclaration) Pos() Position { return s.At }
func (s *ReturnStatement) Pos() Position     { return s.At }
func (s *ImportDeclaration) Pos() Position   { return s.At }
func (s *ExportDeclaration) Pos() Position   { return s.At }

func (*ExpressionStatement) node() {}
func (*VariableDeclaration) node() {}
func (*EmptyStatement) node()      {}
func (*BlockStatement) node()      {}
func (*IfStatement) node()         {}
func (*WhileStatement) node()      {}
func (*FunctionDeclaration) node() {}
func (*ReturnStatement) node()     {}
func (*ImportDeclaration) node()   {}
func (*ExportDeclaration) node()   {}

func (*ExpressionStatement) stmt() {}
func (*VariableDeclaration) stmt() {}
func (*EmptyStatement) stmt()      {}
func (*BlockStatement) stmt()      {}
func (*IfStatement) stmt()         {}
func (*WhileStatement) stmt()      {}
func (*FunctionDeclaration) stmt() {}
func (*ReturnStatement) stmt()     {}
func (*ImportDeclaration) stmt()   {}
func (*ExportDeclaration) stmt()   {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

type NumericLiteral struct {
	At    Position
	Value float64
}

type StringLiteral struct {
	At    Position
	Value string
}

type BooleanLiteral struct {
	At    Position
	Value bool
}

type NullLiteral struct {
	At Position
}

type Identifier struct {
	At   Position
	Name string
}

// UnaryExpression applies Op ("-", "+", "!", "~", "typeof", "void") to Operand.
type UnaryExpression struct {
	At      Position
	Op      string
	Operand Expression
}

// BinaryExpression covers arithmetic, bitwise and comparison operators.
type BinaryExpression struct {
	At    Position
	Op    string
	Left  Expression
	Right Expression
}

// LogicalExpression covers the short-circuiting "&&", "||" and "??".
type LogicalExpression struct {
	At    Position
	Op    string
	Left  Expression
	Right Expression
}

type ConditionalExpression struct {
	At         Position
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

// AssignmentExpression assigns Value to the identifier Target. Op is "=" or
// a compound operator such as "+=".
type AssignmentExpression struct {
	At     Position
	Op     string
	Target *Identifier
	Value  Expression
}

type CallExpression struct {
	At        Position
	Callee    Expression
	Arguments []Expression
}

// MemberExpression is a static property access: Object.Property.
type MemberExpression struct {
	At       Position
	Object   Expression
	Property string
}

func (e *NumericLiteral) Pos() Position        { return e.At }
func (e *StringLiteral) Pos() Position         { return e.At }
func (e *BooleanLiteral) Pos() Position        { return e.At }
func (e *NullLiteral) Pos() Position           { return e.At }
func (e *Identifier) Pos() Position            { return e.At }
func (e *UnaryExpression) Pos() Position       { return e.At }
func (e *BinaryExpression) Pos() Position      { return e.At }
func (e *LogicalExpression) Pos() Position     { return e.At }
func (e *ConditionalExpression) Pos() Position { return e.At }
func (e *AssignmentExpression) Pos() Position  { return e.At }
func (e *CallExpression) Pos() Position        { return e.At }
func (e *MemberExpression) Pos() Position      { return e.At }

func (*NumericLiteral) node()        {}
func (*StringLiteral) node()         {}
func (*BooleanLiteral) node()        {}
func (*NullLiteral) node()           {}
func (*Identifier) node()            {}
func (*UnaryExpression) node()       {}
func (*BinaryExpression) node()      {}
func (*LogicalExpression) node()     {}
func (*ConditionalExpression) node() {}
func (*AssignmentExpression) node()  {}
func (*CallExpression) node()        {}
func (*MemberExpression) node()      {}

func (*NumericLiteral) expr()        {}
func (*StringLiteral) expr()         {}
func (*BooleanLiteral) expr()        {}
func (*NullLiteral) expr()           {}
func (*Identifier) expr()            {}
func (*UnaryExpression) expr()       {}
func (*BinaryExpression) expr()      {}
func (*LogicalExpression) expr()     {}
func (*ConditionalExpression) expr() {}
func (*AssignmentExpression) expr()  {}
func (*CallExpression) expr()        {}
func (*MemberExpression) expr()      {}
