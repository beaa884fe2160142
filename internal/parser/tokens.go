package parser

import (
	"fmt"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokKeyword
	tokNumber
	tokBigInt
	tokString
	tokTemplate
	tokPunct
	tokPrivateName
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokKeyword:
		return "keyword"
	case tokNumber, tokBigInt:
		return "number"
	case tokString:
		return "string"
	case tokTemplate:
		return "template"
	case tokPunct:
		return "punctuator"
	case tokPrivateName:
		return "private name"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

type token struct {
	kind tokenKind
	text string // source text: name, keyword, punctuator or raw literal
	str  string // cooked value of a string literal
	num  float64
	pos  ast.Position

	// nlBefore is set when a line terminator separates this token from the
	// previous one. Automatic semicolon insertion depends on it.
	nlBefore bool

	// legacyOctal marks 017-style numbers and \0NN escapes, which strict
	// code rejects.
	legacyOctal bool
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) punct(text string) bool { return t.is(tokPunct, text) }

func (t token) keyword(text string) bool { return t.is(tokKeyword, text) }

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return "string literal"
	case tokNumber, tokBigInt:
		return "numeric literal"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// keywords are reserved in every context.
var keywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true,
}

// strictReserved are identifiers only in sloppy code.
var strictReserved = map[string]bool{
	"implements": true, "interface": true, "let": true, "package": true,
	"private": true, "protected": true, "public": true, "static": true,
	"yield": true,
}

// punctuators ordered longest first so the lexer takes the maximal munch.
var punctuators = []string{
	">>>=",
	"...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
	"{", "}", "(", ")", "[", "]", ";", ",", "<", ">", "+", "-", "*", "/",
	"%", "&", "|", "^", "!", "~", "?", ":", "=", ".", "@",
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true, "|=": true,
	"^=": true, "&&=": true, "||=": true, "??=": true,
}

// binaryPrec is the binding power of each binary operator. Higher binds
// tighter.
var binaryPrec = map[string]int{
	"??": 1,
	"||": 2,
	"&&": 3,
	"|":  4,
	"^":  5,
	"&":  6,
	"==": 7, "!=": 7, "===": 7, "!==": 7,
	"<": 8, ">": 8, "<=": 8, ">=": 8, "instanceof": 8, "in": 8,
	"<<": 9, ">>": 9, ">>>": 9,
	"+": 10, "-": 10,
	"*": 11, "/": 11, "%": 11,
	"**": 12,
}

var unaryOps = map[string]bool{
	"-": true, "+": true, "!": true, "~": true, "typeof": true, "void": true,
}
