// Package frontend defines the contracts between the compile pipeline and its
// two collaborators: the parser that turns source text into an ast.Program,
// and the emitter that lowers a program into bytecode.
//
// Both collaborators report a construct they recognise but cannot handle by
// returning an error that matches ErrNotImplemented. Every other error is
// treated as a genuine failure of the input.
package frontend

import (
	"context"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// Parser turns UTF-8 source text into a syntax tree.
type Parser interface {
	// Parse parses text with the given goal. It returns an error matching
	// ErrNotImplemented for valid but unsupported constructs and a
	// *SyntaxError (or any other error) for malformed input.
	Parse(ctx context.Context, text string, goal ast.Goal) (*ast.Program, error)
}

// ParserFunc is an adapter to allow ordinary functions to be used as Parsers.
type ParserFunc func(ctx context.Context, text string, goal ast.Goal) (*ast.Program, error)

// Parse implements the Parser interface.
func (f ParserFunc) Parse(ctx context.Context, text string, goal ast.Goal) (*ast.Program, error) {
	return f(ctx, text, goal)
}

// EmitOptions control code generation.
type EmitOptions struct {
	// NoScriptRval discards the value of expression statements instead of
	// storing it as the script's completion value.
	NoScriptRval bool

	// Lineno and Column locate the first character of the source in its
	// enclosing document. Lineno defaults to 1.
	Lineno uint32
	Column uint32
}

// ScriptFlags describe properties of the compiled script.
type ScriptFlags uint32

const (
	FlagStrict ScriptFlags = 1 << iota
	FlagIsModule
	FlagHasModuleGoal
	FlagNoScriptRval
	FlagBindingsAccessedDynamically
)

// Has reports whether all bits of f2 are set in f.
func (f ScriptFlags) Has(f2 ScriptFlags) bool { return f&f2 == f2 }

// EmitResult is everything an emitter produces for one program. The slices
// are owned by the receiver once returned.
type EmitResult struct {
	Bytecode []byte
	Strings  [][]byte

	MaximumStackDepth uint32
	NumICEntries      uint32
	NumTypeSets       uint32
	MaxFixedSlots     uint32
	BodyScopeIndex    uint32
	MainOffset        uintptr

	Lineno uint32
	Column uint32
	Flags  ScriptFlags
}

// Emitter lowers a program into bytecode.
type Emitter interface {
	// Emit returns an error matching ErrNotImplemented when prog contains a
	// construct the emitter cannot lower.
	Emit(ctx context.Context, prog *ast.Program, opts EmitOptions) (*EmitResult, error)
}

// EmitterFunc is an adapter to allow ordinary functions to be used as Emitters.
type EmitterFunc func(ctx context.Context, prog *ast.Program, opts EmitOptions) (*EmitResult, error)

// Emit implements the Emitter interface.
func (f EmitterFunc) Emit(ctx context.Context, prog *ast.Program, opts EmitOptions) (*EmitResult, error) {
	return f(ctx, prog, opts)
}
