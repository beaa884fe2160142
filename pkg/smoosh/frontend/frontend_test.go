package frontend_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedParser(prog *ast.Program, err error, calls *int) frontend.Parser {
	return frontend.ParserFunc(func(ctx context.Context, text string, goal ast.Goal) (*ast.Program, error) {
		*calls++
		return prog, err
	})
}

func TestParserFunc(t *testing.T) {
	called := false
	p := frontend.ParserFunc(func(ctx context.Context, text string, goal ast.Goal) (*ast.Program, error) {
		called = true
		assert.Equal(t, "2+2", text)
		assert.Equal(t, ast.GoalModule, goal)
		return &ast.Program{Goal: goal}, nil
	})

	prog, err := p.Parse(context.Background(), "2+2", ast.GoalModule)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, ast.GoalModule, prog.Goal)
}

func TestParserChain_FallsThroughOnNotImplemented(t *testing.T) {
	var first, second int
	want := &ast.Program{}
	chain := &frontend.ParserChain{Parsers: []frontend.Parser{
		fixedParser(nil, frontend.Unsupported(frontend.StageParse, "class", ast.Position{Line: 1, Column: 1}), &first),
		nil,
		fixedParser(want, nil, &second),
	}}

	got, err := chain.Parse(context.Background(), "class A {}", ast.GoalScript)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestParserChain_StopsOnSyntaxError(t *testing.T) {
	var first, second int
	chain := &frontend.ParserChain{Parsers: []frontend.Parser{
		fixedParser(nil, frontend.Syntaxf(ast.Position{Line: 1, Column: 3}, "unexpected token"), &first),
		fixedParser(&ast.Program{}, nil, &second),
	}}

	_, err := chain.Parse(context.Background(), "2+", ast.GoalScript)
	var se *frontend.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "unexpected token", se.Msg)
	assert.Equal(t, 0, second)
}

func TestParserChain_AllGaps(t *testing.T) {
	var a, b int
	chain := &frontend.ParserChain{Parsers: []frontend.Parser{
		fixedParser(nil, frontend.Unsupported(frontend.StageParse, "class", ast.Position{}), &a),
		fixedParser(nil, frontend.Unsupported(frontend.StageParse, "with", ast.Position{}), &b),
	}}

	_, err := chain.Parse(context.Background(), "x", ast.GoalScript)
	require.ErrorIs(t, err, frontend.ErrNotImplemented)
	ue, ok := frontend.AsUnsupported(err)
	require.True(t, ok)
	assert.Equal(t, "with", ue.Construct)
}

func TestParserChain_Empty(t *testing.T) {
	_, err := (&frontend.ParserChain{}).Parse(context.Background(), "x", ast.GoalScript)
	assert.ErrorIs(t, err, frontend.ErrNotImplemented)
}

func TestParserChain_ContextCancelled(t *testing.T) {
	var calls int
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := &frontend.ParserChain{Parsers: []frontend.Parser{fixedParser(&ast.Program{}, nil, &calls)}}
	_, err := chain.Parse(ctx, "x", ast.GoalScript)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestUnsupportedError(t *testing.T) {
	err := frontend.Unsupported(frontend.StageEmit, "function declaration", ast.Position{Line: 3, Column: 7})
	assert.Equal(t, "emit: function declaration not implemented at 3:7", err.Error())
	assert.True(t, errors.Is(err, frontend.ErrNotImplemented))

	wrapped := fmt.Errorf("plugin: %w", err)
	ue, ok := frontend.AsUnsupported(wrapped)
	require.True(t, ok)
	assert.Equal(t, frontend.StageEmit, ue.Stage)
	assert.Equal(t, 3, ue.Pos.Line)

	ue, ok = frontend.AsUnsupported(fmt.Errorf("bare: %w", frontend.ErrNotImplemented))
	require.True(t, ok)
	assert.Equal(t, "unknown", ue.Construct)

	_, ok = frontend.AsUnsupported(errors.New("boom"))
	assert.False(t, ok)
}

func TestSyntaxError_NotACapabilityGap(t *testing.T) {
	err := frontend.Syntaxf(ast.Position{Line: 1, Column: 2}, "unexpected %q", ")")
	assert.Equal(t, `SyntaxError: unexpected ")" at 1:2`, err.Error())
	assert.False(t, errors.Is(err, frontend.ErrNotImplemented))
}

func TestScriptFlags_Has(t *testing.T) {
	f := frontend.FlagStrict | frontend.FlagIsModule
	assert.True(t, f.Has(frontend.FlagStrict))
	assert.True(t, f.Has(frontend.FlagStrict|frontend.FlagIsModule))
	assert.False(t, f.Has(frontend.FlagNoScriptRval))
}
