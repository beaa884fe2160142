package ast_test

import (
	"errors"
	"testing"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(line, col int) ast.Position {
	return ast.Position{Offset: col - 1, Line: line, Column: col}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	prog := &ast.Program{
		Goal:   ast.GoalModule,
		Strict: true,
		Body: []ast.Statement{
			&ast.ImportDeclaration{At: pos(1, 1), Source: "./dep.js", Specifiers: []ast.ImportSpecifier{
				{Imported: "default", Local: "dep"},
			}},
			&ast.VariableDeclaration{At: pos(2, 1), Kind: ast.DeclLet, Declarations: []ast.Declarator{
				{At: pos(2, 5), Name: "x", Init: &ast.BinaryExpression{
					At: pos(2, 9), Op: "+",
					Left:  &ast.NumericLiteral{At: pos(2, 9), Value: 2},
					Right: &ast.NumericLiteral{At: pos(2, 11), Value: 0.5},
				}},
				{At: pos(2, 16), Name: "y"},
			}},
			&ast.ExpressionStatement{At: pos(3, 1), Expr: &ast.CallExpression{
				At:     pos(3, 1),
				Callee: &ast.MemberExpression{At: pos(3, 1), Object: &ast.Identifier{At: pos(3, 1), Name: "console"}, Property: "log"},
				Arguments: []ast.Expression{
					&ast.StringLiteral{At: pos(3, 13), Value: "hi"},
					&ast.BooleanLiteral{At: pos(3, 19), Value: false},
					&ast.NullLiteral{At: pos(3, 26)},
				},
			}},
			&ast.IfStatement{At: pos(4, 1),
				Test:       &ast.UnaryExpression{At: pos(4, 5), Op: "!", Operand: &ast.Identifier{At: pos(4, 6), Name: "x"}},
				Consequent: &ast.BlockStatement{At: pos(4, 9), Body: []ast.Statement{&ast.EmptyStatement{At: pos(4, 10)}}},
			},
			&ast.FunctionDeclaration{At: pos(5, 1), Name: "f", Params: []string{"a"}, Body: []ast.Statement{
				&ast.ReturnStatement{At: pos(5, 17), Argument: &ast.ConditionalExpression{
					At:         pos(5, 24),
					Test:       &ast.LogicalExpression{At: pos(5, 24), Op: "&&", Left: &ast.Identifier{At: pos(5, 24), Name: "a"}, Right: &ast.Identifier{At: pos(5, 29), Name: "y"}},
					Consequent: &ast.NumericLiteral{At: pos(5, 33), Value: 1},
					Alternate:  &ast.AssignmentExpression{At: pos(5, 37), Op: "=", Target: &ast.Identifier{At: pos(5, 37), Name: "y"}, Value: &ast.NumericLiteral{At: pos(5, 41), Value: 0}},
				}},
			}},
			&ast.WhileStatement{At: pos(6, 1), Test: &ast.BooleanLiteral{At: pos(6, 8), Value: true}, Body: &ast.ReturnStatement{At: pos(6, 14)}},
			&ast.ExportDeclaration{At: pos(7, 1), Specifiers: []ast.ExportSpecifier{{Local: "x", Exported: "x"}}},
			&ast.ExportDeclaration{At: pos(8, 1), Default: &ast.Identifier{At: pos(8, 16), Name: "f"}},
		},
	}

	data, err := ast.Encode(prog)
	require.NoError(t, err)

	got, err := ast.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, prog, got)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{`},
		{"bad goal", `{"goal":"worker","body":[]}`},
		{"unknown statement", `{"goal":"script","body":[{"type":"ForStatement"}]}`},
		{"unknown expression", `{"goal":"script","body":[{"type":"ExpressionStatement","expr":{"type":"ThisExpression"}}]}`},
		{"missing expression", `{"goal":"script","body":[{"type":"ExpressionStatement"}]}`},
		{"number without value", `{"goal":"script","body":[{"type":"ExpressionStatement","expr":{"type":"NumericLiteral"}}]}`},
		{"member assignment", `{"goal":"script","body":[{"type":"ExpressionStatement","expr":{"type":"AssignmentExpression","op":"=","target":{"type":"NullLiteral"},"right":{"type":"NullLiteral"}}}]}`},
		{"bad declaration kind", `{"goal":"script","body":[{"type":"VariableDeclaration","kind":"auto"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ast.Decode([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ast.ErrInvalidWire), "got %v", err)
		})
	}
}

func TestEncode_NilProgram(t *testing.T) {
	_, err := ast.Encode(nil)
	assert.ErrorIs(t, err, ast.ErrInvalidWire)
}

func TestParseGoal(t *testing.T) {
	g, err := ast.ParseGoal("")
	require.NoError(t, err)
	assert.Equal(t, ast.GoalScript, g)

	g, err = ast.ParseGoal("module")
	require.NoError(t, err)
	assert.Equal(t, ast.GoalModule, g)
	assert.Equal(t, "module", g.String())

	_, err = ast.ParseGoal("worker")
	assert.Error(t, err)
}
