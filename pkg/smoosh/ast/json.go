package ast

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidWire indicates a JSON document that does not describe a tree.
var ErrInvalidWire = errors.New("invalid ast wire format")

// wireNode is the tagged JSON form of every node. Only the fields relevant to
// Type are populated.
type wireNode struct {
	Type string   `json:"type"`
	Pos  Position `json:"pos"`

	Name     string   `json:"name,omitempty"`
	Op       string   `json:"op,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Property string   `json:"property,omitempty"`
	Params   []string `json:"params,omitempty"`
	Number   *float64 `json:"number,omitempty"`
	String   *string  `json:"string,omitempty"`
	Bool     *bool    `json:"bool,omitempty"`

	Expr        *wireNode   `json:"expr,omitempty"`
	Left        *wireNode   `json:"left,omitempty"`
	Right       *wireNode   `json:"right,omitempty"`
	Test        *wireNode   `json:"test,omitempty"`
	Consequent  *wireNode   `json:"consequent,omitempty"`
	Alternate   *wireNode   `json:"alternate,omitempty"`
	Callee      *wireNode   `json:"callee,omitempty"`
	Target      *wireNode   `json:"target,omitempty"`
	Declaration *wireNode   `json:"declaration,omitempty"`
	Body        []*wireNode `json:"body,omitempty"`
	Args        []*wireNode `json:"args,omitempty"`

	Declarations []wireDeclarator  `json:"declarations,omitempty"`
	Imports      []ImportSpecifier `json:"imports,omitempty"`
	Exports      []ExportSpecifier `json:"exports,omitempty"`
}

type wireDeclarator struct {
	Pos  Position  `json:"pos"`
	Name string    `json:"name"`
	Init *wireNode `json:"init,omitempty"`
}

type wireProgram struct {
	Goal   string      `json:"goal"`
	Strict bool        `json:"strict"`
	Body   []*wireNode `json:"body"`
}

// Encode serializes a program to its JSON wire form.
func Encode(p *Program) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil program", ErrInvalidWire)
	}
	wp := wireProgram{Goal: p.Goal.String(), Strict: p.Strict}
	for _, s := range p.Body {
		wp.Body = append(wp.Body, toWire(s))
	}
	return json.Marshal(wp)
}

// Decode parses the JSON wire form produced by Encode (or by a plugin
// speaking the same format).
func Decode(data []byte) (*Program, error) {
	var wp wireProgram
	if err := json.Unmarshal(data, &wp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWire, err)
	}
	goal, err := ParseGoal(wp.Goal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWire, err)
	}
	p := &Program{Goal: goal, Strict: wp.Strict}
	for _, w := range wp.Body {
		s, err := stmtFromWire(w)
		if err != nil {
			return nil, err
		}
		p.Body = append(p.Body, s)
	}
	return p, nil
}

func toWire(n Node) *wireNode {
	if n == nil {
		return nil
	}
	switch n := n.(type) {
	case *ExpressionStatement:
		return &wireNode{Type: "ExpressionStatement", Pos: n.At, Expr: toWire(n.Expr)}
	case *VariableDeclaration:
		w := &wireNode{Type: "VariableDeclaration", Pos: n.At, Kind: string(n.Kind)}
		for _, d := range n.Declarations {
			w.Declarations = append(w.Declarations, wireDeclarator{Pos: d.At, Name: d.Name, Init: exprToWire(d.Init)})
		}
		return w
	case *EmptyStatement:
		return &wireNode{Type: "EmptyStatement", Pos: n.At}
	case *BlockStatement:
		return &wireNode{Type: "BlockStatement", Pos: n.At, Body: stmtsToWire(n.Body)}
	case *IfStatement:
		return &wireNode{Type: "IfStatement", Pos: n.At, Test: toWire(n.Test),
			Consequent: toWire(n.Consequent), Alternate: stmtToWire(n.Alternate)}
	case *WhileStatement:
		return &wireNode{Type: "WhileStatement", Pos: n.At, Test: toWire(n.Test), Consequent: toWire(n.Body)}
	case *FunctionDeclaration:
		return &wireNode{Type: "FunctionDeclaration", Pos: n.At, Name: n.Name, Params: n.Params, Body: stmtsToWire(n.Body)}
	case *ReturnStatement:
		return &wireNode{Type: "ReturnStatement", Pos: n.At, Expr: exprToWire(n.Argument)}
	case *ImportDeclaration:
		src := n.Source
		return &wireNode{Type: "ImportDeclaration", Pos: n.At, String: &src, Imports: n.Specifiers}
	case *ExportDeclaration:
		return &wireNode{Type: "ExportDeclaration", Pos: n.At, Declaration: stmtToWire(n.Declaration),
			Expr: exprToWire(n.Default), Exports: n.Specifiers}

	case *NumericLiteral:
		v := n.Value
		return &wireNode{Type: "NumericLiteral", Pos: n.At, Number: &v}
	case *StringLiteral:
		v := n.Value
		return &wireNode{Type: "StringLiteral", Pos: n.At, String: &v}
	case *BooleanLiteral:
		v := n.Value
		return &wireNode{Type: "BooleanLiteral", Pos: n.At, Bool: &v}
	case *NullLiteral:
		return &wireNode{Type: "NullLiteral", Pos: n.At}
	case *Identifier:
		return &wireNode{Type: "Identifier", Pos: n.At, Name: n.Name}
	case *UnaryExpression:
		return &wireNode{Type: "UnaryExpression", Pos: n.At, Op: n.Op, Expr: toWire(n.Operand)}
	case *BinaryExpression:
		return &wireNode{Type: "BinaryExpression", Pos: n.At, Op: n.Op, Left: toWire(n.Left), Right: toWire(n.Right)}
	case *LogicalExpression:
		return &wireNode{Type: "LogicalExpression", Pos: n.At, Op: n.Op, Left: toWire(n.Left), Right: toWire(n.Right)}
	case *ConditionalExpression:
		return &wireNode{Type: "ConditionalExpression", Pos: n.At, Test: toWire(n.Test),
			Consequent: toWire(n.Consequent), Alternate: toWire(n.Alternate)}
	case *AssignmentExpression:
		return &wireNode{Type: "AssignmentExpression", Pos: n.At, Op: n.Op, Target: toWire(n.Target), Right: toWire(n.Value)}
	case *CallExpression:
		w := &wireNode{Type: "CallExpression", Pos: n.At, Callee: toWire(n.Callee)}
		for _, a := range n.Arguments {
			w.Args = append(w.Args, toWire(a))
		}
		return w
	case *MemberExpression:
		return &wireNode{Type: "MemberExpression", Pos: n.At, Expr: toWire(n.Object), Property: n.Property}
	}
	return &wireNode{Type: fmt.Sprintf("%T", n)}
}

// The typed-nil guards keep optional children out of the wire form.

func exprToWire(e Expression) *wireNode {
	if e == nil {
		return nil
	}
	return toWire(e)
}

func stmtToWire(s Statement) *wireNode {
	if s == nil {
		return nil
	}
	return toWire(s)
}

func stmtsToWire(list []Statement) []*wireNode {
	out := make([]*wireNode, 0, len(list))
	for _, s := range list {
		out = append(out, toWire(s))
	}
	return out
}

func stmtFromWire(w *wireNode) (Statement, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: missing statement", ErrInvalidWire)
	}
	switch w.Type {
	case "ExpressionStatement":
		e, err := exprFromWire(w.Expr)
		if err != nil {
			return nil, err
		}
		return &ExpressionStatement{At: w.Pos, Expr: e}, nil
	case "VariableDeclaration":
		kind := DeclKind(w.Kind)
		if kind != DeclVar && kind != DeclLet && kind != DeclConst {
			return nil, fmt.Errorf("%w: unknown declaration kind %q", ErrInvalidWire, w.Kind)
		}
		decl := &VariableDeclaration{At: w.Pos, Kind: kind}
		for _, d := range w.Declarations {
			init, err := optExprFromWire(d.Init)
			if err != nil {
				return nil, err
			}
			decl.Declarations = append(decl.Declarations, Declarator{At: d.Pos, Name: d.Name, Init: init})
		}
		return decl, nil
	case "EmptyStatement":
		return &EmptyStatement{At: w.Pos}, nil
	case "BlockStatement":
		body, err := stmtsFromWire(w.Body)
		if err != nil {
			return nil, err
		}
		return &BlockStatement{At: w.Pos, Body: body}, nil
	case "IfStatement":
		test, err := exprFromWire(w.Test)
		if err != nil {
			return nil, err
		}
		cons, err := stmtFromWire(w.Consequent)
		if err != nil {
			return nil, err
		}
		var alt Statement
		if w.Alternate != nil {
			if alt, err = stmtFromWire(w.Alternate); err != nil {
				return nil, err
			}
		}
		return &IfStatement{At: w.Pos, Test: test, Consequent: cons, Alternate: alt}, nil
	case "WhileStatement":
		test, err := exprFromWire(w.Test)
		if err != nil {
			return nil, err
		}
		body, err := stmtFromWire(w.Consequent)
		if err != nil {
			return nil, err
		}
		return &WhileStatement{At: w.Pos, Test: test, Body: body}, nil
	case "FunctionDeclaration":
		body, err := stmtsFromWire(w.Body)
		if err != nil {
			return nil, err
		}
		return &FunctionDeclaration{At: w.Pos, Name: w.Name, Params: w.Params, Body: body}, nil
	case "ReturnStatement":
		arg, err := optExprFromWire(w.Expr)
		if err != nil {
			return nil, err
		}
		return &ReturnStatement{At: w.Pos, Argument: arg}, nil
	case "ImportDeclaration":
		if w.String == nil {
			return nil, fmt.Errorf("%w: import without source", ErrInvalidWire)
		}
		return &ImportDeclaration{At: w.Pos, Source: *w.String, Specifiers: w.Imports}, nil
	case "ExportDeclaration":
		exp := &ExportDeclaration{At: w.Pos, Specifiers: w.Exports}
		var err error
		if w.Declaration != nil {
			if exp.Declaration, err = stmtFromWire(w.Declaration); err != nil {
				return nil, err
			}
		}
		if exp.Default, err = optExprFromWire(w.Expr); err != nil {
			return nil, err
		}
		return exp, nil
	}
	return nil, fmt.Errorf("%w: unknown statement type %q", ErrInvalidWire, w.Type)
}

func stmtsFromWire(list []*wireNode) ([]Statement, error) {
	var out []Statement
	for _, w := range list {
		s, err := stmtFromWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func optExprFromWire(w *wireNode) (Expression, error) {
	if w == nil {
		return nil, nil
	}
	return exprFromWire(w)
}

func exprFromWire(w *wireNode) (Expression, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: missing expression", ErrInvalidWire)
	}
	switch w.Type {
	case "NumericLiteral":
		if w.Number == nil {
			return nil, fmt.Errorf("%w: numeric literal without value", ErrInvalidWire)
		}
		return &NumericLiteral{At: w.Pos, Value: *w.Number}, nil
	case "StringLiteral":
		if w.String == nil {
			return nil, fmt.Errorf("%w: string literal without value", ErrInvalidWire)
		}
		return &StringLiteral{At: w.Pos, Value: *w.String}, nil
	case "BooleanLiteral":
		if w.Bool == nil {
			return nil, fmt.Errorf("%w: boolean literal without value", ErrInvalidWire)
		}
		return &BooleanLiteral{At: w.Pos, Value: *w.Bool}, nil
	case "NullLiteral":
		return &NullLiteral{At: w.Pos}, nil
	case "Identifier":
		return &Identifier{At: w.Pos, Name: w.Name}, nil
	case "UnaryExpression":
		operand, err := exprFromWire(w.Expr)
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{At: w.Pos, Op: w.Op, Operand: operand}, nil
	case "BinaryExpression", "LogicalExpression":
		left, err := exprFromWire(w.Left)
		if err != nil {
			return nil, err
		}
		right, err := exprFromWire(w.Right)
		if err != nil {
			return nil, err
		}
		if w.Type == "LogicalExpression" {
			return &LogicalExpression{At: w.Pos, Op: w.Op, Left: left, Right: right}, nil
		}
		return &BinaryExpression{At: w.Pos, Op: w.Op, Left: left, Right: right}, nil
	case "ConditionalExpression":
		test, err := exprFromWire(w.Test)
		if err != nil {
			return nil, err
		}
		cons, err := exprFromWire(w.Consequent)
		if err != nil {
			return nil, err
		}
		alt, err := exprFromWire(w.Alternate)
		if err != nil {
			return nil, err
		}
		return &ConditionalExpression{At: w.Pos, Test: test, Consequent: cons, Alternate: alt}, nil
	case "AssignmentExpression":
		target, err := exprFromWire(w.Target)
		if err != nil {
			return nil, err
		}
		id, ok := target.(*Identifier)
		if !ok {
			return nil, fmt.Errorf("%w: assignment target must be an identifier", ErrInvalidWire)
		}
		value, err := exprFromWire(w.Right)
		if err != nil {
			return nil, err
		}
		return &AssignmentExpression{At: w.Pos, Op: w.Op, Target: id, Value: value}, nil
	case "CallExpression":
		callee, err := exprFromWire(w.Callee)
		if err != nil {
			return nil, err
		}
		call := &CallExpression{At: w.Pos, Callee: callee}
		for _, a := range w.Args {
			arg, err := exprFromWire(a)
			if err != nil {
				return nil, err
			}
			call.Arguments = append(call.Arguments, arg)
		}
		return call, nil
	case "MemberExpression":
		obj, err := exprFromWire(w.Expr)
		if err != nil {
			return nil, err
		}
		return &MemberExpression{At: w.Pos, Object: obj, Property: w.Property}, nil
	}
	return nil, fmt.Errorf("%w: unknown expression type %q", ErrInvalidWire, w.Type)
}
