// Package emitter lowers an ast.Program into the bytecode defined by
// internal/bytecode.
//
// Only global code is supported: declarations become Def* prologue
// instructions and every name access goes through the global name
// instructions. Control flow, functions and module linkage are reported as
// capability gaps.
package emitter

import (
	"context"
	"fmt"
	"math"

	"github.com/smooshjs/smoosh-go/internal/bytecode"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

// Emitter is the reference frontend.Emitter. The zero value is ready to use.
type Emitter struct{}

// New returns a reference emitter.
func New() *Emitter {
	return &Emitter{}
}

// Emit implements frontend.Emitter.
func (*Emitter) Emit(ctx context.Context, prog *ast.Program, opts frontend.EmitOptions) (*frontend.EmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, fmt.Errorf("emitter: nil program")
	}

	e := &emitter{opts: opts, atoms: make(map[string]uint32)}
	if err := e.emitPrologue(prog.Body); err != nil {
		return nil, err
	}
	mainOffset := e.b.Len()
	for _, s := range prog.Body {
		if err := e.emitStatement(s); err != nil {
			return nil, err
		}
	}
	e.b.Op(bytecode.OpRetRval)

	code := e.b.Bytes()
	md, err := bytecode.Analyze(code)
	if err != nil {
		return nil, fmt.Errorf("emitter: produced invalid bytecode: %w", err)
	}

	res := &frontend.EmitResult{
		Bytecode:          code,
		Strings:           e.strings,
		MaximumStackDepth: md.MaxStackDepth,
		NumICEntries:      md.NumICEntries,
		NumTypeSets:       md.NumTypeSets,
		MainOffset:        uintptr(mainOffset),
		Lineno:            opts.Lineno,
		Column:            opts.Column,
		Flags:             e.flags,
	}
	if res.Lineno == 0 {
		res.Lineno = 1
	}
	if prog.Strict {
		res.Flags |= frontend.FlagStrict
	}
	if prog.Goal == ast.GoalModule {
		res.Flags |= frontend.FlagIsModule | frontend.FlagHasModuleGoal
	}
	if opts.NoScriptRval {
		res.Flags |= frontend.FlagNoScriptRval
	}
	return res, nil
}

type emitter struct {
	b       bytecode.Builder
	opts    frontend.EmitOptions
	atoms   map[string]uint32
	strings [][]byte
	flags   frontend.ScriptFlags
}

func (e *emitter) atom(name string) uint32 {
	if idx, ok := e.atoms[name]; ok {
		return idx
	}
	idx := uint32(len(e.strings))
	e.atoms[name] = idx
	e.strings = append(e.strings, []byte(name))
	return idx
}

func gap(construct string, n ast.Node) error {
	return frontend.Unsupported(frontend.StageEmit, construct, n.Pos())
}

// emitPrologue defines every global binding before the body runs. var
// declarations nested in blocks are hoisted too.
func (e *emitter) emitPrologue(body []ast.Statement) error {
	defined := make(map[string]bool)
	var walk func([]ast.Statement) error
	walk = func(list []ast.Statement) error {
		for _, s := range list {
			switch s := s.(type) {
			case *ast.VariableDeclaration:
				op := bytecode.OpDefVar
				switch s.Kind {
				case ast.DeclLet:
					op = bytecode.OpDefLet
				case ast.DeclConst:
					op = bytecode.OpDefConst
				}
				for _, d := range s.Declarations {
					if defined[d.Name] {
						continue
					}
					defined[d.Name] = true
					e.b.Atom(op, e.atom(d.Name))
				}
			case *ast.BlockStatement:
				if err := walk(s.Body); err != nil {
					return err
				}
			case *ast.FunctionDeclaration:
				return gap("function declaration", s)
			}
		}
		return nil
	}
	return walk(body)
}

func (e *emitter) emitStatement(s ast.Statement) error {
	switch s := s.(type) {
	case *ast.ExpressionStatement:
		if err := e.emitExpression(s.Expr); err != nil {
			return err
		}
		if e.opts.NoScriptRval {
			e.b.Op(bytecode.OpPop)
		} else {
			e.b.Op(bytecode.OpSetRval)
		}
		return nil

	case *ast.VariableDeclaration:
		return e.emitDeclaration(s)

	case *ast.EmptyStatement:
		return nil

	case *ast.BlockStatement:
		for _, inner := range s.Body {
			if vd, ok := inner.(*ast.VariableDeclaration); ok && vd.Kind != ast.DeclVar {
				return gap("block-scoped declaration", vd)
			}
		}
		for _, inner := range s.Body {
			if err := e.emitStatement(inner); err != nil {
				return err
			}
		}
		return nil

	case *ast.IfStatement:
		return gap("if statement", s)
	case *ast.WhileStatement:
		return gap("while statement", s)
	case *ast.FunctionDeclaration:
		return gap("function declaration", s)
	case *ast.ReturnStatement:
		return gap("return statement", s)
	case *ast.ImportDeclaration:
		return gap("import declaration", s)
	case *ast.ExportDeclaration:
		return gap("export declaration", s)
	}
	return gap(fmt.Sprintf("statement %T", s), s)
}

func (e *emitter) emitDeclaration(vd *ast.VariableDeclaration) error {
	for _, d := range vd.Declarations {
		name := e.atom(d.Name)
		if vd.Kind == ast.DeclVar {
			if d.Init == nil {
				continue
			}
			e.b.Atom(bytecode.OpBindGName, name)
			if err := e.emitExpression(d.Init); err != nil {
				return err
			}
			e.b.Atom(bytecode.OpSetGName, name)
			e.b.Op(bytecode.OpPop)
			continue
		}

		if d.Init == nil {
			e.b.Op(bytecode.OpUndefined)
		} else if err := e.emitExpression(d.Init); err != nil {
			return err
		}
		e.b.Atom(bytecode.OpInitGLexical, name)
		e.b.Op(bytecode.OpPop)
	}
	return nil
}

var unaryOps = map[string]bytecode.Opcode{
	"-":      bytecode.OpNeg,
	"+":      bytecode.OpPos,
	"!":      bytecode.OpNot,
	"~":      bytecode.OpBitNot,
	"typeof": bytecode.OpTypeof,
	"void":   bytecode.OpVoid,
}

var binaryOps = map[string]bytecode.Opcode{
	"+":          bytecode.OpAdd,
	"-":          bytecode.OpSub,
	"*":          bytecode.OpMul,
	"/":          bytecode.OpDiv,
	"%":          bytecode.OpMod,
	"**":         bytecode.OpPow,
	"|":          bytecode.OpBitOr,
	"^":          bytecode.OpBitXor,
	"&":          bytecode.OpBitAnd,
	"<<":         bytecode.OpLsh,
	">>":         bytecode.OpRsh,
	">>>":        bytecode.OpUrsh,
	"==":         bytecode.OpEq,
	"!=":         bytecode.OpNe,
	"===":        bytecode.OpStrictEq,
	"!==":        bytecode.OpStrictNe,
	"<":          bytecode.OpLt,
	"<=":         bytecode.OpLe,
	">":          bytecode.OpGt,
	">=":         bytecode.OpGe,
	"in":         bytecode.OpIn,
	"instanceof": bytecode.OpInstanceof,
}

func (e *emitter) emitExpression(x ast.Expression) error {
	switch x := x.(type) {
	case *ast.NumericLiteral:
		e.emitNumber(x.Value)
	case *ast.StringLiteral:
		e.b.Atom(bytecode.OpString, e.atom(x.Value))
	case *ast.BooleanLiteral:
		if x.Value {
			e.b.Op(bytecode.OpTrue)
		} else {
			e.b.Op(bytecode.OpFalse)
		}
	case *ast.NullLiteral:
		e.b.Op(bytecode.OpNull)
	case *ast.Identifier:
		e.b.Atom(bytecode.OpGetGName, e.atom(x.Name))

	case *ast.UnaryExpression:
		op, ok := unaryOps[x.Op]
		if !ok {
			return gap("unary operator "+x.Op, x)
		}
		if err := e.emitExpression(x.Operand); err != nil {
			return err
		}
		e.b.Op(op)

	case *ast.BinaryExpression:
		op, ok := binaryOps[x.Op]
		if !ok {
			return gap("binary operator "+x.Op, x)
		}
		if err := e.emitExpression(x.Left); err != nil {
			return err
		}
		if err := e.emitExpression(x.Right); err != nil {
			return err
		}
		e.b.Op(op)

	case *ast.AssignmentExpression:
		if x.Op != "=" {
			return gap("compound assignment", x)
		}
		name := e.atom(x.Target.Name)
		e.b.Atom(bytecode.OpBindGName, name)
		if err := e.emitExpression(x.Value); err != nil {
			return err
		}
		e.b.Atom(bytecode.OpSetGName, name)

	case *ast.CallExpression:
		return e.emitCall(x)

	case *ast.MemberExpression:
		if err := e.emitExpression(x.Object); err != nil {
			return err
		}
		e.b.Atom(bytecode.OpGetProp, e.atom(x.Property))

	case *ast.LogicalExpression:
		return gap("logical expression", x)
	case *ast.ConditionalExpression:
		return gap("conditional expression", x)
	default:
		return gap(fmt.Sprintf("expression %T", x), x)
	}
	return nil
}

// emitCall pushes callee and this, then the arguments. A method call keeps
// the receiver as this: obj; Dup; GetProp; Swap.
func (e *emitter) emitCall(call *ast.CallExpression) error {
	if len(call.Arguments) > math.MaxUint16 {
		return gap("call with more than 65535 arguments", call)
	}

	switch callee := call.Callee.(type) {
	case *ast.MemberExpression:
		if err := e.emitExpression(callee.Object); err != nil {
			return err
		}
		e.b.Op(bytecode.OpDup)
		e.b.Atom(bytecode.OpGetProp, e.atom(callee.Property))
		e.b.Op(bytecode.OpSwap)
	default:
		if id, ok := callee.(*ast.Identifier); ok && id.Name == "eval" {
			e.flags |= frontend.FlagBindingsAccessedDynamically
		}
		if err := e.emitExpression(call.Callee); err != nil {
			return err
		}
		e.b.Op(bytecode.OpUndefined)
	}

	for _, arg := range call.Arguments {
		if err := e.emitExpression(arg); err != nil {
			return err
		}
	}
	e.b.Call(uint16(len(call.Arguments)))
	return nil
}

// emitNumber picks the shortest encoding. Negative zero needs Double to
// keep its sign.
func (e *emitter) emitNumber(v float64) {
	isInt := v == math.Trunc(v) && !math.IsInf(v, 0) && !(v == 0 && math.Signbit(v))
	switch {
	case isInt && v == 0:
		e.b.Op(bytecode.OpZero)
	case v == 1:
		e.b.Op(bytecode.OpOne)
	case isInt && v >= math.MinInt8 && v <= math.MaxInt8:
		e.b.Int8(int8(v))
	case isInt && v >= math.MinInt32 && v <= math.MaxInt32:
		e.b.Int32(int32(v))
	default:
		e.b.Double(v)
	}
}
