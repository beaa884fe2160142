package smoosh

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/cvec"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

// Compiler runs the parse and emit pipeline. It holds no per-call state and
// is safe for concurrent use.
type Compiler struct {
	logger  *slog.Logger
	parser  frontend.Parser
	emitter frontend.Emitter
	traces  *rate.Limiter
}

// New returns a Compiler using the reference parser and emitter unless
// options replace them.
func New(opts ...Option) *Compiler {
	cfg := applyOptions(opts)
	return &Compiler{
		logger:  cfg.logger,
		parser:  cfg.parser,
		emitter: cfg.emitter,
		traces:  rate.NewLimiter(cfg.traceRate, cfg.traceBurst),
	}
}

// Run compiles text and returns an Outcome the caller must pass to Release.
//
// Run never fails: invalid UTF-8 and parse or emit errors become
// StatusError, capability gaps become StatusNotImplemented, and a panic in a
// parser or emitter is reported as an internal compiler error.
func (c *Compiler) Run(ctx context.Context, text []byte, opts CompileOptions) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*cvec.ContractError); ok {
				panic(ce)
			}
			c.logger.Error("internal compiler error", "panic", fmt.Sprint(r))
			out = errorOutcome(fmt.Sprintf("smoosh: internal compiler error: %v", r))
		}
	}()

	if !utf8.Valid(text) {
		return errorOutcome(MessageInvalidUTF8)
	}

	prog, err := c.parser.Parse(ctx, string(text), opts.Goal)
	if err != nil {
		return c.failure(frontend.StageParse, err)
	}
	if prog == nil {
		return errorOutcome("smoosh: parser returned no program")
	}

	res, err := c.emitter.Emit(ctx, prog, frontend.EmitOptions{
		NoScriptRval: opts.NoScriptRval,
		Lineno:       opts.Lineno,
		Column:       opts.Column,
	})
	if err != nil {
		return c.failure(frontend.StageEmit, err)
	}
	if res == nil {
		return errorOutcome("smoosh: emitter returned no result")
	}
	if aliasedBuffers(res) {
		return errorOutcome("smoosh: emitter returned aliased buffers")
	}
	return successOutcome(res)
}

// Compile runs text and passes the Outcome to fn. The Outcome is released
// when fn returns, on every path; fn must not retain it or any view of it.
func (c *Compiler) Compile(ctx context.Context, text []byte, opts CompileOptions, fn func(*Outcome) error) error {
	out := c.Run(ctx, text, opts)
	defer Release(out)
	return fn(&out)
}

// ProbeParseScript reports whether text parses as a script. Nothing crosses
// the boundary except the borrowed input.
func (c *Compiler) ProbeParseScript(ctx context.Context, text []byte) bool {
	return c.probe(ctx, text, ast.GoalScript)
}

// ProbeParseModule reports whether text parses as a module.
func (c *Compiler) ProbeParseModule(ctx context.Context, text []byte) bool {
	return c.probe(ctx, text, ast.GoalModule)
}

func (c *Compiler) probe(ctx context.Context, text []byte, goal ast.Goal) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("internal compiler error", "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	if !utf8.Valid(text) {
		return false
	}
	_, err := c.parser.Parse(ctx, string(text), goal)
	return err == nil
}

func (c *Compiler) failure(stage frontend.Stage, err error) Outcome {
	if gap, ok := frontend.AsUnsupported(err); ok {
		g := *gap
		if g.Stage == "" {
			g.Stage = stage
		}
		c.trace(&g)
		return notImplementedOutcome()
	}
	return errorOutcome(err.Error())
}

func (c *Compiler) trace(gap *frontend.UnsupportedError) {
	if !c.traces.Allow() {
		return
	}
	c.logger.Warn("unimplemented construct",
		slog.String("stage", string(gap.Stage)),
		slog.String("construct", gap.Construct),
		slog.Int("line", gap.Pos.Line),
		slog.Int("column", gap.Pos.Column),
	)
}
