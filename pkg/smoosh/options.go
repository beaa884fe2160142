package smoosh

import (
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/smooshjs/smoosh-go/internal/emitter"
	"github.com/smooshjs/smoosh-go/internal/parser"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

// Default rate for "unimplemented construct" warnings.
const (
	DefaultTraceRate  = rate.Limit(10)
	DefaultTraceBurst = 20
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// CompileOptions control a single compilation.
type CompileOptions struct {
	// NoScriptRval discards the value of expression statements.
	NoScriptRval bool

	// Goal selects script or module grammar. Default: script.
	Goal ast.Goal

	// Lineno and Column locate the source in its enclosing document.
	// Lineno 0 is treated as 1.
	Lineno uint32
	Column uint32
}

// Option configures a Compiler using the functional options pattern.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	parser     frontend.Parser
	emitter    frontend.Emitter
	traceRate  rate.Limit
	traceBurst int
}

func defaultConfig() *config {
	return &config{
		logger:     discardLogger,
		parser:     parser.New(),
		emitter:    emitter.New(),
		traceRate:  DefaultTraceRate,
		traceBurst: DefaultTraceBurst,
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithLogger sets the logger receiving diagnostic traces.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = discardLogger
		}
		c.logger = logger
	}
}

// WithParser replaces the reference parser.
// If p is nil, this option has no effect.
func WithParser(p frontend.Parser) Option {
	return func(c *config) {
		if p != nil {
			c.parser = p
		}
	}
}

// WithParsers tries each parser in order, falling through on capability
// gaps. At least one parser is required.
func WithParsers(parsers ...frontend.Parser) Option {
	return func(c *config) {
		if len(parsers) > 0 {
			c.parser = &frontend.ParserChain{Parsers: parsers}
		}
	}
}

// WithEmitter replaces the reference emitter.
// If e is nil, this option has no effect.
func WithEmitter(e frontend.Emitter) Option {
	return func(c *config) {
		if e != nil {
			c.emitter = e
		}
	}
}

// WithTraceRateLimit bounds how often capability gaps are logged.
// Use rate.Inf to log every gap.
func WithTraceRateLimit(limit rate.Limit, burst int) Option {
	return func(c *config) {
		c.traceRate = limit
		c.traceBurst = burst
	}
}

// ReferenceParser returns the built-in parser, for composing chains with
// WithParsers.
func ReferenceParser() frontend.Parser {
	return parser.New()
}
