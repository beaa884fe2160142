package wasm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

const (
	// DefaultTimeout bounds one parse call.
	DefaultTimeout = 500 * time.Millisecond

	// MaxInputSize bounds the source handed to a plugin (4MB).
	MaxInputSize = 4 * 1024 * 1024

	// MaxOutputSize bounds the response envelope read back (16MB).
	MaxOutputSize = 16 * 1024 * 1024
)

// Response codes a plugin may set on a failed envelope.
const (
	CodeNotImplemented = "not_implemented"
	CodeSyntax         = "syntax_error"
)

// Parser implements frontend.Parser with a WebAssembly plugin. Each Parse
// call instantiates a fresh module, so a Parser is safe for concurrent use.
type Parser struct {
	compiled      atomic.Pointer[compiledModule]
	timeout       atomic.Int64
	logger        *slog.Logger
	moduleCounter atomic.Uint64
}

var _ frontend.Parser = (*Parser)(nil)

// Load compiles the plugin at path and checks its ABI version.
func Load(ctx context.Context, path string, logger *slog.Logger) (*Parser, error) {
	c, err := compileFile(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load wasm: %w", err)
	}
	return newParser(ctx, c, logger)
}

func newParser(ctx context.Context, c *compiledModule, logger *slog.Logger) (*Parser, error) {
	mod, err := c.runtime.InstantiateModule(ctx, c.compiled, wazero.NewModuleConfig().WithName("plugin-init"))
	if err != nil {
		c.close(context.Background())
		return nil, &RuntimeError{Operation: "initial module instantiation", Err: err}
	}
	results, err := mod.ExportedFunction("abi_version").Call(ctx)
	mod.Close(ctx)
	if err != nil {
		c.close(context.Background())
		return nil, &RuntimeError{Operation: "abi_version call", Err: err}
	}
	if len(results) == 0 {
		c.close(context.Background())
		return nil, &ABIError{Export: "abi_version", Reason: "no return value"}
	}
	if v := uint32(results[0]); v != ExpectedABIVersion {
		c.close(context.Background())
		return nil, fmt.Errorf("%w: plugin speaks %d, host speaks %d", ErrABIVersionMismatch, v, ExpectedABIVersion)
	}

	p := &Parser{logger: logger}
	p.compiled.Store(c)
	p.timeout.Store(int64(DefaultTimeout))
	return p, nil
}

// Parse hands text to the plugin and decodes the returned tree.
func (p *Parser) Parse(ctx context.Context, text string, goal ast.Goal) (*ast.Program, error) {
	c := p.compiled.Load()
	if c == nil {
		return nil, ErrClosed
	}
	if len(text) > MaxInputSize {
		return nil, fmt.Errorf("input too large: %d bytes (max %d)", len(text), MaxInputSize)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.timeout.Load()))
	defer cancel()

	name := fmt.Sprintf("plugin-%d", p.moduleCounter.Add(1))
	mod, err := c.runtime.InstantiateModule(ctx, c.compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, p.callError(ctx, "module instantiation", err)
	}
	defer mod.Close(context.Background())

	out, err := p.call(ctx, mod, []byte(text), goal)
	if err != nil {
		return nil, err
	}
	return decodeResponse(out)
}

// call copies the input into guest memory allocated by the guest, invokes
// parse, and returns a host-owned copy of the response. Both guest buffers
// are handed back through free.
func (p *Parser) call(ctx context.Context, mod api.Module, input []byte, goal ast.Goal) ([]byte, error) {
	alloc := mod.ExportedFunction("alloc")
	free := mod.ExportedFunction("free")

	results, err := alloc.Call(ctx, uint64(len(input)))
	if err != nil {
		return nil, p.callError(ctx, "alloc call", err)
	}
	if len(results) == 0 {
		return nil, &ABIError{Export: "alloc", Reason: "no return value"}
	}
	inPtr := uint32(results[0])
	if len(input) > 0 && !mod.Memory().Write(inPtr, input) {
		return nil, &ABIError{Export: "alloc", Reason: "returned buffer outside memory"}
	}

	results, err = mod.ExportedFunction("parse").Call(ctx, uint64(inPtr), uint64(len(input)), uint64(goal))
	if err != nil {
		return nil, p.callError(ctx, "parse call", err)
	}
	_, _ = free.Call(ctx, uint64(inPtr), uint64(len(input)))
	if len(results) == 0 {
		return nil, &ABIError{Export: "parse", Reason: "no return value"}
	}

	// (out_len << 32) | out_ptr
	packed := results[0]
	outPtr := uint32(packed)
	outLen := uint32(packed >> 32)
	if outLen > MaxOutputSize {
		return nil, fmt.Errorf("plugin output too large: %d bytes (max %d)", outLen, MaxOutputSize)
	}

	view, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, &ABIError{Export: "parse", Reason: "response outside memory"}
	}
	// Read returns a view into guest memory; copy before free.
	out := make([]byte, len(view))
	copy(out, view)
	_, _ = free.Call(ctx, uint64(outPtr), uint64(outLen))
	return out, nil
}

func (p *Parser) callError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		if p.logger != nil {
			p.logger.Warn("plugin timed out", "operation", op, "timeout", time.Duration(p.timeout.Load()))
		}
		return ErrTimeout
	case nil:
		return &RuntimeError{Operation: op, Err: err}
	default:
		return ctx.Err()
	}
}

type response struct {
	OK      bool            `json:"ok"`
	Program json.RawMessage `json:"program,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	Line    int             `json:"line,omitempty"`
	Column  int             `json:"column,omitempty"`
}

// decodeResponse maps the plugin envelope onto the frontend error taxonomy.
func decodeResponse(data []byte) (*ast.Program, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}

	if !resp.OK {
		pos := ast.Position{Line: resp.Line, Column: resp.Column}
		switch resp.Code {
		case CodeNotImplemented:
			construct := resp.Error
			if construct == "" {
				construct = "unknown"
			}
			return nil, frontend.Unsupported(frontend.StageParse, construct, pos)
		case CodeSyntax:
			return nil, frontend.Syntaxf(pos, "%s", resp.Error)
		}
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &PluginError{Code: resp.Code, Message: msg}
	}

	if len(resp.Program) == 0 {
		return nil, &ABIError{Export: "parse", Reason: "ok response without program"}
	}
	prog, err := ast.Decode(resp.Program)
	if err != nil {
		return nil, fmt.Errorf("plugin returned %w", err)
	}
	return prog, nil
}

// Close releases the compiled plugin. Safe to call multiple times; Parse
// returns ErrClosed afterwards.
func (p *Parser) Close() error {
	c := p.compiled.Swap(nil)
	if c == nil {
		return nil
	}
	return c.close(context.Background())
}

// SetTimeout sets the per-call execution timeout.
func (p *Parser) SetTimeout(timeout time.Duration) {
	p.timeout.Store(int64(timeout))
}
