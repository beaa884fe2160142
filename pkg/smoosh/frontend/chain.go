package frontend

import (
	"context"
	"errors"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// ParserChain tries parsers in order. A parser that reports ErrNotImplemented
// hands the input to the next one; the first success or genuine error ends
// the chain.
type ParserChain struct {
	Parsers []Parser
}

// Parse implements the Parser interface.
//
// When every parser reports a capability gap, the last gap is returned so the
// caller still sees a NotImplemented outcome. An empty chain reports
// ErrNotImplemented.
func (c *ParserChain) Parse(ctx context.Context, text string, goal ast.Goal) (*ast.Program, error) {
	lastGap := error(&UnsupportedError{Stage: StageParse, Construct: "parser"})

	for _, p := range c.Parsers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Skip nil parsers
		if p == nil {
			continue
		}

		prog, err := p.Parse(ctx, text, goal)
		if err == nil {
			return prog, nil
		}
		if !errors.Is(err, ErrNotImplemented) {
			return nil, err
		}
		lastGap = err
	}

	return nil, lastGap
}
