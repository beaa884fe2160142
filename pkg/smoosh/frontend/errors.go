package frontend

import (
	"errors"
	"fmt"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
)

// ErrNotImplemented is matched by errors reporting a valid construct that a
// parser or emitter does not support yet.
var ErrNotImplemented = errors.New("not implemented")

// Stage names the pipeline stage that produced an error.
type Stage string

const (
	StageParse Stage = "parse"
	StageEmit  Stage = "emit"
)

// UnsupportedError reports a capability gap at a source position.
type UnsupportedError struct {
	Stage     Stage
	Construct string
	Pos       ast.Position
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s not implemented at %s", e.Stage, e.Construct, e.Pos)
}

// Is makes errors.Is(err, ErrNotImplemented) true.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrNotImplemented
}

// Unsupported is shorthand for constructing an *UnsupportedError.
func Unsupported(stage Stage, construct string, pos ast.Position) error {
	return &UnsupportedError{Stage: stage, Construct: construct, Pos: pos}
}

// SyntaxError reports malformed source text.
type SyntaxError struct {
	Pos ast.Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("SyntaxError: %s at %s", e.Msg, e.Pos)
}

// Syntaxf formats a *SyntaxError.
func Syntaxf(pos ast.Position, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// AsUnsupported extracts the capability gap carried by err, if any. Errors
// that match ErrNotImplemented without an *UnsupportedError in their chain
// yield a construct of "unknown".
func AsUnsupported(err error) (*UnsupportedError, bool) {
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		return ue, true
	}
	if errors.Is(err, ErrNotImplemented) {
		return &UnsupportedError{Construct: "unknown"}, true
	}
	return nil, false
}
