package smoosh

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unsafe"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/cvec"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

// OutcomeLayoutVersion identifies the field order of Outcome. Fields are only
// ever appended; a reordering bumps the version.
const OutcomeLayoutVersion = 3

// MessageInvalidUTF8 is the diagnostic for input that is not valid UTF-8.
const MessageInvalidUTF8 = "smoosh: input is not valid UTF-8"

// ErrInvalidOutcome is returned by Outcome.Validate.
var ErrInvalidOutcome = errors.New("invalid outcome")

// Status is the discriminant of an Outcome.
type Status uint8

const (
	// StatusSuccess: Bytecode, Strings and the metadata fields are valid.
	StatusSuccess Status = iota
	// StatusError: Error holds a NUL-terminated diagnostic.
	StatusError
	// StatusNotImplemented: the input used a construct the pipeline does not
	// support yet. No payload.
	StatusNotImplemented
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusNotImplemented:
		return "not_implemented"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ScriptFlags describe the compiled script.
type ScriptFlags = frontend.ScriptFlags

// Outcome is the flat result of one compilation.
type Outcome struct {
	Status Status

	Error    cvec.Vec[byte]
	Bytecode cvec.Vec[byte]
	Strings  cvec.Vec[cvec.Vec[byte]]

	MaximumStackDepth uint32
	NumICEntries      uint32

	// Appended in layout version 3.
	Lineno         uint32
	Column         uint32
	MainOffset     uintptr
	MaxFixedSlots  uint32
	BodyScopeIndex uint32
	NumTypeSets    uint32
	Flags          ScriptFlags
}

// Unimplemented reports StatusNotImplemented.
func (o *Outcome) Unimplemented() bool { return o.Status == StatusNotImplemented }

// HasError reports StatusError.
func (o *Outcome) HasError() bool { return o.Status == StatusError }

// Message returns the diagnostic without its terminating NUL, or "" when the
// Outcome carries none.
func (o *Outcome) Message() string {
	msg := o.Error.View()
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}
	return string(msg)
}

// BytecodeView borrows the bytecode. The slice is invalid after Release.
func (o *Outcome) BytecodeView() []byte {
	return o.Bytecode.View()
}

// Atoms borrows the string table. The slices are invalid after Release.
func (o *Outcome) Atoms() [][]byte {
	inner := o.Strings.View()
	if len(inner) == 0 {
		return nil
	}
	atoms := make([][]byte, len(inner))
	for i, v := range inner {
		atoms[i] = v.View()
	}
	return atoms
}

// Validate checks that only the fields valid for Status are populated.
func (o *Outcome) Validate() error {
	scalarsZero := o.MaximumStackDepth == 0 && o.NumICEntries == 0 && o.Lineno == 0 &&
		o.Column == 0 && o.MainOffset == 0 && o.MaxFixedSlots == 0 &&
		o.BodyScopeIndex == 0 && o.NumTypeSets == 0 && o.Flags == 0

	switch o.Status {
	case StatusSuccess:
		if !o.Error.IsEmpty() {
			return fmt.Errorf("%w: success carries an error message", ErrInvalidOutcome)
		}
	case StatusError:
		msg := o.Error.View()
		if len(msg) == 0 || msg[len(msg)-1] != 0 {
			return fmt.Errorf("%w: error message is not NUL-terminated", ErrInvalidOutcome)
		}
		if !o.Bytecode.IsEmpty() || !o.Strings.IsEmpty() || !scalarsZero {
			return fmt.Errorf("%w: error carries a success payload", ErrInvalidOutcome)
		}
	case StatusNotImplemented:
		if !o.Error.IsEmpty() || !o.Bytecode.IsEmpty() || !o.Strings.IsEmpty() || !scalarsZero {
			return fmt.Errorf("%w: not-implemented carries a payload", ErrInvalidOutcome)
		}
	default:
		return fmt.Errorf("%w: unknown status %d", ErrInvalidOutcome, o.Status)
	}
	return nil
}

// Release frees every buffer owned by o: the message, the bytecode, then
// each string table entry followed by the table itself.
//
// Release consumes o. Releasing the same Outcome twice, or an Outcome not
// produced by this package, violates the ownership contract; the default
// build panics with *cvec.ContractError, a smoosh_notrack build has
// undefined behaviour.
func Release(o Outcome) {
	o.Error.Release()
	o.Bytecode.Release()
	cvec.ReleaseNested(o.Strings)
}

func errorOutcome(msg string) Outcome {
	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, strings.ReplaceAll(msg, "\x00", `\0`)...)
	buf = append(buf, 0)
	return Outcome{Status: StatusError, Error: cvec.FromOwned(&buf)}
}

func notImplementedOutcome() Outcome {
	return Outcome{Status: StatusNotImplemented}
}

// successOutcome takes ownership of every buffer in res.
func successOutcome(res *frontend.EmitResult) Outcome {
	return Outcome{
		Status:            StatusSuccess,
		Bytecode:          cvec.FromOwned(&res.Bytecode),
		Strings:           cvec.FromOwnedNested(&res.Strings),
		MaximumStackDepth: res.MaximumStackDepth,
		NumICEntries:      res.NumICEntries,
		Lineno:            res.Lineno,
		Column:            res.Column,
		MainOffset:        res.MainOffset,
		MaxFixedSlots:     res.MaxFixedSlots,
		BodyScopeIndex:    res.BodyScopeIndex,
		NumTypeSets:       res.NumTypeSets,
		Flags:             res.Flags,
	}
}

// aliasedBuffers reports whether any two buffers in res share backing memory.
// Each descriptor owns its block, so a shared block would be released twice.
func aliasedBuffers(res *frontend.EmitResult) bool {
	type span struct{ lo, hi uintptr }
	spans := make([]span, 0, len(res.Strings)+1)
	add := func(b []byte) {
		if cap(b) == 0 {
			return
		}
		lo := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
		spans = append(spans, span{lo, lo + uintptr(cap(b))})
	}
	add(res.Bytecode)
	for _, s := range res.Strings {
		add(s)
	}
	slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(a.lo, b.lo) })
	var end uintptr
	for i, sp := range spans {
		if i > 0 && sp.lo < end {
			return true
		}
		end = max(end, sp.hi)
	}
	return false
}
