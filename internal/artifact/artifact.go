// Package artifact serializes successful compilations to a deterministic
// CBOR file format (.smoo).
package artifact

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/smooshjs/smoosh-go/internal/bytecode"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
)

// Magic identifies an artifact.
const Magic = "smoosh"

var (
	// ErrNotSuccess is returned when converting an Outcome that did not
	// compile.
	ErrNotSuccess = errors.New("outcome is not a success")

	// ErrBadArtifact is returned for data that is not a compatible artifact.
	ErrBadArtifact = errors.New("not a smoosh artifact")
)

// Artifact is a host-owned copy of a successful Outcome plus the hash of the
// source it came from.
type Artifact struct {
	Magic         string   `cbor:"1,keyasint"`
	LayoutVersion uint32   `cbor:"2,keyasint"`
	SourceHash    [32]byte `cbor:"3,keyasint"`

	Bytecode []byte   `cbor:"4,keyasint"`
	Strings  [][]byte `cbor:"5,keyasint,omitempty"`

	MaximumStackDepth uint32             `cbor:"6,keyasint"`
	NumICEntries      uint32             `cbor:"7,keyasint"`
	Lineno            uint32             `cbor:"8,keyasint"`
	Column            uint32             `cbor:"9,keyasint"`
	MainOffset        uint64             `cbor:"10,keyasint"`
	MaxFixedSlots     uint32             `cbor:"11,keyasint"`
	BodyScopeIndex    uint32             `cbor:"12,keyasint"`
	NumTypeSets       uint32             `cbor:"13,keyasint"`
	Flags             smoosh.ScriptFlags `cbor:"14,keyasint"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// HashSource returns the digest stored in SourceHash.
func HashSource(source []byte) [32]byte {
	return sha256.Sum256(source)
}

// FromOutcome copies every buffer out of o. o stays owned by the caller and
// must still be released.
func FromOutcome(o *smoosh.Outcome, source []byte) (*Artifact, error) {
	if o.Status != smoosh.StatusSuccess {
		return nil, fmt.Errorf("%w: %s", ErrNotSuccess, o.Status)
	}

	a := &Artifact{
		Magic:             Magic,
		LayoutVersion:     smoosh.OutcomeLayoutVersion,
		SourceHash:        HashSource(source),
		Bytecode:          append([]byte(nil), o.BytecodeView()...),
		MaximumStackDepth: o.MaximumStackDepth,
		NumICEntries:      o.NumICEntries,
		Lineno:            o.Lineno,
		Column:            o.Column,
		MainOffset:        uint64(o.MainOffset),
		MaxFixedSlots:     o.MaxFixedSlots,
		BodyScopeIndex:    o.BodyScopeIndex,
		NumTypeSets:       o.NumTypeSets,
		Flags:             o.Flags,
	}
	for _, atom := range o.Atoms() {
		a.Strings = append(a.Strings, append([]byte(nil), atom...))
	}
	return a, nil
}

// Marshal encodes a in canonical CBOR; equal artifacts encode to equal bytes.
func Marshal(a *Artifact) ([]byte, error) {
	return encMode.Marshal(a)
}

// Unmarshal decodes and checks an artifact.
func Unmarshal(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	if a.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadArtifact, a.Magic)
	}
	if a.LayoutVersion != smoosh.OutcomeLayoutVersion {
		return nil, fmt.Errorf("%w: layout version %d, want %d", ErrBadArtifact, a.LayoutVersion, smoosh.OutcomeLayoutVersion)
	}
	return &a, nil
}

// Verify recomputes the stack metadata from the bytecode and compares it
// with the stored values.
func (a *Artifact) Verify() error {
	md, err := bytecode.Analyze(a.Bytecode)
	if err != nil {
		return fmt.Errorf("artifact bytecode: %w", err)
	}
	if md.MaxStackDepth != a.MaximumStackDepth || md.NumICEntries != a.NumICEntries || md.NumTypeSets != a.NumTypeSets {
		return fmt.Errorf("artifact metadata mismatch: stored depth=%d ics=%d typesets=%d, computed depth=%d ics=%d typesets=%d",
			a.MaximumStackDepth, a.NumICEntries, a.NumTypeSets, md.MaxStackDepth, md.NumICEntries, md.NumTypeSets)
	}
	if a.MainOffset > uint64(len(a.Bytecode)) {
		return fmt.Errorf("artifact main offset %d beyond bytecode length %d", a.MainOffset, len(a.Bytecode))
	}
	return nil
}

// Disassemble writes a listing of the bytecode.
func (a *Artifact) Disassemble(w io.Writer) error {
	return bytecode.Disassemble(w, a.Bytecode, a.Strings)
}
