package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownOpcode indicates a byte that is not a defined opcode.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrTruncated indicates an instruction whose operand runs past the end
	// of the code.
	ErrTruncated = errors.New("truncated instruction")

	// ErrStackUnderflow indicates an instruction popping more values than
	// the stack holds at that point.
	ErrStackUnderflow = errors.New("stack underflow")
)

// DecodeError locates a malformed instruction.
type DecodeError struct {
	Offset int
	Op     Opcode
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bytecode: %s at offset %d (%s)", e.Err, e.Offset, e.Op)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Instruction is one decoded instruction.
type Instruction struct {
	Offset  int
	Op      Opcode
	Operand []byte // raw operand bytes, aliasing the code
}

// Atom returns the string table index of an atom operand.
func (in Instruction) Atom() uint32 {
	return binary.LittleEndian.Uint32(in.Operand)
}

// Argc returns the argument count of OpCall.
func (in Instruction) Argc() uint16 {
	return binary.LittleEndian.Uint16(in.Operand)
}

// Int returns the value of OpInt8 or OpInt32.
func (in Instruction) Int() int32 {
	if in.Op == OpInt8 {
		return int32(int8(in.Operand[0]))
	}
	return int32(binary.LittleEndian.Uint32(in.Operand))
}

// Float returns the value of OpDouble.
func (in Instruction) Float() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(in.Operand))
}

// Pops returns the number of values the instruction pops.
func (in Instruction) Pops() int {
	if in.Op == OpCall {
		return int(in.Argc()) + 2
	}
	return infoTable[in.Op].Pops
}

// Decode decodes the instruction at offset.
func Decode(code []byte, offset int) (Instruction, error) {
	op := Opcode(code[offset])
	info, ok := infoTable[op]
	if !ok {
		return Instruction{}, &DecodeError{Offset: offset, Op: op, Err: ErrUnknownOpcode}
	}
	end := offset + info.Length
	if end > len(code) {
		return Instruction{}, &DecodeError{Offset: offset, Op: op, Err: ErrTruncated}
	}
	return Instruction{Offset: offset, Op: op, Operand: code[offset+1 : end]}, nil
}

// Metadata is derived entirely from the instruction stream.
type Metadata struct {
	MaxStackDepth uint32
	NumICEntries  uint32
	NumTypeSets   uint32
}

// Analyze walks code once and computes its metadata. The reference emitter
// produces straight-line code, so a single linear pass sees every stack
// state.
func Analyze(code []byte) (Metadata, error) {
	var md Metadata
	depth := 0
	for off := 0; off < len(code); {
		in, err := Decode(code, off)
		if err != nil {
			return Metadata{}, err
		}
		info := infoTable[in.Op]

		pops := in.Pops()
		if pops > depth {
			return Metadata{}, &DecodeError{Offset: off, Op: in.Op, Err: ErrStackUnderflow}
		}
		depth += info.Pushes - pops
		if uint32(depth) > md.MaxStackDepth {
			md.MaxStackDepth = uint32(depth)
		}
		if info.Flags&FlagIC != 0 {
			md.NumICEntries++
		}
		if info.Flags&FlagTypeSet != 0 {
			md.NumTypeSets++
		}
		off += info.Length
	}
	return md, nil
}
