package bytecode

import (
	"encoding/binary"
	"math"
)

// Builder appends encoded instructions to a growing buffer.
type Builder struct {
	code []byte
}

// Op appends an instruction without operand.
func (b *Builder) Op(op Opcode) {
	b.code = append(b.code, byte(op))
}

// Atom appends an instruction taking a string table index.
func (b *Builder) Atom(op Opcode, index uint32) {
	b.code = append(b.code, byte(op))
	b.code = binary.LittleEndian.AppendUint32(b.code, index)
}

// Int8 appends OpInt8.
func (b *Builder) Int8(v int8) {
	b.code = append(b.code, byte(OpInt8), byte(v))
}

// Int32 appends OpInt32.
func (b *Builder) Int32(v int32) {
	b.code = append(b.code, byte(OpInt32))
	b.code = binary.LittleEndian.AppendUint32(b.code, uint32(v))
}

// Double appends OpDouble.
func (b *Builder) Double(v float64) {
	b.code = append(b.code, byte(OpDouble))
	b.code = binary.LittleEndian.AppendUint64(b.code, math.Float64bits(v))
}

// Call appends OpCall with argc arguments.
func (b *Builder) Call(argc uint16) {
	b.code = append(b.code, byte(OpCall))
	b.code = binary.LittleEndian.AppendUint16(b.code, argc)
}

// Len returns the number of bytes emitted so far.
func (b *Builder) Len() int { return len(b.code) }

// Bytes returns the encoded instructions. The builder must not be used
// afterwards.
func (b *Builder) Bytes() []byte {
	code := b.code
	b.code = nil
	return code
}
