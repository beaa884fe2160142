package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info, ok := Lookup(op)
		require.True(t, ok)
		assert.NotEmpty(t, info.Name, "opcode 0x%02X", byte(op))
		assert.GreaterOrEqual(t, info.Length, 1)
		if info.Flags&FlagAtom != 0 {
			assert.Equal(t, 5, info.Length, "%s carries a u32 atom", info.Name)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "Add", OpAdd.String())
	assert.Equal(t, "GetGName", OpGetGName.String())
	assert.True(t, strings.HasPrefix(Opcode(0xEE).String(), "UNKNOWN"))
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  Metadata
	}{
		{
			name: "two plus two",
			build: func(b *Builder) {
				b.Int8(2)
				b.Int8(2)
				b.Op(OpAdd)
				b.Op(OpSetRval)
				b.Op(OpRetRval)
			},
			want: Metadata{MaxStackDepth: 2, NumICEntries: 1},
		},
		{
			name: "global call",
			build: func(b *Builder) {
				b.Atom(OpGetGName, 0)
				b.Op(OpUndefined)
				b.Int32(100000)
				b.Atom(OpString, 1)
				b.Call(2)
				b.Op(OpPop)
				b.Op(OpRetRval)
			},
			want: Metadata{MaxStackDepth: 4, NumICEntries: 2, NumTypeSets: 2},
		},
		{
			name: "method call",
			build: func(b *Builder) {
				b.Atom(OpGetGName, 0)
				b.Op(OpDup)
				b.Atom(OpGetProp, 1)
				b.Op(OpSwap)
				b.Double(1.5)
				b.Call(1)
				b.Op(OpSetRval)
				b.Op(OpRetRval)
			},
			want: Metadata{MaxStackDepth: 3, NumICEntries: 3, NumTypeSets: 3},
		},
		{
			name:  "empty",
			build: func(b *Builder) {},
			want:  Metadata{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Builder
			tt.build(&b)
			md, err := Analyze(b.Bytes())
			require.NoError(t, err)
			assert.Equal(t, tt.want, md)
		})
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	var b Builder
	b.Atom(OpBindGName, 0)
	b.Op(OpOne)
	b.Atom(OpSetGName, 0)
	b.Op(OpPop)
	b.Op(OpRetRval)
	code := b.Bytes()

	first, err := Analyze(code)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Analyze(append([]byte(nil), code...))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want error
	}{
		{"unknown opcode", []byte{0xEE}, ErrUnknownOpcode},
		{"truncated atom", []byte{byte(OpGetGName), 0, 0}, ErrTruncated},
		{"truncated double", []byte{byte(OpDouble), 1, 2, 3}, ErrTruncated},
		{"underflow", []byte{byte(OpPop)}, ErrStackUnderflow},
		{"call underflow", []byte{byte(OpUndefined), byte(OpCall), 0, 0}, ErrStackUnderflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(tt.code)
			require.ErrorIs(t, err, tt.want)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
		})
	}
}

func TestInstructionOperands(t *testing.T) {
	var b Builder
	b.Int8(-3)
	b.Int32(-70000)
	b.Double(0.25)
	b.Call(513)
	b.Atom(OpString, 7)
	code := b.Bytes()

	var got []Instruction
	for off := 0; off < len(code); {
		in, err := Decode(code, off)
		require.NoError(t, err)
		got = append(got, in)
		off += len(in.Operand) + 1
	}
	require.Len(t, got, 5)
	assert.Equal(t, int32(-3), got[0].Int())
	assert.Equal(t, int32(-70000), got[1].Int())
	assert.Equal(t, 0.25, got[2].Float())
	assert.Equal(t, uint16(513), got[3].Argc())
	assert.Equal(t, 515, got[3].Pops())
	assert.Equal(t, uint32(7), got[4].Atom())
}

func TestDisassemble(t *testing.T) {
	var b Builder
	b.Atom(OpGetGName, 0)
	b.Op(OpUndefined)
	b.Int8(2)
	b.Call(1)
	b.Op(OpSetRval)
	b.Op(OpRetRval)

	var buf bytes.Buffer
	require.NoError(t, Disassemble(&buf, b.Bytes(), [][]byte{[]byte("print")}))

	out := buf.String()
	assert.Contains(t, out, `[  0] "print"`)
	assert.Contains(t, out, "0000  GetGName")
	assert.Contains(t, out, `; "print"`)
	assert.Contains(t, out, "0006  Int8           2")
	assert.Contains(t, out, "0008  Call           1")
	assert.Contains(t, out, "000C  RetRval")
}

func TestDisassemble_BadCode(t *testing.T) {
	var buf bytes.Buffer
	err := Disassemble(&buf, []byte{byte(OpOne), 0xEE}, nil)
	assert.ErrorIs(t, err, ErrUnknownOpcode)
	assert.Contains(t, buf.String(), "0000  One")
}
