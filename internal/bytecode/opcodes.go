// Package bytecode defines the instruction set produced by the reference
// emitter, the stack-effect analysis that derives script metadata from it,
// and a disassembler.
//
// Every instruction is a one-byte opcode followed by a fixed-size operand.
// Multi-byte operands are little-endian. Atom operands are u32 indexes into
// the script's string table.
package bytecode

import "fmt"

// Opcode is a single instruction byte.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x0F)
	// ========================================================================

	OpNop       Opcode = 0x00
	OpUndefined Opcode = 0x01
	OpNull      Opcode = 0x02
	OpTrue      Opcode = 0x03
	OpFalse     Opcode = 0x04
	OpZero      Opcode = 0x05
	OpOne       Opcode = 0x06
	OpInt8      Opcode = 0x07 // Int8 <value:i8>
	OpInt32     Opcode = 0x08 // Int32 <value:i32>
	OpDouble    Opcode = 0x09 // Double <value:f64>
	OpString    Opcode = 0x0A // String <atom:u32>

	// ========================================================================
	// Stack manipulation (0x10-0x1F)
	// ========================================================================

	OpPop  Opcode = 0x10
	OpDup  Opcode = 0x11
	OpSwap Opcode = 0x12

	// ========================================================================
	// Unary operators (0x20-0x2F)
	// ========================================================================

	OpPos    Opcode = 0x20
	OpNeg    Opcode = 0x21
	OpNot    Opcode = 0x22
	OpBitNot Opcode = 0x23
	OpTypeof Opcode = 0x24
	OpVoid   Opcode = 0x25

	// ========================================================================
	// Binary operators (0x30-0x4F)
	// ========================================================================

	OpAdd        Opcode = 0x30
	OpSub        Opcode = 0x31
	OpMul        Opcode = 0x32
	OpDiv        Opcode = 0x33
	OpMod        Opcode = 0x34
	OpPow        Opcode = 0x35
	OpBitOr      Opcode = 0x36
	OpBitXor     Opcode = 0x37
	OpBitAnd     Opcode = 0x38
	OpLsh        Opcode = 0x39
	OpRsh        Opcode = 0x3A
	OpUrsh       Opcode = 0x3B
	OpEq         Opcode = 0x40
	OpNe         Opcode = 0x41
	OpStrictEq   Opcode = 0x42
	OpStrictNe   Opcode = 0x43
	OpLt         Opcode = 0x44
	OpLe         Opcode = 0x45
	OpGt         Opcode = 0x46
	OpGe         Opcode = 0x47
	OpIn         Opcode = 0x48
	OpInstanceof Opcode = 0x49

	// ========================================================================
	// Global names and properties (0x50-0x5F)
	// ========================================================================

	OpGetGName     Opcode = 0x50 // GetGName <atom:u32>
	OpBindGName    Opcode = 0x51 // BindGName <atom:u32>
	OpSetGName     Opcode = 0x52 // SetGName <atom:u32>: env value -> value
	OpInitGLexical Opcode = 0x53 // InitGLexical <atom:u32>: value -> value
	OpDefVar       Opcode = 0x54 // DefVar <atom:u32>
	OpDefLet       Opcode = 0x55 // DefLet <atom:u32>
	OpDefConst     Opcode = 0x56 // DefConst <atom:u32>
	OpGetProp      Opcode = 0x57 // GetProp <atom:u32>: obj -> value

	// ========================================================================
	// Calls and completion (0x60-0x7F)
	// ========================================================================

	OpCall    Opcode = 0x60 // Call <argc:u16>: callee this args... -> value
	OpSetRval Opcode = 0x70
	OpRetRval Opcode = 0x71
)

// Flags mark instructions that carry runtime instrumentation.
type Flags uint8

const (
	// FlagIC marks an instruction that owns an inline cache entry.
	FlagIC Flags = 1 << iota
	// FlagTypeSet marks an instruction whose result is type-monitored.
	FlagTypeSet
	// FlagAtom marks an instruction whose operand is a string table index.
	FlagAtom
)

// Info provides metadata about each opcode for analysis and disassembly.
type Info struct {
	Name   string // Human-readable name
	Length int    // Instruction length including the opcode byte
	Pops   int    // Values popped (-1 = depends on operand)
	Pushes int    // Values pushed
	Flags  Flags
}

var infoTable = map[Opcode]Info{
	OpNop:       {"Nop", 1, 0, 0, 0},
	OpUndefined: {"Undefined", 1, 0, 1, 0},
	OpNull:      {"Null", 1, 0, 1, 0},
	OpTrue:      {"True", 1, 0, 1, 0},
	OpFalse:     {"False", 1, 0, 1, 0},
	OpZero:      {"Zero", 1, 0, 1, 0},
	OpOne:       {"One", 1, 0, 1, 0},
	OpInt8:      {"Int8", 2, 0, 1, 0},
	OpInt32:     {"Int32", 5, 0, 1, 0},
	OpDouble:    {"Double", 9, 0, 1, 0},
	OpString:    {"String", 5, 0, 1, FlagAtom},

	OpPop:  {"Pop", 1, 1, 0, 0},
	OpDup:  {"Dup", 1, 1, 2, 0},
	OpSwap: {"Swap", 1, 2, 2, 0},

	OpPos:    {"Pos", 1, 1, 1, FlagIC},
	OpNeg:    {"Neg", 1, 1, 1, FlagIC},
	OpNot:    {"Not", 1, 1, 1, 0},
	OpBitNot: {"BitNot", 1, 1, 1, FlagIC},
	OpTypeof: {"Typeof", 1, 1, 1, FlagIC},
	OpVoid:   {"Void", 1, 1, 1, 0},

	OpAdd:        {"Add", 1, 2, 1, FlagIC},
	OpSub:        {"Sub", 1, 2, 1, FlagIC},
	OpMul:        {"Mul", 1, 2, 1, FlagIC},
	OpDiv:        {"Div", 1, 2, 1, FlagIC},
	OpMod:        {"Mod", 1, 2, 1, FlagIC},
	OpPow:        {"Pow", 1, 2, 1, FlagIC},
	OpBitOr:      {"BitOr", 1, 2, 1, FlagIC},
	OpBitXor:     {"BitXor", 1, 2, 1, FlagIC},
	OpBitAnd:     {"BitAnd", 1, 2, 1, FlagIC},
	OpLsh:        {"Lsh", 1, 2, 1, FlagIC},
	OpRsh:        {"Rsh", 1, 2, 1, FlagIC},
	OpUrsh:       {"Ursh", 1, 2, 1, FlagIC},
	OpEq:         {"Eq", 1, 2, 1, FlagIC},
	OpNe:         {"Ne", 1, 2, 1, FlagIC},
	OpStrictEq:   {"StrictEq", 1, 2, 1, FlagIC},
	OpStrictNe:   {"StrictNe", 1, 2, 1, FlagIC},
	OpLt:         {"Lt", 1, 2, 1, FlagIC},
	OpLe:         {"Le", 1, 2, 1, FlagIC},
	OpGt:         {"Gt", 1, 2, 1, FlagIC},
	OpGe:         {"Ge", 1, 2, 1, FlagIC},
	OpIn:         {"In", 1, 2, 1, FlagIC},
	OpInstanceof: {"Instanceof", 1, 2, 1, FlagIC},

	OpGetGName:     {"GetGName", 5, 0, 1, FlagIC | FlagTypeSet | FlagAtom},
	OpBindGName:    {"BindGName", 5, 0, 1, FlagIC | FlagAtom},
	OpSetGName:     {"SetGName", 5, 2, 1, FlagIC | FlagAtom},
	OpInitGLexical: {"InitGLexical", 5, 1, 1, FlagIC | FlagAtom},
	OpDefVar:       {"DefVar", 5, 0, 0, FlagAtom},
	OpDefLet:       {"DefLet", 5, 0, 0, FlagAtom},
	OpDefConst:     {"DefConst", 5, 0, 0, FlagAtom},
	OpGetProp:      {"GetProp", 5, 1, 1, FlagIC | FlagTypeSet | FlagAtom},

	OpCall:    {"Call", 3, -1, 1, FlagIC | FlagTypeSet},
	OpSetRval: {"SetRval", 1, 1, 0, 0},
	OpRetRval: {"RetRval", 1, 0, 0, 0},
}

// Lookup returns the metadata for op and whether op is defined.
func Lookup(op Opcode) (Info, bool) {
	info, ok := infoTable[op]
	return info, ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	if info, ok := infoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// HasIC reports whether op owns an inline cache entry.
func (op Opcode) HasIC() bool {
	return infoTable[op].Flags&FlagIC != 0
}

// AllOpcodes returns every defined opcode in ascending order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(infoTable))
	for i := 0; i < 256; i++ {
		if _, ok := infoTable[Opcode(i)]; ok {
			ops = append(ops, Opcode(i))
		}
	}
	return ops
}
