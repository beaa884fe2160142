package bytecode

import (
	"fmt"
	"io"
	"strconv"
)

// Disassemble writes a human-readable listing of code to w. Atom operands
// are resolved against atoms when the index is in range.
func Disassemble(w io.Writer, code []byte, atoms [][]byte) error {
	if len(atoms) > 0 {
		fmt.Fprintln(w, "; Atoms:")
		for i, a := range atoms {
			fmt.Fprintf(w, ";   [%3d] %s\n", i, quoteAtom(a))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "; Code:")
	for off := 0; off < len(code); {
		in, err := Decode(code, off)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%04X  %s\n", off, formatInstruction(in, atoms)); err != nil {
			return err
		}
		off += len(in.Operand) + 1
	}
	return nil
}

func formatInstruction(in Instruction, atoms [][]byte) string {
	info := infoTable[in.Op]
	switch {
	case info.Flags&FlagAtom != 0:
		idx := in.Atom()
		if int(idx) < len(atoms) {
			return fmt.Sprintf("%-14s %d ; %s", info.Name, idx, quoteAtom(atoms[idx]))
		}
		return fmt.Sprintf("%-14s %d ; <bad atom>", info.Name, idx)
	case in.Op == OpInt8 || in.Op == OpInt32:
		return fmt.Sprintf("%-14s %d", info.Name, in.Int())
	case in.Op == OpDouble:
		return fmt.Sprintf("%-14s %s", info.Name, strconv.FormatFloat(in.Float(), 'g', -1, 64))
	case in.Op == OpCall:
		return fmt.Sprintf("%-14s %d", info.Name, in.Argc())
	}
	return info.Name
}

func quoteAtom(a []byte) string {
	s := string(a)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return strconv.Quote(s)
}
