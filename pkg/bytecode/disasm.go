package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a Code's instruction stream as human-readable text,
// used by the REPL's debugging commands. Grounded on the teacher's own
// disassembly helpers in pkg/bytecode.
func Disassemble(c *Code, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	offset := 0
	for offset < len(c.Instructions) {
		next := disassembleInstr(&b, c, offset)
		if next <= offset {
			break
		}
		offset = next
	}
	return b.String()
}

func disassembleInstr(b *strings.Builder, c *Code, offset int) int {
	op := Opcode(c.Instructions[offset])
	info, ok := GetOpcodeInfo(op)
	if !ok {
		fmt.Fprintf(b, "%04d unknown opcode %d\n", offset, op)
		return offset + 1
	}
	switch info.OperandLen {
	case 0:
		fmt.Fprintf(b, "%04d %s\n", offset, info.Name)
		return offset + 1
	case 1:
		fmt.Fprintf(b, "%04d %-16s %d\n", offset, info.Name, c.Instructions[offset+1])
		return offset + 2
	case 2:
		operand := c.ReadUint16(offset + 1)
		fmt.Fprintf(b, "%04d %-16s %d\n", offset, info.Name, operand)
		return offset + 3
	case 8:
		fmt.Fprintf(b, "%04d %-16s <scalar>\n", offset, info.Name)
		return offset + 9
	default:
		idx := c.ReadUint16(offset + 1)
		fmt.Fprintf(b, "%04d %-16s const[%d]\n", offset, info.Name, idx)
		return offset + 3
	}
}
