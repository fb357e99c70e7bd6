package emu

import "fmt"

// traceLine formats one retired-instruction line for CPU.trace.
func traceLine(pc uint64, instr Word) string {
	return fmt.Sprintf("%#016x: %#08x\n", pc, instr)
}
