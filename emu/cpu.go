package emu

import "io"

// CPU is one LA64 hardware thread: register file, the memory arena it
// executes against, the currently-resolved execute segment, and the
// cooperative-scheduling budget that bounds how many instructions Run will
// retire before returning control to the host.
type CPU struct {
	Registers

	Mem *Memory

	llBit bool // load-linked reservation flag, set by LL.W/D, cleared by SC.W/D

	Counter    uint64
	MaxCounter uint64

	syscallHandler SyscallHandler
	trace          io.Writer

	exited   bool
	exitCode int
}

// CPUOption configures a CPU at construction time.
type CPUOption func(*CPU)

// WithSyscallHandler installs the handler SYSCALL instructions invoke.
func WithSyscallHandler(h SyscallHandler) CPUOption {
	return func(c *CPU) { c.syscallHandler = h }
}

// WithTrace makes Run write one line per retired instruction to w. Nil by
// default: tracing is off the hot path unless explicitly requested.
func WithTrace(w io.Writer) CPUOption {
	return func(c *CPU) { c.trace = w }
}

// NewCPU builds a CPU bound to mem, with PC set to mem.EntryAddress and SP
// set to mem.StackAddress.
func NewCPU(mem *Memory, opts ...CPUOption) *CPU {
	c := &CPU{Mem: mem}
	c.PC = mem.EntryAddress
	c.SetReg(RegSP, mem.StackAddress)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exited reports whether a syscall handler asked Run to stop the machine.
func (c *CPU) Exited() bool { return c.exited }

// ExitCode is only meaningful once Exited is true.
func (c *CPU) ExitCode() int { return c.exitCode }

// isControlFlow reports whether op fully owns the PC update (branch taken
// or not, jump, call): every other op falls through and gets PC+4 from the
// dispatch loop after it runs.
func isControlFlow(op GenericOp) bool {
	switch op {
	case OpBeqz, OpBnez, OpBeq, OpBne, OpBlt, OpBge, OpBltu, OpBgeu, OpB, OpBl, OpJirl:
		return true
	default:
		return false
	}
}

// Run retires instructions until either the counter budget is exhausted
// (returns false, nil), a syscall handler asks the machine to stop
// (returns true, nil), or a fault is raised (returns false, err). It is the
// single outer dispatch loop: single-threaded, cooperative, no
// computed-goto or tail-call tricks — a Go switch plays the role of the
// dispatch table, compiled down to a jump table by the compiler when the
// case set is dense enough.
func (c *CPU) Run(maxCounter uint64) (stopped bool, err error) {
	c.MaxCounter = maxCounter
	c.Counter = 0
	c.exited = false

	for {
		if c.exited {
			return true, nil
		}
		if c.Counter >= c.MaxCounter {
			return false, nil
		}
		if c.Mem.ExitAddress != 0 && c.PC == c.Mem.ExitAddress {
			// A guest function called via Vmcall/Preempt returns here (RA
			// was set to ExitAddress before the call): this is not a real
			// instruction fetch, it's "the call returned".
			return true, nil
		}
		if !align4(c.PC) {
			return false, newFault(MisalignedInstruction, "PC not 4-byte aligned", c.PC)
		}

		seg, err := c.Mem.ExecSegmentFor(c.PC)
		if err != nil {
			return false, err
		}

		// One PC-check/segment-lookup per block: BlockBytes tells us how
		// far the straight-line run of non-diverging instructions extends
		// before the diverging instruction that ends it, so every
		// instruction in between is fetched straight out of the
		// already-resolved segment. The only per-instruction check left is
		// that PC is still inside it: a block with no diverging instruction
		// runs to the segment end, and the next PC is then resolved afresh.
		blockEnd := c.PC + uint64(seg.EntryAt(c.PC).BlockBytes)

		for {
			if c.exited {
				return true, nil
			}
			if c.Counter >= c.MaxCounter {
				return false, nil
			}

			if !seg.Contains(c.PC, 4) {
				break
			}
			atTerminator := c.PC >= blockEnd
			entry := seg.EntryAt(c.PC)

			if c.trace != nil {
				io.WriteString(c.trace, traceLine(c.PC, entry.Instr))
			}

			if err := c.dispatch(entry); err != nil {
				return false, err
			}
			c.Counter++

			if entry.Bytecode == bcStop {
				c.MaxCounter = 0
			}
			if atTerminator {
				break
			}
		}
	}
}

// RunInaccurate runs with no counter budget at all (maxCounter effectively
// unbounded) — used by vmcall-style host entry points where the caller
// trusts the guest function to return through ExitAddress rather than
// wanting cycle-accurate preemption.
func (c *CPU) RunInaccurate() error {
	_, err := c.Run(^uint64(0))
	return err
}

func (c *CPU) dispatch(e *DecoderEntry) error {
	switch e.Bytecode {
	case bcFunction, bcFuncblock:
		if err := execGeneric(c, e); err != nil {
			return err
		}
		if !isControlFlow(e.Op) {
			c.PC += 4
		}
		return nil

	case bcSyscall:
		if err := c.doSyscall(); err != nil {
			return err
		}
		c.PC += 4
		return nil
	case bcBreak:
		return newFault(GuestAbort, "BREAK executed", uint64(e.Instr))

	case bcAddW:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, signExtend32(uint32(c.Reg(rj))+uint32(c.Reg(rk))))
	case bcAddD:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, c.Reg(rj)+c.Reg(rk))
	case bcSubW:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, signExtend32(uint32(c.Reg(rj))-uint32(c.Reg(rk))))
	case bcSubD:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, c.Reg(rj)-c.Reg(rk))
	case bcAnd:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, c.Reg(rj)&c.Reg(rk))
	case bcOr:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, c.Reg(rj)|c.Reg(rk))
	case bcXor:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, c.Reg(rj)^c.Reg(rk))
	case bcNor:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, ^(c.Reg(rj) | c.Reg(rk)))
	case bcSlt:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, boolToReg(int64(c.Reg(rj)) < int64(c.Reg(rk))))
	case bcSltu:
		rd, rj, rk := fieldRd(e.Instr), fieldRj(e.Instr), fieldRk(e.Instr)
		c.SetReg(rd, boolToReg(c.Reg(rj) < c.Reg(rk)))

	case bcAddiW:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, signExtend32(uint32(int64(c.Reg(rj))+e.Imm)))
	case bcAddiD:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, c.Reg(rj)+uint64(e.Imm))
	case bcAndi:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, c.Reg(rj)&uint64(e.Imm))
	case bcOri:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, c.Reg(rj)|uint64(e.Imm))
	case bcXori:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, c.Reg(rj)^uint64(e.Imm))
	case bcSlti:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, boolToReg(int64(c.Reg(rj)) < e.Imm))
	case bcSltui:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, boolToReg(c.Reg(rj) < uint64(e.Imm)))

	case bcSlliW:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, signExtend32(uint32(c.Reg(rj))<<uint(e.Imm)))
	case bcSrliW:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, signExtend32(uint32(c.Reg(rj))>>uint(e.Imm)))
	case bcSraiW:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, uint64(int64(int32(c.Reg(rj))>>uint(e.Imm))))
	case bcSlliD:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, c.Reg(rj)<<uint(e.Imm))
	case bcSrliD:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, c.Reg(rj)>>uint(e.Imm))
	case bcSraiD:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		c.SetReg(rd, uint64(int64(c.Reg(rj))>>uint(e.Imm)))

	case bcLu12iW:
		rd := fieldRd(e.Instr)
		c.SetReg(rd, signExtend32(uint32(e.Imm)<<12))
	case bcLu32iD:
		rd := fieldRd(e.Instr)
		c.SetReg(rd, (c.Reg(rd)&0xffffffff)|(uint64(e.Imm)<<32))
	case bcPcaddu12i:
		rd := fieldRd(e.Instr)
		c.SetReg(rd, uint64(int64(c.PC)+e.Imm<<12))
	case bcPcalau12i:
		rd := fieldRd(e.Instr)
		c.SetReg(rd, uint64(int64(c.PC)+e.Imm<<12)&^0xfff)

	case bcLdB, bcLdH, bcLdW, bcLdD, bcLdBU, bcLdHU, bcLdWU, bcStB, bcStH, bcStW, bcStD:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		if err := execLoadStore(c, e.Op, rd, rj, e.Imm); err != nil {
			return err
		}
	case bcLdptrW, bcLdptrD, bcStptrW, bcStptrD:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		if err := execLoadStorePtr(c, e.Op, rd, rj, e.Imm); err != nil {
			return err
		}

	case bcBeqz:
		return execBranch(c, c.Reg(fieldRj(e.Instr)) == 0, e.Imm)
	case bcBnez:
		return execBranch(c, c.Reg(fieldRj(e.Instr)) != 0, e.Imm)
	case bcBeq:
		return execBranch(c, c.Reg(fieldRd(e.Instr)) == c.Reg(fieldRj(e.Instr)), e.Imm)
	case bcBne:
		return execBranch(c, c.Reg(fieldRd(e.Instr)) != c.Reg(fieldRj(e.Instr)), e.Imm)
	case bcBlt:
		return execBranch(c, int64(c.Reg(fieldRd(e.Instr))) < int64(c.Reg(fieldRj(e.Instr))), e.Imm)
	case bcBge:
		return execBranch(c, int64(c.Reg(fieldRd(e.Instr))) >= int64(c.Reg(fieldRj(e.Instr))), e.Imm)
	case bcBltu:
		return execBranch(c, c.Reg(fieldRd(e.Instr)) < c.Reg(fieldRj(e.Instr)), e.Imm)
	case bcBgeu:
		return execBranch(c, c.Reg(fieldRd(e.Instr)) >= c.Reg(fieldRj(e.Instr)), e.Imm)
	case bcB:
		return execBranch(c, true, e.Imm)
	case bcBl:
		c.SetReg(RegRA, c.PC+4)
		return execBranch(c, true, e.Imm)
	case bcJirl:
		rd, rj := fieldRd(e.Instr), fieldRj(e.Instr)
		target := uint64(int64(c.Reg(rj)) + e.Imm)
		c.SetReg(rd, c.PC+4)
		return execJump(c, target)

	default:
		return newFault(IllegalOpcode, "undispatchable bytecode", uint64(e.Instr))
	}

	c.PC += 4
	return nil
}

// execBranch evaluates a conditional branch: PC advances to PC+offset when
// taken, PC+4 otherwise. Both outcomes are handled here so callers never
// need a separate fallthrough step.
func execBranch(c *CPU, taken bool, offset int64) error {
	if taken {
		c.PC = uint64(int64(c.PC) + offset)
	} else {
		c.PC += 4
	}
	return nil
}

// execJump sets PC unconditionally (JIRL).
func execJump(c *CPU, target uint64) error {
	c.PC = target
	return nil
}
