package emu

// execGeneric runs the full-decode path for any instruction that didn't
// get a specialized bytecode: it re-extracts whatever fields it needs from
// entry.Instr directly. This is also the semantic reference the
// specialized paths in cpu.go are expected to agree with.
func execGeneric(cpu *CPU, e *DecoderEntry) error {
	w := e.Instr
	rd, rj, rk := fieldRd(w), fieldRj(w), fieldRk(w)

	switch e.Op {
	case OpAddW:
		cpu.SetReg(rd, signExtend32(uint32(cpu.Reg(rj))+uint32(cpu.Reg(rk))))
	case OpAddD:
		cpu.SetReg(rd, cpu.Reg(rj)+cpu.Reg(rk))
	case OpSubW:
		cpu.SetReg(rd, signExtend32(uint32(cpu.Reg(rj))-uint32(cpu.Reg(rk))))
	case OpSubD:
		cpu.SetReg(rd, cpu.Reg(rj)-cpu.Reg(rk))
	case OpSlt:
		cpu.SetReg(rd, boolToReg(int64(cpu.Reg(rj)) < int64(cpu.Reg(rk))))
	case OpSltu:
		cpu.SetReg(rd, boolToReg(cpu.Reg(rj) < cpu.Reg(rk)))
	case OpMaskeqz:
		if cpu.Reg(rk) == 0 {
			cpu.SetReg(rd, cpu.Reg(rj))
		} else {
			cpu.SetReg(rd, 0)
		}
	case OpMasknez:
		if cpu.Reg(rk) != 0 {
			cpu.SetReg(rd, cpu.Reg(rj))
		} else {
			cpu.SetReg(rd, 0)
		}
	case OpNor:
		cpu.SetReg(rd, ^(cpu.Reg(rj) | cpu.Reg(rk)))
	case OpAnd:
		cpu.SetReg(rd, cpu.Reg(rj)&cpu.Reg(rk))
	case OpOr:
		cpu.SetReg(rd, cpu.Reg(rj)|cpu.Reg(rk))
	case OpXor:
		cpu.SetReg(rd, cpu.Reg(rj)^cpu.Reg(rk))
	case OpSllW:
		cpu.SetReg(rd, signExtend32(uint32(cpu.Reg(rj))<<(cpu.Reg(rk)&0x1f)))
	case OpSrlW:
		cpu.SetReg(rd, signExtend32(uint32(cpu.Reg(rj))>>(cpu.Reg(rk)&0x1f)))
	case OpSraW:
		cpu.SetReg(rd, uint64(int64(int32(cpu.Reg(rj))>>(cpu.Reg(rk)&0x1f))))
	case OpSllD:
		cpu.SetReg(rd, cpu.Reg(rj)<<(cpu.Reg(rk)&0x3f))
	case OpSrlD:
		cpu.SetReg(rd, cpu.Reg(rj)>>(cpu.Reg(rk)&0x3f))
	case OpSraD:
		cpu.SetReg(rd, uint64(int64(cpu.Reg(rj))>>(cpu.Reg(rk)&0x3f)))
	case OpMulW:
		cpu.SetReg(rd, signExtend32(uint32(cpu.Reg(rj))*uint32(cpu.Reg(rk))))
	case OpMulhW:
		cpu.SetReg(rd, uint64(int64(int32(cpu.Reg(rj))*int32(cpu.Reg(rk)))>>32))
	case OpMulhWU:
		cpu.SetReg(rd, uint64(uint32(cpu.Reg(rj)))*uint64(uint32(cpu.Reg(rk)))>>32)
	case OpMulD:
		cpu.SetReg(rd, cpu.Reg(rj)*cpu.Reg(rk))
	case OpMulhD:
		hi, _ := mulh64(int64(cpu.Reg(rj)), int64(cpu.Reg(rk)))
		cpu.SetReg(rd, uint64(hi))
	case OpMulhDU:
		hi, _ := mulh64u(cpu.Reg(rj), cpu.Reg(rk))
		cpu.SetReg(rd, hi)
	case OpDivW:
		cpu.SetReg(rd, divGuardW(int32(cpu.Reg(rj)), int32(cpu.Reg(rk)), false))
	case OpModW:
		cpu.SetReg(rd, divGuardW(int32(cpu.Reg(rj)), int32(cpu.Reg(rk)), true))
	case OpDivWU:
		cpu.SetReg(rd, divGuardWU(uint32(cpu.Reg(rj)), uint32(cpu.Reg(rk)), false))
	case OpModWU:
		cpu.SetReg(rd, divGuardWU(uint32(cpu.Reg(rj)), uint32(cpu.Reg(rk)), true))
	case OpDivD:
		cpu.SetReg(rd, divGuardD(int64(cpu.Reg(rj)), int64(cpu.Reg(rk)), false))
	case OpModD:
		cpu.SetReg(rd, divGuardD(int64(cpu.Reg(rj)), int64(cpu.Reg(rk)), true))
	case OpDivDU:
		cpu.SetReg(rd, divGuardDU(cpu.Reg(rj), cpu.Reg(rk), false))
	case OpModDU:
		cpu.SetReg(rd, divGuardDU(cpu.Reg(rj), cpu.Reg(rk), true))

	case OpAlslW:
		sa := fieldSa2(w) + 1
		cpu.SetReg(rd, signExtend32(uint32(cpu.Reg(rj))<<sa+uint32(cpu.Reg(rk))))
	case OpAlslD:
		sa := fieldSa2(w) + 1
		cpu.SetReg(rd, cpu.Reg(rj)<<sa+cpu.Reg(rk))

	case OpSlliW:
		cpu.SetReg(rd, signExtend32(uint32(cpu.Reg(rj))<<fieldShamt5(w)))
	case OpSrliW:
		cpu.SetReg(rd, signExtend32(uint32(cpu.Reg(rj))>>fieldShamt5(w)))
	case OpSraiW:
		cpu.SetReg(rd, uint64(int64(int32(cpu.Reg(rj))>>fieldShamt5(w))))
	case OpSlliD:
		cpu.SetReg(rd, cpu.Reg(rj)<<fieldShamt6(w))
	case OpSrliD:
		cpu.SetReg(rd, cpu.Reg(rj)>>fieldShamt6(w))
	case OpSraiD:
		cpu.SetReg(rd, uint64(int64(cpu.Reg(rj))>>fieldShamt6(w)))

	case OpBstrinsW, OpBstrinsD:
		execBstrins(cpu, w, e.Op == OpBstrinsD)
	case OpBstrpickW, OpBstrpickD:
		execBstrpick(cpu, w, e.Op == OpBstrpickD)

	case OpSlti:
		cpu.SetReg(rd, boolToReg(int64(cpu.Reg(rj)) < fieldImm12Signed(w)))
	case OpSltui:
		cpu.SetReg(rd, boolToReg(cpu.Reg(rj) < uint64(fieldImm12Signed(w))))
	case OpAddiW:
		cpu.SetReg(rd, signExtend32(uint32(int64(cpu.Reg(rj))+fieldImm12Signed(w))))
	case OpAddiD:
		cpu.SetReg(rd, cpu.Reg(rj)+uint64(fieldImm12Signed(w)))
	case OpLu52iD:
		cpu.SetReg(rd, (cpu.Reg(rj)&0xfffffffffffff)|(uint64(fieldImm12Signed(w))<<52))
	case OpAndi:
		cpu.SetReg(rd, cpu.Reg(rj)&uint64(fieldImm12Unsigned(w)))
	case OpOri:
		cpu.SetReg(rd, cpu.Reg(rj)|uint64(fieldImm12Unsigned(w)))
	case OpXori:
		cpu.SetReg(rd, cpu.Reg(rj)^uint64(fieldImm12Unsigned(w)))

	case OpLu12iW:
		cpu.SetReg(rd, signExtend32(uint32(fieldImm20Signed(w))<<12))
	case OpLu32iD:
		cpu.SetReg(rd, (cpu.Reg(rd)&0xffffffff)|(uint64(fieldImm20Signed(w))<<32))
	case OpPcaddi:
		cpu.SetReg(rd, uint64(int64(cpu.PC)+fieldImm20Signed(w)<<2))
	case OpPcalau12i:
		cpu.SetReg(rd, uint64(int64(cpu.PC)+fieldImm20Signed(w)<<12)&^0xfff)
	case OpPcaddu12i:
		cpu.SetReg(rd, uint64(int64(cpu.PC)+fieldImm20Signed(w)<<12))
	case OpPcaddu18i:
		cpu.SetReg(rd, uint64(int64(cpu.PC)+fieldImm20Signed(w)<<18))

	case OpLdptrW, OpLdptrD, OpStptrW, OpStptrD:
		return execLoadStorePtr(cpu, e.Op, rd, rj, fieldImm14SignedScaled(w))
	case OpLlW, OpLlD, OpScW, OpScD:
		return execLLSC(cpu, e.Op, rd, rj, fieldImm14SignedScaled(w))
	case OpLdB, OpLdH, OpLdW, OpLdD, OpLdBU, OpLdHU, OpLdWU, OpStB, OpStH, OpStW, OpStD:
		return execLoadStore(cpu, e.Op, rd, rj, fieldImm12Signed(w))
	case OpLdxB, OpLdxH, OpLdxW, OpLdxD, OpLdxBU, OpLdxHU, OpLdxWU, OpStxB, OpStxH, OpStxW, OpStxD:
		return execLoadStoreIndexed(cpu, e.Op, rd, rj, rk)

	case OpBeqz:
		return execBranch(cpu, cpu.Reg(rj) == 0, fieldOffs21SignedScaled(w))
	case OpBnez:
		return execBranch(cpu, cpu.Reg(rj) != 0, fieldOffs21SignedScaled(w))
	case OpBeq:
		return execBranch(cpu, cpu.Reg(rd) == cpu.Reg(rj), fieldOffs16SignedScaled(w))
	case OpBne:
		return execBranch(cpu, cpu.Reg(rd) != cpu.Reg(rj), fieldOffs16SignedScaled(w))
	case OpBlt:
		return execBranch(cpu, int64(cpu.Reg(rd)) < int64(cpu.Reg(rj)), fieldOffs16SignedScaled(w))
	case OpBge:
		return execBranch(cpu, int64(cpu.Reg(rd)) >= int64(cpu.Reg(rj)), fieldOffs16SignedScaled(w))
	case OpBltu:
		return execBranch(cpu, cpu.Reg(rd) < cpu.Reg(rj), fieldOffs16SignedScaled(w))
	case OpBgeu:
		return execBranch(cpu, cpu.Reg(rd) >= cpu.Reg(rj), fieldOffs16SignedScaled(w))
	case OpB:
		return execBranch(cpu, true, fieldOffs26SignedScaled(w))
	case OpBl:
		cpu.SetReg(RegRA, cpu.PC+4)
		return execBranch(cpu, true, fieldOffs26SignedScaled(w))
	case OpJirl:
		target := uint64(int64(cpu.Reg(rj)) + fieldImm16SignedScaled(w))
		cpu.SetReg(rd, cpu.PC+4)
		return execJump(cpu, target)

	case OpSyscall:
		return cpu.doSyscall()
	case OpBreak:
		return newFault(GuestAbort, "BREAK executed", uint64(w))
	case OpDbar, OpIbar:
		// no-ops: this core retires one instruction stream in program
		// order, so there is no reordering for a barrier to constrain.

	default:
		return newFault(IllegalOpcode, "unrecognized instruction", uint64(w))
	}
	return nil
}

func signExtend32(v uint32) uint64 { return uint64(int64(int32(v))) }

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
