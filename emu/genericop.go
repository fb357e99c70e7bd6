package emu

// GenericOp identifies the semantic operation of a decoded instruction,
// independent of how it will eventually be dispatched (generic handler call
// vs. specialized bytecode). classify is the single source of truth mapping
// a raw instruction word to its GenericOp; everything downstream — the
// decoder cache's block-length scan, the bytecode rewriter, and the two
// dispatch paths in the execute loop — works off this classification.
type GenericOp uint16

const (
	OpInvalid GenericOp = iota
	OpAddW
	OpAddD
	OpSubW
	OpSubD
	OpSlt
	OpSltu
	OpMaskeqz
	OpMasknez
	OpNor
	OpAnd
	OpOr
	OpXor
	OpSllW
	OpSrlW
	OpSraW
	OpSllD
	OpSrlD
	OpSraD
	OpMulW
	OpMulhW
	OpMulhWU
	OpMulD
	OpMulhD
	OpMulhDU
	OpDivW
	OpModW
	OpDivWU
	OpModWU
	OpDivD
	OpModD
	OpDivDU
	OpModDU
	OpAlslW
	OpAlslD
	OpSlliW
	OpSrliW
	OpSraiW
	OpSlliD
	OpSrliD
	OpSraiD
	OpBstrinsW
	OpBstrpickW
	OpBstrinsD
	OpBstrpickD
	OpSlti
	OpSltui
	OpAddiW
	OpAddiD
	OpLu52iD
	OpAndi
	OpOri
	OpXori
	OpLu12iW
	OpLu32iD
	OpPcaddi
	OpPcalau12i
	OpPcaddu12i
	OpPcaddu18i
	OpLdptrW
	OpStptrW
	OpLdptrD
	OpStptrD
	OpLlW
	OpScW
	OpLlD
	OpScD
	OpLdB
	OpLdH
	OpLdW
	OpLdD
	OpStB
	OpStH
	OpStW
	OpStD
	OpLdBU
	OpLdHU
	OpLdWU
	OpLdxB
	OpLdxH
	OpLdxW
	OpLdxD
	OpStxB
	OpStxH
	OpStxW
	OpStxD
	OpLdxBU
	OpLdxHU
	OpLdxWU
	OpBeqz
	OpBnez
	OpJirl
	OpB
	OpBl
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu
	OpSyscall
	OpBreak
	OpDbar
	OpIbar
)

// diverging reports whether op ends the straight-line block the decoder cache groups
// together: control transfers, anything the machine treats as a
// segment/PC boundary (syscall, break), and the PC-relative-add family,
// which consumes the current PC value and so must see its own address
// rather than the block's starting address. Every other op "falls
// through" and only ever appears as a non-final instruction of a block.
func (op GenericOp) diverging() bool {
	switch op {
	case OpBeqz, OpBnez, OpJirl, OpB, OpBl, OpBeq, OpBne, OpBlt, OpBge, OpBltu, OpBgeu,
		OpSyscall, OpBreak,
		OpPcaddi, OpPcalau12i, OpPcaddu12i, OpPcaddu18i:
		return true
	default:
		return false
	}
}

// classify maps a raw instruction word to its GenericOp. The ALU, shift
// and bit-field groups (most opcode bits fixed) are tried before the
// immediate, branch and jump groups (fewest bits fixed), since a wide-mask
// constant can otherwise accidentally swallow a narrow one whose opcode
// bits happen to be a superset. The indexed load/store and barrier groups
// come last; no earlier group's constants overlap theirs.
func classify(w Word) GenericOp {
	switch w & maskR3 {
	case opADD_W:
		return OpAddW
	case opADD_D:
		return OpAddD
	case opSUB_W:
		return OpSubW
	case opSUB_D:
		return OpSubD
	case opSLT:
		return OpSlt
	case opSLTU:
		return OpSltu
	case opMASKEQZ:
		return OpMaskeqz
	case opMASKNEZ:
		return OpMasknez
	case opNOR:
		return OpNor
	case opAND:
		return OpAnd
	case opOR:
		return OpOr
	case opXOR:
		return OpXor
	case opSLL_W:
		return OpSllW
	case opSRL_W:
		return OpSrlW
	case opSRA_W:
		return OpSraW
	case opSLL_D:
		return OpSllD
	case opSRL_D:
		return OpSrlD
	case opSRA_D:
		return OpSraD
	case opMUL_W:
		return OpMulW
	case opMULH_W:
		return OpMulhW
	case opMULH_WU:
		return OpMulhWU
	case opMUL_D:
		return OpMulD
	case opMULH_D:
		return OpMulhD
	case opMULH_DU:
		return OpMulhDU
	case opDIV_W:
		return OpDivW
	case opMOD_W:
		return OpModW
	case opDIV_WU:
		return OpDivWU
	case opMOD_WU:
		return OpModWU
	case opDIV_D:
		return OpDivD
	case opMOD_D:
		return OpModD
	case opDIV_DU:
		return OpDivDU
	case opMOD_DU:
		return OpModDU
	case opSYSCALL:
		return OpSyscall
	case opBREAK:
		return OpBreak
	}

	switch w & maskR3sa {
	case opALSL_W:
		return OpAlslW
	case opALSL_D:
		return OpAlslD
	}

	switch w & maskShW {
	case opSLLI_W:
		return OpSlliW
	case opSRLI_W:
		return OpSrliW
	case opSRAI_W:
		return OpSraiW
	}
	switch w & maskShD {
	case opSLLI_D:
		return OpSlliD
	case opSRLI_D:
		return OpSrliD
	case opSRAI_D:
		return OpSraiD
	}

	switch w & 0xffe08000 {
	case opBSTRINS_W:
		return OpBstrinsW
	case opBSTRPICK_W:
		return OpBstrpickW
	}
	switch w & 0xffc00000 {
	case opBSTRINS_D:
		return OpBstrinsD
	case opBSTRPICK_D:
		return OpBstrpickD
	}

	switch w & maskRI12 {
	case opSLTI:
		return OpSlti
	case opSLTUI:
		return OpSltui
	case opADDI_W:
		return OpAddiW
	case opADDI_D:
		return OpAddiD
	case opLU52I_D:
		return OpLu52iD
	case opANDI:
		return OpAndi
	case opORI:
		return OpOri
	case opXORI:
		return OpXori
	case opLD_B:
		return OpLdB
	case opLD_H:
		return OpLdH
	case opLD_W:
		return OpLdW
	case opLD_D:
		return OpLdD
	case opST_B:
		return OpStB
	case opST_H:
		return OpStH
	case opST_W:
		return OpStW
	case opST_D:
		return OpStD
	case opLD_BU:
		return OpLdBU
	case opLD_HU:
		return OpLdHU
	case opLD_WU:
		return OpLdWU
	}

	switch w & maskRI14 {
	case opLDPTR_W:
		return OpLdptrW
	case opSTPTR_W:
		return OpStptrW
	case opLDPTR_D:
		return OpLdptrD
	case opSTPTR_D:
		return OpStptrD
	case opLL_W:
		return OpLlW
	case opSC_W:
		return OpScW
	case opLL_D:
		return OpLlD
	case opSC_D:
		return OpScD
	}

	switch w & maskRI20 {
	case opLU12I_W:
		return OpLu12iW
	case opLU32I_D:
		return OpLu32iD
	case opPCADDI:
		return OpPcaddi
	case opPCALAU12I:
		return OpPcalau12i
	case opPCADDU12I:
		return OpPcaddu12i
	case opPCADDU18I:
		return OpPcaddu18i
	}

	switch w & maskR3 {
	case opLDX_B:
		return OpLdxB
	case opLDX_H:
		return OpLdxH
	case opLDX_W:
		return OpLdxW
	case opLDX_D:
		return OpLdxD
	case opSTX_B:
		return OpStxB
	case opSTX_H:
		return OpStxH
	case opSTX_W:
		return OpStxW
	case opSTX_D:
		return OpStxD
	case opLDX_BU:
		return OpLdxBU
	case opLDX_HU:
		return OpLdxHU
	case opLDX_WU:
		return OpLdxWU
	}

	switch w & maskRI21 {
	case opBEQZ:
		return OpBeqz
	case opBNEZ:
		return OpBnez
	}

	switch w & maskI26 {
	case opB:
		return OpB
	case opBL:
		return OpBl
	}

	switch w & maskRI16 {
	case opJIRL:
		return OpJirl
	case opBEQ:
		return OpBeq
	case opBNE:
		return OpBne
	case opBLT:
		return OpBlt
	case opBGE:
		return OpBge
	case opBLTU:
		return OpBltu
	case opBGEU:
		return OpBgeu
	}

	switch w & maskHint {
	case opDBAR:
		return OpDbar
	case opIBAR:
		return OpIbar
	}

	return OpInvalid
}
