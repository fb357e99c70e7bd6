package emu

// Bytecode is the dispatch tag the execute loop switches on. Most
// instructions keep the generic tag (bcFunction) and are executed through
// execGeneric, which switches again on DecoderEntry.Op; a closed set of hot
// opcodes gets a specialized tag instead, carrying a pre-extracted,
// pre-sign-extended immediate in DecoderEntry.Imm so the execute loop never
// re-decodes those bits. Specialization is opt-in and idempotent: running
// the rewriter twice on an already-specialized cache is a no-op.
type Bytecode uint8

const (
	bcInvalid Bytecode = iota
	bcFunction          // generic handler path, dispatches on Op
	bcFuncblock         // generic handler path for a diverging instruction
	bcSyscall
	bcBreak
	bcStop // synthetic: set by the STOP condition, never produced by rewrite

	bcAddW
	bcAddD
	bcSubW
	bcSubD
	bcAnd
	bcOr
	bcXor
	bcNor
	bcSlt
	bcSltu
	bcAddiW
	bcAddiD
	bcAndi
	bcOri
	bcXori
	bcSlti
	bcSltui
	bcSlliW
	bcSrliW
	bcSraiW
	bcSlliD
	bcSrliD
	bcSraiD
	bcLdB
	bcLdH
	bcLdW
	bcLdD
	bcLdBU
	bcLdHU
	bcLdWU
	bcStB
	bcStH
	bcStW
	bcStD
	bcLdptrW
	bcLdptrD
	bcStptrW
	bcStptrD
	bcLu12iW
	bcLu32iD
	bcPcaddu12i
	bcPcalau12i
	bcBeqz
	bcBnez
	bcBeq
	bcBne
	bcBlt
	bcBge
	bcBltu
	bcBgeu
	bcB
	bcBl
	bcJirl
)

// specialize opts a GenericOp into the rewrite pass and reports which
// Bytecode and pre-extracted Imm it specializes to. The third result is
// always 0: bit-field insert/extract ops are not specialized and run
// through execGeneric.
func specialize(e *DecoderEntry) (Bytecode, int64, int64) {
	w := e.Instr
	switch e.Op {
	case OpAddW:
		return bcAddW, 0, 0
	case OpAddD:
		return bcAddD, 0, 0
	case OpSubW:
		return bcSubW, 0, 0
	case OpSubD:
		return bcSubD, 0, 0
	case OpAnd:
		return bcAnd, 0, 0
	case OpOr:
		return bcOr, 0, 0
	case OpXor:
		return bcXor, 0, 0
	case OpNor:
		return bcNor, 0, 0
	case OpSlt:
		return bcSlt, 0, 0
	case OpSltu:
		return bcSltu, 0, 0
	case OpAddiW:
		return bcAddiW, fieldImm12Signed(w), 0
	case OpAddiD:
		return bcAddiD, fieldImm12Signed(w), 0
	case OpAndi:
		return bcAndi, int64(fieldImm12Unsigned(w)), 0
	case OpOri:
		return bcOri, int64(fieldImm12Unsigned(w)), 0
	case OpXori:
		return bcXori, int64(fieldImm12Unsigned(w)), 0
	case OpSlti:
		return bcSlti, fieldImm12Signed(w), 0
	case OpSltui:
		return bcSltui, fieldImm12Signed(w), 0
	case OpSlliW:
		return bcSlliW, int64(fieldShamt5(w)), 0
	case OpSrliW:
		return bcSrliW, int64(fieldShamt5(w)), 0
	case OpSraiW:
		return bcSraiW, int64(fieldShamt5(w)), 0
	case OpSlliD:
		return bcSlliD, int64(fieldShamt6(w)), 0
	case OpSrliD:
		return bcSrliD, int64(fieldShamt6(w)), 0
	case OpSraiD:
		return bcSraiD, int64(fieldShamt6(w)), 0
	case OpLdB:
		return bcLdB, fieldImm12Signed(w), 0
	case OpLdH:
		return bcLdH, fieldImm12Signed(w), 0
	case OpLdW:
		return bcLdW, fieldImm12Signed(w), 0
	case OpLdD:
		return bcLdD, fieldImm12Signed(w), 0
	case OpLdBU:
		return bcLdBU, fieldImm12Signed(w), 0
	case OpLdHU:
		return bcLdHU, fieldImm12Signed(w), 0
	case OpLdWU:
		return bcLdWU, fieldImm12Signed(w), 0
	case OpStB:
		return bcStB, fieldImm12Signed(w), 0
	case OpStH:
		return bcStH, fieldImm12Signed(w), 0
	case OpStW:
		return bcStW, fieldImm12Signed(w), 0
	case OpStD:
		return bcStD, fieldImm12Signed(w), 0
	case OpLdptrW:
		return bcLdptrW, fieldImm14SignedScaled(w), 0
	case OpLdptrD:
		return bcLdptrD, fieldImm14SignedScaled(w), 0
	case OpStptrW:
		return bcStptrW, fieldImm14SignedScaled(w), 0
	case OpStptrD:
		return bcStptrD, fieldImm14SignedScaled(w), 0
	case OpLu12iW:
		return bcLu12iW, fieldImm20Signed(w), 0
	case OpLu32iD:
		return bcLu32iD, fieldImm20Signed(w), 0
	case OpPcaddu12i:
		return bcPcaddu12i, fieldImm20Signed(w), 0
	case OpPcalau12i:
		return bcPcalau12i, fieldImm20Signed(w), 0
	case OpBeqz:
		return bcBeqz, fieldOffs21SignedScaled(w), 0
	case OpBnez:
		return bcBnez, fieldOffs21SignedScaled(w), 0
	case OpBeq:
		return bcBeq, fieldOffs16SignedScaled(w), 0
	case OpBne:
		return bcBne, fieldOffs16SignedScaled(w), 0
	case OpBlt:
		return bcBlt, fieldOffs16SignedScaled(w), 0
	case OpBge:
		return bcBge, fieldOffs16SignedScaled(w), 0
	case OpBltu:
		return bcBltu, fieldOffs16SignedScaled(w), 0
	case OpBgeu:
		return bcBgeu, fieldOffs16SignedScaled(w), 0
	case OpB:
		return bcB, fieldOffs26SignedScaled(w), 0
	case OpBl:
		return bcBl, fieldOffs26SignedScaled(w), 0
	case OpJirl:
		return bcJirl, fieldImm16SignedScaled(w), 0
	case OpSyscall:
		return bcSyscall, 0, 0
	case OpBreak:
		return bcBreak, 0, 0
	default:
		return bcInvalid, 0, 0
	}
}

// RewriteBytecodes runs the second decode pass over every entry in the
// segment's cache, replacing the generic placeholder with a specialized
// bytecode wherever one exists. Entries already carrying a specialized
// bytecode are left untouched, making repeat calls idempotent.
func RewriteBytecodes(seg *ExecSegment) {
	for i := range seg.cache {
		e := &seg.cache[i]
		if e.Op == OpInvalid {
			continue
		}
		if e.Bytecode != bcInvalid && e.Bytecode != bcFunction && e.Bytecode != bcFuncblock {
			continue
		}
		if bc, imm, field2 := specialize(e); bc != bcInvalid {
			e.Bytecode = bc
			e.Imm = imm
			e.Field2 = field2
			continue
		}
		if e.Op.diverging() {
			e.Bytecode = bcFuncblock
		} else {
			e.Bytecode = bcFunction
		}
	}
}
