package emu

// Word is a raw 32-bit LA64 instruction. All LA64 instructions are 4 bytes
// and naturally aligned; a PC that is not 4-aligned at fetch is a
// misaligned-instruction fault.
type Word = uint32

// The field-extractor functions below decode the eleven format overlays a
// 32-bit LA64 instruction can carry (R2, R3, R3-with-2-bit-shift, R4,
// R+imm8, R+imm12, R+imm14, R+imm16, R+imm20, 21-bit-offset branches, and
// the 26-bit-offset jump). Go has no bitfield unions, so each format is a
// small set of inline extraction functions instead of an overlay struct —
// the "single u32 plus accessor functions" strategy the design calls for.

func fieldRd(w Word) uint32 { return w & 0x1f }
func fieldRj(w Word) uint32 { return (w >> 5) & 0x1f }
func fieldRk(w Word) uint32 { return (w >> 10) & 0x1f }
func fieldRa(w Word) uint32 { return (w >> 15) & 0x1f }

// sa2 is the 2-bit shift amount embedded in ALSL-style 3R instructions.
func fieldSa2(w Word) uint32 { return (w >> 15) & 0x3 }

// imm8 (2RI8 format: ST.B/LD.B-with-ext style immediates used by a few ops).
func fieldImm8(w Word) uint32 { return (w >> 10) & 0xff }

// imm12 (2RI12 format), sign-extended — ADDI, load/store byte offsets.
func fieldImm12Signed(w Word) int64 {
	v := int32((w>>10)&0xfff) << 20 >> 20
	return int64(v)
}

func fieldImm12Unsigned(w Word) uint32 { return (w >> 10) & 0xfff }

// imm14 (2RI14 format), sign-extended and pre-scaled by 4 — LDPTR/STPTR.
func fieldImm14SignedScaled(w Word) int64 {
	v := int32((w>>10)&0x3fff) << 18 >> 18
	return int64(v) << 2
}

// imm16 (2RI16 format), sign-extended and pre-scaled by 4 — JIRL offset.
func fieldImm16SignedScaled(w Word) int64 {
	v := int32((w>>10)&0xffff) << 16 >> 16
	return int64(v) << 2
}

func fieldImm16Signed(w Word) int64 {
	v := int32((w>>10)&0xffff) << 16 >> 16
	return int64(v)
}

// imm20 (1RI20 format) — LU12I.W, PCADDU12I, PCALAU12I; caller shifts by 12
// where the opcode calls for it.
func fieldImm20Signed(w Word) int64 {
	v := int32((w>>5)&0xfffff) << 12 >> 12
	return int64(v)
}

// offs21 (1RI21 format: BEQZ/BNEZ): offs[20:16] in bits[4:0], rj in
// bits[9:5], offs[15:0] in bits[25:10]. Returned pre-scaled by 4 bytes.
func fieldOffs21SignedScaled(w Word) int64 {
	hi := w & 0x1f
	lo := (w >> 10) & 0xffff
	raw := (hi << 16) | lo
	v := int32(raw) << 11 >> 11 // sign-extend from bit 20
	return int64(v) << 2
}

// offs16 (2RI16 branch format: BEQ/BNE/BLT/BGE/BLTU/BGEU): the immediate
// field doubles as a signed branch displacement, pre-scaled by 4.
func fieldOffs16SignedScaled(w Word) int64 { return fieldImm16SignedScaled(w) }

// offs26 (I26 format: B/BL): offs[25:16] in bits[9:0], offs[15:0] in
// bits[25:10]. Returned pre-scaled by 4 bytes.
func fieldOffs26SignedScaled(w Word) int64 {
	hi := w & 0x3ff
	lo := (w >> 10) & 0xffff
	raw := (hi << 16) | lo
	v := int32(raw) << 6 >> 6 // sign-extend from bit 25
	return int64(v) << 2
}

// shift amounts for immediate-shift instructions (SLLI.W etc. use 5 bits,
// SLLI.D etc. use 6 bits — the extra bit sits where rk's high bit would be).
func fieldShamt5(w Word) uint32 { return (w >> 10) & 0x1f }
func fieldShamt6(w Word) uint32 { return (w >> 10) & 0x3f }

// bit-field extract/insert operand positions (BSTRPICK/BSTRINS): two
// 5- or 6-bit position fields packed above rk's slot.
func fieldMsbw5(w Word) uint32 { return (w >> 16) & 0x1f }
func fieldLsbw5(w Word) uint32 { return (w >> 10) & 0x1f }
func fieldMsbd6(w Word) uint32 { return (w >> 16) & 0x3f }
func fieldLsbd6(w Word) uint32 { return (w >> 10) & 0x3f }

// condition-code field for BCEQZ/BCNEZ (not decoded by the default catalog,
// reserved for extension).
func fieldCond(w Word) uint32 { return (w >> 5) & 0x7 }

func align4(addr uint64) bool { return addr&0x3 == 0 }
