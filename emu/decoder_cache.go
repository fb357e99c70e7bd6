package emu

import "encoding/binary"

// maxBlockBytes caps the run of straight-line instructions a single
// DecoderEntry can claim, so BlockBytes (a uint16 byte count) never
// overflows. 65532 is the largest multiple of 4 that fits.
const maxBlockBytes = 65532

// DecoderEntry is the per-instruction record the decoder cache stores, one
// per 4-byte-aligned offset within an ExecSegment. Only offsets that are
// themselves valid instruction starts are ever read back out; everything
// else in the cache is unused padding left over from the dense array
// layout, traded for O(1) PC-indexed lookup instead of a sparse map.
type DecoderEntry struct {
	Bytecode   Bytecode  // dispatch tag; bcInvalid until the rewrite pass runs
	Op         GenericOp // semantic operation, always set by classify
	BlockBytes uint16    // bytes from this instruction to the next diverging one
	Instr      Word      // raw instruction word

	// Imm is populated by the bytecode rewriter for the specialized
	// bytecodes that need a pre-extracted, pre-sign-extended displacement.
	// The rewriter also stores Field2, but no specialized bytecode uses it,
	// so it is always 0.
	Imm    int64
	Field2 int64
}

// BuildDecoderCache runs the classify → backward-scan pass over code
// (guest bytes starting at guest address begin) and returns one
// DecoderEntry per byte offset, indexable by (pc - begin). Instructions
// that straddle the end of code, or whose word doesn't 4-byte-align within
// code, are simply never indexed (callers only ever look up addresses
// known to be valid instruction starts).
func BuildDecoderCache(code []byte, begin uint64) []DecoderEntry {
	entries := make([]DecoderEntry, len(code))
	n := len(code) &^ 0x3 // last fully-contained word boundary

	// runLength tracks, for the instruction currently being filled in, how
	// many bytes separate it from the diverging instruction that ends its
	// block (0 if it is itself that instruction) — computed by scanning
	// backward from the end of code and resetting at every diverging slot.
	var runLength uint16

	for off := n - 4; off >= 0; off -= 4 {
		w := Word(binary.LittleEndian.Uint32(code[off:]))
		op := classify(w)

		if op.diverging() {
			runLength = 0
		} else if runLength < maxBlockBytes {
			runLength += 4
		}

		entries[off] = DecoderEntry{
			Bytecode:   bcInvalid,
			Op:         op,
			BlockBytes: runLength,
			Instr:      w,
		}
	}

	_ = begin // begin is reserved for future PC-relative diagnostics
	return entries
}
