package emu

// ExecSegment is a decoded, PC-indexed view over one contiguous range of
// guest code. It owns the decoder cache for that range: one DecoderEntry
// per byte offset (most entries unused — only offsets that are themselves
// instruction starts are ever looked up), built when the segment is
// constructed. It is rebuilt only after MarkStale (via
// Memory.InvalidateExecRange); guest stores do not mark a segment stale.
type ExecSegment struct {
	execBegin uint64
	execEnd   uint64

	cache []DecoderEntry // indexed by (pc - execBegin)

	stale bool
	hash  uint64
}

// NewExecSegment builds a segment covering [begin, begin+len(code)) and
// immediately runs the decoder-cache construction pass over it.
func NewExecSegment(code []byte, begin uint64, contentHash uint64) *ExecSegment {
	return &ExecSegment{
		execBegin: begin,
		execEnd:   begin + uint64(len(code)),
		cache:     BuildDecoderCache(code, begin),
		hash:      contentHash,
	}
}

// Contains reports whether [addr, addr+size) lies entirely within this
// segment, with overflow-safe arithmetic.
func (s *ExecSegment) Contains(addr uint64, size uint64) bool {
	end := addr + size
	if end < addr {
		return false
	}
	return addr >= s.execBegin && end <= s.execEnd
}

// EntryAt returns the decoder entry for the instruction at pc. The caller
// must have already verified pc is within the segment.
func (s *ExecSegment) EntryAt(pc uint64) *DecoderEntry {
	return &s.cache[pc-s.execBegin]
}

func (s *ExecSegment) Begin() uint64 { return s.execBegin }
func (s *ExecSegment) End() uint64   { return s.execEnd }
func (s *ExecSegment) Stale() bool   { return s.stale }
func (s *ExecSegment) MarkStale()    { s.stale = true }
