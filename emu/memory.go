package emu

import "encoding/binary"

// guardBytes is over-allocated past arenaSize so that wide (SIMD-width)
// loads issued near the tail of the arena never run off the end of the
// backing slice, matching the original's OVER_ALLOCATE_SIZE.
const guardBytes = 64

// Memory is the flat guest address space: a single contiguous byte buffer
// addressed directly by guest virtual address, divided into five
// monotonically ordered regions:
//
//	[0, RodataStart)        unmapped
//	[RodataStart, DataStart) read-only
//	[DataStart, HeapAddress) writable, initialized data
//	[HeapAddress, MmapAddress) brk area
//	[MmapAddress, ArenaSize) mmap/stack bump pool
//
// There is no MMU: guest virtual addresses are arena byte offsets, and all
// bounds checks run on 64-bit arithmetic with overflow treated as a fault.
type Memory struct {
	arena []byte // length ArenaSize+guardBytes

	RodataStart uint64
	DataStart   uint64
	HeapAddress uint64
	MmapAddress uint64
	ArenaSize   uint64

	// StackAddress is the top (highest address, growing down) of the
	// initial guest stack, set by the loader.
	StackAddress uint64
	// ExitAddress is the address the vmcall/preempt entry points register
	// as the return target; CPU.Run returns as soon as PC reaches it,
	// signalling "the guest function returned".
	ExitAddress uint64
	// EntryAddress is the ELF entry point.
	EntryAddress uint64

	brkAddress uint64 // current brk, between HeapAddress and MmapAddress
	mmapBump   uint64 // next free address in the mmap/stack region

	segments []*ExecSegment
	symbols  SymbolTable

	// ELF program header info, recorded for auxv (AT_PHDR/AT_PHENT/AT_PHNUM).
	ElfPhdrAddr  uint64
	ElfPhentsize uint16
	ElfPhnum     uint16
}

// NewMemory allocates an arena of the given size with region boundaries
// already known (normally computed by the ELF loader).
func NewMemory(arenaSize, rodataStart, dataStart, heapAddress, mmapAddress uint64) *Memory {
	m := &Memory{
		arena:       make([]byte, arenaSize+guardBytes),
		ArenaSize:   arenaSize,
		RodataStart: rodataStart,
		DataStart:   dataStart,
		HeapAddress: heapAddress,
		MmapAddress: mmapAddress,
	}
	m.brkAddress = heapAddress
	m.mmapBump = mmapAddress
	return m
}

func (m *Memory) isReadable(addr, size uint64) bool {
	end := addr + size
	if end < addr { // overflow
		return false
	}
	return addr >= m.RodataStart && end <= m.ArenaSize
}

func (m *Memory) isWritable(addr, size uint64) bool {
	end := addr + size
	if end < addr {
		return false
	}
	return addr >= m.DataStart && end <= m.ArenaSize
}

func protectionFault(addr uint64, msg string) *Fault {
	return newFault(ProtectionFault, msg, addr)
}

// Read8/16/32/64 perform bounds-checked little-endian loads. Alignment is
// never checked: LA64 code emits unaligned accesses freely, and this
// emulator is required to support them (see the design's §4.5).

func (m *Memory) Read8(addr uint64) (uint8, error) {
	if !m.isReadable(addr, 1) {
		return 0, protectionFault(addr, "read from unmapped memory")
	}
	return m.arena[addr], nil
}

func (m *Memory) Read16(addr uint64) (uint16, error) {
	if !m.isReadable(addr, 2) {
		return 0, protectionFault(addr, "read from unmapped memory")
	}
	return binary.LittleEndian.Uint16(m.arena[addr:]), nil
}

func (m *Memory) Read32(addr uint64) (uint32, error) {
	if !m.isReadable(addr, 4) {
		return 0, protectionFault(addr, "read from unmapped memory")
	}
	return binary.LittleEndian.Uint32(m.arena[addr:]), nil
}

func (m *Memory) Read64(addr uint64) (uint64, error) {
	if !m.isReadable(addr, 8) {
		return 0, protectionFault(addr, "read from unmapped memory")
	}
	return binary.LittleEndian.Uint64(m.arena[addr:]), nil
}

func (m *Memory) Write8(addr uint64, v uint8) error {
	if !m.isWritable(addr, 1) {
		return protectionFault(addr, "write to read-only memory")
	}
	m.arena[addr] = v
	return nil
}

func (m *Memory) Write16(addr uint64, v uint16) error {
	if !m.isWritable(addr, 2) {
		return protectionFault(addr, "write to read-only memory")
	}
	binary.LittleEndian.PutUint16(m.arena[addr:], v)
	return nil
}

func (m *Memory) Write32(addr uint64, v uint32) error {
	if !m.isWritable(addr, 4) {
		return protectionFault(addr, "write to read-only memory")
	}
	binary.LittleEndian.PutUint32(m.arena[addr:], v)
	return nil
}

func (m *Memory) Write64(addr uint64, v uint64) error {
	if !m.isWritable(addr, 8) {
		return protectionFault(addr, "write to read-only memory")
	}
	binary.LittleEndian.PutUint64(m.arena[addr:], v)
	return nil
}

// CopyToGuest bounds-checks and copies host bytes into the arena.
func (m *Memory) CopyToGuest(dest uint64, src []byte) error {
	if !m.isWritable(dest, uint64(len(src))) {
		return protectionFault(dest, "write to read-only memory")
	}
	copy(m.arena[dest:], src)
	return nil
}

// CopyFromGuest bounds-checks and copies arena bytes into a host buffer.
func (m *Memory) CopyFromGuest(dest []byte, src uint64) error {
	if !m.isReadable(src, uint64(len(dest))) {
		return protectionFault(src, "read from unmapped memory")
	}
	copy(dest, m.arena[src:src+uint64(len(dest))])
	return nil
}

// Memarray returns a read-only, zero-copy view of count*size(T) bytes at
// addr. Callers promise no concurrent write through another alias for the
// view's lifetime.
func Memarray[T any](m *Memory, addr uint64, count int) ([]T, error) {
	var zero T
	size := uint64(sizeOf(zero)) * uint64(count)
	if !m.isReadable(addr, size) {
		return nil, protectionFault(addr, "read from unmapped memory")
	}
	return unsafeView[T](m.arena, addr, count), nil
}

// WritableMemarray returns a read-write, zero-copy view of count*size(T)
// bytes at addr.
func WritableMemarray[T any](m *Memory, addr uint64, count int) ([]T, error) {
	var zero T
	size := uint64(sizeOf(zero)) * uint64(count)
	if !m.isWritable(addr, size) {
		return nil, protectionFault(addr, "write to read-only memory")
	}
	return unsafeView[T](m.arena, addr, count), nil
}

// Memset bounds-checks then fills len bytes at addr with value.
func (m *Memory) Memset(addr uint64, value byte, length uint64) error {
	if !m.isWritable(addr, length) {
		return protectionFault(addr, "write to read-only memory")
	}
	region := m.arena[addr : addr+length]
	for i := range region {
		region[i] = value
	}
	return nil
}

// Memstring reads a NUL-terminated string starting at addr, up to maxlen bytes.
func (m *Memory) Memstring(addr uint64, maxlen int) (string, error) {
	if !m.isReadable(addr, 1) {
		return "", protectionFault(addr, "read from unmapped memory")
	}
	end := addr
	limit := addr + uint64(maxlen)
	for end < limit && end < m.ArenaSize && m.arena[end] != 0 {
		end++
	}
	return string(m.arena[addr:end]), nil
}

// Brk implements the brk(2) semantics: return the current break, or move it
// if addr is non-zero and within [HeapAddress, MmapAddress).
func (m *Memory) Brk(addr uint64) uint64 {
	if addr == 0 {
		return m.brkAddress
	}
	if addr >= m.HeapAddress && addr < m.MmapAddress {
		m.brkAddress = addr
	}
	return m.brkAddress
}

// MmapAllocate bump-allocates size bytes (rounded up to 16) from the
// mmap/stack region and returns the base address, or a fault if the region
// is exhausted.
func (m *Memory) MmapAllocate(size uint64) (uint64, error) {
	aligned := (size + 15) &^ 15
	if m.mmapBump+aligned > m.ArenaSize {
		return 0, newFault(OutOfMemory, "mmap region exhausted", size)
	}
	addr := m.mmapBump
	m.mmapBump += aligned
	return addr, nil
}

// AddressOf resolves a symbol name to its address, or 0 if unknown.
func (m *Memory) AddressOf(name string) uint64 {
	return m.symbols.AddressOf(name)
}

// LookupSymbol finds the symbol containing addr, if any.
func (m *Memory) LookupSymbol(addr uint64) (*Symbol, bool) {
	return m.symbols.Lookup(addr)
}

// SetSymbols installs the symbol table built by the loader.
func (m *Memory) SetSymbols(t SymbolTable) { m.symbols = t }

// ExecSegmentFor resolves the ExecSegment covering pc, rebuilding its
// decoder cache first if the segment was marked stale through
// InvalidateExecRange since the cache was last built. Segments are
// registered by the loader via RegisterExecSegment; an address with no
// registered segment is an execution-space-protection fault — the guest
// tried to run code outside any region the loader marked executable.
func (m *Memory) ExecSegmentFor(pc uint64) (*ExecSegment, error) {
	for _, seg := range m.segments {
		if seg.Contains(pc, 4) {
			if seg.stale {
				m.rebuildSegment(seg)
			}
			return seg, nil
		}
	}
	return nil, newFault(ExecutionSpaceFault, "no executable segment at address", pc)
}

// RegisterExecSegment adds seg to the set of segments ExecSegmentFor can
// resolve against. Segments must not overlap.
func (m *Memory) RegisterExecSegment(seg *ExecSegment) {
	m.segments = append(m.segments, seg)
}

func (m *Memory) rebuildSegment(seg *ExecSegment) {
	code := m.arena[seg.execBegin:seg.execEnd]
	seg.cache = BuildDecoderCache(code, seg.execBegin)
	RewriteBytecodes(seg)
	seg.stale = false
}

// InvalidateExecRange marks every segment overlapping [addr, addr+size)
// as stale, so the next ExecSegmentFor call rebuilds its decoder cache
// before dispatch reads it. The Write* methods do not call this, so
// neither guest stores nor host writes through them mark a segment stale;
// a caller that writes over executable memory calls it itself.
func (m *Memory) InvalidateExecRange(addr, size uint64) {
	end := addr + size
	for _, seg := range m.segments {
		if addr < seg.execEnd && end > seg.execBegin {
			seg.MarkStale()
		}
	}
}
