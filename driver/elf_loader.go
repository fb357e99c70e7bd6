package driver

import (
	"bytes"
	"debug/elf"
	"fmt"

	"github.com/larunner/la64vm/emu"
)

// emLoongArch is elf.EM_LOONGARCH; the standard library added named ELF
// machine constants well after LoongArch was assigned its e_machine value,
// so this is spelled out numerically rather than relying on the library to
// export it.
const emLoongArch = 258

// LoadResult is the (entry_pc, loadable_segments, symbol_table) triple the
// loader hands to the core, plus the arena layout computed from the
// program headers.
type LoadResult struct {
	Entry       uint64
	ArenaSize   uint64
	RodataStart uint64
	DataStart   uint64
	HeapAddress uint64
	MmapAddress uint64

	Loadable []LoadableSegment
	Symbols  []emu.Symbol

	PhdrAddr  uint64
	Phentsize uint16
	Phnum     uint16
}

// LoadableSegment is one PT_LOAD program header, already filtered to the
// bytes that belong in the arena.
type LoadableSegment struct {
	VirtAddr uint64
	Data     []byte
	Execute  bool
}

// LoadELF parses a 64-bit little-endian LA64 ELF executable. It honors
// PT_LOAD (PF_X segments become execute segments), ignores PT_INTERP
// (static binaries only — dynamic linking is out of scope), and reads
// PT_DYNAMIC only far enough not to choke on its presence. Symbol tables
// (.symtab/.strtab, falling back to .dynsym/.dynstr) are read when
// present.
func LoadELF(data []byte, heapPad, mmapSize uint64) (*LoadResult, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("driver: parse ELF: %w", err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("driver: only 64-bit ELF is supported")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("driver: only little-endian ELF is supported")
	}
	if uint16(f.Machine) != emLoongArch {
		return nil, fmt.Errorf("driver: e_machine %d is not EM_LOONGARCH", f.Machine)
	}

	res := &LoadResult{Entry: f.Entry}

	var minAddr uint64 = ^uint64(0)
	var maxAddr uint64
	for _, prog := range f.Progs {
		switch prog.Type {
		case elf.PT_LOAD:
			buf := make([]byte, prog.Memsz)
			n, err := prog.ReadAt(buf, 0)
			if err != nil && n == 0 && prog.Filesz > 0 {
				return nil, fmt.Errorf("driver: read PT_LOAD segment: %w", err)
			}
			res.Loadable = append(res.Loadable, LoadableSegment{
				VirtAddr: prog.Vaddr,
				Data:     buf,
				Execute:  prog.Flags&elf.PF_X != 0,
			})
			if prog.Vaddr < minAddr {
				minAddr = prog.Vaddr
			}
			if end := prog.Vaddr + prog.Memsz; end > maxAddr {
				maxAddr = end
			}
		case elf.PT_PHDR:
			res.PhdrAddr = prog.Vaddr
		}
	}
	if minAddr == ^uint64(0) {
		minAddr = 0
	}
	res.Phentsize = 56 // sizeof(Elf64_Phdr)
	res.Phnum = uint16(len(f.Progs))
	if res.PhdrAddr == 0 && len(f.Progs) > 0 {
		// No explicit PT_PHDR: the headers still live at the file's own
		// e_phoff, which for a statically-linked image is within the
		// first loaded segment.
		res.PhdrAddr = f.Entry &^ 0xfff
	}

	align := func(v, to uint64) uint64 { return (v + to - 1) &^ (to - 1) }
	alignDown := func(v, to uint64) uint64 { return v &^ (to - 1) }

	// The Memory arena models only two protection classes (read-only below
	// DataStart, writable from DataStart up) rather than a per-segment
	// permission bit, so the whole loaded image through the heap/mmap
	// regions is writable; only the guard region below the lowest loaded
	// address is truly unmapped.
	res.RodataStart = alignDown(minAddr, 0x1000)
	res.DataStart = res.RodataStart
	res.HeapAddress = align(maxAddr+heapPad, 0x1000)
	res.MmapAddress = align(res.HeapAddress+heapPad, 0x1000)
	res.ArenaSize = res.MmapAddress + mmapSize

	res.Symbols = readSymbols(f)

	return res, nil
}

func readSymbols(f *elf.File) []emu.Symbol {
	syms, err := f.Symbols()
	if err != nil || len(syms) == 0 {
		syms, _ = f.DynamicSymbols()
	}
	out := make([]emu.Symbol, 0, len(syms))
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		out = append(out, emu.Symbol{Name: s.Name, Address: s.Value, Size: s.Size})
	}
	return out
}
