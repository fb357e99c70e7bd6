package driver_test

import (
	"bytes"
	"encoding/binary"
)

// buildMinimalELF assembles the smallest 64-bit LE EM_LOONGARCH ELF that
// LoadELF accepts: one ehdr, one PT_LOAD program header covering code
// placed at vaddr, executable and entry set to vaddr+entryOffset.
func buildMinimalELF(vaddr uint64, code []byte, entryOffset uint64) []byte {
	const ehdrSize = 64
	const phdrSize = 56

	var buf bytes.Buffer

	ident := [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}
	buf.Write(ident[:])
	binary.Write(&buf, binary.LittleEndian, uint16(2))              // e_type = ET_EXEC
	binary.Write(&buf, binary.LittleEndian, uint16(258))             // e_machine = EM_LOONGARCH
	binary.Write(&buf, binary.LittleEndian, uint32(1))               // e_version
	binary.Write(&buf, binary.LittleEndian, vaddr+entryOffset)       // e_entry
	binary.Write(&buf, binary.LittleEndian, uint64(ehdrSize))        // e_phoff
	binary.Write(&buf, binary.LittleEndian, uint64(0))               // e_shoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))               // e_flags
	binary.Write(&buf, binary.LittleEndian, uint16(ehdrSize))        // e_ehsize
	binary.Write(&buf, binary.LittleEndian, uint16(phdrSize))        // e_phentsize
	binary.Write(&buf, binary.LittleEndian, uint16(1))               // e_phnum
	binary.Write(&buf, binary.LittleEndian, uint16(0))               // e_shentsize
	binary.Write(&buf, binary.LittleEndian, uint16(0))               // e_shnum
	binary.Write(&buf, binary.LittleEndian, uint16(0))               // e_shstrndx

	fileOffset := uint64(ehdrSize + phdrSize)
	binary.Write(&buf, binary.LittleEndian, uint32(1))          // p_type = PT_LOAD
	binary.Write(&buf, binary.LittleEndian, uint32(7))          // p_flags = R|W|X
	binary.Write(&buf, binary.LittleEndian, fileOffset)         // p_offset
	binary.Write(&buf, binary.LittleEndian, vaddr)               // p_vaddr
	binary.Write(&buf, binary.LittleEndian, vaddr)               // p_paddr
	binary.Write(&buf, binary.LittleEndian, uint64(len(code)))  // p_filesz
	binary.Write(&buf, binary.LittleEndian, uint64(len(code)))  // p_memsz
	binary.Write(&buf, binary.LittleEndian, uint64(0x1000))     // p_align

	buf.Write(code)

	return buf.Bytes()
}
