package emu_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/larunner/la64vm/emu"
)

func words(ws ...uint32) []byte {
	buf := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// addiD encodes ADDI.D rd, rj, imm12.
func addiD(rd, rj uint32, imm12 int16) uint32 {
	const opADDI_D = 0x02c00000
	return opADDI_D | (uint32(uint16(imm12))&0xfff)<<10 | rj<<5 | rd
}

var _ = Describe("CPU.Run", func() {
	var mem *emu.Memory

	newMachine := func(code []byte) *emu.CPU {
		mem = emu.NewMemory(0x10000, 0, 0, 0x8000, 0x9000)
		mem.EntryAddress = 0
		Expect(mem.CopyToGuest(0, code)).To(Succeed())
		seg := emu.NewExecSegment(code, 0, 0)
		emu.RewriteBytecodes(seg)
		mem.RegisterExecSegment(seg)
		mem.StackAddress = 0x9000
		return emu.NewCPU(mem)
	}

	It("returns immediately when the budget is already exhausted", func() {
		cpu := newMachine(words(addiD(4, 0, 1)))
		stopped, err := cpu.Run(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(stopped).To(BeFalse())
		Expect(cpu.Reg(4)).To(Equal(uint64(0)))
	})

	It("discards writes to R0 regardless of prior value", func() {
		cpu := newMachine(words(addiD(0, 0, 5)))
		_, err := cpu.Run(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(cpu.Reg(0)).To(Equal(uint64(0)))
	})

	It("increments the counter exactly once per retired instruction", func() {
		cpu := newMachine(words(addiD(4, 0, 1), addiD(4, 4, 1), addiD(4, 4, 1)))
		_, err := cpu.Run(3)
		Expect(err).NotTo(HaveOccurred())
		Expect(cpu.Counter).To(Equal(uint64(3)))
		Expect(cpu.Reg(4)).To(Equal(uint64(3)))
	})

	It("faults on a PC that isn't 4-byte aligned", func() {
		cpu := newMachine(words(addiD(4, 0, 1)))
		cpu.PC = 1
		_, err := cpu.Run(10)
		Expect(err).To(HaveOccurred())
		fault := err.(*emu.Fault)
		Expect(fault.Kind).To(Equal(emu.MisalignedInstruction))
	})

	It("faults on execution outside any registered segment", func() {
		cpu := newMachine(words(addiD(4, 0, 1)))
		cpu.PC = 0x4000
		_, err := cpu.Run(10)
		Expect(err).To(HaveOccurred())
		fault := err.(*emu.Fault)
		Expect(fault.Kind).To(Equal(emu.ExecutionSpaceFault))
	})
})
