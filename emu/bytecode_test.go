package emu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RewriteBytecodes", func() {
	It("specializes ADDI.D and the unconditional branch B", func() {
		code := bytes4(encodeADDI_D(4, 0, 9), encodeB(0))
		seg := NewExecSegment(code, 0, 0)
		RewriteBytecodes(seg)

		Expect(seg.cache[0].Bytecode).To(Equal(bcAddiD))
		Expect(seg.cache[0].Imm).To(Equal(int64(9)))
		Expect(seg.cache[4].Bytecode).To(Equal(bcB))
	})

	It("is idempotent: rewriting twice doesn't change already-specialized entries", func() {
		code := bytes4(encodeADDI_D(4, 0, 9))
		seg := NewExecSegment(code, 0, 0)
		RewriteBytecodes(seg)
		first := seg.cache[0]
		RewriteBytecodes(seg)
		Expect(seg.cache[0]).To(Equal(first))
	})

	It("agrees with the generic handler on ADDI.D semantics", func() {
		mem := NewMemory(0x10000, 0, 0, 0x8000, 0x9000)
		cpuGeneric := NewCPU(mem)
		cpuGeneric.SetReg(5, 100)
		entry := DecoderEntry{Op: OpAddiD, Instr: encodeADDI_D(4, 5, 9)}
		Expect(execGeneric(cpuGeneric, &entry)).To(Succeed())

		mem2 := NewMemory(0x10000, 0, 0, 0x8000, 0x9000)
		cpuFast := NewCPU(mem2)
		cpuFast.SetReg(5, 100)
		seg := NewExecSegment(bytes4(encodeADDI_D(4, 5, 9)), 0, 0)
		RewriteBytecodes(seg)
		Expect(cpuFast.dispatch(seg.EntryAt(0))).To(Succeed())

		Expect(cpuFast.Reg(4)).To(Equal(cpuGeneric.Reg(4)))
	})
})
