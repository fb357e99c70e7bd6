package driver_test

import (
	"encoding/binary"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/larunner/la64vm/driver"
	"github.com/larunner/la64vm/emu"
)

// emu ships no assembler, so these tests construct instruction words
// directly, packing each field where emu's field extractors read it back.
// That doubles as a round-trip check on the bitfield layouts.

const (
	opADDI_D = 0x02c00000
	opST_D   = 0x29c00000
	opLD_D   = 0x28c00000
	opSLTI   = 0x02000000
	opOR     = 0x00150000
	opADD_D  = 0x00108000
	opBEQZ   = 0x40000000
	opBL     = 0x54000000
	opJIRL   = 0x4c000000
	opSYSCALL = 0x002b0000
)

func enc2RI12(op uint32, rd, rj uint32, imm12 int16) uint32 {
	return op | (uint32(uint16(imm12))&0xfff)<<10 | rj<<5 | rd
}

func enc3R(op uint32, rd, rj, rk uint32) uint32 {
	return op | rk<<10 | rj<<5 | rd
}

func encBEQZ(rj uint32, byteOffset int32) uint32 {
	raw := uint32(byteOffset>>2) & 0x1fffff
	hi := (raw >> 16) & 0x1f
	lo := raw & 0xffff
	return opBEQZ | hi | rj<<5 | lo<<10
}

func encBL(byteOffset int32) uint32 {
	raw := uint32(byteOffset>>2) & 0x3ffffff
	hi := (raw >> 16) & 0x3ff
	lo := raw & 0xffff
	return opBL | hi | lo<<10
}

func encJIRL(rd, rj uint32, byteOffset int32) uint32 {
	imm := uint32(byteOffset>>2) & 0xffff
	return opJIRL | imm<<10 | rj<<5 | rd
}

func encSyscall(code uint32) uint32 {
	return opSYSCALL | code
}

func asm(ws ...uint32) []byte {
	buf := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

var _ = Describe("Machine", func() {
	const vaddr = 0x20000

	It("runs a static program to its own exit syscall", func() {
		code := asm(
			enc2RI12(opADDI_D, emu.RegA0, emu.RegZero, 42),
			enc2RI12(opADDI_D, emu.RegA7, emu.RegZero, 93), // sys_exit
			encSyscall(0),
		)
		elfBytes := buildMinimalELF(vaddr, code, 0)

		m, err := driver.New(elfBytes)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.SetupLinux([]string{"prog"}, nil)).To(Succeed())

		stopped, err := m.Simulate(1_000_000)
		Expect(err).NotTo(HaveOccurred())
		Expect(stopped).To(BeTrue())
		Expect(m.CPU().Counter).To(BeNumerically(">", 0))
		Expect(m.CPU().Counter).To(BeNumerically("<", 200_000))
	})

	It("calls a guest add function via Vmcall", func() {
		addOffset := uint64(0x100)
		code := make([]byte, addOffset+8)
		fn := asm(
			enc3R(opADD_D, emu.RegA0, emu.RegA0, emu.RegA1),
			encJIRL(emu.RegZero, emu.RegRA, 0),
		)
		copy(code[addOffset:], fn)
		elfBytes := buildMinimalELF(vaddr, code, 0)

		m, err := driver.New(elfBytes)
		Expect(err).NotTo(HaveOccurred())

		result, err := m.Vmcall(vaddr+addOffset, int32(15), int32(27))
		Expect(err).NotTo(HaveOccurred())
		Expect(int64(result)).To(Equal(int64(42)))
	})

	It("runs recursive fib via Vmcall and times out under Preempt", func() {
		fibOffset := uint64(0x200)
		// fib(n):
		//   addi.d sp, sp, -32
		//   st.d   ra, sp, 24
		//   slti   t0, a0, 2
		//   beqz   t0, L1
		//   addi.d sp, sp, 32         ; base case: restore sp and
		//   jirl   zero, ra, 0        ; return a0 unchanged
		// L1:
		//   st.d   s0, sp, 16         ; s0 is callee-saved
		//   or     s0, a0, zero       ; s0 = n
		//   addi.d a0, a0, -1
		//   bl     fib                ; a0 = fib(n-1)
		//   st.d   a0, sp, 8
		//   addi.d a0, s0, -2
		//   bl     fib                ; a0 = fib(n-2)
		//   ld.d   t1, sp, 8
		//   add.d  a0, a0, t1
		//   ld.d   s0, sp, 16
		//   ld.d   ra, sp, 24
		//   addi.d sp, sp, 32
		//   jirl   zero, ra, 0
		var words []uint32
		words = append(words, enc2RI12(opADDI_D, emu.RegSP, emu.RegSP, -32)) // 0
		words = append(words, enc2RI12(opST_D, emu.RegRA, emu.RegSP, 24))    // 1
		words = append(words, enc2RI12(opSLTI, emu.RegT0, emu.RegA0, 2))     // 2
		beqzIdx := len(words)
		words = append(words, 0) // 3: beqz placeholder, patched below
		// base case epilogue (index 4): restore sp and return
		words = append(words, enc2RI12(opADDI_D, emu.RegSP, emu.RegSP, 32)) // 4
		words = append(words, encJIRL(emu.RegZero, emu.RegRA, 0))          // 5
		l1Idx := len(words)
		words = append(words, enc2RI12(opST_D, emu.RegS0, emu.RegSP, 16))     // 6: L1
		words = append(words, enc3R(opOR, emu.RegS0, emu.RegA0, emu.RegZero))  // 7
		words = append(words, enc2RI12(opADDI_D, emu.RegA0, emu.RegA0, -1))    // 8
		bl1Idx := len(words)
		words = append(words, 0) // 9: bl fib, patched below
		words = append(words, enc2RI12(opST_D, emu.RegA0, emu.RegSP, 8))      // 10
		words = append(words, enc2RI12(opADDI_D, emu.RegA0, emu.RegS0, -2))   // 11
		bl2Idx := len(words)
		words = append(words, 0) // 12: bl fib, patched below
		words = append(words, enc2RI12(opLD_D, emu.RegT1, emu.RegSP, 8))      // 13
		words = append(words, enc3R(opADD_D, emu.RegA0, emu.RegA0, emu.RegT1)) // 14
		words = append(words, enc2RI12(opLD_D, emu.RegS0, emu.RegSP, 16))     // 15
		words = append(words, enc2RI12(opLD_D, emu.RegRA, emu.RegSP, 24))     // 16
		words = append(words, enc2RI12(opADDI_D, emu.RegSP, emu.RegSP, 32))   // 17
		words = append(words, encJIRL(emu.RegZero, emu.RegRA, 0))            // 18

		words[beqzIdx] = encBEQZ(emu.RegT0, int32(l1Idx-beqzIdx)*4)
		words[bl1Idx] = encBL(-int32(bl1Idx) * 4)
		words[bl2Idx] = encBL(-int32(bl2Idx) * 4)

		fn := asm(words...)
		code := make([]byte, fibOffset+uint64(len(fn)))
		copy(code[fibOffset:], fn)
		elfBytes := buildMinimalELF(vaddr, code, 0)

		m, err := driver.New(elfBytes)
		Expect(err).NotTo(HaveOccurred())

		result, err := m.Vmcall(vaddr+fibOffset, int32(10))
		Expect(err).NotTo(HaveOccurred())
		Expect(int64(result)).To(Equal(int64(55)))

		m2, err := driver.New(elfBytes)
		Expect(err).NotTo(HaveOccurred())
		_, err = m2.Preempt(100, vaddr+fibOffset, int32(10))
		Expect(err).To(HaveOccurred())
		fault, ok := err.(*emu.Fault)
		Expect(ok).To(BeTrue())
		Expect(fault.Kind).To(Equal(emu.MachineTimeout))
	})

	It("faults with the exact address when the guest writes below rodataStart", func() {
		code := asm(enc2RI12(opADDI_D, emu.RegA0, emu.RegZero, 0))
		elfBytes := buildMinimalELF(vaddr, code, 0)

		m, err := driver.New(elfBytes)
		Expect(err).NotTo(HaveOccurred())

		rodataStart := m.Memory().RodataStart
		target := rodataStart - 4
		err = m.Memory().Write32(target, 0xdeadbeef)
		Expect(err).To(HaveOccurred())
		fault, ok := err.(*emu.Fault)
		Expect(ok).To(BeTrue())
		Expect(fault.Kind).To(Equal(emu.ProtectionFault))
		Expect(fault.Aux).To(Equal(target))
	})

	It("stops the dispatch loop and records the exit code on sys_exit", func() {
		code := asm(
			enc2RI12(opADDI_D, emu.RegA0, emu.RegZero, 7),
			enc2RI12(opADDI_D, emu.RegA7, emu.RegZero, 93),
			encSyscall(0),
		)
		elfBytes := buildMinimalELF(vaddr, code, 0)

		m, err := driver.New(elfBytes)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.SetupLinux(nil, nil)).To(Succeed())

		stopped, err := m.Simulate(1000)
		Expect(err).NotTo(HaveOccurred())
		Expect(stopped).To(BeTrue())
		Expect(m.CPU().MaxCounter).To(Equal(uint64(0)))
		Expect(m.CPU().ExitCode()).To(Equal(7))
	})

	It("shares the decoder cache across concurrent Machines built from the same image", func() {
		fibOffset := uint64(0x200)
		var words []uint32
		words = append(words, enc2RI12(opADDI_D, emu.RegSP, emu.RegSP, -32))
		words = append(words, enc2RI12(opST_D, emu.RegRA, emu.RegSP, 24))
		words = append(words, enc2RI12(opSLTI, emu.RegT0, emu.RegA0, 2))
		beqzIdx := len(words)
		words = append(words, 0)
		words = append(words, enc2RI12(opADDI_D, emu.RegSP, emu.RegSP, 32))
		words = append(words, encJIRL(emu.RegZero, emu.RegRA, 0))
		l1Idx := len(words)
		words = append(words, enc2RI12(opST_D, emu.RegS0, emu.RegSP, 16))
		words = append(words, enc3R(opOR, emu.RegS0, emu.RegA0, emu.RegZero))
		words = append(words, enc2RI12(opADDI_D, emu.RegA0, emu.RegA0, -1))
		bl1Idx := len(words)
		words = append(words, 0)
		words = append(words, enc2RI12(opST_D, emu.RegA0, emu.RegSP, 8))
		words = append(words, enc2RI12(opADDI_D, emu.RegA0, emu.RegS0, -2))
		bl2Idx := len(words)
		words = append(words, 0)
		words = append(words, enc2RI12(opLD_D, emu.RegT1, emu.RegSP, 8))
		words = append(words, enc3R(opADD_D, emu.RegA0, emu.RegA0, emu.RegT1))
		words = append(words, enc2RI12(opLD_D, emu.RegS0, emu.RegSP, 16))
		words = append(words, enc2RI12(opLD_D, emu.RegRA, emu.RegSP, 24))
		words = append(words, enc2RI12(opADDI_D, emu.RegSP, emu.RegSP, 32))
		words = append(words, encJIRL(emu.RegZero, emu.RegRA, 0))

		words[beqzIdx] = encBEQZ(emu.RegT0, int32(l1Idx-beqzIdx)*4)
		words[bl1Idx] = encBL(-int32(bl1Idx) * 4)
		words[bl2Idx] = encBL(-int32(bl2Idx) * 4)

		fn := asm(words...)
		code := make([]byte, fibOffset+uint64(len(fn)))
		copy(code[fibOffset:], fn)
		elfBytes := buildMinimalELF(vaddr, code, 0)

		results := make([]uint64, 2)
		segs := make([]*emu.ExecSegment, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		for i := 0; i < 2; i++ {
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				m, err := driver.New(elfBytes)
				Expect(err).NotTo(HaveOccurred())
				r, err := m.Vmcall(vaddr+fibOffset, int32(20))
				Expect(err).NotTo(HaveOccurred())
				results[i] = r
				seg, err := m.Memory().ExecSegmentFor(vaddr + fibOffset)
				Expect(err).NotTo(HaveOccurred())
				segs[i] = seg
			}(i)
		}
		wg.Wait()

		Expect(int64(results[0])).To(Equal(int64(6765)))
		Expect(int64(results[1])).To(Equal(int64(6765)))
		Expect(segs[0]).To(BeIdenticalTo(segs[1]))
	})
})
