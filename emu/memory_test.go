package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/larunner/la64vm/emu"
)

var _ = Describe("Memory", func() {
	var mem *emu.Memory

	BeforeEach(func() {
		mem = emu.NewMemory(0x10000, 0x1000, 0x2000, 0x8000, 0x9000)
	})

	It("rejects reads below rodataStart", func() {
		_, err := mem.Read32(0x100)
		Expect(err).To(HaveOccurred())
		var fault *emu.Fault
		Expect(err).To(BeAssignableToTypeOf(fault))
	})

	It("rejects writes below dataStart", func() {
		err := mem.Write32(0x1800, 0xdeadbeef)
		Expect(err).To(HaveOccurred())
	})

	It("reports the exact faulting address on a protection fault", func() {
		err := mem.Write32(0x1004, 0xdeadbeef)
		fault, ok := err.(*emu.Fault)
		Expect(ok).To(BeTrue())
		Expect(fault.Aux).To(Equal(uint64(0x1004)))
		Expect(fault.Kind).To(Equal(emu.ProtectionFault))
	})

	It("round-trips a 64-bit write/read", func() {
		Expect(mem.Write64(0x3000, 0x1122334455667788)).To(Succeed())
		v, err := mem.Read64(0x3000)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint64(0x1122334455667788)))
	})

	It("allows reads anywhere from rodataStart to the end of the arena", func() {
		_, err := mem.Read8(0xffff)
		Expect(err).NotTo(HaveOccurred())
	})

	It("moves brk only within [heapAddress, mmapAddress)", func() {
		Expect(mem.Brk(0)).To(Equal(uint64(0x8000)))
		Expect(mem.Brk(0x8500)).To(Equal(uint64(0x8500)))
		Expect(mem.Brk(0xa000)).To(Equal(uint64(0x8500))) // out of range, ignored
	})

	It("bump-allocates mmap regions 16-byte aligned", func() {
		a, err := mem.MmapAllocate(10)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(uint64(0x9000)))
		b, err := mem.MmapAllocate(10)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(a + 16))
	})

	It("faults with OutOfMemory once the mmap region is exhausted", func() {
		_, err := mem.MmapAllocate(0x8000)
		Expect(err).To(HaveOccurred())
		fault := err.(*emu.Fault)
		Expect(fault.Kind).To(Equal(emu.OutOfMemory))
	})

	It("gives a zero-copy typed view the same bytes a manual read would see", func() {
		Expect(mem.Write64(0x3000, 42)).To(Succeed())
		view, err := emu.Memarray[uint64](mem, 0x3000, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(view[0]).To(Equal(uint64(42)))
	})
})
