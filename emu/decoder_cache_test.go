package emu

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodeADDI_D(rd, rj uint32, imm12 int16) Word {
	return opADDI_D | (uint32(uint16(imm12))&0xfff)<<10 | rj<<5 | rd
}

func encodeB(offs26 int32) Word {
	raw := uint32(offs26>>2) & 0x3ffffff
	hi := (raw >> 16) & 0x3ff
	lo := raw & 0xffff
	return opB | hi | lo<<10
}

func bytes4(words ...Word) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(w))
	}
	return buf
}

var _ = Describe("BuildDecoderCache", func() {
	It("gives a lone terminator block_length of 0", func() {
		code := bytes4(encodeB(0))
		cache := BuildDecoderCache(code, 0x1000)
		Expect(cache[0].BlockBytes).To(Equal(uint16(0)))
		Expect(cache[0].Op).To(Equal(OpB))
	})

	It("chains non-diverging instructions onto their terminator", func() {
		code := bytes4(
			encodeADDI_D(4, 0, 1),
			encodeADDI_D(5, 0, 2),
			encodeB(0),
		)
		cache := BuildDecoderCache(code, 0)
		Expect(cache[8].BlockBytes).To(Equal(uint16(0))) // the B itself
		Expect(cache[4].BlockBytes).To(Equal(uint16(4))) // ADDI, then the B
		Expect(cache[0].BlockBytes).To(Equal(uint16(8))) // ADDI + ADDI, then the B
	})

	It("starts a fresh block immediately after a diverging instruction", func() {
		code := bytes4(
			encodeB(0),
			encodeADDI_D(4, 0, 1),
		)
		cache := BuildDecoderCache(code, 0)
		Expect(cache[0].BlockBytes).To(Equal(uint16(0)))
		Expect(cache[4].BlockBytes).To(Equal(uint16(4)))
	})

	It("classifies every entry's Op independent of position", func() {
		code := bytes4(encodeADDI_D(4, 0, 7))
		cache := BuildDecoderCache(code, 0)
		Expect(cache[0].Op).To(Equal(OpAddiD))
		Expect(cache[0].Instr).To(Equal(encodeADDI_D(4, 0, 7)))
	})
})
