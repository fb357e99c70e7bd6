package emu

// execLoadStore handles the 2RI12-format byte/half/word/double loads and
// stores (signed displacement, non-scaled).
func execLoadStore(c *CPU, op GenericOp, rd, rj uint32, imm int64) error {
	addr := uint64(int64(c.Reg(rj)) + imm)
	switch op {
	case OpLdB:
		v, err := c.Mem.Read8(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(int64(int8(v))))
	case OpLdH:
		v, err := c.Mem.Read16(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(int64(int16(v))))
	case OpLdW:
		v, err := c.Mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(int64(int32(v))))
	case OpLdD:
		v, err := c.Mem.Read64(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, v)
	case OpLdBU:
		v, err := c.Mem.Read8(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(v))
	case OpLdHU:
		v, err := c.Mem.Read16(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(v))
	case OpLdWU:
		v, err := c.Mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(v))
	case OpStB:
		return c.Mem.Write8(addr, uint8(c.Reg(rd)))
	case OpStH:
		return c.Mem.Write16(addr, uint16(c.Reg(rd)))
	case OpStW:
		return c.Mem.Write32(addr, uint32(c.Reg(rd)))
	case OpStD:
		return c.Mem.Write64(addr, c.Reg(rd))
	}
	return nil
}

// execLoadStorePtr handles LDPTR.W/D and STPTR.W/D: 2RI14-format,
// pre-scaled-by-4 displacement.
func execLoadStorePtr(c *CPU, op GenericOp, rd, rj uint32, imm int64) error {
	addr := uint64(int64(c.Reg(rj)) + imm)
	switch op {
	case OpLdptrW:
		v, err := c.Mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(int64(int32(v))))
	case OpLdptrD:
		v, err := c.Mem.Read64(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, v)
	case OpStptrW:
		return c.Mem.Write32(addr, uint32(c.Reg(rd)))
	case OpStptrD:
		return c.Mem.Write64(addr, c.Reg(rd))
	}
	return nil
}

// execLLSC handles LL.W/D and SC.W/D: 2RI14-format, pre-scaled-by-4
// displacement, sharing the CPU's single link bit rather than tracking a
// reserved address — LL
// always succeeds and sets the bit, SC succeeds iff the bit is still set.
func execLLSC(c *CPU, op GenericOp, rd, rj uint32, imm int64) error {
	addr := uint64(int64(c.Reg(rj)) + imm)
	switch op {
	case OpLlW:
		v, err := c.Mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(int64(int32(v))))
		c.llBit = true
	case OpLlD:
		v, err := c.Mem.Read64(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, v)
		c.llBit = true
	case OpScW:
		if c.llBit {
			if err := c.Mem.Write32(addr, uint32(c.Reg(rd))); err != nil {
				return err
			}
			c.SetReg(rd, 1)
		} else {
			c.SetReg(rd, 0)
		}
		c.llBit = false
	case OpScD:
		if c.llBit {
			if err := c.Mem.Write64(addr, c.Reg(rd)); err != nil {
				return err
			}
			c.SetReg(rd, 1)
		} else {
			c.SetReg(rd, 0)
		}
		c.llBit = false
	}
	return nil
}

// execLoadStoreIndexed handles the 3R-format register-indexed loads and
// stores (LDX.*/STX.*): addr = rj + rk, no displacement.
func execLoadStoreIndexed(c *CPU, op GenericOp, rd, rj, rk uint32) error {
	addr := c.Reg(rj) + c.Reg(rk)
	switch op {
	case OpLdxB:
		v, err := c.Mem.Read8(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(int64(int8(v))))
	case OpLdxH:
		v, err := c.Mem.Read16(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(int64(int16(v))))
	case OpLdxW:
		v, err := c.Mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(int64(int32(v))))
	case OpLdxD:
		v, err := c.Mem.Read64(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, v)
	case OpLdxBU:
		v, err := c.Mem.Read8(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(v))
	case OpLdxHU:
		v, err := c.Mem.Read16(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(v))
	case OpLdxWU:
		v, err := c.Mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint64(v))
	case OpStxB:
		return c.Mem.Write8(addr, uint8(c.Reg(rd)))
	case OpStxH:
		return c.Mem.Write16(addr, uint16(c.Reg(rd)))
	case OpStxW:
		return c.Mem.Write32(addr, uint32(c.Reg(rd)))
	case OpStxD:
		return c.Mem.Write64(addr, c.Reg(rd))
	}
	return nil
}
