package emu

// Opcode encodings for the subset of LA64 catalogued by this emulator. The
// design explicitly does not require a complete opcode catalog — only that
// "some decode function exists mapping a 32-bit instruction to an
// executable handler" — so this is a representative, extensible set
// covering integer ALU, load/store, branch/jump, PC-relative and syscall
// instructions, grounded on the reference opcode table. Each constant is
// the instruction word with all register/immediate fields zeroed, paired
// with the mask needed to isolate the opcode bits for that format.
const (
	maskR3   = 0xffff8000 // 3R-type: 17-bit opcode in bits[31:15]
	maskR3sa = 0xfffe0000 // 3R+sa2: 15-bit opcode in bits[31:17]
	maskRI12 = 0xffc00000 // 2RI12: 10-bit opcode in bits[31:22]
	maskRI14 = 0xff000000 // 2RI14: 8-bit opcode in bits[31:24]
	maskRI16 = 0xfc000000 // 2RI16 branch/JIRL: 6-bit opcode in bits[31:26]
	maskRI20 = 0xfe000000 // 1RI20: 7-bit opcode in bits[31:25]
	maskRI21 = 0xfc000000 // 1RI21 branch: 6-bit opcode in bits[31:26]
	maskI26  = 0xfc000000 // I26 jump: 6-bit opcode in bits[31:26]
	maskHint = 0xffff8000 // DBAR/IBAR: 17-bit opcode in bits[31:15], hint in bits[14:0]
	maskShW  = 0xffff8000 // shift-immediate, word form (5-bit shamt)
	maskShD  = 0xffff0000 // shift-immediate, doubleword form (6-bit shamt)
	maskExact = 0xffffffff
)

const (
	opADD_W = 0x00100000
	opADD_D = 0x00108000
	opSUB_W = 0x00110000
	opSUB_D = 0x00118000
	opSLT   = 0x00120000
	opSLTU  = 0x00128000
	opMASKEQZ = 0x00130000
	opMASKNEZ = 0x00138000
	opNOR   = 0x00140000
	opAND   = 0x00148000
	opOR    = 0x00150000
	opXOR   = 0x00158000
	opSLL_W = 0x00170000
	opSRL_W = 0x00178000
	opSRA_W = 0x00180000
	opSLL_D = 0x00188000
	opSRL_D = 0x00190000
	opSRA_D = 0x00198000
	opMUL_W   = 0x001c0000
	opMULH_W  = 0x001c8000
	opMULH_WU = 0x001d0000
	opMUL_D   = 0x001d8000
	opMULH_D  = 0x001e0000
	opMULH_DU = 0x001e8000
	opDIV_W  = 0x00200000
	opMOD_W  = 0x00208000
	opDIV_WU = 0x00210000
	opMOD_WU = 0x00218000
	opDIV_D  = 0x00220000
	opMOD_D  = 0x00228000
	opDIV_DU = 0x00230000
	opMOD_DU = 0x00238000

	opALSL_W = 0x00040000 // maskR3sa
	opALSL_D = 0x002c0000 // maskR3sa

	opSLLI_W = 0x00408000 // maskShW
	opSRLI_W = 0x00448000
	opSRAI_W = 0x00488000
	opSLLI_D = 0x00410000 // maskShD
	opSRLI_D = 0x00450000
	opSRAI_D = 0x00490000

	opBSTRINS_W  = 0x00600000 // maskR... handled specially (msbw/lsbw fields)
	opBSTRPICK_W = 0x00608000
	opBSTRINS_D  = 0x00800000
	opBSTRPICK_D = 0x00c00000

	opSLTI  = 0x02000000 // maskRI12
	opSLTUI = 0x02400000
	opADDI_W = 0x02800000
	opADDI_D = 0x02c00000
	opLU52I_D = 0x03000000
	opANDI  = 0x03400000
	opORI   = 0x03800000
	opXORI  = 0x03c00000

	opLU12I_W   = 0x14000000 // maskRI20
	opLU32I_D   = 0x16000000
	opPCADDI    = 0x18000000
	opPCALAU12I = 0x1a000000
	opPCADDU12I = 0x1c000000
	opPCADDU18I = 0x1e000000

	opLDPTR_W = 0x24000000 // maskRI14
	opSTPTR_W = 0x25000000
	opLDPTR_D = 0x26000000
	opSTPTR_D = 0x27000000

	opLL_W = 0x20000000 // maskRI14
	opSC_W = 0x21000000
	opLL_D = 0x22000000
	opSC_D = 0x23000000

	opDBAR = 0x38720000 // maskHint
	opIBAR = 0x38728000

	opLD_B  = 0x28000000 // maskRI12
	opLD_H  = 0x28400000
	opLD_W  = 0x28800000
	opLD_D  = 0x28c00000
	opST_B  = 0x29000000
	opST_H  = 0x29400000
	opST_W  = 0x29800000
	opST_D  = 0x29c00000
	opLD_BU = 0x2a000000
	opLD_HU = 0x2a400000
	opLD_WU = 0x2a800000

	opLDX_B  = 0x38000000 // maskR3
	opLDX_H  = 0x38040000
	opLDX_W  = 0x38080000
	opLDX_D  = 0x380c0000
	opSTX_B  = 0x38100000
	opSTX_H  = 0x38140000
	opSTX_W  = 0x38180000
	opSTX_D  = 0x381c0000
	opLDX_BU = 0x38200000
	opLDX_HU = 0x38240000
	opLDX_WU = 0x38280000

	opBEQZ = 0x40000000 // maskRI21
	opBNEZ = 0x44000000

	opJIRL = 0x4c000000 // maskRI16
	opB    = 0x50000000 // maskI26
	opBL   = 0x54000000 // maskI26
	opBEQ  = 0x58000000 // maskRI16
	opBNE  = 0x5c000000
	opBLT  = 0x60000000
	opBGE  = 0x64000000
	opBLTU = 0x68000000
	opBGEU = 0x6c000000

	opSYSCALL = 0x002b0000 // maskR3 (ra/rk fields carry a software code, ignored)
	opBREAK   = 0x002a0000
)
