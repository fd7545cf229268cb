// Completion: 100% - ARM64 encoders complete, every field range-checked
package arm64

// ARM64 uses fixed 32-bit little-endian instructions. Every encoder below is
// a pure function: opcode constant ORed with operand fields. Operands that do
// not fit their field are rejected with an *EncodingError, never truncated.

const (
	opMovReg = 0xaa0003e0
	opMovz   = 0xd2800000
	opMovk   = 0xf2800000
	opMovn   = 0x92800000
	opAddImm = 0x91000000
	opSubImm = 0xd1000000
	opAddReg = 0x8b000000
	opLdrb   = 0x39400000
	opStrb   = 0x39000000
	opLdr    = 0xf9400000
	opStr    = 0xf9000000
	opCmpImm = 0xf100001f
	opCbz    = 0xb4000000
	opCbnz   = 0xb5000000
	opTbnz   = 0x37000000
	opB      = 0x14000000
	opBL     = 0x94000000
	opBR     = 0xd61f0000
	opAdr    = 0x10000000
	opSvc    = 0xd4000001
	opRet    = 0xd65f0000
)

const shiftLSL12 = 1 << 22

// MOV (register): MOV Xd, Xm  (alias for ORR Xd, XZR, Xm)
func MovReg(rd, rm Reg) (uint32, error) {
	if err := checkRegs("mov", rd, rm); err != nil {
		return 0, err
	}
	return opMovReg | uint32(rm)<<16 | uint32(rd), nil
}

func moveWide(mnemonic string, op uint32, rd Reg, imm uint64, shift uint) (uint32, error) {
	if err := checkReg(mnemonic, "destination", rd); err != nil {
		return 0, err
	}
	if shift%16 != 0 || shift > 48 {
		return 0, rangeErr(mnemonic, "shift", int64(shift), 2)
	}
	if !fitsUnsigned(imm, 16) {
		return 0, rangeErr(mnemonic, "immediate", int64(imm), 16)
	}
	hw := uint32(shift / 16)
	return op | hw<<21 | uint32(imm)<<5 | uint32(rd), nil
}

// MOVZ (move wide with zero): MOVZ Xd, #imm16{, LSL #shift}
func Movz(rd Reg, imm uint64, shift uint) (uint32, error) {
	return moveWide("movz", opMovz, rd, imm, shift)
}

// MOVK (move wide with keep): MOVK Xd, #imm16{, LSL #shift}
func Movk(rd Reg, imm uint64, shift uint) (uint32, error) {
	return moveWide("movk", opMovk, rd, imm, shift)
}

// MOVN (move wide with NOT): MOVN Xd, #imm16{, LSL #shift}
func Movn(rd Reg, imm uint64, shift uint) (uint32, error) {
	return moveWide("movn", opMovn, rd, imm, shift)
}

func addSubImm(mnemonic string, op uint32, rd, rn Reg, imm uint32, shifted bool) (uint32, error) {
	if err := checkRegs(mnemonic, rd, rn); err != nil {
		return 0, err
	}
	if !fitsUnsigned(uint64(imm), 12) {
		return 0, rangeErr(mnemonic, "immediate", int64(imm), 12)
	}
	instr := op | imm<<10 | uint32(rn)<<5 | uint32(rd)
	if shifted {
		instr |= shiftLSL12
	}
	return instr, nil
}

// ADD (immediate): ADD Xd, Xn, #imm12{, LSL #12}
func AddImm(rd, rn Reg, imm uint32, shifted bool) (uint32, error) {
	return addSubImm("add", opAddImm, rd, rn, imm, shifted)
}

// SUB (immediate): SUB Xd, Xn, #imm12{, LSL #12}
func SubImm(rd, rn Reg, imm uint32, shifted bool) (uint32, error) {
	return addSubImm("sub", opSubImm, rd, rn, imm, shifted)
}

// ADD (shifted register, no shift): ADD Xd, Xn, Xm
func AddReg(rd, rn, rm Reg) (uint32, error) {
	if err := checkRegs("add", rd, rn, rm); err != nil {
		return 0, err
	}
	return opAddReg | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd), nil
}

// loadStore encodes the unsigned-offset form. The byte offset must be a
// multiple of the access size and the scaled value must fit imm12.
func loadStore(mnemonic string, op uint32, rt, rn Reg, offset uint32, size uint32) (uint32, error) {
	if err := checkRegs(mnemonic, rt, rn); err != nil {
		return 0, err
	}
	if offset%size != 0 {
		return 0, rangeErr(mnemonic, "unaligned offset", int64(offset), 12)
	}
	scaled := offset / size
	if !fitsUnsigned(uint64(scaled), 12) {
		return 0, rangeErr(mnemonic, "offset", int64(offset), 12)
	}
	return op | scaled<<10 | uint32(rn)<<5 | uint32(rt), nil
}

// LDRB (unsigned offset): LDRB Wt, [Xn{, #imm}]
func Ldrb(rt, rn Reg, offset uint32) (uint32, error) {
	return loadStore("ldrb", opLdrb, rt, rn, offset, 1)
}

// STRB (unsigned offset): STRB Wt, [Xn{, #imm}]
func Strb(rt, rn Reg, offset uint32) (uint32, error) {
	return loadStore("strb", opStrb, rt, rn, offset, 1)
}

// LDR (unsigned offset, 64-bit): LDR Xt, [Xn{, #imm}]
func Ldr(rt, rn Reg, offset uint32) (uint32, error) {
	return loadStore("ldr", opLdr, rt, rn, offset, 8)
}

// STR (unsigned offset, 64-bit): STR Xt, [Xn{, #imm}]
func Str(rt, rn Reg, offset uint32) (uint32, error) {
	return loadStore("str", opStr, rt, rn, offset, 8)
}

// CMP (immediate): CMP Xn, #imm12  (alias for SUBS XZR, Xn, #imm12)
func CmpImm(rn Reg, imm uint32) (uint32, error) {
	if err := checkReg("cmp", "register operand 1", rn); err != nil {
		return 0, err
	}
	if !fitsUnsigned(uint64(imm), 12) {
		return 0, rangeErr("cmp", "immediate", int64(imm), 12)
	}
	return opCmpImm | imm<<10 | uint32(rn)<<5, nil
}

func compareBranch(mnemonic string, op uint32, rt Reg, disp int32) (uint32, error) {
	if err := checkReg(mnemonic, "register operand 1", rt); err != nil {
		return 0, err
	}
	if !fitsSigned(int64(disp), 19) {
		return 0, rangeErr(mnemonic, "displacement", int64(disp), 19)
	}
	return op | (uint32(disp)&0x7ffff)<<5 | uint32(rt), nil
}

// CBZ: CBZ Xt, #disp19 (displacement in instructions)
func Cbz(rt Reg, disp int32) (uint32, error) {
	return compareBranch("cbz", opCbz, rt, disp)
}

// CBNZ: CBNZ Xt, #disp19 (displacement in instructions)
func Cbnz(rt Reg, disp int32) (uint32, error) {
	return compareBranch("cbnz", opCbnz, rt, disp)
}

// TBNZ: TBNZ Xt, #bit, #disp14 (displacement in instructions)
func Tbnz(rt Reg, bit uint, disp int32) (uint32, error) {
	if err := checkReg("tbnz", "register operand 1", rt); err != nil {
		return 0, err
	}
	if bit > 63 {
		return 0, rangeErr("tbnz", "bit", int64(bit), 6)
	}
	if !fitsSigned(int64(disp), 14) {
		return 0, rangeErr("tbnz", "displacement", int64(disp), 14)
	}
	b5 := uint32(bit>>5) & 1
	b40 := uint32(bit) & 0x1f
	return opTbnz | b5<<31 | b40<<19 | (uint32(disp)&0x3fff)<<5 | uint32(rt), nil
}

func branchImm(mnemonic string, op uint32, disp int32) (uint32, error) {
	if !fitsSigned(int64(disp), 26) {
		return 0, rangeErr(mnemonic, "displacement", int64(disp), 26)
	}
	return op | uint32(disp)&0x3ffffff, nil
}

// B: B #disp26 (displacement in instructions)
func B(disp int32) (uint32, error) {
	return branchImm("b", opB, disp)
}

// BL: BL #disp26 (displacement in instructions)
func BL(disp int32) (uint32, error) {
	return branchImm("bl", opBL, disp)
}

// BR: BR Xn
func BR(rn Reg) (uint32, error) {
	if err := checkReg("br", "register operand 1", rn); err != nil {
		return 0, err
	}
	return opBR | uint32(rn)<<5, nil
}

// ADR: ADR Xd, #disp21. Unlike the branches, the displacement is in bytes.
func Adr(rd Reg, disp int32) (uint32, error) {
	if err := checkReg("adr", "destination", rd); err != nil {
		return 0, err
	}
	if !fitsSigned(int64(disp), 21) {
		return 0, rangeErr("adr", "displacement", int64(disp), 21)
	}
	u := uint32(disp) & 0x1fffff
	immlo := u & 3
	immhi := u >> 2
	return opAdr | immlo<<29 | immhi<<5 | uint32(rd), nil
}

// SVC: SVC #imm16
func Svc(imm uint32) (uint32, error) {
	if !fitsUnsigned(uint64(imm), 16) {
		return 0, rangeErr("svc", "immediate", int64(imm), 16)
	}
	return opSvc | imm<<5, nil
}

// RET: RET {Xn}. Pass LR for the plain form.
func Ret(rn Reg) (uint32, error) {
	if err := checkReg("ret", "register operand 1", rn); err != nil {
		return 0, err
	}
	return opRet | uint32(rn)<<5, nil
}
