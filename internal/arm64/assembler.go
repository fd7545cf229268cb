// Completion: 100% - Assembler complete
package arm64

// Sink receives encoded instructions in emission order.
type Sink interface {
	Emit(instr uint32) error
}

// Assembler encodes instructions and emits them into a Sink. After the first
// failure every further call is a no-op returning that same error, so a
// sequence can be emitted and checked once with Err.
type Assembler struct {
	sink Sink
	err  error
}

// NewAssembler returns an Assembler writing to sink.
func NewAssembler(sink Sink) *Assembler {
	return &Assembler{sink: sink}
}

// Err returns the first error encountered.
func (a *Assembler) Err() error {
	return a.err
}

func (a *Assembler) emit(instr uint32, err error) error {
	if a.err != nil {
		return a.err
	}
	if err != nil {
		a.err = err
		return err
	}
	a.err = a.sink.Emit(instr)
	return a.err
}

// Word emits a raw, already encoded instruction.
func (a *Assembler) Word(instr uint32) error { return a.emit(instr, nil) }

func (a *Assembler) MovReg(rd, rm Reg) error { return a.emit(MovReg(rd, rm)) }

func (a *Assembler) Movz(rd Reg, imm uint64, shift uint) error {
	return a.emit(Movz(rd, imm, shift))
}

func (a *Assembler) Movk(rd Reg, imm uint64, shift uint) error {
	return a.emit(Movk(rd, imm, shift))
}

func (a *Assembler) Movn(rd Reg, imm uint64, shift uint) error {
	return a.emit(Movn(rd, imm, shift))
}

func (a *Assembler) AddImm(rd, rn Reg, imm uint32, shifted bool) error {
	return a.emit(AddImm(rd, rn, imm, shifted))
}

func (a *Assembler) SubImm(rd, rn Reg, imm uint32, shifted bool) error {
	return a.emit(SubImm(rd, rn, imm, shifted))
}

func (a *Assembler) AddReg(rd, rn, rm Reg) error { return a.emit(AddReg(rd, rn, rm)) }

func (a *Assembler) Ldrb(rt, rn Reg, offset uint32) error { return a.emit(Ldrb(rt, rn, offset)) }

func (a *Assembler) Strb(rt, rn Reg, offset uint32) error { return a.emit(Strb(rt, rn, offset)) }

func (a *Assembler) Ldr(rt, rn Reg, offset uint32) error { return a.emit(Ldr(rt, rn, offset)) }

func (a *Assembler) Str(rt, rn Reg, offset uint32) error { return a.emit(Str(rt, rn, offset)) }

func (a *Assembler) CmpImm(rn Reg, imm uint32) error { return a.emit(CmpImm(rn, imm)) }

func (a *Assembler) Cbz(rt Reg, disp int32) error { return a.emit(Cbz(rt, disp)) }

func (a *Assembler) Cbnz(rt Reg, disp int32) error { return a.emit(Cbnz(rt, disp)) }

func (a *Assembler) Tbnz(rt Reg, bit uint, disp int32) error { return a.emit(Tbnz(rt, bit, disp)) }

func (a *Assembler) B(disp int32) error { return a.emit(B(disp)) }

func (a *Assembler) BL(disp int32) error { return a.emit(BL(disp)) }

func (a *Assembler) BR(rn Reg) error { return a.emit(BR(rn)) }

func (a *Assembler) Adr(rd Reg, disp int32) error { return a.emit(Adr(rd, disp)) }

func (a *Assembler) Svc(imm uint32) error { return a.emit(Svc(imm)) }

func (a *Assembler) Ret() error { return a.emit(Ret(LR)) }

// MovImm loads a 64-bit constant with one MOVZ followed by a MOVK for every
// further non-zero halfword.
func (a *Assembler) MovImm(rd Reg, imm uint64) error {
	if err := a.Movz(rd, imm&0xffff, 0); err != nil {
		return err
	}
	for shift := uint(16); shift < 64; shift += 16 {
		if hw := (imm >> shift) & 0xffff; hw != 0 {
			if err := a.Movk(rd, hw, shift); err != nil {
				return err
			}
		}
	}
	return nil
}
