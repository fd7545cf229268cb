// Completion: 100% - AArch64 subset simulator complete

// Package sim executes the subset of AArch64 that the code generator and
// the ELF bootstrap emit, so generated code can be run and checked on hosts
// that cannot execute it natively.
package sim

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/xyproto/bfjit/internal/arm64"
	"github.com/xyproto/bfjit/internal/engine"
)

var (
	ErrFault     = errors.New("memory fault")
	ErrUndefined = errors.New("undefined instruction")
	ErrStepLimit = errors.New("step limit reached")
)

// DefaultMaxSteps bounds a run so that a looping program fails instead of
// hanging the caller.
const DefaultMaxSteps = 50_000_000

// MmapBase is where the first anonymous mapping is placed.
const MmapBase = 0x10000000

// returnAddr is the link register value Call starts with. Returning to it
// ends the call.
const returnAddr = 0xffff_ffff_ffff_fffc

const pageSize = 0x1000

// Linux errno values returned negated in X0.
const (
	errIO    = 5
	errBadf  = 9
	errNomem = 12
	errFault = 14
	errInval = 22
	errNosys = 38
)

type segment struct {
	base uint64
	data []byte
}

// Machine is the register file plus a list of mapped segments.
type Machine struct {
	X  [31]uint64
	SP uint64
	PC uint64

	Syscalls engine.SyscallConvention
	Stdin    io.Reader
	Stdout   io.Writer
	MaxSteps int
	FailMmap bool // every mmap returns -ENOMEM

	Steps    int
	Exited   bool
	ExitCode int

	segs []segment
	next uint64
}

// New returns a Machine trapping system calls with convention sc.
func New(sc engine.SyscallConvention) *Machine {
	return &Machine{Syscalls: sc, MaxSteps: DefaultMaxSteps, next: MmapBase}
}

// Map makes data addressable at base. The slice is used in place, so stores
// by the program are visible to the caller.
func (m *Machine) Map(base uint64, data []byte) {
	m.segs = append(m.segs, segment{base: base, data: data})
}

// Memory returns n mapped bytes at addr.
func (m *Machine) Memory(addr uint64, n int) ([]byte, error) {
	for _, s := range m.segs {
		if addr < s.base {
			continue
		}
		off := addr - s.base
		if off <= uint64(len(s.data)) && uint64(len(s.data))-off >= uint64(n) {
			return s.data[off : off+uint64(n)], nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes at %#x (pc %#x)", ErrFault, n, addr, m.PC)
}

// LoadELF maps every PT_LOAD segment of an executable and returns its entry
// point.
func (m *Machine) LoadELF(image []byte) (uint64, error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if f.Machine != elf.EM_AARCH64 {
		return 0, fmt.Errorf("machine %v is not aarch64", f.Machine)
	}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, p.Memsz)
		if _, err := p.ReadAt(data[:p.Filesz], 0); err != nil {
			return 0, fmt.Errorf("segment at %#x: %w", p.Vaddr, err)
		}
		m.Map(p.Vaddr, data)
	}
	return f.Entry, nil
}

// Call runs the function at entry with arg in X0 until it returns, and
// returns X0.
func (m *Machine) Call(entry, arg uint64) (uint64, error) {
	m.X[0] = arg
	m.X[30] = returnAddr
	m.PC = entry
	if err := m.run(func() bool { return m.PC == returnAddr }); err != nil {
		return 0, err
	}
	if m.Exited {
		return 0, fmt.Errorf("exit(%d) before return", m.ExitCode)
	}
	return m.X[0], nil
}

// Start runs from entry until the program calls exit, and returns the exit
// status.
func (m *Machine) Start(entry uint64) (int, error) {
	m.PC = entry
	if err := m.run(func() bool { return false }); err != nil {
		return 0, err
	}
	return m.ExitCode, nil
}

func (m *Machine) run(done func() bool) error {
	for !m.Exited && !done() {
		if m.MaxSteps > 0 && m.Steps >= m.MaxSteps {
			return fmt.Errorf("%w after %d instructions", ErrStepLimit, m.Steps)
		}
		m.Steps++
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// reg reads Xn with 31 as XZR.
func (m *Machine) reg(n uint32) uint64 {
	if n == 31 {
		return 0
	}
	return m.X[n]
}

// regSP reads Xn with 31 as SP.
func (m *Machine) regSP(n uint32) uint64 {
	if n == 31 {
		return m.SP
	}
	return m.X[n]
}

func (m *Machine) set(n uint32, v uint64) {
	if n != 31 {
		m.X[n] = v
	}
}

func (m *Machine) setSP(n uint32, v uint64) {
	if n == 31 {
		m.SP = v
		return
	}
	m.X[n] = v
}

func wideImm(w uint32) (uint64, uint) {
	return uint64((w >> 5) & 0xffff), 16 * uint((w>>21)&3)
}

func addImm(w uint32) uint64 {
	imm := uint64((w >> 10) & 0xfff)
	if w&(1<<22) != 0 {
		imm <<= 12
	}
	return imm
}

func (m *Machine) branchTarget(pc uint64, w uint32) uint64 {
	disp, _ := arm64.BranchDisplacement(w)
	return pc + uint64(int64(disp)*4)
}

// Step executes one instruction.
func (m *Machine) Step() error {
	word, err := m.Memory(m.PC, 4)
	if err != nil {
		return err
	}
	w := binary.LittleEndian.Uint32(word)
	pc := m.PC
	next := pc + 4
	rd := w & 31
	rn := (w >> 5) & 31
	rm := (w >> 16) & 31

	switch {
	case w&0xffe0ffe0 == 0xaa0003e0: // MOV Xd, Xm
		m.set(rd, m.reg(rm))
	case w&0xff800000 == 0xd2800000: // MOVZ
		imm, s := wideImm(w)
		m.set(rd, imm<<s)
	case w&0xff800000 == 0xf2800000: // MOVK
		imm, s := wideImm(w)
		m.set(rd, m.reg(rd)&^(0xffff<<s)|imm<<s)
	case w&0xff800000 == 0x92800000: // MOVN
		imm, s := wideImm(w)
		m.set(rd, ^(imm << s))
	case w&0xff800000 == 0x91000000: // ADD imm
		m.setSP(rd, m.regSP(rn)+addImm(w))
	case w&0xff800000 == 0xd1000000: // SUB imm
		m.setSP(rd, m.regSP(rn)-addImm(w))
	case w&0xffe0fc00 == 0x8b000000: // ADD Xd, Xn, Xm
		m.set(rd, m.reg(rn)+m.reg(rm))
	case w&0xffc00000 == 0x39400000: // LDRB
		b, err := m.Memory(m.regSP(rn)+uint64((w>>10)&0xfff), 1)
		if err != nil {
			return err
		}
		m.set(rd, uint64(b[0]))
	case w&0xffc00000 == 0x39000000: // STRB
		b, err := m.Memory(m.regSP(rn)+uint64((w>>10)&0xfff), 1)
		if err != nil {
			return err
		}
		b[0] = byte(m.reg(rd))
	case w&0xffc00000 == 0xf9400000: // LDR X
		b, err := m.Memory(m.regSP(rn)+8*uint64((w>>10)&0xfff), 8)
		if err != nil {
			return err
		}
		m.set(rd, binary.LittleEndian.Uint64(b))
	case w&0xffc00000 == 0xf9000000: // STR X
		b, err := m.Memory(m.regSP(rn)+8*uint64((w>>10)&0xfff), 8)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(b, m.reg(rd))
	case w&0xfe000000 == 0xb4000000: // CBZ, CBNZ
		if (m.reg(rd) == 0) == (w&(1<<24) == 0) {
			next = m.branchTarget(pc, w)
		}
	case w&0x7e000000 == 0x36000000: // TBZ, TBNZ
		bit := (w>>31)<<5 | (w>>19)&31
		if (m.reg(rd)>>bit&1 == 1) == (w&(1<<24) != 0) {
			next = m.branchTarget(pc, w)
		}
	case w&0x7c000000 == 0x14000000: // B, BL
		if w&(1<<31) != 0 {
			m.X[30] = next
		}
		next = m.branchTarget(pc, w)
	case w&0xfffffc1f == 0xd61f0000: // BR
		next = m.reg(rn)
	case w&0xfffffc1f == 0xd65f0000: // RET
		next = m.reg(rn)
	case w&0x9f000000 == 0x10000000: // ADR
		imm := int64((w>>5)&0x7ffff)<<2 | int64((w>>29)&3)
		m.set(rd, pc+uint64(imm<<43>>43))
	case w&0xffe0001f == 0xd4000001: // SVC
		if imm := (w >> 5) & 0xffff; imm != uint32(m.Syscalls.TrapImm) {
			return fmt.Errorf("%w: svc #%#x at %#x", ErrUndefined, imm, pc)
		}
		m.syscall()
	default:
		return fmt.Errorf("%w: %#08x at %#x", ErrUndefined, w, pc)
	}
	m.PC = next
	return nil
}

func negErrno(e int64) uint64 {
	return uint64(-e)
}

func (m *Machine) syscall() {
	sc := m.Syscalls
	switch m.reg(uint32(sc.NumberReg)) {
	case uint64(sc.Write):
		m.X[0] = m.write(m.X[0], m.X[1], m.X[2])
	case uint64(sc.Read):
		m.X[0] = m.read(m.X[0], m.X[1], m.X[2])
	case uint64(sc.Mmap):
		m.X[0] = m.mmap(m.X[1])
	case uint64(sc.Exit):
		m.Exited = true
		m.ExitCode = int(m.X[0] & 0xff)
	default:
		m.X[0] = negErrno(errNosys)
	}
}

func (m *Machine) write(fd, addr, n uint64) uint64 {
	if fd != 1 || m.Stdout == nil {
		return negErrno(errBadf)
	}
	b, err := m.Memory(addr, int(n))
	if err != nil {
		return negErrno(errFault)
	}
	if _, err := m.Stdout.Write(b); err != nil {
		return negErrno(errIO)
	}
	return n
}

// read returns 0 without storing at end of input.
func (m *Machine) read(fd, addr, n uint64) uint64 {
	if fd != 0 {
		return negErrno(errBadf)
	}
	b, err := m.Memory(addr, int(n))
	if err != nil {
		return negErrno(errFault)
	}
	if m.Stdin == nil || n == 0 {
		return 0
	}
	k, err := io.ReadFull(m.Stdin, b)
	if k > 0 {
		return uint64(k)
	}
	if err == io.EOF {
		return 0
	}
	return negErrno(errIO)
}

// mmap maps exactly length zeroed bytes, so accesses past the end fault.
func (m *Machine) mmap(length uint64) uint64 {
	if m.FailMmap {
		return negErrno(errNomem)
	}
	if length == 0 {
		return negErrno(errInval)
	}
	base := m.next
	m.Map(base, make([]byte, length))
	pages := (length + pageSize - 1) / pageSize
	m.next += (pages + 1) * pageSize // leave an unmapped guard page
	return base
}
