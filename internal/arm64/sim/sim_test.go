package sim

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xyproto/bfjit/internal/arm64"
	"github.com/xyproto/bfjit/internal/codebuf"
	"github.com/xyproto/bfjit/internal/engine"
)

const codeBase = 0x400000

func linux(t *testing.T) engine.SyscallConvention {
	t.Helper()
	sc, err := engine.LinuxARM64.Syscalls()
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

// assemble builds code with gen and maps it at codeBase.
func assemble(t *testing.T, gen func(a *arm64.Assembler)) *Machine {
	t.Helper()
	buf := codebuf.New("sim", codebuf.NewHeapRegion(64))
	a := arm64.NewAssembler(buf)
	gen(a)
	if err := a.Err(); err != nil {
		t.Fatal(err)
	}
	m := New(linux(t))
	m.Map(codeBase, buf.Bytes())
	return m
}

func TestMoveWide(t *testing.T) {
	m := assemble(t, func(a *arm64.Assembler) {
		a.Movz(arm64.X0, 0x1234, 0)
		a.Movk(arm64.X0, 0xbeef, 16)
		a.Movk(arm64.X0, 0x1, 48)
		a.Movn(arm64.X1, 0, 0)
		a.MovReg(arm64.X2, arm64.X0)
		a.Ret()
	})
	got, err := m.Call(codeBase, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := uint64(0x0001_0000_beef_1234); got != want || m.X[2] != want {
		t.Errorf("x0 = %#x, x2 = %#x, want %#x", got, m.X[2], want)
	}
	if m.X[1] != ^uint64(0) {
		t.Errorf("movn x1, #0 = %#x", m.X[1])
	}
}

func TestArithmetic(t *testing.T) {
	m := assemble(t, func(a *arm64.Assembler) {
		a.AddImm(arm64.X1, arm64.X0, 2, true) // x0 + 0x2000
		a.SubImm(arm64.X1, arm64.X1, 1, false)
		a.AddReg(arm64.X0, arm64.X0, arm64.X1)
		a.Ret()
	})
	got, err := m.Call(codeBase, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5+0x2000+5-1 {
		t.Errorf("result %#x", got)
	}
}

func TestLoadStore(t *testing.T) {
	data := make([]byte, 16)
	m := assemble(t, func(a *arm64.Assembler) {
		a.Movz(arm64.X1, 0x1ff, 0)
		a.Strb(arm64.X1, arm64.X0, 3)
		a.Ldrb(arm64.X2, arm64.X0, 3)
		a.Str(arm64.X2, arm64.X0, 8)
		a.Ldr(arm64.X0, arm64.X0, 8)
		a.Ret()
	})
	m.Map(0x9000, data)
	got, err := m.Call(codeBase, 0x9000)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xff || data[3] != 0xff || data[8] != 0xff {
		t.Errorf("x0 = %#x, memory % x", got, data)
	}
}

func TestBranches(t *testing.T) {
	m := assemble(t, func(a *arm64.Assembler) {
		a.Movz(arm64.X1, 0, 0)                 // 0
		a.Cbz(arm64.X0, 3)                     // 1: to 4
		a.AddImm(arm64.X1, arm64.X1, 1, false) // 2
		a.B(2)                                 // 3: to 5
		a.AddImm(arm64.X1, arm64.X1, 2, false) // 4
		a.Cbnz(arm64.X0, 2)                    // 5: to 7
		a.AddImm(arm64.X1, arm64.X1, 4, false) // 6
		a.Tbnz(arm64.X0, 63, 2)                // 7: to 9
		a.AddImm(arm64.X1, arm64.X1, 8, false) // 8
		a.MovReg(arm64.X0, arm64.X1)           // 9
		a.Ret()
	})
	tests := []struct {
		arg, want uint64
	}{
		{0, 2 + 4 + 8},
		{1, 1 + 8},
		{1 << 63, 1},
	}
	for _, tt := range tests {
		m.Steps = 0
		got, err := m.Call(codeBase, tt.arg)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("arg %#x: got %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestCallAndRegisterBranch(t *testing.T) {
	m := assemble(t, func(a *arm64.Assembler) {
		a.MovReg(arm64.X19, arm64.LR)          // 0
		a.BL(4)                                // 1: to 5
		a.Adr(arm64.X2, 12)                    // 2: address of 5
		a.MovReg(arm64.LR, arm64.X19)          // 3
		a.Ret()                                // 4
		a.AddImm(arm64.X0, arm64.X0, 7, false) // 5
		a.Ret()                                // 6
	})
	got, err := m.Call(codeBase, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 || m.X[2] != codeBase+5*4 {
		t.Errorf("x0 = %d, x2 = %#x", got, m.X[2])
	}

	m = assemble(t, func(a *arm64.Assembler) {
		a.Adr(arm64.X3, 12)    // 0: address of 3
		a.BR(arm64.X3)         // 1
		a.Movz(arm64.X0, 1, 0) // 2
		a.Movz(arm64.X0, 2, 0) // 3
		a.Ret()
	})
	if got, err := m.Call(codeBase, 0); err != nil || got != 2 {
		t.Errorf("br: x0 = %d, err %v", got, err)
	}
}

func TestSyscalls(t *testing.T) {
	m := assemble(t, func(a *arm64.Assembler) {
		// read one byte into the tape, add one and write it back
		a.MovReg(arm64.X19, arm64.X0)
		a.Movz(arm64.X8, 63, 0)
		a.Movz(arm64.X0, 0, 0)
		a.MovReg(arm64.X1, arm64.X19)
		a.Movz(arm64.X2, 1, 0)
		a.Svc(0)
		a.Ldrb(arm64.X3, arm64.X19, 0)
		a.AddImm(arm64.X3, arm64.X3, 1, false)
		a.Strb(arm64.X3, arm64.X19, 0)
		a.Movz(arm64.X8, 64, 0)
		a.Movz(arm64.X0, 1, 0)
		a.Svc(0)
		a.Ret()
	})
	tape := make([]byte, 1)
	m.Map(0x9000, tape)
	var out bytes.Buffer
	m.Stdin = strings.NewReader("A")
	m.Stdout = &out
	if _, err := m.Call(codeBase, 0x9000); err != nil {
		t.Fatal(err)
	}
	if out.String() != "B" {
		t.Errorf("output %q, want %q", out.String(), "B")
	}

	// At end of input the cell is left alone
	tape[0] = 9
	out.Reset()
	if _, err := m.Call(codeBase, 0x9000); err != nil {
		t.Fatal(err)
	}
	if out.String() != "\x0a" {
		t.Errorf("output after EOF %q", out.String())
	}
}

func TestMmapAndExit(t *testing.T) {
	gen := func(a *arm64.Assembler) {
		a.Movz(arm64.X8, 222, 0)
		a.Movz(arm64.X1, 100, 0)
		a.Svc(0)
		a.MovReg(arm64.X19, arm64.X0)
		a.Movz(arm64.X8, 93, 0)
		a.Movz(arm64.X0, 3, 0)
		a.Svc(0)
	}
	m := assemble(t, gen)
	status, err := m.Start(codeBase)
	if err != nil {
		t.Fatal(err)
	}
	if status != 3 || !m.Exited || m.X[19] != MmapBase {
		t.Errorf("status %d, exited %v, mapping at %#x", status, m.Exited, m.X[19])
	}
	if _, err := m.Memory(MmapBase, 100); err != nil {
		t.Errorf("mapping not addressable: %v", err)
	}
	if _, err := m.Memory(MmapBase+100, 1); !errors.Is(err, ErrFault) {
		t.Errorf("byte past the mapping: %v", err)
	}

	m = assemble(t, gen)
	m.FailMmap = true
	if _, err := m.Start(codeBase); err != nil {
		t.Fatal(err)
	}
	if int64(m.X[19]) != -12 {
		t.Errorf("failed mmap returned %d, want -12", int64(m.X[19]))
	}
}

func TestFaults(t *testing.T) {
	m := assemble(t, func(a *arm64.Assembler) {
		a.Ldrb(arm64.X1, arm64.X0, 0)
		a.Ret()
	})
	if _, err := m.Call(codeBase, 0x9000); !errors.Is(err, ErrFault) {
		t.Errorf("unmapped load: %v", err)
	}

	m = assemble(t, func(a *arm64.Assembler) {
		a.CmpImm(arm64.X0, 1)
		a.Ret()
	})
	if _, err := m.Call(codeBase, 0); !errors.Is(err, ErrUndefined) {
		t.Errorf("unsupported instruction: %v", err)
	}

	m = assemble(t, func(a *arm64.Assembler) {
		a.Svc(0x80)
	})
	if _, err := m.Call(codeBase, 0); !errors.Is(err, ErrUndefined) {
		t.Errorf("foreign trap immediate: %v", err)
	}
}

func TestStepLimit(t *testing.T) {
	m := assemble(t, func(a *arm64.Assembler) {
		a.B(0)
	})
	m.MaxSteps = 1000
	if _, err := m.Call(codeBase, 0); !errors.Is(err, ErrStepLimit) {
		t.Errorf("endless loop: %v", err)
	}
	if m.Steps != 1000 {
		t.Errorf("%d steps", m.Steps)
	}
}
