package arm64

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type words []uint32

func (w *words) Emit(instr uint32) error {
	*w = append(*w, instr)
	return nil
}

func TestAssemblerSequence(t *testing.T) {
	var out words
	a := NewAssembler(&out)
	a.MovReg(X10, X0)
	a.Movz(X9, 0, 0)
	a.AddReg(X12, X10, X9)
	a.Ldrb(X13, X12, 0)
	a.Cbnz(X13, 2)
	a.B(0)
	a.Ret()
	if err := a.Err(); err != nil {
		t.Fatal(err)
	}
	want := words{0xaa0003ea, 0xd2800009, 0x8b09014c, 0x3940018d, 0xb500004d, 0x14000000, 0xd65f03c0}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemblerStopsAtFirstError(t *testing.T) {
	var out words
	a := NewAssembler(&out)
	a.Movz(X0, 1, 0)
	first := a.AddImm(X0, X0, 1<<12, false)
	a.Movz(X1, 2, 0)
	if !errors.Is(first, ErrOperandRange) {
		t.Fatalf("expected range error, got %v", first)
	}
	if a.Err() != first {
		t.Errorf("Err() = %v, want the first error", a.Err())
	}
	if len(out) != 1 {
		t.Errorf("emitted %d words after failure, want 1", len(out))
	}
}

func TestMovImm(t *testing.T) {
	var out words
	a := NewAssembler(&out)
	if err := a.MovImm(X1, 30000); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Errorf("30000 took %d instructions, want 1", len(out))
	}
	out = out[:0]
	a = NewAssembler(&out)
	if err := a.MovImm(X1, 0x12345678); err != nil {
		t.Fatal(err)
	}
	want := words{0xd2800000 | 0x5678<<5 | 1, 0xf2a00000 | 0x1234<<5 | 1}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("MovImm mismatch (-want +got):\n%s", diff)
	}
}

func TestRegString(t *testing.T) {
	if X10.String() != "x10" || XZR.String() != "xzr" || X13.W() != "w13" {
		t.Errorf("unexpected register names %s %s %s", X10, XZR, X13.W())
	}
}
