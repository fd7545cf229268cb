package execmem

import (
	"bytes"
	"errors"
	"runtime"
	"testing"
)

func skipUnlessMappable(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skipf("executable memory is not supported on %s", runtime.GOOS)
	}
}

func TestAllocateRoundsToPage(t *testing.T) {
	r, err := Allocate(100)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()
	if r.Len() != pageSize() {
		t.Errorf("Len() = %d, want one page (%d)", r.Len(), pageSize())
	}
	if r.State() != Writable {
		t.Errorf("new region is %s", r.State())
	}
}

func TestAllocateRejectsEmpty(t *testing.T) {
	if _, err := Allocate(0); !errors.Is(err, ErrExhausted) {
		t.Errorf("Allocate(0): expected ErrExhausted, got %v", err)
	}
}

func TestGrowPreservesContents(t *testing.T) {
	r, err := Allocate(pageSize())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()
	pattern := []byte{0xc0, 0x03, 0x5f, 0xd6}
	copy(r.Bytes(), pattern)
	if err := r.Grow(3 * pageSize()); err != nil {
		t.Fatal(err)
	}
	if r.Len() < 3*pageSize() {
		t.Errorf("Len() = %d after growing to %d", r.Len(), 3*pageSize())
	}
	if !bytes.Equal(r.Bytes()[:4], pattern) {
		t.Errorf("contents lost on grow: % x", r.Bytes()[:4])
	}
	// Growing to a size already covered is a no-op.
	before := r.Len()
	if err := r.Grow(1); err != nil || r.Len() != before {
		t.Errorf("Grow(1) = %v, Len %d -> %d", err, before, r.Len())
	}
}

func TestStateMachine(t *testing.T) {
	skipUnlessMappable(t)
	r, err := Allocate(pageSize())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Entry(); !errors.Is(err, ErrState) {
		t.Errorf("Entry on writable region: %v", err)
	}
	if err := r.Open(); !errors.Is(err, ErrState) {
		t.Errorf("Open on writable region: %v", err)
	}
	copy(r.Bytes(), []byte{0xc0, 0x03, 0x5f, 0xd6})
	if err := r.Seal(); err != nil {
		t.Fatal(err)
	}
	if r.State() != Executable {
		t.Fatalf("state after Seal: %s", r.State())
	}
	if err := r.Seal(); !errors.Is(err, ErrState) {
		t.Errorf("second Seal: %v", err)
	}
	if err := r.Grow(2 * pageSize()); !errors.Is(err, ErrState) {
		t.Errorf("Grow on executable region: %v", err)
	}
	entry, err := r.Entry()
	if err != nil || entry == 0 {
		t.Errorf("Entry() = %#x, %v", entry, err)
	}
	if r.Bytes()[0] != 0xc0 {
		t.Errorf("sealed region not readable as written: % x", r.Bytes()[:4])
	}
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	r.Bytes()[0] = 0xc0
	if err := r.Release(); err != nil {
		t.Fatal(err)
	}
	if r.State() != Released || r.Bytes() != nil {
		t.Errorf("released region still exposes memory")
	}
	if err := r.Release(); !errors.Is(err, ErrState) {
		t.Errorf("second Release: %v", err)
	}
	if err := r.Seal(); !errors.Is(err, ErrState) {
		t.Errorf("Seal after Release: %v", err)
	}
}

func TestSealUnsupportedElsewhere(t *testing.T) {
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		t.Skip("host supports executable memory")
	}
	r, err := Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()
	if err := r.Seal(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Writable: "writable", Executable: "executable", Released: "released"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q", int(s), s.String())
		}
	}
}
