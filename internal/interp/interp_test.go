package interp

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xyproto/bfjit/internal/diag"
)

func run(t *testing.T, src, stdin string) (*Machine, string) {
	t.Helper()
	var out bytes.Buffer
	m, err := Run(strings.NewReader(src), 30000, strings.NewReader(stdin), &out)
	if err != nil {
		t.Fatalf("%q: %v", src, err)
	}
	return m, out.String()
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		src, stdin, want string
		cell0            byte
	}{
		{"+++.", "", "\x03", 3},
		{"++++++++[>++++++++<-]>.", "", "@", 0},
		{",.", "A", "A", 'A'},
		{"-.", "", "\xff", 255},
		{strings.Repeat("+", 257) + ".", "", "\x01", 1},
	}
	for _, tt := range tests {
		m, out := run(t, tt.src, tt.stdin)
		if out != tt.want {
			t.Errorf("%q printed %q, want %q", tt.src, out, tt.want)
		}
		if m.Tape[0] != tt.cell0 {
			t.Errorf("%q: cell 0 = %d, want %d", tt.src, m.Tape[0], tt.cell0)
		}
	}
}

func TestEOFLeavesCellUnchanged(t *testing.T) {
	m, out := run(t, "+++++,.", "")
	if out != "\x05" || m.Tape[0] != 5 {
		t.Errorf("cell changed on EOF: %q, %d", out, m.Tape[0])
	}
}

func TestSkipsLoopOnZero(t *testing.T) {
	_, out := run(t, "[.]+.", "")
	if out != "\x01" {
		t.Errorf("loop body ran on zero cell: %q", out)
	}
}

func TestBracketErrors(t *testing.T) {
	for src, code := range map[string]int{"]": diag.ExitExtraClose, "[": diag.ExitMissingClose} {
		var out bytes.Buffer
		_, err := Run(strings.NewReader(src), 10, nil, &out)
		if diag.ExitCode(err) != code {
			t.Errorf("%q: %v", src, err)
		}
		if out.Len() != 0 {
			t.Errorf("%q produced output", src)
		}
	}
}

func TestTapeBounds(t *testing.T) {
	_, err := Run(strings.NewReader("<+"), 10, nil, nil)
	if !errors.Is(err, ErrTapeBounds) {
		t.Errorf("expected ErrTapeBounds, got %v", err)
	}
	_, err = Run(strings.NewReader(">>>>>>>>>>+"), 10, nil, nil)
	if !errors.Is(err, ErrTapeBounds) {
		t.Errorf("expected ErrTapeBounds, got %v", err)
	}
}
