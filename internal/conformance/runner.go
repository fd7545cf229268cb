package conformance

import (
	"bytes"
	"fmt"

	"github.com/xyproto/bfjit/internal/diag"
)

// Result is what a backend produced for one case.
type Result struct {
	Output []byte
	Tape   []byte
	Err    error
}

// Backend runs Brainfuck source with stdin and returns the result. Tape may
// be shorter than the machine's tape but must cover the cells a case checks.
type Backend func(source, stdin string) Result

// Run runs c on backend and reports the first mismatch.
func Run(backend Backend, c Case) error {
	return Check(c, backend(c.Source, c.Stdin))
}

// Check compares r with the expectation of c.
func Check(c Case, r Result) error {
	if c.WantsError() {
		if r.Err == nil {
			return fmt.Errorf("expected %s, program ran", c.Expect.Error)
		}
		if got := errorName(r.Err); got != c.Expect.Error {
			return fmt.Errorf("expected %s, got %v", c.Expect.Error, r.Err)
		}
		if len(r.Output) != 0 {
			return fmt.Errorf("failed compilation produced output %q", r.Output)
		}
		return nil
	}
	if r.Err != nil {
		return fmt.Errorf("unexpected error: %w", r.Err)
	}
	if c.Expect.Output != "" && string(r.Output) != c.Expect.Output {
		return fmt.Errorf("output %q, want %q", r.Output, c.Expect.Output)
	}
	if c.Expect.Bytes != nil {
		want := make([]byte, len(c.Expect.Bytes))
		for i, b := range c.Expect.Bytes {
			want[i] = byte(b)
		}
		if !bytes.Equal(r.Output, want) {
			return fmt.Errorf("output bytes %v, want %v", r.Output, want)
		}
	}
	for i, want := range c.Expect.Cells {
		if i >= len(r.Tape) {
			return fmt.Errorf("tape has %d cells, case checks %d", len(r.Tape), len(c.Expect.Cells))
		}
		if int(r.Tape[i]) != want {
			return fmt.Errorf("cell %d = %d, want %d", i, r.Tape[i], want)
		}
	}
	return nil
}

func errorName(err error) string {
	switch diag.ExitCode(err) {
	case diag.ExitExtraClose:
		return ErrExtraClose
	case diag.ExitMissingClose:
		return ErrMissingClose
	default:
		return err.Error()
	}
}
