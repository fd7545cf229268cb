// Completion: 100% - Reference interpreter complete
package interp

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/xyproto/bfjit/internal/compiler"
)

// ErrTapeBounds is returned when the cursor leaves the tape.
var ErrTapeBounds = errors.New("tape cursor out of bounds")

// Program is Brainfuck parsed into collapsed operations with resolved jumps.
type Program struct {
	ops  []compiler.Operation
	jump []int
}

// Parse reads source and matches its loops. Bracket errors are the same
// diagnostics the compiler reports.
func Parse(r io.Reader) (*Program, error) {
	sc := compiler.NewScanner(r)
	var res compiler.Resolver
	p := &Program{}
	for {
		op, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		i := len(p.ops)
		p.ops = append(p.ops, op)
		p.jump = append(p.jump, 0)
		switch op.Kind {
		case compiler.LoopStart:
			res.Open(i, op.Pos)
		case compiler.LoopEnd:
			pair, err := res.Close(i, op.Pos)
			if err != nil {
				return nil, err
			}
			p.jump[pair.Start] = pair.End
			p.jump[pair.End] = pair.Start
		}
	}
	if err := res.Finish(); err != nil {
		return nil, err
	}
	return p, nil
}

// Machine is the state of one run: the tape, the cursor and the streams.
// Reading at end of input leaves the cell unchanged.
type Machine struct {
	Tape   []byte
	Cursor int
	in     io.Reader
	out    *bufio.Writer
}

// NewMachine returns a Machine with a zeroed tape of tapeSize cells.
func NewMachine(tapeSize int, in io.Reader, out io.Writer) *Machine {
	if in == nil {
		in = eofReader{}
	}
	if out == nil {
		out = io.Discard
	}
	return &Machine{Tape: make([]byte, tapeSize), in: in, out: bufio.NewWriter(out)}
}

// Run executes p to completion.
func (m *Machine) Run(p *Program) error {
	defer m.out.Flush()
	var one [1]byte
	for pc := 0; pc < len(p.ops); pc++ {
		op := p.ops[pc]
		switch op.Kind {
		case compiler.MoveRight:
			m.Cursor += op.Count
		case compiler.MoveLeft:
			m.Cursor -= op.Count
		case compiler.Add, compiler.Sub, compiler.Output, compiler.Input, compiler.LoopStart, compiler.LoopEnd:
			if m.Cursor < 0 || m.Cursor >= len(m.Tape) {
				return fmt.Errorf("%s at %s: cursor %d: %w", op.Kind, op.Pos, m.Cursor, ErrTapeBounds)
			}
		}
		switch op.Kind {
		case compiler.Add:
			m.Tape[m.Cursor] += byte(op.Count)
		case compiler.Sub:
			m.Tape[m.Cursor] -= byte(op.Count)
		case compiler.Output:
			if err := m.out.WriteByte(m.Tape[m.Cursor]); err != nil {
				return err
			}
		case compiler.Input:
			if err := m.out.Flush(); err != nil {
				return err
			}
			n, err := m.in.Read(one[:])
			if n == 1 {
				m.Tape[m.Cursor] = one[0]
			} else if err != nil && err != io.EOF {
				return err
			}
		case compiler.LoopStart:
			if m.Tape[m.Cursor] == 0 {
				pc = p.jump[pc]
			}
		case compiler.LoopEnd:
			if m.Tape[m.Cursor] != 0 {
				pc = p.jump[pc]
			}
		}
	}
	return nil
}

// Run parses source and executes it on a fresh tape.
func Run(source io.Reader, tapeSize int, in io.Reader, out io.Writer) (*Machine, error) {
	p, err := Parse(source)
	if err != nil {
		return nil, err
	}
	m := NewMachine(tapeSize, in, out)
	return m, m.Run(p)
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
