// Completion: 100% - Scanner complete with run-length collapsing
package compiler

import (
	"bufio"
	"io"

	"github.com/xyproto/bfjit/internal/diag"
)

// Kind is the kind of a collapsed Brainfuck operation.
type Kind int

const (
	MoveRight Kind = iota
	MoveLeft
	Add
	Sub
	LoopStart
	LoopEnd
	Output
	Input
	numKinds
)

func (k Kind) String() string {
	switch k {
	case MoveRight:
		return "MoveRight"
	case MoveLeft:
		return "MoveLeft"
	case Add:
		return "Add"
	case Sub:
		return "Sub"
	case LoopStart:
		return "LoopStart"
	case LoopEnd:
		return "LoopEnd"
	case Output:
		return "Output"
	case Input:
		return "Input"
	default:
		return "Unknown"
	}
}

// Repeatable reports whether runs of k are collapsed into one Operation.
func (k Kind) Repeatable() bool {
	return k <= Sub
}

var operators = [256]int8{
	'>': int8(MoveRight) + 1,
	'<': int8(MoveLeft) + 1,
	'+': int8(Add) + 1,
	'-': int8(Sub) + 1,
	'[': int8(LoopStart) + 1,
	']': int8(LoopEnd) + 1,
	'.': int8(Output) + 1,
	',': int8(Input) + 1,
}

func kindOf(c byte) (Kind, bool) {
	k := operators[c]
	return Kind(k - 1), k != 0
}

// Operation is one collapsed unit of Brainfuck. Count is the run length for
// repeatable kinds and 1 otherwise. Pos is where the operation starts.
type Operation struct {
	Kind  Kind
	Count int
	Pos   diag.Position
}

// Scanner reads Brainfuck source one byte at a time, exactly once, and
// yields Operations. Bytes that are not operators are skipped.
type Scanner struct {
	r    io.ByteScanner
	pos  diag.Position
	prev diag.Position
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	bs, ok := r.(io.ByteScanner)
	if !ok {
		bs = bufio.NewReader(r)
	}
	return &Scanner{r: bs, pos: diag.Position{Line: 1, Column: 1}}
}

// Pos returns the position of the next unread byte.
func (s *Scanner) Pos() diag.Position {
	return s.pos
}

func (s *Scanner) read() (byte, diag.Position, error) {
	c, err := s.r.ReadByte()
	if err != nil {
		return 0, s.pos, err
	}
	at := s.pos
	s.prev = s.pos
	s.pos.Offset++
	if c == '\n' {
		s.pos.Line++
		s.pos.Column = 1
	} else {
		s.pos.Column++
	}
	return c, at, nil
}

func (s *Scanner) unread() error {
	if err := s.r.UnreadByte(); err != nil {
		return err
	}
	s.pos = s.prev
	return nil
}

// Next returns the next Operation, or io.EOF when the source is exhausted.
func (s *Scanner) Next() (Operation, error) {
	for {
		c, at, err := s.read()
		if err != nil {
			return Operation{}, err
		}
		kind, ok := kindOf(c)
		if !ok {
			continue
		}
		op := Operation{Kind: kind, Count: 1, Pos: at}
		if !kind.Repeatable() {
			return op, nil
		}
		for {
			next, _, err := s.read()
			if err == io.EOF {
				return op, nil
			}
			if err != nil {
				return Operation{}, err
			}
			if next != c {
				if err := s.unread(); err != nil {
					return Operation{}, err
				}
				return op, nil
			}
			op.Count++
		}
	}
}
