// Completion: 100% - Single-pass code generation complete
package compiler

import (
	"errors"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/xyproto/bfjit/internal/arm64"
	"github.com/xyproto/bfjit/internal/codebuf"
	"github.com/xyproto/bfjit/internal/diag"
	"github.com/xyproto/bfjit/internal/engine"
)

// MaxMove is the largest cursor movement one operation can encode: a
// shifted and an unshifted 12-bit immediate.
const MaxMove = 1<<24 - 1

// Instructions emitted per operation kind. Moves take one more beyond 4095.
var instrCount = [numKinds]int{
	MoveRight: 1,
	MoveLeft:  1,
	Add:       5,
	Sub:       5,
	LoopStart: loopCheckLen,
	LoopEnd:   loopCheckLen,
	Output:    5,
	Input:     5,
}

// Prologue and epilogue lengths in instructions.
const (
	PrologueLen = 2
	EpilogueLen = 1
)

// Options control code generation.
type Options struct {
	Platform engine.Platform
	Logger   commonlog.Logger
}

// Program describes a compiled Brainfuck program. The code itself is in the
// buffer that was passed to Compile.
type Program struct {
	Platform     engine.Platform
	Instructions int
	Loops        []LoopPair
	MaxDepth     int
	ops          [numKinds]int
}

// Ops returns how many operations of kind k were lowered.
func (p *Program) Ops(k Kind) int {
	if k < 0 || k >= numKinds {
		return 0
	}
	return p.ops[k]
}

// InstrCount returns the number of instructions one operation lowers to.
func InstrCount(op Operation) int {
	if (op.Kind == MoveRight || op.Kind == MoveLeft) && op.Count > 0xfff {
		return 2
	}
	return instrCount[op.Kind]
}

type generator struct {
	asm  *arm64.Assembler
	buf  *codebuf.Buffer
	conv Convention
	log  commonlog.Logger
	res  Resolver
	prog *Program
}

// Compile translates Brainfuck read from r into AArch64 code appended to
// buf. The generated function takes the tape base in X0 and returns with
// RET. Loop branches are resolved before Compile returns.
func Compile(r io.Reader, buf *codebuf.Buffer, opts Options) (*Program, error) {
	conv, err := ConventionFor(opts.Platform)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = commonlog.GetLogger("bfjit.compile")
	}
	g := &generator{
		asm:  arm64.NewAssembler(buf),
		buf:  buf,
		conv: conv,
		log:  logger,
		prog: &Program{Platform: opts.Platform},
	}
	if err := g.prologue(); err != nil {
		return nil, emitError(diag.Position{}, err)
	}
	sc := NewScanner(r)
	for {
		op, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading source: %w", err)
		}
		if err := g.lower(op); err != nil {
			return nil, err
		}
	}
	if err := g.res.Finish(); err != nil {
		return nil, err
	}
	if err := g.asm.Ret(); err != nil {
		return nil, emitError(sc.Pos(), err)
	}
	if err := g.res.Resolve(buf); err != nil {
		return nil, err
	}
	g.prog.Instructions = buf.Len()
	g.prog.Loops = g.res.Pairs()
	g.prog.MaxDepth = g.res.MaxDepth()
	g.traceLoops()
	return g.prog, nil
}

// emitError classifies a failure to emit: operands that do not fit are
// encoding errors, anything else came from the region behind the buffer.
func emitError(pos diag.Position, err error) error {
	if errors.Is(err, arm64.ErrOperandRange) {
		return diag.Encoding(pos, err)
	}
	return diag.Resource(err)
}

func (g *generator) prologue() error {
	c := g.conv
	g.asm.MovReg(c.TapeBase, c.Args[0])
	g.asm.Movz(c.Cursor, 0, 0)
	return g.asm.Err()
}

func (g *generator) lower(op Operation) error {
	c := g.conv
	a := g.asm
	start := g.buf.Len()
	switch op.Kind {
	case MoveRight, MoveLeft:
		if op.Count > MaxMove {
			return diag.Encoding(op.Pos, &arm64.EncodingError{
				Mnemonic: "add", Field: "cursor movement", Value: int64(op.Count), Bits: 24,
			})
		}
		emit := a.AddImm
		if op.Kind == MoveLeft {
			emit = a.SubImm
		}
		n := uint32(op.Count)
		if n > 0xfff {
			emit(c.Cursor, c.Cursor, n>>12, true)
			emit(c.Cursor, c.Cursor, n&0xfff, false)
		} else {
			emit(c.Cursor, c.Cursor, n, false)
		}
	case Add, Sub:
		emit := a.AddImm
		if op.Kind == Sub {
			emit = a.SubImm
		}
		a.AddReg(c.ScratchAddr, c.TapeBase, c.Cursor)
		a.Ldrb(c.ScratchValue, c.ScratchAddr, 0)
		emit(c.ScratchValue, c.ScratchValue, uint32(op.Count%256), false)
		a.Strb(c.ScratchValue, c.ScratchAddr, 0)
		a.Movz(c.ScratchValue, 0, 0)
	case Output:
		a.AddReg(c.Args[1], c.TapeBase, c.Cursor)
		a.Movz(c.SyscallNum, uint64(c.Syscalls.Write), 0)
		a.Movz(c.Args[0], 1, 0)
		a.Movz(c.Args[2], 1, 0)
		a.Svc(uint32(c.Syscalls.TrapImm))
	case Input:
		a.Movz(c.SyscallNum, uint64(c.Syscalls.Read), 0)
		a.Movz(c.Args[0], 0, 0)
		a.AddReg(c.Args[1], c.TapeBase, c.Cursor)
		a.Movz(c.Args[2], 1, 0)
		a.Svc(uint32(c.Syscalls.TrapImm))
	case LoopStart:
		id := g.res.Open(start, op.Pos)
		g.log.Debugf("L: loop id: %d", id)
		a.AddReg(c.ScratchAddr, c.TapeBase, c.Cursor)
		a.Ldrb(c.ScratchValue, c.ScratchAddr, 0)
		a.Cbnz(c.ScratchValue, 2)
		a.B(0)
	case LoopEnd:
		pair, err := g.res.Close(start, op.Pos)
		if err != nil {
			return err
		}
		g.log.Debugf("R: loop id: %d", pair.ID)
		a.AddReg(c.ScratchAddr, c.TapeBase, c.Cursor)
		a.Ldrb(c.ScratchValue, c.ScratchAddr, 0)
		a.Cbz(c.ScratchValue, 2)
		a.B(0)
	}
	if err := a.Err(); err != nil {
		return emitError(op.Pos, err)
	}
	// Loop patching depends on every lowering having its fixed length.
	if n, want := g.buf.Len()-start, InstrCount(op); n != want {
		return fmt.Errorf("%s at %s lowered to %d instructions, want %d", op.Kind, op.Pos, n, want)
	}
	g.prog.ops[op.Kind]++
	return nil
}

func (g *generator) traceLoops() {
	TraceLoops(g.log, g.prog.Loops)
}

// TraceLoops logs the byte offsets of every loop pair at debug level.
func TraceLoops(logger commonlog.Logger, pairs []LoopPair) {
	if len(pairs) == 0 || !logger.AllowLevel(commonlog.Debug) {
		return
	}
	logger.Debug("*** loops ***")
	for _, pair := range pairs {
		logger.Debugf("L: %#x, R: %#x", pair.Start*codebuf.InstrSize, pair.End*codebuf.InstrSize)
	}
}
