// Completion: 100% - Module complete
package codebuf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// InstrSize is the width of one AArch64 instruction in bytes.
const InstrSize = 4

// ErrCommitted is returned for writes to a committed buffer.
var ErrCommitted = errors.New("write to committed code buffer")

// Region is the memory a Buffer writes into. Grow may move the memory, so
// callers must fetch Bytes again after it returns.
type Region interface {
	Bytes() []byte
	Grow(minBytes int) error
}

// Buffer writes instructions into a Region in emission order. It tracks the
// instruction count and prevents writes after Commit. Positions handed out by
// a Buffer are instruction indices, never addresses, so they survive Grow.
type Buffer struct {
	region    Region
	count     int
	committed bool
	name      string // For debugging
}

// New returns an empty Buffer over region.
func New(name string, region Region) *Buffer {
	return &Buffer{region: region, name: name}
}

// Emit appends one instruction, growing the region first when it is full.
// Growth doubles the capacity.
func (b *Buffer) Emit(instr uint32) error {
	if b.committed {
		return fmt.Errorf("codebuf(%s): %w", b.name, ErrCommitted)
	}
	off := b.count * InstrSize
	mem := b.region.Bytes()
	if off+InstrSize > len(mem) {
		want := 2 * len(mem)
		if want < off+InstrSize {
			want = off + InstrSize
		}
		if err := b.region.Grow(want); err != nil {
			return fmt.Errorf("codebuf(%s): grow to %d bytes: %w", b.name, want, err)
		}
		mem = b.region.Bytes()
		if off+InstrSize > len(mem) {
			return fmt.Errorf("codebuf(%s): region grew to %d bytes, need %d", b.name, len(mem), off+InstrSize)
		}
	}
	binary.LittleEndian.PutUint32(mem[off:], instr)
	b.count++
	return nil
}

// Len returns the number of emitted instructions.
func (b *Buffer) Len() int {
	return b.count
}

// Size returns the number of emitted bytes.
func (b *Buffer) Size() int {
	return b.count * InstrSize
}

// Cap returns the region capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.region.Bytes())
}

// At returns the instruction at index i.
func (b *Buffer) At(i int) (uint32, error) {
	if i < 0 || i >= b.count {
		return 0, fmt.Errorf("codebuf(%s): instruction %d out of range [0,%d)", b.name, i, b.count)
	}
	return binary.LittleEndian.Uint32(b.region.Bytes()[i*InstrSize:]), nil
}

// Patch overwrites the already emitted instruction at index i.
func (b *Buffer) Patch(i int, instr uint32) error {
	if b.committed {
		return fmt.Errorf("codebuf(%s): %w", b.name, ErrCommitted)
	}
	if i < 0 || i >= b.count {
		return fmt.Errorf("codebuf(%s): patch %d out of range [0,%d)", b.name, i, b.count)
	}
	binary.LittleEndian.PutUint32(b.region.Bytes()[i*InstrSize:], instr)
	return nil
}

// Bytes returns the emitted prefix of the region. The slice aliases the
// region and is only valid until the next Grow.
func (b *Buffer) Bytes() []byte {
	return b.region.Bytes()[:b.Size()]
}

// Words returns a copy of the emitted instructions.
func (b *Buffer) Words() []uint32 {
	mem := b.Bytes()
	out := make([]uint32, b.count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(mem[i*InstrSize:])
	}
	return out
}

// Commit marks the buffer as complete. After this, Emit and Patch fail.
func (b *Buffer) Commit() {
	b.committed = true
}

// IsCommitted returns true if the buffer has been committed
func (b *Buffer) IsCommitted() bool {
	return b.committed
}
