// Completion: 100% - Loop resolution complete, branch range checked
package compiler

import (
	"errors"
	"fmt"

	"github.com/xyproto/bfjit/internal/arm64"
	"github.com/xyproto/bfjit/internal/diag"
)

// Each loop boundary lowers to: address, load, conditional skip, branch.
// The unconditional branch is the one that gets patched.
const (
	loopCheckLen = 4
	loopBranchAt = 3
)

// LoopMarker is an open loop: the instruction index of its LoopStart
// sequence and where the '[' was in the source.
type LoopMarker struct {
	Start int
	Pos   diag.Position
}

// LoopPair is a matched loop. Start and End are instruction indices of the
// LoopStart and LoopEnd sequences.
type LoopPair struct {
	ID       int
	Start    int
	End      int
	OpenPos  diag.Position
	ClosePos diag.Position
}

// Patcher rewrites already emitted instructions. *codebuf.Buffer is one.
type Patcher interface {
	At(i int) (uint32, error)
	Patch(i int, instr uint32) error
}

// Resolver matches brackets with an explicit stack and backpatches the
// placeholder branches once the scan is complete.
type Resolver struct {
	open     []LoopMarker
	closed   []LoopPair
	ids      []int
	nextID   int
	maxDepth int
}

// Open pushes a marker for a LoopStart sequence emitted at index start.
// It returns the loop id used in debug output.
func (r *Resolver) Open(start int, pos diag.Position) int {
	r.open = append(r.open, LoopMarker{Start: start, Pos: pos})
	r.ids = append(r.ids, r.nextID)
	r.nextID++
	if len(r.open) > r.maxDepth {
		r.maxDepth = len(r.open)
	}
	return r.ids[len(r.ids)-1]
}

// Close pops the innermost marker and records the pair with the LoopEnd
// sequence emitted at index end.
func (r *Resolver) Close(end int, pos diag.Position) (LoopPair, error) {
	if len(r.open) == 0 {
		return LoopPair{}, diag.ExtraClose(pos)
	}
	top := len(r.open) - 1
	m := r.open[top]
	pair := LoopPair{ID: r.ids[top], Start: m.Start, End: end, OpenPos: m.Pos, ClosePos: pos}
	r.open = r.open[:top]
	r.ids = r.ids[:top]
	r.closed = append(r.closed, pair)
	return pair, nil
}

// Depth returns the current nesting depth.
func (r *Resolver) Depth() int {
	return len(r.open)
}

// MaxDepth returns the deepest nesting seen.
func (r *Resolver) MaxDepth() int {
	return r.maxDepth
}

// Pairs returns the matched loops in closing order.
func (r *Resolver) Pairs() []LoopPair {
	return r.closed
}

// Finish reports one missing ']' diagnostic for every loop still open.
func (r *Resolver) Finish() error {
	if len(r.open) == 0 {
		return nil
	}
	errs := make([]error, len(r.open))
	for i, m := range r.open {
		errs[i] = diag.MissingClose(m.Pos)
	}
	return errors.Join(errs...)
}

// Resolve patches both branches of every matched pair, starting from the
// most recently closed. The LoopStart branch jumps past the LoopEnd
// sequence, the LoopEnd branch jumps back to the first body instruction.
func (r *Resolver) Resolve(p Patcher) error {
	for i := len(r.closed) - 1; i >= 0; i-- {
		pair := r.closed[i]
		forward := int64(pair.End+loopCheckLen) - int64(pair.Start+loopBranchAt)
		backward := int64(pair.Start+loopCheckLen) - int64(pair.End+loopBranchAt)
		if err := patchAt(p, pair.Start+loopBranchAt, forward); err != nil {
			return diag.Encoding(pair.OpenPos, err)
		}
		if err := patchAt(p, pair.End+loopBranchAt, backward); err != nil {
			return diag.Encoding(pair.ClosePos, err)
		}
	}
	return nil
}

func patchAt(p Patcher, index int, disp int64) error {
	if disp < -(1<<25) || disp >= 1<<25 {
		return &arm64.EncodingError{Mnemonic: "b", Field: "loop displacement", Value: disp, Bits: 26}
	}
	word, err := p.At(index)
	if err != nil {
		return err
	}
	patched, err := arm64.PatchBranch(word, int32(disp))
	if err != nil {
		return fmt.Errorf("loop branch at instruction %d: %w", index, err)
	}
	return p.Patch(index, patched)
}
