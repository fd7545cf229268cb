package arm64

import "fmt"

// branchField locates the displacement field of a PC-relative branch.
type branchField struct {
	name  string
	shift uint
	bits  int
}

func classifyBranch(instr uint32) (branchField, bool) {
	switch {
	case instr&0x7c000000 == 0x14000000: // B, BL
		return branchField{"b", 0, 26}, true
	case instr&0x7e000000 == 0x34000000: // CBZ, CBNZ
		return branchField{"cbz", 5, 19}, true
	case instr&0x7e000000 == 0x36000000: // TBZ, TBNZ
		return branchField{"tbz", 5, 14}, true
	case instr&0xff000010 == 0x54000000: // B.cond
		return branchField{"b.cond", 5, 19}, true
	}
	return branchField{}, false
}

// PatchBranch rewrites the displacement of an existing B, BL, B.cond, CBZ,
// CBNZ, TBZ or TBNZ word. All other bits are preserved.
func PatchBranch(instr uint32, disp int32) (uint32, error) {
	f, ok := classifyBranch(instr)
	if !ok {
		return 0, fmt.Errorf("patch %#08x: %w", instr, ErrNotBranch)
	}
	if !fitsSigned(int64(disp), f.bits) {
		return 0, rangeErr(f.name, "displacement", int64(disp), f.bits)
	}
	mask := uint32(1)<<uint(f.bits) - 1
	instr &^= mask << f.shift
	return instr | (uint32(disp)&mask)<<f.shift, nil
}

// BranchDisplacement extracts the signed displacement, in instructions, of a
// PC-relative branch.
func BranchDisplacement(instr uint32) (int32, error) {
	f, ok := classifyBranch(instr)
	if !ok {
		return 0, fmt.Errorf("decode %#08x: %w", instr, ErrNotBranch)
	}
	field := (instr >> f.shift) & (uint32(1)<<uint(f.bits) - 1)
	// Sign-extend from f.bits
	unused := 32 - uint(f.bits)
	return int32(field<<unused) >> unused, nil
}
