package arm64

import (
	"errors"
	"fmt"
)

// ErrOperandRange is matched by every EncodingError.
var ErrOperandRange = errors.New("operand out of range")

// ErrNotBranch is returned when a word handed to PatchBranch or
// BranchDisplacement is not a PC-relative branch.
var ErrNotBranch = errors.New("not a pc-relative branch")

// EncodingError describes an operand that does not fit its instruction field.
type EncodingError struct {
	Mnemonic string
	Field    string
	Value    int64
	Bits     int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %s %d does not fit in %d bits", e.Mnemonic, e.Field, e.Value, e.Bits)
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrOperandRange
}

func rangeErr(mnemonic, field string, value int64, bits int) error {
	return &EncodingError{Mnemonic: mnemonic, Field: field, Value: value, Bits: bits}
}

func checkReg(mnemonic, field string, r Reg) error {
	if !r.valid() {
		return rangeErr(mnemonic, field, int64(r), 5)
	}
	return nil
}

func checkRegs(mnemonic string, regs ...Reg) error {
	for i, r := range regs {
		if err := checkReg(mnemonic, fmt.Sprintf("register operand %d", i+1), r); err != nil {
			return err
		}
	}
	return nil
}

func fitsUnsigned(v uint64, bits int) bool {
	return v < 1<<uint(bits)
}

func fitsSigned(v int64, bits int) bool {
	lim := int64(1) << uint(bits-1)
	return v >= -lim && v < lim
}
