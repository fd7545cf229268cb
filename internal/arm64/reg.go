// Completion: 100% - Register naming complete
package arm64

import "fmt"

// Reg is a 64-bit general purpose register number. 31 means XZR in operand
// positions and SP in base-register positions.
type Reg uint8

const (
	X0 Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29
	X30
	XZR
)

// SP shares its encoding with XZR.
const SP = XZR

// Aliases used by the procedure call standard
const (
	FP = X29
	LR = X30
)

func (r Reg) String() string {
	switch {
	case r == XZR:
		return "xzr"
	case r < XZR:
		return fmt.Sprintf("x%d", uint8(r))
	default:
		return fmt.Sprintf("r?%d", uint8(r))
	}
}

// W returns the 32-bit view name of r, as printed for byte loads and stores.
func (r Reg) W() string {
	if r == XZR {
		return "wzr"
	}
	return fmt.Sprintf("w%d", uint8(r))
}

func (r Reg) valid() bool {
	return r <= XZR
}
