package compiler

import (
	"github.com/xyproto/bfjit/internal/arm64"
	"github.com/xyproto/bfjit/internal/engine"
)

// Convention assigns fixed registers to the roles generated code needs.
// Nothing is allocated: every program uses the same assignment.
type Convention struct {
	TapeBase     arm64.Reg
	Cursor       arm64.Reg
	ScratchAddr  arm64.Reg
	ScratchValue arm64.Reg
	SyscallNum   arm64.Reg
	Args         [3]arm64.Reg
	Syscalls     engine.SyscallConvention
}

// ConventionFor returns the register convention for generating code that
// runs on p.
func ConventionFor(p engine.Platform) (Convention, error) {
	sc, err := p.Syscalls()
	if err != nil {
		return Convention{}, err
	}
	return Convention{
		TapeBase:     arm64.X10,
		Cursor:       arm64.X9,
		ScratchAddr:  arm64.X12,
		ScratchValue: arm64.X13,
		SyscallNum:   arm64.Reg(sc.NumberReg),
		Args:         [3]arm64.Reg{arm64.X0, arm64.X1, arm64.X2},
		Syscalls:     sc,
	}, nil
}
