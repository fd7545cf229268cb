// Completion: 100% - Platform-specific module complete
package engine

import "fmt"

// SyscallConvention describes how generated code traps into the kernel.
// The values are baked into the generated instructions.
type SyscallConvention struct {
	NumberReg uint8  // register holding the system call number
	TrapImm   uint16 // immediate of the SVC instruction
	Write     uint16
	Read      uint16
	Mmap      uint16
	Exit      uint16
}

var conventions = map[OS]SyscallConvention{
	OSLinux:  {NumberReg: 8, TrapImm: 0, Write: 64, Read: 63, Mmap: 222, Exit: 93},
	OSDarwin: {NumberReg: 16, TrapImm: 0x80, Write: 4, Read: 3, Mmap: 197, Exit: 1},
}

// Syscalls returns the system call convention of p.
func (p Platform) Syscalls() (SyscallConvention, error) {
	if p.Arch != ArchARM64 {
		return SyscallConvention{}, fmt.Errorf("no system call convention for %s", p)
	}
	sc, ok := conventions[p.OS]
	if !ok {
		return SyscallConvention{}, fmt.Errorf("no system call convention for %s", p)
	}
	return sc, nil
}
