//go:build arm64 && (linux || darwin)

package jit

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

const canInvoke = true

// invoke calls entry following AAPCS64: the tape base goes in X0 and the
// result comes back in X0. purego switches to the system stack, so the
// generated code never runs on a goroutine stack.
func invoke(entry uintptr, tape []byte) uintptr {
	r1, _, _ := purego.SyscallN(entry, uintptr(unsafe.Pointer(&tape[0])))
	runtime.KeepAlive(tape)
	return r1
}
