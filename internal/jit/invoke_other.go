//go:build !(arm64 && (linux || darwin))

package jit

const canInvoke = false

func invoke(entry uintptr, tape []byte) uintptr {
	panic("jit: invoke on a host that cannot run generated code")
}
