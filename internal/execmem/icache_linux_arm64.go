//go:build linux && arm64

package execmem

import "unsafe"

// flushICache cleans the data cache and invalidates the instruction cache for
// [start, end) to the point of unification. Implemented in icache_linux_arm64.s.
//
//go:noescape
func flushICache(start, end uintptr)

func syncICache(mem []byte) {
	if len(mem) == 0 {
		return
	}
	start := uintptr(unsafe.Pointer(&mem[0]))
	flushICache(start, start+uintptr(len(mem)))
}
