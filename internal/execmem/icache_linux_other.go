//go:build linux && !arm64

package execmem

// Instruction and data caches are coherent on the other Linux targets.
func syncICache(mem []byte) {}
