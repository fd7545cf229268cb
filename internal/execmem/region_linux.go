//go:build linux

package execmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Linux enforces W^X by flipping page protections with mprotect.
type sysRegion struct{}

func pageSize() int {
	return unix.Getpagesize()
}

func (sysRegion) alloc(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

func (sysRegion) grow(mem []byte, size int) ([]byte, error) {
	return unix.Mremap(mem, size, unix.MREMAP_MAYMOVE)
}

func (sysRegion) seal(mem []byte) error {
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("mprotect r-x: %w", err)
	}
	syncICache(mem)
	return nil
}

func (sysRegion) open(mem []byte) error {
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("mprotect rw-: %w", err)
	}
	return nil
}

func (sysRegion) free(mem []byte) error {
	return unix.Munmap(mem)
}
