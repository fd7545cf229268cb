//go:build !linux && !darwin

package execmem

import "os"

// Elsewhere a region is plain heap memory. It can hold code that is written
// to disk but it can never be sealed.
type sysRegion struct{}

func pageSize() int {
	return os.Getpagesize()
}

func (sysRegion) alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (sysRegion) grow(mem []byte, size int) ([]byte, error) {
	grown := make([]byte, size)
	copy(grown, mem)
	return grown, nil
}

func (sysRegion) seal(mem []byte) error {
	return ErrUnsupported
}

func (sysRegion) open(mem []byte) error {
	return ErrUnsupported
}

func (sysRegion) free(mem []byte) error {
	return nil
}
