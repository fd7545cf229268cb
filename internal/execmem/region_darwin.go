//go:build darwin

package execmem

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// Apple silicon maps MAP_JIT pages RWX but enforces W^X per thread through
// pthread_jit_write_protect_np, so the goroutine stays on one OS thread for
// the lifetime of the region.

const libSystem = "/usr/lib/libSystem.B.dylib"

var (
	libOnce             sync.Once
	libErr              error
	jitWriteProtect     func(enabled int32)
	sysIcacheInvalidate func(start unsafe.Pointer, length uintptr)
)

func loadLibSystem() error {
	libOnce.Do(func() {
		lib, err := purego.Dlopen(libSystem, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			libErr = fmt.Errorf("dlopen %s: %w", libSystem, err)
			return
		}
		purego.RegisterLibFunc(&jitWriteProtect, lib, "pthread_jit_write_protect_np")
		purego.RegisterLibFunc(&sysIcacheInvalidate, lib, "sys_icache_invalidate")
	})
	return libErr
}

type sysRegion struct {
	locked bool
}

func pageSize() int {
	return unix.Getpagesize()
}

func mapJIT(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_JIT)
}

func (s *sysRegion) alloc(size int) ([]byte, error) {
	if err := loadLibSystem(); err != nil {
		return nil, err
	}
	mem, err := mapJIT(size)
	if err != nil {
		return nil, err
	}
	runtime.LockOSThread()
	s.locked = true
	jitWriteProtect(0)
	return mem, nil
}

func (s *sysRegion) grow(mem []byte, size int) ([]byte, error) {
	grown, err := mapJIT(size)
	if err != nil {
		return nil, err
	}
	copy(grown, mem)
	if err := unix.Munmap(mem); err != nil {
		unix.Munmap(grown)
		return nil, err
	}
	return grown, nil
}

func (s *sysRegion) seal(mem []byte) error {
	jitWriteProtect(1)
	sysIcacheInvalidate(unsafe.Pointer(&mem[0]), uintptr(len(mem)))
	return nil
}

func (s *sysRegion) open(mem []byte) error {
	jitWriteProtect(0)
	return nil
}

func (s *sysRegion) free(mem []byte) error {
	if s.locked {
		jitWriteProtect(1)
		runtime.UnlockOSThread()
		s.locked = false
	}
	return unix.Munmap(mem)
}
