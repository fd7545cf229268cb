// Completion: 100% - W^X region lifecycle complete for linux and darwin
package execmem

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bfjit.execmem")

var (
	// ErrState is returned when an operation is not allowed in the region's
	// current state.
	ErrState = errors.New("invalid region state")
	// ErrExhausted wraps the OS error when memory cannot be mapped or grown.
	ErrExhausted = errors.New("executable memory exhausted")
	// ErrUnsupported is returned where the host cannot execute generated code.
	ErrUnsupported = errors.New("executable memory not supported on this host")
)

// State is the permission state of a Region.
type State int

const (
	Writable State = iota
	Executable
	Released
)

func (s State) String() string {
	switch s {
	case Writable:
		return "writable"
	case Executable:
		return "executable"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Region is a block of memory that is either writable or executable, never
// both from the point of view of the caller. A new Region is Writable.
type Region struct {
	mem   []byte
	state State
	sys   sysRegion
}

// Allocate maps a writable region of at least size bytes, rounded up to the
// page size.
func Allocate(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", size, ErrExhausted)
	}
	size = roundUp(size, pageSize())
	r := &Region{}
	mem, err := r.sys.alloc(size)
	if err != nil {
		return nil, fmt.Errorf("allocate %d bytes: %w: %w", size, ErrExhausted, err)
	}
	r.mem = mem
	log.Debugf("allocated %d bytes at %#x", len(mem), r.base())
	return r, nil
}

// State returns the current permission state.
func (r *Region) State() State {
	return r.state
}

// Bytes returns the whole region. The slice is only valid until the next
// Grow and must not be written unless the region is Writable.
func (r *Region) Bytes() []byte {
	if r.state == Released {
		return nil
	}
	return r.mem
}

// Len returns the capacity of the region in bytes.
func (r *Region) Len() int {
	return len(r.Bytes())
}

// Grow enlarges a Writable region to at least minBytes. The contents are
// preserved but the region may move.
func (r *Region) Grow(minBytes int) error {
	if r.state != Writable {
		return fmt.Errorf("grow %s region: %w", r.state, ErrState)
	}
	if minBytes <= len(r.mem) {
		return nil
	}
	size := roundUp(minBytes, pageSize())
	old := r.base()
	mem, err := r.sys.grow(r.mem, size)
	if err != nil {
		return fmt.Errorf("grow to %d bytes: %w: %w", size, ErrExhausted, err)
	}
	r.mem = mem
	log.Debugf("grew region %#x -> %#x, %d bytes", old, r.base(), len(mem))
	return nil
}

// Seal makes a Writable region executable and synchronizes the instruction
// cache with what was written.
func (r *Region) Seal() error {
	if r.state != Writable {
		return fmt.Errorf("seal %s region: %w", r.state, ErrState)
	}
	if err := r.sys.seal(r.mem); err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	r.state = Executable
	return nil
}

// Open makes an Executable region writable again.
func (r *Region) Open() error {
	if r.state != Executable {
		return fmt.Errorf("open %s region: %w", r.state, ErrState)
	}
	if err := r.sys.open(r.mem); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	r.state = Writable
	return nil
}

// Entry returns the address of the first byte of an Executable region.
func (r *Region) Entry() (uintptr, error) {
	if r.state != Executable {
		return 0, fmt.Errorf("entry of %s region: %w", r.state, ErrState)
	}
	return r.base(), nil
}

// Release unmaps the region. A region can only be released once.
func (r *Region) Release() error {
	if r.state == Released {
		return fmt.Errorf("release: %w", ErrState)
	}
	err := r.sys.free(r.mem)
	log.Debugf("released region %#x", r.base())
	r.mem = nil
	r.state = Released
	return err
}

func (r *Region) base() uintptr {
	if len(r.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.mem[0]))
}

func roundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
