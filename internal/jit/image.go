package jit

import (
	"errors"
	"fmt"

	"github.com/xyproto/bfjit/internal/compiler"
	"github.com/xyproto/bfjit/internal/diag"
	"github.com/xyproto/bfjit/internal/engine"
	"github.com/xyproto/bfjit/internal/execmem"
)

// ErrUnsupportedHost is returned by Run when the image cannot execute in
// this process.
var ErrUnsupportedHost = errors.New("generated code cannot run on this host")

// Stats describe a compiled program.
type Stats struct {
	Instructions int
	Loops        int
	MaxDepth     int
	Cached       bool
}

// Image is compiled code in its own region. It starts Writable and must be
// sealed before it can run.
type Image struct {
	region   *execmem.Region
	size     int
	platform engine.Platform
	stats    Stats
	loops    []compiler.LoopPair
}

// Stats returns what the compiler recorded.
func (img *Image) Stats() Stats {
	return img.stats
}

// Loops returns the resolved loop pairs in closing order. Images loaded
// from the cache carry no source positions.
func (img *Image) Loops() []compiler.LoopPair {
	return img.loops
}

// Platform returns the platform the code was generated for.
func (img *Image) Platform() engine.Platform {
	return img.platform
}

// Code returns a copy of the generated instructions.
func (img *Image) Code() []byte {
	mem := img.region.Bytes()
	if mem == nil {
		return nil
	}
	out := make([]byte, img.size)
	copy(out, mem[:img.size])
	return out
}

// Seal makes the image executable.
func (img *Image) Seal() error {
	if err := img.region.Seal(); err != nil {
		if errors.Is(err, execmem.ErrUnsupported) {
			return diag.Error{Kind: diag.KindUnsupportedHost, Message: "cannot seal executable memory", Err: err}
		}
		return diag.Resource(err)
	}
	return nil
}

// Run calls the generated function with the base of tape and returns its
// result. The image must be sealed and generated for this host. Output and
// input go straight to file descriptors 1 and 0.
func (img *Image) Run(tape []byte) (uintptr, error) {
	if len(tape) == 0 {
		return 0, errors.New("run: empty tape")
	}
	if !img.platform.CanExecute() || !canInvoke {
		return 0, diag.Error{
			Kind:    diag.KindUnsupportedHost,
			Message: fmt.Sprintf("code for %s cannot run on %s", img.platform, engine.Host()),
			Err:     ErrUnsupportedHost,
		}
	}
	entry, err := img.region.Entry()
	if err != nil {
		return 0, fmt.Errorf("run: %w", err)
	}
	log.Debugf("calling %#x with tape at %p", entry, &tape[0])
	return invoke(entry, tape), nil
}

// Release frees the region. The image cannot be used afterwards.
func (img *Image) Release() error {
	return img.region.Release()
}
