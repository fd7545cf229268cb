package codebuf

// HeapRegion is a Region backed by ordinary Go memory. It holds code that is
// only written to disk, never executed.
type HeapRegion struct {
	mem []byte
}

// NewHeapRegion returns a HeapRegion of size bytes.
func NewHeapRegion(size int) *HeapRegion {
	return &HeapRegion{mem: make([]byte, size)}
}

func (h *HeapRegion) Bytes() []byte {
	return h.mem
}

// Grow reallocates to at least minBytes, keeping the contents.
func (h *HeapRegion) Grow(minBytes int) error {
	if minBytes <= len(h.mem) {
		return nil
	}
	mem := make([]byte, minBytes)
	copy(mem, h.mem)
	h.mem = mem
	return nil
}
