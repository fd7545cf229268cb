// Completion: 100% - Minimal static ELF writer complete
package elfimage

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/xyproto/bfjit/internal/codebuf"
	"github.com/xyproto/bfjit/internal/diag"
)

// ELF layout: the file header and the single program header are followed
// directly by the bootstrap stub and then the generated code. The one
// PT_LOAD segment covers stub and code.
const (
	elfHeaderSize  = 64
	progHeaderSize = 56
	headersSize    = elfHeaderSize + progHeaderSize // 0x78

	// BaseAddr is where the file is mapped. The segment starts right after
	// the headers, so file offset and address agree modulo SegmentAlign.
	BaseAddr     = 0x400000
	SegmentAlign = 0x1000

	// EntryAddr is the address of the first bootstrap instruction.
	EntryAddr = BaseAddr + headersSize

	// DefaultTapeSize is the tape size of the produced executable.
	DefaultTapeSize = 30000
)

// Options control the produced executable.
type Options struct {
	// TapeSize is the number of zeroed tape cells the bootstrap maps.
	TapeSize uint32
}

func (o Options) tapeSize() uint32 {
	if o.TapeSize == 0 {
		return DefaultTapeSize
	}
	return o.TapeSize
}

// Build returns the bytes of a static AArch64 Linux executable running code.
// code must be a function generated for linux/arm64 that takes the tape
// base in X0 and returns with RET.
func Build(code []byte, opts Options) ([]byte, error) {
	if len(code)%codebuf.InstrSize != 0 {
		return nil, fmt.Errorf("code size %d is not a multiple of %d", len(code), codebuf.InstrSize)
	}
	stub, err := Bootstrap(opts.tapeSize())
	if err != nil {
		return nil, err
	}
	segSize := uint64(len(stub) + len(code))

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_AARCH64),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     EntryAddr,
		Phoff:     elfHeaderSize,
		Ehsize:    elfHeaderSize,
		Phentsize: progHeaderSize,
		Phnum:     1,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	prog := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    headersSize,
		Vaddr:  EntryAddr,
		Paddr:  EntryAddr,
		Filesz: segSize,
		Memsz:  segSize,
		Align:  SegmentAlign,
	}

	var out bytes.Buffer
	out.Grow(headersSize + int(segSize))
	if err := binary.Write(&out, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if err := binary.Write(&out, binary.LittleEndian, &prog); err != nil {
		return nil, err
	}
	out.Write(stub)
	out.Write(code)
	return out.Bytes(), nil
}

// WriteFile builds the executable and writes it to path with mode 0700.
func WriteFile(path string, code []byte, opts Options) error {
	data, err := Build(code, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o700); err != nil {
		return diag.OutputCreate(path, err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, 0o700); err != nil {
		return diag.OutputCreate(path, err)
	}
	return nil
}
