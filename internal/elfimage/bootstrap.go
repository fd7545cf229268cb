package elfimage

import (
	"github.com/xyproto/bfjit/internal/arm64"
	"github.com/xyproto/bfjit/internal/codebuf"
	"github.com/xyproto/bfjit/internal/engine"
)

// BootstrapLen is the fixed length of the bootstrap stub in instructions.
const BootstrapLen = 16

// Linux mmap arguments for an anonymous private read/write mapping.
const (
	protReadWrite  = 0x3
	mapPrivateAnon = 0x22
)

// Bootstrap returns the stub placed at the entry point:
//
//	 0  movz x8, #mmap
//	 1  movz x0, #0
//	 2  movz x1, #tape & 0xffff
//	 3  movk x1, #tape >> 16, lsl #16
//	 4  movz x2, #PROT_READ|PROT_WRITE
//	 5  movz x3, #MAP_PRIVATE|MAP_ANONYMOUS
//	 6  movn x4, #0                 // fd -1
//	 7  movz x5, #0
//	 8  svc  #0
//	 9  tbnz x0, #63, 13            // mmap failed
//	10  bl   16                     // generated code, x0 = tape
//	11  movz x0, #0
//	12  b    14
//	13  movz x0, #1
//	14  movz x8, #exit
//	15  svc  #0
func Bootstrap(tapeSize uint32) ([]byte, error) {
	sc, err := engine.LinuxARM64.Syscalls()
	if err != nil {
		return nil, err
	}
	nr := arm64.Reg(sc.NumberReg)
	buf := codebuf.New("bootstrap", codebuf.NewHeapRegion(BootstrapLen*codebuf.InstrSize))
	a := arm64.NewAssembler(buf)
	a.Movz(nr, uint64(sc.Mmap), 0)
	a.Movz(arm64.X0, 0, 0)
	a.Movz(arm64.X1, uint64(tapeSize&0xffff), 0)
	a.Movk(arm64.X1, uint64(tapeSize>>16), 16)
	a.Movz(arm64.X2, protReadWrite, 0)
	a.Movz(arm64.X3, mapPrivateAnon, 0)
	a.Movn(arm64.X4, 0, 0)
	a.Movz(arm64.X5, 0, 0)
	a.Svc(uint32(sc.TrapImm))
	a.Tbnz(arm64.X0, 63, 13-9)
	a.BL(BootstrapLen - 10)
	a.Movz(arm64.X0, 0, 0)
	a.B(14 - 12)
	a.Movz(arm64.X0, 1, 0)
	a.Movz(nr, uint64(sc.Exit), 0)
	a.Svc(uint32(sc.TrapImm))
	if err := a.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
