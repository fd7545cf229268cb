// Completion: 100% - Platform module complete
package engine

import (
	"fmt"
	"runtime"
	"strings"
)

// Arch is a CPU architecture. Only ArchARM64 is a code generation target,
// the others exist so that a host can be named in diagnostics.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchARM64
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86_64"
	case ArchARM64:
		return "aarch64"
	default:
		return "unknown"
	}
}

// ParseArch parses an architecture string (like GOARCH values)
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "x86_64", "amd64", "x86-64":
		return ArchX86_64, nil
	case "aarch64", "arm64":
		return ArchARM64, nil
	default:
		return ArchUnknown, fmt.Errorf("unsupported architecture: %s (supported: arm64)", s)
	}
}

// OS type
type OS int

const (
	OSUnknown OS = iota
	OSLinux
	OSDarwin
)

func (o OS) String() string {
	switch o {
	case OSLinux:
		return "linux"
	case OSDarwin:
		return "darwin"
	default:
		return "unknown"
	}
}

// ParseOS parses an OS string (like GOOS values)
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(s) {
	case "linux":
		return OSLinux, nil
	case "darwin", "macos":
		return OSDarwin, nil
	default:
		return OSUnknown, fmt.Errorf("unsupported OS: %s (supported: linux, darwin)", s)
	}
}

// Platform represents a target platform (architecture + OS)
type Platform struct {
	Arch Arch
	OS   OS
}

// LinuxARM64 is the only platform a standalone executable can be written for.
var LinuxARM64 = Platform{Arch: ArchARM64, OS: OSLinux}

// String returns a platform string like "arm64-linux"
func (p Platform) String() string {
	arch := p.Arch.String()
	switch p.Arch {
	case ArchARM64:
		arch = "arm64"
	case ArchX86_64:
		arch = "amd64"
	}
	return arch + "-" + p.OS.String()
}

// ParsePlatform parses "ARCH-OS", for example "arm64-linux" or "arm64-macos".
func ParsePlatform(s string) (Platform, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Platform{}, fmt.Errorf("invalid platform %q, expected ARCH-OS (e.g. arm64-linux)", s)
	}
	arch, err := ParseArch(parts[0])
	if err != nil {
		return Platform{}, err
	}
	osys, err := ParseOS(parts[1])
	if err != nil {
		return Platform{}, err
	}
	return Platform{Arch: arch, OS: osys}, nil
}

// Host returns the platform this process is running on. Unknown
// architectures and operating systems are reported as such rather than as
// an error, since only execution (not compilation) depends on the host.
func Host() Platform {
	arch, _ := ParseArch(runtime.GOARCH)
	osys, _ := ParseOS(runtime.GOOS)
	return Platform{Arch: arch, OS: osys}
}

// Targetable reports whether code can be generated for p.
func (p Platform) Targetable() bool {
	return p.Arch == ArchARM64 && (p.OS == OSLinux || p.OS == OSDarwin)
}

// CanExecute reports whether code generated for p can run in this process.
func (p Platform) CanExecute() bool {
	return p.Targetable() && p == Host()
}
