package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostMemory reads memory figures with gopsutil.
type HostMemory struct{}

// Memory returns current physical memory figures.
func (HostMemory) Memory(ctx context.Context) (MemoryInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("reading memory stats: %w", err)
	}
	return MemoryInfo{
		Total:       vm.Total,
		Available:   vm.Available,
		Used:        vm.Used,
		UsedPercent: vm.UsedPercent,
	}, nil
}

// OSInfo identifies the running operating system.
type OSInfo struct {
	Platform string
	Family   string
	Version  *version.Version
}

// Build returns the OS build number (third version segment), or 0 if unknown.
func (o OSInfo) Build() int {
	if o.Version == nil {
		return 0
	}
	segs := o.Version.Segments()
	if len(segs) < 3 {
		return 0
	}
	return segs[2]
}

// DetectOS reads the platform and version with gopsutil. On Windows the
// version looks like "10.0.22631 Build 22631"; only the dotted part is parsed.
func DetectOS(ctx context.Context) (OSInfo, error) {
	platform, family, raw, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		return OSInfo{}, fmt.Errorf("reading platform information: %w", err)
	}

	info := OSInfo{Platform: platform, Family: family}
	v, err := ParseOSVersion(raw)
	if err != nil {
		return info, err
	}
	info.Version = v
	return info, nil
}

// ParseOSVersion parses a gopsutil platform version string.
func ParseOSVersion(raw string) (*version.Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty OS version", ErrInvalidArgument)
	}
	v, err := version.NewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("parsing OS version %q: %w", raw, err)
	}
	return v, nil
}
