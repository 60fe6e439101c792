// Package platform is the boundary between gametune and the operating system.
//
// Every OS facility an optimizer touches is behind a small interface here:
// the registry, the service control manager, the network stack, power schemes,
// the memory manager and external commands. Native() wires the real backends;
// the platformtest package provides in-memory fakes for tests.
//
// Backends report failures with the sentinel errors below, wrapped with context,
// so callers can classify them with errors.Is.
package platform

import (
	"context"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// Sentinel errors, shared with the types package so types.Classify understands them.
var (
	ErrNotFound         = types.ErrNotFound
	ErrPermissionDenied = types.ErrPermissionDenied
	ErrInvalidArgument  = types.ErrInvalidArgument
	ErrUnsupported      = types.ErrUnsupported
)

// Registry reads and writes persistent configuration values.
type Registry interface {
	// GetValue returns the value, or an error wrapping ErrNotFound when the key
	// or value does not exist.
	GetValue(key RegistryKey) (RegistryValue, error)

	// SetValue creates the key path if needed and writes the value.
	SetValue(key RegistryKey, value RegistryValue) error

	// DeleteValue removes the value. Deleting a missing value is not an error.
	DeleteValue(key RegistryKey) error
}

// ServiceManager controls background services.
type ServiceManager interface {
	// StartMode returns the configured start mode.
	StartMode(name string) (StartMode, error)

	// SetStartMode changes the configured start mode without starting or stopping.
	SetStartMode(name string, mode StartMode) error

	// State returns the current run state.
	State(name string) (ServiceState, error)

	// Stop asks the service to stop and waits until it has, or ctx ends.
	// Stopping a service that is not running is not an error.
	Stop(ctx context.Context, name string) error

	// Start starts the service. Starting a running service is not an error.
	Start(name string) error
}

// NetworkStack reads and writes adapter, TCP and resolver settings.
type NetworkStack interface {
	// Adapters lists the physical and virtual adapters known to the OS.
	Adapters(ctx context.Context) ([]Adapter, error)

	// DefaultRoutes lists IPv4 default routes (0.0.0.0/0).
	DefaultRoutes(ctx context.Context) ([]Route, error)

	// AdapterProperty returns an advanced driver property by registry keyword.
	// ErrNotFound means the driver does not expose the keyword.
	AdapterProperty(ctx context.Context, adapter, keyword string) (string, error)

	// SetAdapterProperty writes an advanced driver property.
	SetAdapterProperty(ctx context.Context, adapter, keyword, value string) error

	// TCPSetting returns a parameter of a TCP setting template (e.g., Internet).
	TCPSetting(ctx context.Context, template, name string) (string, error)

	// SetTCPSetting writes a parameter of a TCP setting template.
	SetTCPSetting(ctx context.Context, template, name, value string) error

	// DNSServers returns the statically configured IPv4 resolvers of an
	// interface. An empty slice means the interface uses DHCP-provided resolvers.
	DNSServers(ctx context.Context, ifIndex int) ([]string, error)

	// SetDNSServers sets static IPv4 resolvers. An empty slice resets the
	// interface to DHCP-provided resolvers.
	SetDNSServers(ctx context.Context, ifIndex int, servers []string) error
}

// PowerManager manages power schemes.
type PowerManager interface {
	// Schemes lists installed schemes.
	Schemes(ctx context.Context) ([]PowerScheme, error)

	// ActiveScheme returns the active scheme.
	ActiveScheme(ctx context.Context) (PowerScheme, error)

	// DuplicateScheme installs a copy of a built-in template and returns the new
	// scheme GUID. ErrUnsupported means the template does not exist.
	DuplicateScheme(ctx context.Context, template string) (string, error)

	// SetActiveScheme activates a scheme. ErrNotFound means it is not installed.
	SetActiveScheme(ctx context.Context, guid string) error
}

// MemoryPurger releases standby memory back to the free list.
type MemoryPurger interface {
	PurgeStandbyList() error
}

// MemoryStats reports physical memory figures.
type MemoryStats interface {
	Memory(ctx context.Context) (MemoryInfo, error)
}

// Runner executes external programs.
type Runner interface {
	// Run executes name with args and returns trimmed stdout.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// PowerShell executes a script non-interactively and returns trimmed stdout.
	PowerShell(ctx context.Context, script string) ([]byte, error)
}

// Adapter is one network adapter as reported by the OS.
type Adapter struct {
	Name      string `json:"name"`
	Index     int    `json:"index"`
	Status    string `json:"status"`
	MAC       string `json:"mac,omitempty"`
	LinkSpeed string `json:"link_speed,omitempty"`
}

// Up reports whether the adapter has link.
func (a Adapter) Up() bool {
	return a.Status == "Up"
}

// Route is one IPv4 default route.
type Route struct {
	InterfaceIndex  int    `json:"interface_index"`
	NextHop         string `json:"next_hop"`
	RouteMetric     int    `json:"route_metric"`
	InterfaceMetric int    `json:"interface_metric"`
}

// Metric returns the effective metric Windows uses to rank the route.
func (r Route) Metric() int {
	return r.RouteMetric + r.InterfaceMetric
}

// PowerScheme is one installed power scheme.
type PowerScheme struct {
	GUID   string `json:"guid"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// MemoryInfo holds physical memory figures in bytes.
type MemoryInfo struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// System aggregates every backend an optimizer may need.
type System struct {
	Registry Registry
	Services ServiceManager
	Network  NetworkStack
	Power    PowerManager
	Purger   MemoryPurger
	Memory   MemoryStats
}

// Native returns the backends for the running OS. On anything other than
// Windows, the registry, service and purge backends report ErrUnsupported.
func Native() *System {
	runner := ExecRunner{}
	reg := nativeRegistry()
	return &System{
		Registry: reg,
		Services: nativeServices(),
		Network:  &PowerShellNetwork{Runner: runner, Registry: reg},
		Power:    &Powercfg{Runner: runner},
		Purger:   nativePurger(),
		Memory:   HostMemory{},
	}
}
