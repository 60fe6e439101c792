// Package tables holds the named, versioned data every optimizer works from:
// adapter properties, TCP parameters, DNS providers, service lists, the
// power plan template and registry tweaks.
//
// One Table exists per supported Windows generation. ForBuild selects the
// table for a build number; Detect reads the build from the running OS.
package tables

import (
	"context"
	"sort"
	"strings"

	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
)

var logger = logging.Get("tables")

// Well-known builds.
const (
	// BuildRS5 is Windows 10 1809, where Superfetch was renamed SysMain.
	BuildRS5 = 17763
	// Build20H1 is Windows 10 2004, the first with hardware GPU scheduling.
	Build20H1 = 19041
	// BuildWindows11 is the first Windows 11 build.
	BuildWindows11 = 22000
)

// UltimatePerformanceGUID is the hidden built-in Ultimate Performance template.
const UltimatePerformanceGUID = "e9a42b02-d5df-448d-aa00-03f14749eb61"

// AdapterProperty is one advanced driver property, by standardized keyword.
type AdapterProperty struct {
	Keyword     string
	Value       string
	Description string

	// Critical properties must apply for an adapter optimization to succeed.
	Critical bool
}

// TCPParam is one parameter of a NetTCPSetting template.
type TCPParam struct {
	Template string
	Name     string
	Value    string
}

// Key is the backup key, e.g. "Internet/Timestamps".
func (p TCPParam) Key() string {
	return p.Template + "/" + p.Name
}

// DNSProvider is a public resolver pair.
type DNSProvider struct {
	Name      string `mapstructure:"-"`
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
}

// Servers returns the non-empty addresses, primary first.
func (p DNSProvider) Servers() []string {
	servers := make([]string, 0, 2)
	for _, s := range []string{p.Primary, p.Secondary} {
		if s != "" {
			servers = append(servers, s)
		}
	}
	return servers
}

// ServiceEntry is a service name with the start mode Windows ships it with,
// used when no backup record exists to restore from.
type ServiceEntry struct {
	Name    string
	Default platform.StartMode
}

// RegistryTweak is a registry value and the value gametune writes to it.
type RegistryTweak struct {
	Key         platform.RegistryKey
	Value       platform.RegistryValue
	Description string

	// MinBuild is the first build that honors the value. Zero means any.
	MinBuild int
}

// Table is the data for one Windows generation.
type Table struct {
	Name  string
	Build int

	AdapterProperties []AdapterProperty
	TCP               []TCPParam
	DNSProviders      map[string]DNSProvider

	SysMain   ServiceEntry
	Xbox      []ServiceEntry
	Telemetry []ServiceEntry

	UltimatePlanTemplate string

	// VisualEffects is the "adjust for best performance" setting;
	// VisualEffectsDefault is what Windows ships with ("let Windows choose").
	VisualEffects        RegistryTweak
	VisualEffectsDefault platform.RegistryValue

	GPUScheduling  RegistryTweak
	Responsiveness []RegistryTweak
}

// Provider looks up a DNS provider by case-insensitive name.
func (t *Table) Provider(name string) (DNSProvider, bool) {
	p, ok := t.DNSProviders[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// ProviderNames returns the provider names in sorted order.
func (t *Table) ProviderNames() []string {
	names := make([]string, 0, len(t.DNSProviders))
	for name := range t.DNSProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether the table's build honors tweak. A table with an
// unknown build (zero) supports everything.
func (t *Table) Supports(tweak RegistryTweak) bool {
	return t.Build == 0 || tweak.MinBuild == 0 || t.Build >= tweak.MinBuild
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := *t
	c.AdapterProperties = append([]AdapterProperty(nil), t.AdapterProperties...)
	c.TCP = append([]TCPParam(nil), t.TCP...)
	c.Xbox = append([]ServiceEntry(nil), t.Xbox...)
	c.Telemetry = append([]ServiceEntry(nil), t.Telemetry...)
	c.Responsiveness = append([]RegistryTweak(nil), t.Responsiveness...)
	c.DNSProviders = make(map[string]DNSProvider, len(t.DNSProviders))
	for k, v := range t.DNSProviders {
		c.DNSProviders[k] = v
	}
	return &c
}

// ForBuild returns a copy of the table for a Windows build number, stamped
// with that build. Build zero (unknown) selects the newest table.
func ForBuild(build int) *Table {
	var base *Table
	switch {
	case build == 0 || build >= BuildWindows11:
		base = Windows11
	case build >= BuildRS5:
		base = Windows10
	default:
		base = Legacy
	}
	t := base.Clone()
	t.Build = build
	return t
}

// Detect selects the table for the running OS. If the build cannot be read
// it falls back to the newest table.
func Detect(ctx context.Context) *Table {
	info, err := platform.DetectOS(ctx)
	if err != nil {
		logger.Warn("OS detection failed, using newest table", "error", err)
		return ForBuild(0)
	}
	t := ForBuild(info.Build())
	logger.Debug("table selected", "table", t.Name, "build", t.Build, "platform", info.Platform)
	return t
}

// Overrides are user-supplied replacements for table entries.
type Overrides struct {
	DNSProviders map[string]DNSProvider
	PlanTemplate string
	Xbox         []string
	Telemetry    []string
}

// Apply returns a copy of t with o applied. Extra DNS providers are added or
// replace built-ins; service lists replace the built-in list, keeping the
// built-in default start mode for names it already knows and manual otherwise.
func (t *Table) Apply(o Overrides) *Table {
	c := t.Clone()

	for name, p := range o.DNSProviders {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || p.Primary == "" {
			continue
		}
		p.Name = name
		c.DNSProviders[name] = p
	}

	if o.PlanTemplate != "" {
		c.UltimatePlanTemplate = strings.ToLower(o.PlanTemplate)
	}
	if len(o.Xbox) > 0 {
		c.Xbox = overrideServices(t.Xbox, o.Xbox)
	}
	if len(o.Telemetry) > 0 {
		c.Telemetry = overrideServices(t.Telemetry, o.Telemetry)
	}
	return c
}

func overrideServices(known []ServiceEntry, names []string) []ServiceEntry {
	defaults := make(map[string]platform.StartMode, len(known))
	for _, e := range known {
		defaults[strings.ToLower(e.Name)] = e.Default
	}

	out := make([]ServiceEntry, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		mode, ok := defaults[strings.ToLower(name)]
		if !ok {
			mode = platform.StartManual
		}
		out = append(out, ServiceEntry{Name: name, Default: mode})
	}
	return out
}
