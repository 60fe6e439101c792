package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/gametune/pkg/gametune/platform"
)

func TestForBuild(t *testing.T) {
	tests := []struct {
		build    int
		wantName string
		sysmain  string
		gpu      bool
	}{
		{build: 0, wantName: "windows11", sysmain: "SysMain", gpu: true},
		{build: 16299, wantName: "windows10-legacy", sysmain: "Superfetch", gpu: false},
		{build: 17763, wantName: "windows10", sysmain: "SysMain", gpu: false},
		{build: 19045, wantName: "windows10", sysmain: "SysMain", gpu: true},
		{build: 22631, wantName: "windows11", sysmain: "SysMain", gpu: true},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			table := ForBuild(tt.build)
			assert.Equal(t, tt.wantName, table.Name)
			assert.Equal(t, tt.build, table.Build)
			assert.Equal(t, tt.sysmain, table.SysMain.Name)
			assert.Equal(t, tt.gpu, table.Supports(table.GPUScheduling))
		})
	}
}

func TestForBuild_ReturnsIndependentCopy(t *testing.T) {
	a := ForBuild(22631)
	a.Xbox[0].Name = "mutated"
	a.DNSProviders["custom"] = DNSProvider{Name: "custom", Primary: "10.0.0.1"}

	b := ForBuild(22631)
	assert.Equal(t, "XblAuthManager", b.Xbox[0].Name)
	_, ok := b.Provider("custom")
	assert.False(t, ok)
}

func TestProvider(t *testing.T) {
	table := ForBuild(0)

	p, ok := table.Provider(" Cloudflare ")
	require.True(t, ok)
	assert.Equal(t, []string{"1.1.1.1", "1.0.0.1"}, p.Servers())

	_, ok = table.Provider("unknown-provider")
	assert.False(t, ok)

	assert.Equal(t, []string{"cloudflare", "google", "opendns", "quad9"}, table.ProviderNames())
}

func TestCriticalAdapterProperties(t *testing.T) {
	var critical []string
	for _, p := range ForBuild(0).AdapterProperties {
		if p.Critical {
			critical = append(critical, p.Keyword)
		}
	}
	assert.Equal(t, []string{"*InterruptModeration", "*FlowControl"}, critical)
}

func TestTCPParamKey(t *testing.T) {
	assert.Equal(t, "Internet/Timestamps", TCPParam{Template: "Internet", Name: "Timestamps"}.Key())
}

func TestApply(t *testing.T) {
	base := ForBuild(19045)
	table := base.Apply(Overrides{
		DNSProviders: map[string]DNSProvider{
			"AdGuard": {Primary: "94.140.14.14", Secondary: "94.140.15.15"},
			"broken":  {},
		},
		PlanTemplate: "E9A42B02-D5DF-448D-AA00-03F14749EB61",
		Xbox:         []string{"xblgamesave", "GamingServices"},
	})

	p, ok := table.Provider("adguard")
	require.True(t, ok)
	assert.Equal(t, "adguard", p.Name)
	_, ok = table.Provider("broken")
	assert.False(t, ok)

	assert.Equal(t, UltimatePerformanceGUID, table.UltimatePlanTemplate)

	require.Len(t, table.Xbox, 2)
	assert.Equal(t, ServiceEntry{Name: "xblgamesave", Default: platform.StartManual}, table.Xbox[0])
	assert.Equal(t, ServiceEntry{Name: "GamingServices", Default: platform.StartManual}, table.Xbox[1])

	// untouched
	assert.Equal(t, base.Telemetry, table.Telemetry)
	_, ok = base.Provider("adguard")
	assert.False(t, ok)
}
