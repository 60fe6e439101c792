package tables

import "github.com/jamesainslie/gametune/pkg/gametune/platform"

const (
	visualEffectsPath = `Software\Microsoft\Windows\CurrentVersion\Explorer\VisualEffects`
	graphicsPath      = `SYSTEM\CurrentControlSet\Control\GraphicsDrivers`
	systemProfilePath = `SOFTWARE\Microsoft\Windows NT\CurrentVersion\Multimedia\SystemProfile`
)

var adapterProperties = []AdapterProperty{
	{Keyword: "*InterruptModeration", Value: "0", Description: "Interrupt moderation", Critical: true},
	{Keyword: "*FlowControl", Value: "0", Description: "Flow control", Critical: true},
	{Keyword: "*EEE", Value: "0", Description: "Energy-efficient Ethernet"},
	{Keyword: "EnableGreenEthernet", Value: "0", Description: "Green Ethernet"},
	{Keyword: "PowerSavingMode", Value: "0", Description: "Power saving mode"},
}

var tcpParams = []TCPParam{
	{Template: "Internet", Name: "CongestionProvider", Value: "CTCP"},
	{Template: "Internet", Name: "AutoTuningLevelLocal", Value: "Normal"},
	{Template: "Internet", Name: "Timestamps", Value: "Disabled"},
}

func dnsProviders() map[string]DNSProvider {
	return map[string]DNSProvider{
		"cloudflare": {Name: "cloudflare", Primary: "1.1.1.1", Secondary: "1.0.0.1"},
		"google":     {Name: "google", Primary: "8.8.8.8", Secondary: "8.8.4.4"},
		"quad9":      {Name: "quad9", Primary: "9.9.9.9", Secondary: "149.112.112.112"},
		"opendns":    {Name: "opendns", Primary: "208.67.222.222", Secondary: "208.67.220.220"},
	}
}

var xboxServices = []ServiceEntry{
	{Name: "XblAuthManager", Default: platform.StartManual},
	{Name: "XblGameSave", Default: platform.StartManual},
	{Name: "XboxNetApiSvc", Default: platform.StartManual},
	{Name: "XboxGipSvc", Default: platform.StartManual},
}

var telemetryServices = []ServiceEntry{
	{Name: "DiagTrack", Default: platform.StartAuto},
	{Name: "dmwappushservice", Default: platform.StartManual},
	{Name: "diagnosticshub.standardcollector.service", Default: platform.StartManual},
}

var visualEffects = RegistryTweak{
	Key:         platform.RegistryKey{Hive: platform.CurrentUser, Path: visualEffectsPath, Name: "VisualFXSetting"},
	Value:       platform.DWord(2),
	Description: "Adjust for best performance",
}

var gpuScheduling = RegistryTweak{
	Key:         platform.RegistryKey{Hive: platform.LocalMachine, Path: graphicsPath, Name: "HwSchMode"},
	Value:       platform.DWord(2),
	Description: "Hardware-accelerated GPU scheduling",
	MinBuild:    Build20H1,
}

var responsiveness = []RegistryTweak{
	{
		Key:         platform.RegistryKey{Hive: platform.LocalMachine, Path: systemProfilePath, Name: "SystemResponsiveness"},
		Value:       platform.DWord(0),
		Description: "Reserve no CPU for background multimedia tasks",
	},
	{
		Key:         platform.RegistryKey{Hive: platform.LocalMachine, Path: systemProfilePath, Name: "NetworkThrottlingIndex"},
		Value:       platform.DWord(0xffffffff),
		Description: "Disable multimedia network throttling",
	},
}

// Legacy covers Windows 10 releases before 1809, where the prefetch service
// is still named Superfetch and GPU scheduling does not exist.
var Legacy = &Table{
	Name:                 "windows10-legacy",
	AdapterProperties:    adapterProperties,
	TCP:                  tcpParams,
	DNSProviders:         dnsProviders(),
	SysMain:              ServiceEntry{Name: "Superfetch", Default: platform.StartAuto},
	Xbox:                 xboxServices,
	Telemetry:            telemetryServices,
	UltimatePlanTemplate: UltimatePerformanceGUID,
	VisualEffects:        visualEffects,
	VisualEffectsDefault: platform.DWord(0),
	GPUScheduling:        gpuScheduling,
	Responsiveness:       responsiveness,
}

// Windows10 covers Windows 10 1809 and later.
var Windows10 = &Table{
	Name:                 "windows10",
	AdapterProperties:    adapterProperties,
	TCP:                  tcpParams,
	DNSProviders:         dnsProviders(),
	SysMain:              ServiceEntry{Name: "SysMain", Default: platform.StartAuto},
	Xbox:                 xboxServices,
	Telemetry:            telemetryServices,
	UltimatePlanTemplate: UltimatePerformanceGUID,
	VisualEffects:        visualEffects,
	VisualEffectsDefault: platform.DWord(0),
	GPUScheduling:        gpuScheduling,
	Responsiveness:       responsiveness,
}

// Windows11 covers every Windows 11 release.
var Windows11 = &Table{
	Name:                 "windows11",
	AdapterProperties:    adapterProperties,
	TCP:                  tcpParams,
	DNSProviders:         dnsProviders(),
	SysMain:              ServiceEntry{Name: "SysMain", Default: platform.StartAuto},
	Xbox:                 xboxServices,
	Telemetry:            telemetryServices,
	UltimatePlanTemplate: UltimatePerformanceGUID,
	VisualEffects:        visualEffects,
	VisualEffectsDefault: platform.DWord(0),
	GPUScheduling:        gpuScheduling,
	Responsiveness:       responsiveness,
}
