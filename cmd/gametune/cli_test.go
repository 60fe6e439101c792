package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"

	"github.com/jamesainslie/gametune/pkg/gametune/config"
	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/platform/platformtest"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

const balancedScheme = "381b4222-f694-41f0-9685-ff5bb260df2e"

// machine is a Windows 11 gaming rig with one wired adapter carrying the
// default route.
func machine() *platformtest.Machine {
	m := platformtest.NewMachine()
	t := tables.Windows11

	m.Network.AddAdapter(platform.Adapter{Name: "Ethernet", Index: 12, Status: "Up"}, map[string]string{
		"*InterruptModeration": "1",
	})
	m.Network.AddAdapter(platform.Adapter{Name: "Wi-Fi", Index: 7, Status: "Disconnected"}, nil)
	m.Network.AddRoute(platform.Route{InterfaceIndex: 12, InterfaceMetric: 25})
	m.Network.SeedTCP("Internet", "CongestionProvider", "CUBIC")
	m.Network.SeedTCP("Internet", "AutoTuningLevelLocal", "Normal")
	m.Network.SeedTCP("Internet", "Timestamps", "Allowed")
	m.Network.SeedDNS(12, "192.168.1.1")

	m.Services.Add("SysMain", platform.StartAuto, platform.StateRunning)
	for _, e := range t.Xbox {
		m.Services.Add(e.Name, platform.StartManual, platform.StateStopped)
	}
	for _, e := range t.Telemetry {
		m.Services.Add(e.Name, e.Default, platform.StateRunning)
	}

	m.Power.AddScheme(balancedScheme, "Balanced", true)
	m.Power.AddTemplate(tables.UltimatePerformanceGUID, "Ultimate Performance")

	m.Registry.Seed(t.VisualEffects.Key, platform.DWord(0))
	m.Registry.Seed(t.GPUScheduling.Key, platform.DWord(1))
	m.Registry.Seed(t.Responsiveness[0].Key, platform.DWord(20))

	m.Memory.Readings = []platform.MemoryInfo{{Total: 16 << 30, Available: 4 << 30, Used: 12 << 30, UsedPercent: 75}}
	return m
}

// setupLocal points the CLI at m with a throwaway journal and history, and
// captures stdout.
func setupLocal(t *testing.T, m *platformtest.Machine) *bytes.Buffer {
	t.Helper()

	viper.Reset()
	viper.Set("no_agent", true)
	viper.Set("quiet", true)
	viper.Set("output", "json")

	origSystem, origTable, origCfg, origStdout := newSystem, pinnedTable, cfg, stdout
	t.Cleanup(func() {
		newSystem, pinnedTable, cfg, stdout = origSystem, origTable, origCfg, origStdout
		adapterName, provider = "", ""
		viper.Reset()
	})

	newSystem = m.System
	pinnedTable = tables.Windows11

	cfg = &config.Config{}
	cfg.Backup.JournalEnabled = true
	cfg.Backup.JournalPath = t.TempDir()
	cfg.History.Enabled = true
	cfg.History.Path = t.TempDir()
	cfg.History.RetentionDays = config.DefaultRetentionDays
	cfg.DNS.DefaultProvider = config.DefaultDNSProvider

	var buf bytes.Buffer
	stdout = &buf
	return &buf
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestProgressLine(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 3, 0, time.Local)
	if got, want := progressLine(ts, "Active adapter: Ethernet"), "[07:05:03] Active adapter: Ethernet"; got != want {
		t.Errorf("progressLine() = %q, want %q", got, want)
	}
}

func TestGetFormatter(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		template string
		wantErr  string
	}{
		{name: "default is pretty", output: ""},
		{name: "json", output: "json"},
		{name: "yaml", output: "yaml"},
		{name: "plain", output: "plain"},
		{name: "template", output: "template", template: "{{len .Report.Steps}}"},
		{name: "template without text", output: "template", wantErr: "--template is required"},
		{name: "unknown", output: "xml", wantErr: "unknown output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			viper.Set("output", tt.output)
			viper.Set("template", tt.template)

			f, err := getFormatter()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("getFormatter() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("getFormatter() unexpected error: %v", err)
			}
			if f == nil {
				t.Fatal("getFormatter() returned nil formatter")
			}
		})
	}
}

type stubBackend struct {
	backend
	adapters []types.AdapterIdentity
}

func (s stubBackend) Adapters(context.Context) ([]types.AdapterIdentity, *types.AdapterIdentity, error) {
	return s.adapters, nil, nil
}

func TestResolveAdapter(t *testing.T) {
	b := stubBackend{adapters: []types.AdapterIdentity{
		{Name: "Ethernet", Index: 12, IsActive: true},
		{Name: "Wi-Fi", Index: 7},
	}}
	ctx := context.Background()

	got, err := resolveAdapter(ctx, b, "")
	if err != nil || got != nil {
		t.Errorf("resolveAdapter(\"\") = %v, %v; want nil, nil", got, err)
	}

	got, err = resolveAdapter(ctx, b, "wi-fi")
	if err != nil {
		t.Fatalf("resolveAdapter(wi-fi) unexpected error: %v", err)
	}
	if got.Index != 7 {
		t.Errorf("resolveAdapter(wi-fi).Index = %d, want 7", got.Index)
	}

	_, err = resolveAdapter(ctx, b, "Bluetooth")
	if types.Classify(err) != types.KindNotFound {
		t.Errorf("resolveAdapter(Bluetooth) kind = %q, want %q", types.Classify(err), types.KindNotFound)
	}
}

func TestRunAllThenRestore(t *testing.T) {
	m := machine()
	out := setupLocal(t, m)

	if err := runAll(newTestCommand(), nil); err != nil {
		t.Fatalf("runAll() error = %v\n%s", err, out.String())
	}

	doc := out.Bytes()
	if n := gjson.GetBytes(doc, "report.steps.#").Int(); n != int64(len(engine.RunAllOrder())) {
		t.Errorf("report has %d steps, want %d", n, len(engine.RunAllOrder()))
	}
	if failed := gjson.GetBytes(doc, "report.failed").Int(); failed != 0 {
		t.Errorf("report.failed = %d, want 0\n%s", failed, doc)
	}
	if !gjson.GetBytes(doc, "report.restart_required").Bool() {
		t.Error("report.restart_required = false, want true after enabling GPU scheduling")
	}
	if w := gjson.GetBytes(doc, "warnings.0").String(); w != restartNotice {
		t.Errorf("warnings[0] = %q, want the restart notice", w)
	}

	if svc, _ := m.Services.Get("SysMain"); svc.Mode != platform.StartDisabled {
		t.Errorf("SysMain mode = %v, want disabled", svc.Mode)
	}

	// a second process sees the journal
	out.Reset()
	if err := runBackupShow(newTestCommand(), nil); err != nil {
		t.Fatalf("runBackupShow() error = %v", err)
	}
	if n := gjson.GetBytes(out.Bytes(), "records.#").Int(); n == 0 {
		t.Fatalf("backup show listed no records:\n%s", out.String())
	}

	out.Reset()
	if err := runRestore(newTestCommand(), nil); err != nil {
		t.Fatalf("runRestore() error = %v\n%s", err, out.String())
	}

	if svc, _ := m.Services.Get("SysMain"); svc.Mode != platform.StartAuto {
		t.Errorf("SysMain mode after restore = %v, want auto", svc.Mode)
	}
	if v, _ := m.Registry.Value(tables.Windows11.GPUScheduling.Key); v.DWord != 1 {
		t.Errorf("HwSchMode after restore = %d, want 1", v.DWord)
	}
	if m.Power.Active() != balancedScheme {
		t.Errorf("active scheme after restore = %s, want Balanced", m.Power.Active())
	}

	out.Reset()
	if err := runBackupShow(newTestCommand(), nil); err != nil {
		t.Fatalf("runBackupShow() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("backup show after restore printed:\n%s", out.String())
	}
}

func TestDNSSetAndRestore(t *testing.T) {
	m := machine()
	out := setupLocal(t, m)

	if err := runDNSSet(newTestCommand(), []string{"quad9"}); err != nil {
		t.Fatalf("runDNSSet() error = %v\n%s", err, out.String())
	}
	if got := m.Network.DNS(12); strings.Join(got, ",") != "9.9.9.9,149.112.112.112" {
		t.Errorf("DNS after set = %v, want quad9", got)
	}

	if err := runRestore(newTestCommand(), nil); err != nil {
		t.Fatalf("runRestore() error = %v", err)
	}
	if got := m.Network.DNS(12); strings.Join(got, ",") != "192.168.1.1" {
		t.Errorf("DNS after restore = %v, want 192.168.1.1", got)
	}
}

func TestDNSSetUnknownProvider(t *testing.T) {
	setupLocal(t, machine())

	err := runDNSSet(newTestCommand(), []string{"nosuchdns"})
	if types.Classify(err) != types.KindInvalidArgument {
		t.Errorf("runDNSSet(nosuchdns) kind = %q, want %q (err %v)", types.Classify(err), types.KindInvalidArgument, err)
	}
}

func TestRunOperationUnknown(t *testing.T) {
	setupLocal(t, machine())

	if err := runOperation(newTestCommand(), []string{"overclock-cpu"}); err == nil {
		t.Error("runOperation(overclock-cpu) succeeded, want error")
	}
}

func TestHistoryRecordsRuns(t *testing.T) {
	out := setupLocal(t, machine())

	if err := runOperation(newTestCommand(), []string{engine.OpOptimizeTCP}); err != nil {
		t.Fatalf("runOperation() error = %v", err)
	}

	out.Reset()
	if err := runHistory(newTestCommand(), nil); err != nil {
		t.Fatalf("runHistory() error = %v", err)
	}
	id := gjson.GetBytes(out.Bytes(), "history.0.id").String()
	if id == "" {
		t.Fatalf("history lists no entries:\n%s", out.String())
	}

	out.Reset()
	if err := runHistoryShow(newTestCommand(), []string{id}); err != nil {
		t.Fatalf("runHistoryShow() error = %v", err)
	}
	if op := gjson.GetBytes(out.Bytes(), "report.steps.0.operation").String(); op != engine.OpOptimizeTCP {
		t.Errorf("history show step = %q, want %q", op, engine.OpOptimizeTCP)
	}
}

func TestMemoryInfo(t *testing.T) {
	out := setupLocal(t, machine())

	if err := runMemoryInfo(newTestCommand(), nil); err != nil {
		t.Fatalf("runMemoryInfo() error = %v", err)
	}
	if total := gjson.GetBytes(out.Bytes(), "memory.total").Uint(); total != 16<<30 {
		t.Errorf("memory.total = %d, want %d", total, uint64(16<<30))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 10*time.Minute, "2h 10m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
