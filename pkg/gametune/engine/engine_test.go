package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/history"
	"github.com/jamesainslie/gametune/pkg/gametune/journal"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/platform/platformtest"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

const balanced = "381b4222-f694-41f0-9685-ff5bb260df2e"

var ethernet = &types.AdapterIdentity{Name: "Ethernet", Index: 12, IsActive: true}

// gamingRig seeds a machine that looks like a stock Windows 11 install.
func gamingRig() *platformtest.Machine {
	m := platformtest.NewMachine()
	t := tables.Windows11

	m.Network.AddAdapter(platform.Adapter{Name: "Ethernet", Index: 12, Status: "Up"}, map[string]string{
		"*InterruptModeration": "1",
		"*FlowControl":         "3",
	})
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

	m.Power.AddScheme(balanced, "Balanced", true)
	m.Power.AddTemplate(tables.UltimatePerformanceGUID, "Ultimate Performance")

	m.Registry.Seed(t.VisualEffects.Key, platform.DWord(0))
	m.Registry.Seed(t.GPUScheduling.Key, platform.DWord(1))
	m.Registry.Seed(t.Responsiveness[0].Key, platform.DWord(20))

	m.Memory.Readings = []platform.MemoryInfo{{Total: 16 << 30, Available: 4 << 30}}
	return m
}

func newSession(t *testing.T, m *platformtest.Machine, opts ...Option) (*Session, *[]string) {
	t.Helper()
	var (
		mu    sync.Mutex
		lines []string
	)
	log := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, msg)
	}
	return New(m.System(), tables.ForBuild(tables.BuildWindows11), log, opts...), &lines
}

func operationsOf(r types.Report) []string {
	names := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		names[i] = s.Operation
	}
	return names
}

func TestRunAll_FixedOrder(t *testing.T) {
	m := gamingRig()
	s, _ := newSession(t, m)

	report := s.RunAll(context.Background(), ethernet)

	assert.Equal(t, RunAllOrder(), operationsOf(report))
	assert.Zero(t, report.Failed(), "%+v", report.Steps)
	assert.True(t, report.RestartRequired())

	last, _ := report.Step(OpGPUScheduling)
	assert.Equal(t, types.KindRestartRequired, last.Result.Kind)
}

func TestRunAll_NoAdapter(t *testing.T) {
	m := gamingRig()
	s, _ := newSession(t, m)

	report := s.RunAll(context.Background(), nil)

	require.Len(t, report.Steps, len(runAllOrder))
	first := report.Steps[0]
	assert.Equal(t, OpOptimizeAdapter, first.Operation)
	assert.True(t, first.Result.Skipped)
	assert.Equal(t, "skipped: no adapter", first.Result.Message)

	for _, step := range report.Steps[1:] {
		assert.False(t, step.Result.Skipped, step.Operation)
	}
}

func TestRunAll_NeverShortCircuits(t *testing.T) {
	m := gamingRig()
	m.Network.Fail["SetTCPSetting"] = platform.ErrPermissionDenied
	m.Purger.Err = platform.ErrPermissionDenied
	m.Power.Fail["Schemes"] = errors.New("powercfg crashed")
	s, _ := newSession(t, m)

	report := s.RunAll(context.Background(), ethernet)

	assert.Len(t, report.Steps, len(runAllOrder))
	assert.Equal(t, 3, report.Failed())

	step, _ := report.Step(OpClearStandby)
	assert.Equal(t, types.KindPermissionDenied, step.Result.Kind)

	step, _ = report.Step(OpResponsiveness)
	assert.True(t, step.Result.Success)
}

func TestRunAll_Cancelled(t *testing.T) {
	m := gamingRig()
	s, _ := newSession(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := s.RunAll(ctx, ethernet)

	assert.Len(t, report.Steps, len(runAllOrder))
	assert.Equal(t, len(runAllOrder), report.Skipped())
	assert.Zero(t, m.Network.Writes)
}

func TestRestore_ReturnsMachineToPriorState(t *testing.T) {
	ctx := context.Background()
	m := gamingRig()
	s, _ := newSession(t, m)

	s.RunAll(ctx, ethernet)
	require.True(t, s.Do(ctx, OpSetDNS, Args{Adapter: ethernet, Provider: "cloudflare"}).Success)
	require.NotEmpty(t, s.Backup())

	report, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Failed())
	assert.Empty(t, s.Backup())

	v, _ := m.Network.Property("Ethernet", "*FlowControl")
	assert.Equal(t, "3", v)
	assert.Equal(t, "CUBIC", m.Network.TCP("Internet", "CongestionProvider"))
	assert.Equal(t, []string{"192.168.1.1"}, m.Network.DNS(12))

	sysmain, _ := m.Services.Get("SysMain")
	assert.Equal(t, platform.StartAuto, sysmain.Mode)
	assert.Equal(t, platform.StateRunning, sysmain.State)

	diag, _ := m.Services.Get("DiagTrack")
	assert.Equal(t, platform.StartAuto, diag.Mode)

	assert.Equal(t, balanced, m.Power.Active())

	gpu, _ := m.Registry.Value(tables.Windows11.GPUScheduling.Key)
	assert.Equal(t, platform.DWord(1), gpu)
	_, ok := m.Registry.Value(tables.Windows11.Responsiveness[1].Key)
	assert.False(t, ok)
}

func TestRestore_ReverseOrder(t *testing.T) {
	ctx := context.Background()
	m := gamingRig()
	s, _ := newSession(t, m)

	require.True(t, s.Do(ctx, OpOptimizeTCP, Args{}).Success)
	require.True(t, s.Do(ctx, OpGPUScheduling, Args{}).Success)

	report, err := s.Restore(ctx)
	require.NoError(t, err)

	ops := operationsOf(report)
	require.Len(t, ops, 3)
	assert.Equal(t, "restore gpu/"+tables.Windows11.GPUScheduling.Key.String(), ops[0])
	assert.Equal(t, "restore tcp/Internet/CongestionProvider", ops[2])
}

func TestRestore_FailuresAggregatedAndKept(t *testing.T) {
	ctx := context.Background()
	m := gamingRig()
	s, _ := newSession(t, m)

	require.True(t, s.Do(ctx, OpOptimizeTCP, Args{}).Success)
	tcpBefore := s.Backup()
	require.Len(t, tcpBefore, 2)
	require.True(t, s.Do(ctx, OpUltimatePlan, Args{}).Success)

	m.Network.Fail["SetTCPSetting"] = platform.ErrPermissionDenied
	report, err := s.Restore(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrPermissionDenied)
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, balanced, m.Power.Active())

	// failed records survive for a retry, with their original bookkeeping
	assert.Equal(t, tcpBefore, s.Backup())

	delete(m.Network.Fail, "SetTCPSetting")
	_, err = s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CUBIC", m.Network.TCP("Internet", "CongestionProvider"))
	assert.Empty(t, s.Backup())
}

func TestRestore_InterruptedKeepsJournal(t *testing.T) {
	m := gamingRig()
	j, err := journal.Open(t.TempDir())
	require.NoError(t, err)
	defer j.Close()
	store, err := backup.Open(j, backup.WithSession("first"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := func(msg string) {
		// stop after the first value is back
		if strings.HasPrefix(msg, "Restored ") {
			cancel()
		}
	}
	s := New(m.System(), tables.ForBuild(tables.BuildWindows11), log, WithStore(store))

	require.True(t, s.Do(ctx, OpOptimizeTCP, Args{}).Success)
	require.True(t, s.Do(ctx, OpGPUScheduling, Args{}).Success)
	before, err := j.Entries()
	require.NoError(t, err)
	require.Len(t, before, 3)

	report, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped())

	gpu, _ := m.Registry.Value(tables.Windows11.GPUScheduling.Key)
	assert.Equal(t, platform.DWord(1), gpu)

	entries, err := j.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, types.CategoryTCP, e.Record.Category)
		assert.Equal(t, "first", e.Session)
	}

	// a fresh process still sees the unrestored values
	reloaded, err := backup.Open(j)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
}

func TestRestore_Empty(t *testing.T) {
	s, lines := newSession(t, gamingRig())

	report, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Steps)
	assert.Contains(t, *lines, "Nothing to restore")
}

func TestDo_UnknownOperation(t *testing.T) {
	s, _ := newSession(t, gamingRig())

	res := s.Do(context.Background(), "overclock-cpu", Args{})
	assert.False(t, res.Success)
	assert.Equal(t, types.KindInvalidArgument, res.Kind)
}

func TestDo_ReenableRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	m := gamingRig()
	s, _ := newSession(t, m)

	before, _ := m.Services.Get("XblAuthManager")
	visualBefore, _ := m.Registry.Value(tables.Windows11.VisualEffects.Key)

	require.True(t, s.Do(ctx, OpDisableXbox, Args{}).Success)
	require.True(t, s.Do(ctx, OpDisableVisualEffects, Args{}).Success)
	require.True(t, s.Do(ctx, OpEnableXbox, Args{}).Success)
	require.True(t, s.Do(ctx, OpEnableVisualEffects, Args{}).Success)

	after, _ := m.Services.Get("XblAuthManager")
	assert.Equal(t, before.Mode, after.Mode)
	visualAfter, _ := m.Registry.Value(tables.Windows11.VisualEffects.Key)
	assert.Equal(t, visualBefore, visualAfter)
}

func TestDo_ReenableKeepsAlreadyDisabledState(t *testing.T) {
	ctx := context.Background()
	m := gamingRig()
	for _, e := range tables.Windows11.Xbox {
		m.Services.Add(e.Name, platform.StartDisabled, platform.StateStopped)
	}
	m.Registry.Seed(tables.Windows11.VisualEffects.Key, platform.DWord(2))
	s, _ := newSession(t, m)

	require.True(t, s.Do(ctx, OpDisableXbox, Args{}).Success)
	require.True(t, s.Do(ctx, OpEnableXbox, Args{}).Success)
	require.True(t, s.Do(ctx, OpDisableVisualEffects, Args{}).Success)
	require.True(t, s.Do(ctx, OpEnableVisualEffects, Args{}).Success)

	for _, e := range tables.Windows11.Xbox {
		svc, _ := m.Services.Get(e.Name)
		assert.Equal(t, platform.StartDisabled, svc.Mode, e.Name)
	}
	visual, _ := m.Registry.Value(tables.Windows11.VisualEffects.Key)
	assert.Equal(t, platform.DWord(2), visual)
}

func TestConcurrentCallsKeepFirstSnapshot(t *testing.T) {
	ctx := context.Background()
	m := gamingRig()
	s, _ := newSession(t, m)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Do(ctx, OpOptimizeTCP, Args{})
		}()
	}
	wg.Wait()

	records := s.Backup()
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotEqual(t, "CTCP", rec.Prior)
		assert.NotEqual(t, "Disabled", rec.Prior)
	}
}

func TestSession_PersistsThroughStoreAndHistory(t *testing.T) {
	ctx := context.Background()
	m := gamingRig()
	store := backup.New(backup.WithSession("fixed-session"))
	h, err := history.New(t.TempDir())
	require.NoError(t, err)

	s, _ := newSession(t, m, WithStore(store), WithHistory(h))
	assert.Equal(t, "fixed-session", s.ID())

	s.RunAll(ctx, nil)
	_, err = s.Restore(ctx)
	require.NoError(t, err)

	entries, err := h.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	ops := []history.Operation{entries[0].Operation, entries[1].Operation}
	assert.ElementsMatch(t, []history.Operation{history.OpRun, history.OpRestore}, ops)
	for _, e := range entries {
		assert.Equal(t, "fixed-session", e.Session)
	}
}

func TestStatusAndOperations(t *testing.T) {
	s, _ := newSession(t, gamingRig())
	require.True(t, s.Do(context.Background(), OpOptimizeTCP, Args{}).Success)

	st := s.Status()
	assert.Equal(t, "windows11", st.Table)
	assert.Equal(t, tables.BuildWindows11, st.Build)
	assert.Equal(t, 2, st.Records)

	assert.Len(t, Operations(), len(operations))
	summary, err := Describe(OpClearStandby)
	require.NoError(t, err)
	assert.NotEmpty(t, summary)
	_, err = Describe("nope")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
