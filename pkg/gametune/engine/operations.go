package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/jamesainslie/gametune/pkg/gametune/history"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// Operation names.
const (
	OpOptimizeAdapter      = "optimize-adapter"
	OpOptimizeTCP          = "optimize-tcp"
	OpSetDNS               = "set-dns"
	OpDisableSysmain       = "disable-sysmain"
	OpEnableSysmain        = "enable-sysmain"
	OpClearStandby         = "clear-standby"
	OpDisableXbox          = "disable-xbox"
	OpEnableXbox           = "enable-xbox"
	OpDisableTelemetry     = "disable-telemetry"
	OpEnableTelemetry      = "enable-telemetry"
	OpUltimatePlan         = "ultimate-plan"
	OpDisableVisualEffects = "disable-visual-effects"
	OpEnableVisualEffects  = "enable-visual-effects"
	OpGPUScheduling        = "gpu-scheduling"
	OpResponsiveness       = "responsiveness"
)

// Args carries the parameters some operations take.
type Args struct {
	Adapter  *types.AdapterIdentity `json:"adapter,omitempty"`
	Provider string                 `json:"provider,omitempty"`
}

type operation struct {
	summary string
	run     func(ctx context.Context, s *Session, args Args) types.Result
}

var operations = map[string]operation{
	OpOptimizeAdapter: {"Tune the network adapter's driver properties", func(ctx context.Context, s *Session, a Args) types.Result {
		return s.network.OptimizeAdapter(ctx, a.Adapter)
	}},
	OpOptimizeTCP: {"Tune global TCP/IP parameters", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.network.OptimizeTCPStack(ctx)
	}},
	OpSetDNS: {"Point the adapter at a public DNS provider", func(ctx context.Context, s *Session, a Args) types.Result {
		return s.network.SetDNS(ctx, a.Provider, a.Adapter)
	}},
	OpDisableSysmain: {"Disable and stop SysMain (Superfetch)", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.memory.DisableSysmain(ctx)
	}},
	OpEnableSysmain: {"Re-enable SysMain (Superfetch)", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.memory.EnableSysmain(ctx)
	}},
	OpClearStandby: {"Release standby memory", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.memory.ClearStandbyMemory(ctx)
	}},
	OpDisableXbox: {"Disable Xbox background services", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.services.DisableXboxFeatures(ctx)
	}},
	OpEnableXbox: {"Re-enable Xbox background services", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.services.EnableXboxFeatures(ctx)
	}},
	OpDisableTelemetry: {"Disable telemetry services", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.services.DisableTelemetryServices(ctx)
	}},
	OpEnableTelemetry: {"Re-enable telemetry services", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.services.EnableTelemetryServices(ctx)
	}},
	OpUltimatePlan: {"Activate the Ultimate Performance power plan", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.system.SetUltimatePerformancePlan(ctx)
	}},
	OpDisableVisualEffects: {"Adjust visual effects for best performance", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.system.DisableVisualEffects(ctx)
	}},
	OpEnableVisualEffects: {"Restore visual effects", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.system.EnableVisualEffects(ctx)
	}},
	OpGPUScheduling: {"Enable hardware-accelerated GPU scheduling", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.system.EnableHardwareGPUScheduling(ctx)
	}},
	OpResponsiveness: {"Prioritize foreground games in the multimedia scheduler", func(ctx context.Context, s *Session, _ Args) types.Result {
		return s.system.OptimizeSystemResponsiveness(ctx)
	}},
}

// runAllOrder is the fixed bulk sequence. Reboot-bound changes come last so
// their status is the last thing a caller sees.
var runAllOrder = []string{
	OpOptimizeAdapter,
	OpOptimizeTCP,
	OpDisableSysmain,
	OpClearStandby,
	OpDisableXbox,
	OpDisableTelemetry,
	OpUltimatePlan,
	OpDisableVisualEffects,
	OpGPUScheduling,
	OpResponsiveness,
}

// OperationInfo describes one available operation.
type OperationInfo struct {
	Name    string `json:"name" yaml:"name"`
	Summary string `json:"summary" yaml:"summary"`
}

// Operations lists every operation by name.
func Operations() []OperationInfo {
	infos := make([]OperationInfo, 0, len(operations))
	for name, op := range operations {
		infos = append(infos, OperationInfo{Name: name, Summary: op.summary})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RunAllOrder returns the bulk sequence.
func RunAllOrder() []string {
	return append([]string(nil), runAllOrder...)
}

// Do runs one named operation. Unknown names fail with InvalidArgument.
func (s *Session) Do(ctx context.Context, name string, args Args) types.Result {
	op, ok := operations[name]
	if !ok {
		return types.Fail(types.KindInvalidArgument, "unknown operation %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	res := op.run(ctx, s, args)
	logger.Info("operation finished", "operation", name, "status", res.Status(), "kind", res.Kind)

	report := types.Report{Started: start, Duration: s.now().Sub(start)}
	report.Add(name, res)
	s.record(history.OpSingle, report)
	return res
}

// RunAll applies every optimization in the fixed order. Each step's result is
// recorded and a failure never stops the sequence. Cancellation is honored
// between steps only; the steps not reached are recorded as skipped.
func (s *Session) RunAll(ctx context.Context, adapter *types.AdapterIdentity) types.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := types.Report{Started: s.now()}
	s.log.Logf("Starting full optimization (%d steps)...", len(runAllOrder))
	logger.Info("run all started", "session", s.store.Session(), "adapter", adapter)

	for _, name := range runAllOrder {
		if ctx.Err() != nil {
			report.Add(name, types.Skip("cancelled"))
			continue
		}
		if name == OpOptimizeAdapter && adapter == nil {
			s.log.Logf("Skipping adapter optimization: no adapter")
			report.Add(name, types.Skip("no adapter"))
			continue
		}

		res := operations[name].run(ctx, s, Args{Adapter: adapter})
		report.Add(name, res)
		logger.Info("step finished", "operation", name, "status", res.Status())
	}

	report.Duration = s.now().Sub(report.Started)
	logger.Info("run all finished", "failed", report.Failed(), "skipped", report.Skipped(),
		"restart", report.RestartRequired(), "duration", report.Duration)

	switch {
	case ctx.Err() != nil:
		s.log.Logf("Optimization cancelled")
	case report.Failed() > 0:
		s.log.Logf("Optimization finished with %d failed step(s)", report.Failed())
	default:
		s.log.Logf("Optimization complete")
	}
	if report.RestartRequired() {
		s.log.Logf("Restart required for some changes to take effect")
	}

	s.record(history.OpRun, report)
	return report
}

// NeedsAdapter reports whether the named operation acts on one network adapter.
func NeedsAdapter(name string) bool {
	return name == OpOptimizeAdapter || name == OpSetDNS
}

// Describe returns the summary of a named operation.
func Describe(name string) (string, error) {
	op, ok := operations[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown operation %q", types.ErrInvalidArgument, name)
	}
	return op.summary, nil
}
