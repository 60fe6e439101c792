package system

import (
	"context"
	"fmt"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// DisableVisualEffects selects "adjust for best performance".
func (o *Optimizer) DisableVisualEffects(_ context.Context) types.Result {
	tweak := o.table.VisualEffects
	changed, err := o.apply(types.CategoryVisual, tweak)
	if err != nil {
		o.log.Logf("Visual effects change failed: %v", err)
		return types.FromError("disable visual effects", err)
	}
	if !changed {
		o.log.Logf("Visual effects already minimized")
		return types.OK("Visual effects already set for best performance")
	}
	o.log.Logf("Visual effects minimized")
	return types.OK("Visual effects set for best performance (sign out to apply everywhere)")
}

// EnableVisualEffects puts back the setting recorded before DisableVisualEffects,
// or the Windows default when nothing was recorded.
func (o *Optimizer) EnableVisualEffects(_ context.Context) types.Result {
	key := o.table.VisualEffects.Key

	if rec, ok := o.store.Record(types.CategoryVisual, key.String()); ok {
		if err := o.restoreValue(rec); err != nil {
			o.log.Logf("Visual effects restore failed: %v", err)
			return types.FromError("enable visual effects", err)
		}
		o.store.Take(types.CategoryVisual, key.String())
		return types.OK("Visual effects restored")
	}

	if err := o.reg.SetValue(key, o.table.VisualEffectsDefault); err != nil {
		o.log.Logf("Visual effects restore failed: %v", err)
		return types.FromError("enable visual effects", err)
	}
	logger.Info("visual effects reset to default", "key", key.String())
	o.log.Logf("Visual effects reset to the Windows default")
	return types.OK("Visual effects reset to the Windows default")
}

// EnableHardwareGPUScheduling turns on hardware-accelerated GPU scheduling.
// The change takes effect after a reboot, which the result reports as
// RestartRequired while still succeeding.
func (o *Optimizer) EnableHardwareGPUScheduling(_ context.Context) types.Result {
	tweak := o.table.GPUScheduling
	if !o.table.Supports(tweak) {
		o.log.Logf("GPU scheduling needs build %d or later", tweak.MinBuild)
		return types.Fail(types.KindUnsupported, "%s needs Windows build %d or later (have %d)",
			tweak.Description, tweak.MinBuild, o.table.Build)
	}

	changed, err := o.apply(types.CategoryGPU, tweak)
	if err != nil {
		o.log.Logf("GPU scheduling change failed: %v", err)
		return types.FromError("enable GPU scheduling", err)
	}
	if !changed {
		o.log.Logf("GPU scheduling already enabled")
		return types.OK("%s already enabled", tweak.Description)
	}

	o.log.Logf("GPU scheduling enabled; restart required")
	return types.Result{
		Success: true,
		Kind:    types.KindRestartRequired,
		Message: tweak.Description + " enabled; restart required to take effect",
	}
}

// OptimizeSystemResponsiveness tunes the multimedia scheduler so foreground
// games get the CPU and network throttling is off.
func (o *Optimizer) OptimizeSystemResponsiveness(_ context.Context) types.Result {
	var details []string

	for _, tweak := range o.table.Responsiveness {
		if !o.table.Supports(tweak) {
			details = append(details, tweak.Key.Name+": not supported")
			continue
		}
		changed, err := o.apply(types.CategoryPower, tweak)
		if err != nil {
			o.log.Logf("%s failed: %v", tweak.Key.Name, err)
			return types.Result{
				Kind:    types.Classify(err),
				Message: types.Summarize(fmt.Sprintf("%s failed: %v", tweak.Key.Name, err), details),
			}
		}
		if changed {
			details = append(details, tweak.Key.Name+": applied")
		} else {
			details = append(details, tweak.Key.Name+": already set")
		}
	}

	o.log.Logf("System responsiveness optimized")
	return types.OK("%s", types.Summarize("System responsiveness optimized", details))
}
