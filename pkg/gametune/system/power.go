package system

import (
	"context"
	"fmt"
	"strings"

	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

const ultimatePlanName = "Ultimate Performance"

// SetUltimatePerformancePlan activates the Ultimate Performance plan,
// importing it from the template first if it is not installed.
func (o *Optimizer) SetUltimatePerformancePlan(ctx context.Context) types.Result {
	o.log.Logf("Activating %s power plan...", ultimatePlanName)

	schemes, err := o.power.Schemes(ctx)
	if err != nil {
		o.log.Logf("Could not list power plans: %v", err)
		return types.FromError("list power plans", err)
	}

	plan, found := o.findUltimate(schemes)
	if found && plan.Active {
		o.log.Logf("%s already active", ultimatePlanName)
		return types.OK("%s plan already active", ultimatePlanName)
	}

	active, activeErr := o.power.ActiveScheme(ctx)
	o.store.SnapshotIfAbsent(types.CategoryPower, activeSchemeKey, func() (types.Value, error) {
		if activeErr != nil {
			return types.Value{}, activeErr
		}
		return types.Present(active.GUID), nil
	})

	guid := plan.GUID
	if !found {
		guid, err = o.power.DuplicateScheme(ctx, o.table.UltimatePlanTemplate)
		if err != nil {
			logger.Error("plan import failed", "template", o.table.UltimatePlanTemplate, "error", err)
			o.log.Logf("%s plan unavailable: %v", ultimatePlanName, err)
			return types.FromError("import "+ultimatePlanName+" plan", err)
		}
		logger.Info("plan imported", "guid", guid)
		o.log.Logf("Imported %s plan (%s)", ultimatePlanName, guid)
	}

	if err := o.power.SetActiveScheme(ctx, guid); err != nil {
		o.log.Logf("Could not activate %s: %v", ultimatePlanName, err)
		return types.FromError("activate "+ultimatePlanName+" plan", err)
	}

	logger.Info("plan activated", "guid", guid, "previous", active.GUID)
	o.log.Logf("%s plan active", ultimatePlanName)
	return types.OK("%s plan activated (%s)", ultimatePlanName, guid)
}

// findUltimate returns an installed copy of the plan. Copies made with
// -duplicatescheme get a fresh GUID, so they are also matched by name;
// an active copy is preferred.
func (o *Optimizer) findUltimate(schemes []platform.PowerScheme) (platform.PowerScheme, bool) {
	var (
		match platform.PowerScheme
		found bool
	)
	for _, s := range schemes {
		if !strings.EqualFold(s.GUID, o.table.UltimatePlanTemplate) && !strings.EqualFold(s.Name, ultimatePlanName) {
			continue
		}
		if !found || s.Active {
			match, found = s, true
		}
	}
	return match, found
}

func (o *Optimizer) restoreScheme(ctx context.Context, rec types.TweakRecord) error {
	if err := o.power.SetActiveScheme(ctx, rec.Prior); err != nil {
		return fmt.Errorf("restoring power plan %s: %w", rec.Prior, err)
	}
	logger.Info("power plan restored", "guid", rec.Prior)
	o.log.Logf("Restored power plan %s", rec.Prior)
	return nil
}
