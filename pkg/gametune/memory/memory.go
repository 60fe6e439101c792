// Package memory controls the prefetch service (SysMain, formerly Superfetch)
// and releases standby memory back to the free list.
package memory

import (
	"context"
	"fmt"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/services"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var logger = logging.Get("memory")

// Optimizer applies and reverts memory tweaks.
type Optimizer struct {
	ctl    *services.Controller
	purger platform.MemoryPurger
	stats  platform.MemoryStats
	table  *tables.Table
	log    types.LogFunc
}

// New creates an Optimizer. SysMain's start mode is recorded under
// types.CategoryMemory.
func New(sys *platform.System, store *backup.Store, table *tables.Table, log types.LogFunc) *Optimizer {
	return &Optimizer{
		ctl:    services.NewController(sys.Services, store, types.CategoryMemory),
		purger: sys.Purger,
		stats:  sys.Memory,
		table:  table,
		log:    log,
	}
}

// DisableSysmain disables and stops the prefetch service.
func (o *Optimizer) DisableSysmain(ctx context.Context) types.Result {
	o.log.Logf("Disabling %s...", o.table.SysMain.Name)
	out := o.ctl.Disable(ctx, o.table.SysMain)
	o.log.Logf("%s", out.Line())
	return out.Result()
}

// EnableSysmain restores the prefetch service's start mode and starts it.
func (o *Optimizer) EnableSysmain(ctx context.Context) types.Result {
	o.log.Logf("Enabling %s...", o.table.SysMain.Name)
	out := o.ctl.Enable(ctx, o.table.SysMain)
	o.log.Logf("%s", out.Line())
	return out.Result()
}

// ClearStandbyMemory purges the standby list. It is not reversible and does
// not touch the backup store.
func (o *Optimizer) ClearStandbyMemory(ctx context.Context) types.Result {
	o.log.Logf("Clearing standby memory...")

	before, beforeErr := o.stats.Memory(ctx)

	if err := o.purger.PurgeStandbyList(); err != nil {
		logger.Error("standby purge failed", "error", err)
		o.log.Logf("Standby memory purge failed: %v", err)
		return types.FromError("clear standby memory", err)
	}

	after, afterErr := o.stats.Memory(ctx)
	if beforeErr != nil || afterErr != nil {
		logger.Debug("memory figures unavailable", "before", beforeErr, "after", afterErr)
		o.log.Logf("Standby memory cleared")
		return types.OK("Standby memory cleared")
	}

	msg := fmt.Sprintf("Standby memory cleared: available %s -> %s",
		types.FormatBytes(before.Available), types.FormatBytes(after.Available))
	if after.Available > before.Available {
		msg += fmt.Sprintf(" (freed %s)", types.FormatBytes(after.Available-before.Available))
	}

	logger.Info("standby memory cleared", "before", before.Available, "after", after.Available)
	o.log.Logf("%s", msg)
	return types.OK("%s", msg)
}

// MemoryInfo returns the current physical memory figures.
func (o *Optimizer) MemoryInfo(ctx context.Context) (platform.MemoryInfo, error) {
	return o.stats.Memory(ctx)
}

// Restore writes a recorded SysMain start mode back.
func (o *Optimizer) Restore(ctx context.Context, rec types.TweakRecord) error {
	if rec.Category != types.CategoryMemory {
		return fmt.Errorf("%w: memory cannot restore category %s", platform.ErrInvalidArgument, rec.Category)
	}
	if err := o.ctl.Restore(ctx, rec); err != nil {
		return err
	}
	o.log.Logf("Restored %s to %s", rec.Key, rec.Prior)
	return nil
}
