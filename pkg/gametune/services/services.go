// Package services disables and re-enables groups of background services:
// the gaming-platform (Xbox) services and the telemetry services.
//
// Each group is a fixed list from the version table. One service failing
// does not stop the rest of the group; its failure becomes a sub-result.
package services

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var logger = logging.Get("services")

// Optimizer applies and reverts service group tweaks.
type Optimizer struct {
	ctl   *Controller
	table *tables.Table
	log   types.LogFunc
}

// New creates an Optimizer recording under types.CategoryService.
func New(scm platform.ServiceManager, store *backup.Store, table *tables.Table, log types.LogFunc) *Optimizer {
	return &Optimizer{
		ctl:   NewController(scm, store, types.CategoryService),
		table: table,
		log:   log,
	}
}

// DisableXboxFeatures disables the gaming-platform background services.
func (o *Optimizer) DisableXboxFeatures(ctx context.Context) types.Result {
	return o.group(ctx, "Xbox services disabled", o.table.Xbox, o.ctl.Disable)
}

// EnableXboxFeatures restores the gaming-platform background services.
func (o *Optimizer) EnableXboxFeatures(ctx context.Context) types.Result {
	return o.group(ctx, "Xbox services enabled", o.table.Xbox, o.ctl.Enable)
}

// DisableTelemetryServices disables the diagnostics and telemetry services.
func (o *Optimizer) DisableTelemetryServices(ctx context.Context) types.Result {
	return o.group(ctx, "Telemetry services disabled", o.table.Telemetry, o.ctl.Disable)
}

// EnableTelemetryServices restores the diagnostics and telemetry services.
func (o *Optimizer) EnableTelemetryServices(ctx context.Context) types.Result {
	return o.group(ctx, "Telemetry services enabled", o.table.Telemetry, o.ctl.Enable)
}

// Restore writes a recorded start mode back.
func (o *Optimizer) Restore(ctx context.Context, rec types.TweakRecord) error {
	if rec.Category != types.CategoryService {
		return fmt.Errorf("%w: services cannot restore category %s", platform.ErrInvalidArgument, rec.Category)
	}
	if err := o.ctl.Restore(ctx, rec); err != nil {
		return err
	}
	o.log.Logf("Restored service %s to %s", rec.Key, rec.Prior)
	return nil
}

// group runs fn over every entry. It succeeds if any service changed, or if
// every installed service was already in the requested state. A group with no
// installed service fails as not found.
func (o *Optimizer) group(ctx context.Context, headline string, entries []tables.ServiceEntry,
	fn func(context.Context, tables.ServiceEntry) Outcome) types.Result {
	var (
		errs    *multierror.Error
		lines   = make([]string, 0, len(entries))
		changed int
		missing int
	)

	for _, e := range entries {
		out := fn(ctx, e)
		lines = append(lines, out.Line())
		o.log.Logf("  %s", out.Line())

		if out.Err != nil {
			logger.Warn("service step failed", "service", e.Name, "error", out.Err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", e.Name, out.Err))
		}
		if out.Changed {
			changed++
		}
		if out.Skipped {
			missing++
		}
	}

	if len(entries) > 0 && missing == len(entries) {
		o.log.Logf("None of the services are installed")
		return types.Fail(types.KindNotFound, "%s", types.Summarize("None of the services are installed", lines))
	}

	err := errs.ErrorOrNil()
	switch {
	case err == nil:
		logger.Info(headline, "changed", changed, "total", len(entries))
		o.log.Logf("%s (%d changed)", headline, changed)
		return types.OK("%s", types.Summarize(headline, lines))
	case changed > 0:
		logger.Info(headline+" with failures", "changed", changed, "failed", errs.Len())
		o.log.Logf("%s with %d failure(s)", headline, errs.Len())
		return types.OK("%s", types.Summarize(fmt.Sprintf("%s with %d failure(s)", headline, errs.Len()), lines))
	default:
		o.log.Logf("No services changed")
		return types.Result{
			Kind:    types.Classify(err),
			Message: types.Summarize("No services changed", lines),
		}
	}
}
