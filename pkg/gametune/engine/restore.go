package engine

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/jamesainslie/gametune/pkg/gametune/history"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// restorer is implemented by every optimizer.
type restorer interface {
	Restore(ctx context.Context, rec types.TweakRecord) error
}

func (s *Session) restorerFor(c types.Category) (restorer, bool) {
	switch c {
	case types.CategoryNetwork, types.CategoryTCP, types.CategoryDNS:
		return s.network, true
	case types.CategoryMemory:
		return s.memory, true
	case types.CategoryService:
		return s.services, true
	case types.CategoryPower, types.CategoryVisual, types.CategoryGPU:
		return s.system, true
	default:
		return nil, false
	}
}

// Restore replays every recorded prior value, newest first, through the
// optimizer that owns its category. A record is removed from the store, and
// from the journal, only once its value is back. Records that fail, or that
// are not reached because ctx ended, stay as they were so a later Restore can
// retry them. The error aggregates every failure.
func (s *Session) Restore(ctx context.Context) (types.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.store.Records()
	report := types.Report{Started: s.now()}

	if len(records) == 0 {
		s.log.Logf("Nothing to restore")
		return report, nil
	}
	s.log.Logf("Restoring %d setting(s)...", len(records))

	var errs *multierror.Error
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		step := "restore " + string(rec.Category) + "/" + rec.Key

		if ctx.Err() != nil {
			report.Add(step, types.Skip("cancelled"))
			continue
		}

		err := s.restoreOne(ctx, rec)
		if err != nil {
			logger.Error("restore failed", "record", rec.String(), "error", err)
			s.log.Logf("Failed to restore %s/%s: %v", rec.Category, rec.Key, err)
			errs = multierror.Append(errs, err)
			report.Add(step, types.FromError("restore", err))
			continue
		}
		s.store.Take(rec.Category, rec.Key)
		report.Add(step, types.OK("restored"))
	}

	report.Duration = s.now().Sub(report.Started)
	if err := errs.ErrorOrNil(); err != nil {
		s.log.Logf("Restore finished with %d failure(s)", errs.Len())
	} else if ctx.Err() == nil {
		s.log.Logf("All settings restored")
	}
	logger.Info("restore finished", "records", len(records), "failed", report.Failed(), "skipped", report.Skipped())

	s.record(history.OpRestore, report)
	return report, errs.ErrorOrNil()
}

func (s *Session) restoreOne(ctx context.Context, rec types.TweakRecord) error {
	r, ok := s.restorerFor(rec.Category)
	if !ok {
		return fmt.Errorf("%w: no restorer for category %q", types.ErrInvalidArgument, rec.Category)
	}
	return r.Restore(ctx, rec)
}
