package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// Outcome is what happened to one service.
type Outcome struct {
	Service string
	Changed bool
	Skipped bool
	Note    string
	Err     error
}

// Line formats the outcome as a sub-result, e.g. "XblGameSave: disabled".
func (o Outcome) Line() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: failed (%v)", o.Service, o.Err)
	}
	return o.Service + ": " + o.Note
}

// Result converts a single-service outcome into an operation result.
func (o Outcome) Result() types.Result {
	switch {
	case o.Err != nil:
		return types.Result{Kind: types.Classify(o.Err), Message: o.Line()}
	case o.Skipped:
		return types.Fail(types.KindNotFound, "%s", o.Line())
	default:
		return types.OK("%s", o.Line())
	}
}

// Controller toggles individual services, recording each prior start mode
// in the store under one category.
type Controller struct {
	scm      platform.ServiceManager
	store    *backup.Store
	category types.Category
}

// NewController creates a Controller that records under category.
func NewController(scm platform.ServiceManager, store *backup.Store, category types.Category) *Controller {
	return &Controller{scm: scm, store: store, category: category}
}

// Disable snapshots the start mode, sets it to disabled and stops the service.
// A service that is already disabled and not running is left alone, though its
// mode is still recorded.
func (c *Controller) Disable(ctx context.Context, entry tables.ServiceEntry) Outcome {
	out := Outcome{Service: entry.Name}

	mode, err := c.scm.StartMode(entry.Name)
	if errors.Is(err, platform.ErrNotFound) {
		out.Skipped, out.Note = true, "not installed"
		return out
	}
	if err != nil {
		out.Err = err
		return out
	}

	state, err := c.scm.State(entry.Name)
	if err != nil {
		logger.Debug("service state unknown", "service", entry.Name, "error", err)
		state = platform.StatePending
	}

	// Recorded even when nothing changes, so Enable puts back this mode
	// rather than the table default.
	c.store.SnapshotIfAbsent(c.category, entry.Name, func() (types.Value, error) {
		return types.Present(string(mode)), nil
	})

	if mode == platform.StartDisabled && state == platform.StateStopped {
		out.Note = "already disabled"
		return out
	}

	if mode != platform.StartDisabled {
		if err := c.scm.SetStartMode(entry.Name, platform.StartDisabled); err != nil {
			out.Err = err
			return out
		}
		out.Changed = true
		logger.Info("service disabled", "service", entry.Name, "was", mode)
	}

	if state != platform.StateStopped {
		if err := c.scm.Stop(ctx, entry.Name); err != nil {
			out.Err = fmt.Errorf("disabled but still running: %w", err)
			return out
		}
		out.Changed = true
		logger.Info("service stopped", "service", entry.Name)
	}

	out.Note = "disabled"
	return out
}

// Enable returns the service to its recorded start mode, or to the table
// default when nothing was recorded, and starts it if that mode is automatic.
// The record is consumed once the service is back.
func (c *Controller) Enable(ctx context.Context, entry tables.ServiceEntry) Outcome {
	out := Outcome{Service: entry.Name}

	target := entry.Default
	if rec, ok := c.store.Record(c.category, entry.Name); ok {
		if m, err := platform.ParseStartMode(rec.Prior); err == nil {
			target = m
		} else {
			logger.Warn("ignoring unreadable start mode record", "service", entry.Name, "prior", rec.Prior)
		}
	}

	mode, err := c.scm.StartMode(entry.Name)
	if errors.Is(err, platform.ErrNotFound) {
		out.Skipped, out.Note = true, "not installed"
		return out
	}
	if err != nil {
		out.Err = err
		return out
	}

	if mode != target {
		if err := c.scm.SetStartMode(entry.Name, target); err != nil {
			out.Err = err
			return out
		}
		out.Changed = true
		logger.Info("service start mode restored", "service", entry.Name, "mode", target)
	}

	if autoStart(target) {
		state, err := c.scm.State(entry.Name)
		if err != nil || state != platform.StateRunning {
			if err := c.scm.Start(entry.Name); err != nil {
				out.Err = fmt.Errorf("set to %s but not started: %w", target, err)
				return out
			}
			out.Changed = true
		}
	}

	c.store.Take(c.category, entry.Name)

	if out.Changed {
		out.Note = "enabled (" + string(target) + ")"
	} else {
		out.Note = "already " + string(target)
	}
	return out
}

// Restore writes a recorded start mode back and starts automatic services.
func (c *Controller) Restore(ctx context.Context, rec types.TweakRecord) error {
	mode, err := platform.ParseStartMode(rec.Prior)
	if err != nil {
		return fmt.Errorf("restoring %s: %w", rec.Key, err)
	}
	if err := c.scm.SetStartMode(rec.Key, mode); err != nil {
		return fmt.Errorf("restoring %s: %w", rec.Key, err)
	}
	if autoStart(mode) {
		if err := c.scm.Start(rec.Key); err != nil {
			return fmt.Errorf("starting %s: %w", rec.Key, err)
		}
	}
	logger.Info("service restored", "service", rec.Key, "mode", mode)
	return nil
}

func autoStart(m platform.StartMode) bool {
	return m == platform.StartAuto || m == platform.StartDelayedAuto
}
