// Package system applies the machine-wide tweaks: the Ultimate Performance
// power plan, visual effects, hardware GPU scheduling and multimedia
// scheduler responsiveness.
package system

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var logger = logging.Get("system")

// activeSchemeKey is the backup key of the previously active power scheme.
const activeSchemeKey = "ActiveScheme"

// Optimizer applies and reverts system tweaks.
type Optimizer struct {
	reg   platform.Registry
	power platform.PowerManager
	store *backup.Store
	table *tables.Table
	log   types.LogFunc
}

// New creates an Optimizer.
func New(reg platform.Registry, power platform.PowerManager, store *backup.Store, table *tables.Table, log types.LogFunc) *Optimizer {
	return &Optimizer{reg: reg, power: power, store: store, table: table, log: log}
}

// Restore writes a recorded prior value back. Power records are either the
// previously active scheme or a registry value; visual and gpu records are
// registry values.
func (o *Optimizer) Restore(ctx context.Context, rec types.TweakRecord) error {
	switch rec.Category {
	case types.CategoryPower:
		if rec.Key == activeSchemeKey {
			return o.restoreScheme(ctx, rec)
		}
		return o.restoreValue(rec)
	case types.CategoryVisual, types.CategoryGPU:
		return o.restoreValue(rec)
	default:
		return fmt.Errorf("%w: system cannot restore category %s", platform.ErrInvalidArgument, rec.Category)
	}
}

// apply snapshots and writes one registry tweak. It reports whether the value
// changed. A value already equal to the target is recorded but not written.
func (o *Optimizer) apply(category types.Category, tweak tables.RegistryTweak) (bool, error) {
	current, err := o.reg.GetValue(tweak.Key)
	absent := errors.Is(err, platform.ErrNotFound)
	if err != nil && !absent {
		return false, err
	}
	o.store.SnapshotIfAbsent(category, tweak.Key.String(), func() (types.Value, error) {
		if absent {
			return types.Missing(), nil
		}
		return types.Present(current.Encode()), nil
	})

	if !absent && current.Equal(tweak.Value) {
		return false, nil
	}

	if err := o.reg.SetValue(tweak.Key, tweak.Value); err != nil {
		return false, err
	}
	logger.Info("registry value set", "key", tweak.Key.String(), "value", tweak.Value.Encode())
	return true, nil
}

// restoreValue writes a recorded registry value back, deleting it when it
// did not exist before.
func (o *Optimizer) restoreValue(rec types.TweakRecord) error {
	key, err := platform.ParseRegistryKey(rec.Key)
	if err != nil {
		return err
	}

	if rec.Absent {
		if err := o.reg.DeleteValue(key); err != nil {
			return fmt.Errorf("removing %s: %w", key, err)
		}
		logger.Info("registry value removed", "key", rec.Key)
		o.log.Logf("Removed %s", key.Name)
		return nil
	}

	value, err := platform.DecodeValue(rec.Prior)
	if err != nil {
		return fmt.Errorf("restoring %s: %w", key, err)
	}
	if err := o.reg.SetValue(key, value); err != nil {
		return fmt.Errorf("restoring %s: %w", key, err)
	}
	logger.Info("registry value restored", "key", rec.Key, "value", rec.Prior)
	o.log.Logf("Restored %s to %s", key.Name, strings.TrimPrefix(rec.Prior, "dword:"))
	return nil
}
