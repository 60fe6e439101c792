// Package app assembles a configured engine session: the version table with
// the user's overrides, the persistent backup journal and the run history.
// The CLI and the agent both start from here.
package app

import (
	"context"
	"fmt"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/config"
	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/history"
	"github.com/jamesainslie/gametune/pkg/gametune/journal"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var logger = logging.Get("app")

// Env is an open session and the resources behind it.
type Env struct {
	Session *engine.Session
	Table   *tables.Table
	Journal *journal.Journal
	History *history.History
}

type options struct {
	table *tables.Table
}

// Option configures Open.
type Option func(*options)

// WithTable skips OS detection and uses t as the base table.
func WithTable(t *tables.Table) Option {
	return func(o *options) {
		o.table = t
	}
}

// Open builds a session over sys from cfg. When the journal is enabled the
// records of earlier sessions are reloaded from it, so a restore in a later
// process still sees them.
func Open(ctx context.Context, cfg *config.Config, sys *platform.System, log types.LogFunc, opts ...Option) (*Env, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	base := o.table
	if base == nil {
		base = tables.Detect(ctx)
	}
	env := &Env{Table: base.Apply(cfg.TableOverrides())}

	var sessionOpts []engine.Option
	if cfg.Backup.JournalEnabled {
		j, err := journal.Open(cfg.JournalPath())
		if err != nil {
			return nil, fmt.Errorf("open backup journal: %w", err)
		}
		store, err := backup.Open(j, backup.WithLogger(log))
		if err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("load backup journal: %w", err)
		}
		env.Journal = j
		sessionOpts = append(sessionOpts, engine.WithStore(store))
	}

	if cfg.History.Enabled {
		h, err := history.New(cfg.HistoryDir())
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		env.History = h
		sessionOpts = append(sessionOpts, engine.WithHistory(h))
	}

	env.Session = engine.New(sys, env.Table, log, sessionOpts...)
	logger.Debug("environment ready", "table", env.Table.Name, "journal", env.Journal != nil, "history", env.History != nil)
	return env, nil
}

// Close releases the journal.
func (e *Env) Close() error {
	if e.Journal == nil {
		return nil
	}
	return e.Journal.Close()
}
