// Package engine owns one optimization session: the backup store, the four
// optimizers built on it, and the orchestration that runs them in bulk or
// reverts everything they recorded.
//
// Every mutating call goes through the Session and is serialized by it, so
// the store's first-write-wins guarantee holds even when calls arrive from
// concurrent RPC handlers.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/history"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/memory"
	"github.com/jamesainslie/gametune/pkg/gametune/network"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/services"
	"github.com/jamesainslie/gametune/pkg/gametune/system"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var logger = logging.Get("engine")

// Session is a single-writer optimization session.
type Session struct {
	mu sync.Mutex

	store   *backup.Store
	table   *tables.Table
	history *history.History
	log     types.LogFunc
	now     func() time.Time

	network  *network.Optimizer
	memory   *memory.Optimizer
	services *services.Optimizer
	system   *system.Optimizer
}

// Option configures a Session.
type Option func(*Session)

// WithStore uses an existing store, typically one reopened from a journal.
func WithStore(store *backup.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithHistory records bulk runs and restores.
func WithHistory(h *history.History) Option {
	return func(s *Session) {
		s.history = h
	}
}

// WithClock sets the time source used for report timing.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New creates a Session over sys using the given table. log receives every
// progress line from every optimizer.
func New(sys *platform.System, table *tables.Table, log types.LogFunc, opts ...Option) *Session {
	s := &Session{
		table: table,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = backup.New(backup.WithLogger(log))
	}

	s.network = network.New(sys.Network, s.store, table, log)
	s.memory = memory.New(sys, s.store, table, log)
	s.services = services.New(sys.Services, s.store, table, log)
	s.system = system.New(sys.Registry, sys.Power, s.store, table, log)

	logger.Debug("session created", "session", s.store.Session(), "table", table.Name, "build", table.Build)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.store.Session()
}

// Table returns the version table in use.
func (s *Session) Table() *tables.Table {
	return s.table
}

// Backup returns every outstanding record, oldest first.
func (s *Session) Backup() []types.TweakRecord {
	return s.store.Records()
}

// DetectActiveAdapter returns the adapter carrying default-route traffic, or nil.
func (s *Session) DetectActiveAdapter(ctx context.Context) (*types.AdapterIdentity, error) {
	return s.network.DetectActiveAdapter(ctx)
}

// ListAdapters returns every adapter, flagging the active one.
func (s *Session) ListAdapters(ctx context.Context) ([]types.AdapterIdentity, error) {
	return s.network.ListAdapters(ctx)
}

// MemoryInfo returns the current physical memory figures.
func (s *Session) MemoryInfo(ctx context.Context) (platform.MemoryInfo, error) {
	return s.memory.MemoryInfo(ctx)
}

// Status is a point-in-time view of the session.
type Status struct {
	Session string `json:"session" yaml:"session"`
	Table   string `json:"table" yaml:"table"`
	Build   int    `json:"build" yaml:"build"`
	Records int    `json:"records" yaml:"records"`
}

// Status returns the session summary.
func (s *Session) Status() Status {
	return Status{
		Session: s.store.Session(),
		Table:   s.table.Name,
		Build:   s.table.Build,
		Records: s.store.Len(),
	}
}

func (s *Session) record(op history.Operation, report types.Report) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(op, s.store.Session(), report); err != nil {
		logger.Warn("history write failed", "operation", op, "error", err)
	}
}
