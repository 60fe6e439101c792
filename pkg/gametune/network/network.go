// Package network optimizes the active network adapter, the global TCP stack
// and the resolver configuration, snapshotting every value it changes.
package network

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var logger = logging.Get("network")

// Optimizer applies and reverts network tweaks.
type Optimizer struct {
	stack platform.NetworkStack
	store *backup.Store
	table *tables.Table
	log   types.LogFunc
}

// New creates an Optimizer. log receives human-readable progress lines.
func New(stack platform.NetworkStack, store *backup.Store, table *tables.Table, log types.LogFunc) *Optimizer {
	return &Optimizer{stack: stack, store: store, table: table, log: log}
}

// DetectActiveAdapter returns the adapter carrying the preferred IPv4 default
// route, or nil when no connected adapter has one. An error means the OS query
// itself failed; callers treat that like "no adapter".
func (o *Optimizer) DetectActiveAdapter(ctx context.Context) (*types.AdapterIdentity, error) {
	adapters, active, err := o.scan(ctx)
	if err != nil {
		logger.Warn("adapter detection failed", "error", err)
		o.log.Logf("Adapter detection failed: %v", err)
		return nil, err
	}
	if active < 0 {
		logger.Info("no adapter with a default route")
		o.log.Logf("No active network adapter found")
		return nil, nil
	}

	id := &types.AdapterIdentity{Name: adapters[active].Name, Index: adapters[active].Index, IsActive: true}
	logger.Info("active adapter detected", "name", id.Name, "index", id.Index)
	o.log.Logf("Active adapter: %s", id)
	return id, nil
}

// ListAdapters returns every adapter, flagging the active one.
func (o *Optimizer) ListAdapters(ctx context.Context) ([]types.AdapterIdentity, error) {
	adapters, active, err := o.scan(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]types.AdapterIdentity, len(adapters))
	for i, a := range adapters {
		ids[i] = types.AdapterIdentity{Name: a.Name, Index: a.Index, IsActive: i == active}
	}
	return ids, nil
}

// scan lists adapters and returns the position of the active one, or -1.
// The active adapter is the connected adapter whose default route has the
// lowest effective metric; ties go to the lower interface index.
func (o *Optimizer) scan(ctx context.Context) ([]platform.Adapter, int, error) {
	adapters, err := o.stack.Adapters(ctx)
	if err != nil {
		return nil, -1, err
	}
	routes, err := o.stack.DefaultRoutes(ctx)
	if err != nil {
		return nil, -1, err
	}

	sort.SliceStable(adapters, func(i, j int) bool { return adapters[i].Index < adapters[j].Index })

	byIndex := make(map[int]int, len(adapters))
	for i, a := range adapters {
		byIndex[a.Index] = i
	}

	active, best := -1, 0
	for _, r := range routes {
		i, ok := byIndex[r.InterfaceIndex]
		if !ok || !adapters[i].Up() {
			continue
		}
		m := r.Metric()
		if active < 0 || m < best || (m == best && adapters[i].Index < adapters[active].Index) {
			active, best = i, m
		}
	}
	return adapters, active, nil
}

// resolve re-reads the adapter list and returns the adapter matching id.
// It guards against the adapter disappearing between detection and mutation.
func (o *Optimizer) resolve(ctx context.Context, id *types.AdapterIdentity) (platform.Adapter, error) {
	if id == nil {
		return platform.Adapter{}, fmt.Errorf("no adapter: %w", platform.ErrNotFound)
	}
	adapters, err := o.stack.Adapters(ctx)
	if err != nil {
		return platform.Adapter{}, err
	}
	for _, a := range adapters {
		if a.Index == id.Index && a.Name == id.Name {
			return a, nil
		}
	}
	return platform.Adapter{}, fmt.Errorf("adapter %s no longer exists: %w", id, platform.ErrNotFound)
}

// adapterByName finds an adapter by name. Interface indexes can change across
// reboots, so restores resolve by name.
func (o *Optimizer) adapterByName(ctx context.Context, name string) (platform.Adapter, error) {
	adapters, err := o.stack.Adapters(ctx)
	if err != nil {
		return platform.Adapter{}, err
	}
	for _, a := range adapters {
		if a.Name == name {
			return a, nil
		}
	}
	return platform.Adapter{}, fmt.Errorf("adapter %q: %w", name, platform.ErrNotFound)
}

// fetchOnce adapts an already-read value to a backup.Fetcher.
func fetchOnce(value string, err error) backup.Fetcher {
	return func() (types.Value, error) {
		if err != nil {
			return types.Value{}, err
		}
		return types.Present(value), nil
	}
}

func isPermission(err error) bool {
	return errors.Is(err, platform.ErrPermissionDenied)
}
