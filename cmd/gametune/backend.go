package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/jamesainslie/gametune/pkg/client"
	"github.com/jamesainslie/gametune/pkg/gametune/app"
	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// newSystem returns the OS backends. Tests replace it with fakes.
var newSystem = platform.Native

// pinnedTable skips OS detection when set. Tests pin it.
var pinnedTable *tables.Table

// backend runs operations either in this process or through the agent.
type backend interface {
	Run(ctx context.Context, operation string, args engine.Args) (types.Report, error)
	RunAll(ctx context.Context, adapter *types.AdapterIdentity) (types.Report, error)
	Restore(ctx context.Context) (types.Report, error)
	Backup(ctx context.Context) ([]types.TweakRecord, error)
	Adapters(ctx context.Context) ([]types.AdapterIdentity, *types.AdapterIdentity, error)
	Close() error
}

// openBackend prefers a running agent, which owns the backup journal while
// it is up, and falls back to a local session.
func openBackend(ctx context.Context) (backend, error) {
	if !viper.GetBool("no_agent") && client.IsDaemonRunning(cfg.PIDPath()) {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		c, err := client.ConnectWithContext(dialCtx, cfg.SocketPath())
		if err == nil {
			printVerbose("using agent at %s", cfg.SocketPath())
			return &agentBackend{client: c}, nil
		}
		printVerbose("agent not reachable, running locally: %v", err)
	}

	var opts []app.Option
	if pinnedTable != nil {
		opts = append(opts, app.WithTable(pinnedTable))
	}
	env, err := app.Open(ctx, cfg, newSystem(), progress(), opts...)
	if err != nil {
		return nil, err
	}
	printVerbose("running locally (table %s, session %s)", env.Table.Name, env.Session.ID())
	return &localBackend{env: env}, nil
}

// localBackend runs operations on this machine.
type localBackend struct {
	env *app.Env
}

func (b *localBackend) detect(ctx context.Context) *types.AdapterIdentity {
	adapter, err := b.env.Session.DetectActiveAdapter(ctx)
	if err != nil {
		printVerbose("adapter detection failed: %v", err)
		return nil
	}
	return adapter
}

func (b *localBackend) Run(ctx context.Context, operation string, args engine.Args) (types.Report, error) {
	if _, err := engine.Describe(operation); err != nil {
		return types.Report{}, err
	}
	if args.Adapter == nil && engine.NeedsAdapter(operation) {
		args.Adapter = b.detect(ctx)
	}

	report := types.Report{Started: time.Now()}
	res := b.env.Session.Do(ctx, operation, args)
	report.Duration = time.Since(report.Started)
	report.Add(operation, res)
	return report, nil
}

func (b *localBackend) RunAll(ctx context.Context, adapter *types.AdapterIdentity) (types.Report, error) {
	if adapter == nil {
		adapter = b.detect(ctx)
	}
	return b.env.Session.RunAll(ctx, adapter), nil
}

func (b *localBackend) Restore(ctx context.Context) (types.Report, error) {
	return b.env.Session.Restore(ctx)
}

func (b *localBackend) Backup(_ context.Context) ([]types.TweakRecord, error) {
	return b.env.Session.Backup(), nil
}

func (b *localBackend) Adapters(ctx context.Context) ([]types.AdapterIdentity, *types.AdapterIdentity, error) {
	adapters, err := b.env.Session.ListAdapters(ctx)
	if err != nil {
		return nil, nil, err
	}
	for i := range adapters {
		if adapters[i].IsActive {
			active := adapters[i]
			return adapters, &active, nil
		}
	}
	return adapters, nil, nil
}

func (b *localBackend) Close() error {
	return b.env.Close()
}

// agentBackend forwards operations to gametuned and echoes its progress.
type agentBackend struct {
	client *client.Client
}

// markerWait bounds how long watch waits for the end-of-call marker after
// the RPC returned. The marker is dropped if the watcher fell behind.
var markerWait = 2 * time.Second

// watch echoes the agent's progress lines while fn runs. fn passes marker to
// the agent, which sends it after the call's last line; watch drains the
// stream up to it so no trailing line is lost.
func (b *agentBackend) watch(ctx context.Context, fn func(opts ...client.CallOption) error) error {
	if getQuiet() {
		return fn()
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := b.client.Watch(watchCtx)
	if err != nil {
		printVerbose("progress stream unavailable: %v", err)
		return fn()
	}

	marker := uuid.New().String()
	seen := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			if e.Marker != "" {
				if e.Marker == marker {
					close(seen)
					return
				}
				continue
			}
			fmt.Fprintln(os.Stderr, progressLine(e.Time, e.Message))
		}
	}()

	err = fn(client.WithMarker(marker))
	select {
	case <-seen:
	case <-done:
	case <-time.After(markerWait):
		printVerbose("progress stream did not catch up, some lines may be missing")
	}
	cancel()
	<-done
	return err
}

func (b *agentBackend) Run(ctx context.Context, operation string, args engine.Args) (types.Report, error) {
	var report types.Report
	err := b.watch(ctx, func(opts ...client.CallOption) (err error) {
		report, err = b.client.Run(ctx, operation, args, opts...)
		return err
	})
	return report, err
}

func (b *agentBackend) RunAll(ctx context.Context, adapter *types.AdapterIdentity) (types.Report, error) {
	var report types.Report
	err := b.watch(ctx, func(opts ...client.CallOption) (err error) {
		report, err = b.client.RunAll(ctx, adapter, opts...)
		return err
	})
	return report, err
}

func (b *agentBackend) Restore(ctx context.Context) (types.Report, error) {
	var report types.Report
	err := b.watch(ctx, func(opts ...client.CallOption) (err error) {
		report, err = b.client.Restore(ctx, opts...)
		return err
	})
	return report, err
}

func (b *agentBackend) Backup(ctx context.Context) ([]types.TweakRecord, error) {
	return b.client.Backup(ctx)
}

func (b *agentBackend) Adapters(ctx context.Context) ([]types.AdapterIdentity, *types.AdapterIdentity, error) {
	return b.client.Adapters(ctx)
}

func (b *agentBackend) Close() error {
	return b.client.Close()
}

// resolveAdapter maps an --adapter name to its identity. An empty name
// returns nil so the backend detects the active adapter itself.
func resolveAdapter(ctx context.Context, b backend, name string) (*types.AdapterIdentity, error) {
	if name == "" {
		return nil, nil
	}

	adapters, _, err := b.Adapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list adapters: %w", err)
	}
	for i := range adapters {
		if strings.EqualFold(adapters[i].Name, name) {
			return &adapters[i], nil
		}
	}
	return nil, fmt.Errorf("%w: network adapter %q", types.ErrNotFound, name)
}

// withBackend opens a backend for the duration of fn.
func withBackend(ctx context.Context, fn func(backend) error) error {
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			printVerbose("close: %v", cerr)
		}
	}()
	return fn(b)
}
