// Package main provides gametuned, the agent that keeps one optimization
// session alive and serves it to gametune clients over a Unix socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jamesainslie/gametune/pkg/daemon"
	"github.com/jamesainslie/gametune/pkg/daemon/broadcaster"
	"github.com/jamesainslie/gametune/pkg/gametune/app"
	"github.com/jamesainslie/gametune/pkg/gametune/config"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
)

// backlogSize is how many log lines the agent keeps for 'gametune daemon logs'.
const backlogSize = 500

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gametuned: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Watch(func(c *config.Config, err error) {
		if err != nil {
			logging.Get("daemon").Warn("config reload failed", "error", err)
			return
		}
		logging.Get("daemon").Info("config file changed, restart the agent to apply it", "file", c.File)
	})
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		return fmt.Errorf("load configuration: %w", err)
	}

	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		return err
	}
	logCfg.Backlog = backlogSize
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logging.Close() }()
	log := logging.Get("daemon")

	socketPath := cfg.SocketPath()
	pidPath := cfg.PIDPath()
	statusPath := daemon.StatusPath(socketPath)

	if err := daemon.RecoverFromStaleDaemon(pidPath, socketPath, cfg.JournalPath()); err != nil {
		if errors.Is(err, daemon.ErrDaemonAlreadyRunning) {
			return errors.New("gametuned is already running")
		}
		return err
	}

	// fail writes the error where 'gametune daemon start' looks for it.
	fail := func(err error) error {
		if werr := daemon.WriteStatusError(statusPath, err); werr != nil {
			log.Warn("failed to write status file", "error", werr)
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := broadcaster.New()
	env, err := app.Open(ctx, cfg, platform.Native(), events.Notify)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := env.Close(); err != nil {
			log.Warn("failed to close journal", "error", err)
		}
	}()

	var (
		srv  *daemon.Server
		once sync.Once
	)
	shutdown := func() {
		once.Do(func() {
			events.Close()
			if err := srv.Close(); err != nil {
				log.Warn("error during shutdown", "error", err)
			}
		})
	}

	svc := daemon.NewService(env.Session, events,
		daemon.WithShutdown(shutdown),
		daemon.WithConfigFile(cfg.File),
	)
	srv, err = daemon.NewServer(daemon.Config{SocketPath: socketPath, DataDir: config.DataDir()}, svc)
	if err != nil {
		return fail(fmt.Errorf("create server: %w", err))
	}

	if err := daemon.WritePIDFile(pidPath); err != nil {
		_ = srv.Close()
		return fail(fmt.Errorf("write PID file: %w", err))
	}
	defer func() {
		if err := daemon.RemovePIDFile(pidPath); err != nil {
			log.Warn("failed to remove PID file", "error", err)
		}
		_ = daemon.RemoveStatus(statusPath)
	}()

	go func() {
		<-ctx.Done()
		log.Info("signal received, shutting down")
		shutdown()
	}()

	if err := daemon.WriteStatusReady(statusPath, env.Table.Name, env.Session.ID()); err != nil {
		log.Warn("failed to write status file", "error", err)
	}
	log.Info("gametuned starting", "socket", socketPath, "table", env.Table.Name, "session", env.Session.ID())

	if err := srv.Serve(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("gametuned stopped")
	return nil
}
