package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/gametune/pkg/client"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the gametuned agent",
	Long: `Manage the gametuned agent.

The agent keeps one session alive for the whole boot: it owns the backup
journal, streams progress to every connected client and keeps a log backlog.
While it runs, gametune commands are executed by the agent.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the agent",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the agent",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the agent",
	Args:  cobra.NoArgs,
	RunE:  runDaemonRestart,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show agent log lines",
	Long:  `Print the agent's recent log lines. With -f, keep printing new ones until interrupted.`,
	Args:  cobra.NoArgs,
	RunE:  runDaemonLogs,
}

var (
	logsFollow  bool
	logsBacklog int
)

func init() {
	daemonLogsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep streaming new lines")
	daemonLogsCmd.Flags().IntVarP(&logsBacklog, "lines", "n", 100, "number of recent lines to show")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	rootCmd.AddCommand(daemonCmd)
}

func daemonPaths() client.DaemonPaths {
	return client.DaemonPaths{Socket: cfg.SocketPath(), PID: cfg.PIDPath()}
}

func runDaemonStart(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	if client.IsDaemonRunning(paths.PID) {
		printInfo("Agent already running")
		return nil
	}

	printVerbose("starting agent, socket %s", paths.Socket)
	if err := client.StartDaemon(paths); err != nil {
		return err
	}
	printInfo("Agent started")
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	printVerbose("checking PID file: %s", paths.PID)

	if !client.IsDaemonRunning(paths.PID) {
		return errors.New("agent is not running")
	}
	if err := client.StopDaemon(paths); err != nil {
		return err
	}
	printInfo("Agent stopped")
	return nil
}

func runDaemonRestart(_ *cobra.Command, _ []string) error {
	if err := client.RestartDaemon(daemonPaths()); err != nil {
		return err
	}
	printInfo("Agent restarted")
	return nil
}

// connectAgent dials the agent, failing fast when it is not running.
func connectAgent(ctx context.Context) (*client.Client, error) {
	paths := daemonPaths()
	if !client.IsDaemonRunning(paths.PID) {
		return nil, errors.New("agent is not running (start with: gametune daemon start)")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c, err := client.ConnectWithContext(dialCtx, paths.Socket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent: %w", err)
	}
	return c, nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	if !client.IsDaemonRunning(cfg.PIDPath()) {
		printInfo("Agent status: not running")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	c, err := client.ConnectWithContext(ctx, cfg.SocketPath())
	if err != nil {
		printInfo("Agent status: running (but not responding)")
		return nil
	}
	defer c.Close()

	status, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get agent status: %w", err)
	}

	printInfo("Agent status: running")
	printInfo("  PID:         %d", status.PID)
	printInfo("  Uptime:      %s", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
	printInfo("  Memory:      %s", humanize.IBytes(status.MemoryBytes))
	printInfo("  Session:     %s", status.Session)
	printInfo("  Table:       %s (build %d)", status.Table, status.Build)
	printInfo("  Recorded:    %d setting(s)", status.Records)
	printInfo("  Clients:     %d", status.Subscribers)
	if status.ConfigFile != "" {
		printInfo("  Config file: %s", status.ConfigFile)
	}
	return nil
}

func runDaemonLogs(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	c, err := connectAgent(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	err = c.Logs(ctx, logsBacklog, logsFollow, func(e client.LogEntry) {
		fmt.Fprintf(stdout, "%s %-5s %-8s %s\n", e.Time.Format("15:04:05"), e.Level, e.Component, e.Message)
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
