// Package client provides a client for connecting to the gametuned agent.
// It wraps the gRPC client with convenience methods and type conversions.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	gametunev1 "github.com/jamesainslie/gametune/pkg/api/gametune/v1"
	"github.com/jamesainslie/gametune/pkg/daemon"
	"github.com/jamesainslie/gametune/pkg/gametune/config"
	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// AgentBinary is the agent executable name without extension.
const AgentBinary = "gametuned"

// Client connects to the gametuned agent via gRPC.
type Client struct {
	conn   *grpc.ClientConn
	client gametunev1.AgentClient
}

// AgentStatus represents the agent's current status.
type AgentStatus struct {
	Running       bool   `json:"running" yaml:"running"`
	PID           int    `json:"pid" yaml:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds" yaml:"uptime_seconds"`
	MemoryBytes   uint64 `json:"memory_bytes" yaml:"memory_bytes"`
	Session       string `json:"session" yaml:"session"`
	Table         string `json:"table" yaml:"table"`
	Build         int    `json:"build" yaml:"build"`
	Records       int    `json:"records" yaml:"records"`
	Subscribers   int    `json:"subscribers" yaml:"subscribers"`
	ConfigFile    string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
}

// Event is a progress line streamed from the agent. Marker is set instead of
// Message on the end-of-call event of a request made with WithMarker.
type Event struct {
	Time    time.Time
	Message string
	Marker  string
}

// CallOption configures Run, RunAll and Restore.
type CallOption func(*callOptions)

type callOptions struct {
	marker string
}

// WithMarker asks the agent to send marker to watchers once the call's last
// progress line has been sent.
func WithMarker(marker string) CallOption {
	return func(o *callOptions) {
		o.marker = marker
	}
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LogEntry is one agent log line.
type LogEntry struct {
	Time      time.Time
	Level     string
	Component string
	Message   string
}

// DaemonPaths configures paths for agent operations.
// Empty fields use defaults.
type DaemonPaths struct {
	Binary string // Path to gametuned binary (auto-discovered if empty)
	Socket string // Unix socket path
	PID    string // PID file path
}

// withDefaults returns a copy with empty fields filled with defaults.
func (p DaemonPaths) withDefaults() DaemonPaths {
	if p.Socket == "" {
		p.Socket = config.DefaultSocketPath()
	}
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	return p
}

// Connect establishes a connection to the agent.
// Uses a default timeout of 5 seconds.
func Connect(socketPath string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ConnectWithContext(ctx, socketPath)
}

// ConnectWithContext establishes a connection to the agent with a custom context.
func ConnectWithContext(ctx context.Context, socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("agent socket not found at %s", socketPath)
	}

	//nolint:staticcheck // grpc.DialContext is deprecated but NewClient doesn't support blocking
	conn, err := grpc.DialContext(
		ctx,
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent: %w", err)
	}

	return &Client{
		conn:   conn,
		client: gametunev1.NewAgentClient(conn),
	}, nil
}

// Close closes the connection to the agent.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run executes one named operation on the agent's session. A nil adapter
// lets the agent detect the active one when the operation needs it.
func (c *Client) Run(ctx context.Context, operation string, args engine.Args, opts ...CallOption) (types.Report, error) {
	o := applyCallOptions(opts)
	resp, err := c.client.Run(ctx, &gametunev1.RunRequest{
		Operation: operation,
		Adapter:   args.Adapter,
		Provider:  args.Provider,
		Marker:    o.marker,
	})
	if err != nil {
		return types.Report{}, fmt.Errorf("Run RPC failed: %w", err)
	}
	return resp.Report, nil
}

// RunAll executes the bulk sequence on the agent.
func (c *Client) RunAll(ctx context.Context, adapter *types.AdapterIdentity, opts ...CallOption) (types.Report, error) {
	o := applyCallOptions(opts)
	resp, err := c.client.Run(ctx, &gametunev1.RunRequest{All: true, Adapter: adapter, Marker: o.marker})
	if err != nil {
		return types.Report{}, fmt.Errorf("Run RPC failed: %w", err)
	}
	return resp.Report, nil
}

// Restore puts back every value the agent recorded. The report is returned
// even when some records failed; those stay recorded on the agent.
func (c *Client) Restore(ctx context.Context, opts ...CallOption) (types.Report, error) {
	o := applyCallOptions(opts)
	resp, err := c.client.Restore(ctx, &gametunev1.RestoreRequest{Marker: o.marker})
	if err != nil {
		return types.Report{}, fmt.Errorf("Restore RPC failed: %w", err)
	}
	if resp.Error != "" {
		return resp.Report, errors.New(resp.Error)
	}
	return resp.Report, nil
}

// Backup lists the agent's outstanding records.
func (c *Client) Backup(ctx context.Context) ([]types.TweakRecord, error) {
	resp, err := c.client.Backup(ctx, &gametunev1.BackupRequest{})
	if err != nil {
		return nil, fmt.Errorf("Backup RPC failed: %w", err)
	}
	return resp.Records, nil
}

// Adapters lists network adapters. active is nil when none qualifies.
func (c *Client) Adapters(ctx context.Context) (adapters []types.AdapterIdentity, active *types.AdapterIdentity, err error) {
	resp, err := c.client.Adapters(ctx, &gametunev1.AdaptersRequest{})
	if err != nil {
		return nil, nil, fmt.Errorf("Adapters RPC failed: %w", err)
	}
	return resp.Adapters, resp.Active, nil
}

// Status returns the current status of the agent.
func (c *Client) Status(ctx context.Context) (*AgentStatus, error) {
	st, err := c.client.Status(ctx, &gametunev1.StatusRequest{})
	if err != nil {
		return nil, fmt.Errorf("Status RPC failed: %w", err)
	}

	return &AgentStatus{
		Running:       st.Running,
		PID:           st.PID,
		UptimeSeconds: st.UptimeSeconds,
		MemoryBytes:   st.MemoryBytes,
		Session:       st.Session,
		Table:         st.Table,
		Build:         st.Build,
		Records:       st.Records,
		Subscribers:   st.Subscribers,
		ConfigFile:    st.ConfigFile,
	}, nil
}

// Shutdown requests the agent to shut down gracefully.
func (c *Client) Shutdown(ctx context.Context) error {
	resp, err := c.client.Shutdown(ctx, &gametunev1.ShutdownRequest{})
	if err != nil {
		return fmt.Errorf("Shutdown RPC failed: %w", err)
	}
	if !resp.Success {
		return errors.New("shutdown request was not successful")
	}
	return nil
}

// Watch subscribes to the agent's progress lines. It returns once the agent
// confirms the subscription, so nothing from a call made afterwards is missed.
// The channel closes when the context is cancelled or the stream ends.
func (c *Client) Watch(ctx context.Context) (<-chan Event, error) {
	stream, err := c.client.Watch(ctx, &gametunev1.WatchRequest{})
	if err != nil {
		return nil, fmt.Errorf("Watch RPC failed: %w", err)
	}

	first, err := stream.Recv()
	if err != nil {
		return nil, fmt.Errorf("Watch stream failed: %w", err)
	}

	events := make(chan Event, 100)
	if first.Marker != gametunev1.WatchReady {
		events <- Event{Time: first.Time, Message: first.Message, Marker: first.Marker}
	}
	go func() {
		defer close(events)
		for {
			event, err := stream.Recv()
			if err != nil {
				return // Stream closed or error
			}
			select {
			case events <- Event{Time: event.Time, Message: event.Message, Marker: event.Marker}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// Logs replays up to backlog recent agent log entries, then with follow set
// keeps delivering new ones until ctx is cancelled.
func (c *Client) Logs(ctx context.Context, backlog int, follow bool, fn func(LogEntry)) error {
	stream, err := c.client.Logs(ctx, &gametunev1.LogsRequest{Backlog: backlog, Follow: follow})
	if err != nil {
		return fmt.Errorf("Logs RPC failed: %w", err)
	}

	for {
		entry, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error receiving log entry: %w", err)
		}
		fn(LogEntry{
			Time:      entry.Time,
			Level:     entry.Level,
			Component: entry.Component,
			Message:   entry.Message,
		})
	}
}

// StartDaemon starts the gametuned agent in the background.
// Idempotent: returns nil if the agent is already running.
func StartDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if IsDaemonRunning(paths.PID) {
		return nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return fmt.Errorf("find %s: %w", AgentBinary, err)
	}

	statusPath := daemon.StatusPath(paths.Socket)
	_ = daemon.RemoveStatus(statusPath)

	// exec.Command, not CommandContext: the agent must outlive the caller.
	cmd := exec.Command(binary) //nolint:gosec // binary path is validated
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)

		if _, err := os.Stat(paths.Socket); err == nil {
			return nil
		}

		if status, err := daemon.ReadStatus(statusPath); err == nil {
			switch status.State {
			case daemon.StateReady:
				return nil
			case daemon.StateError:
				return fmt.Errorf("agent failed to start: %s", status.Error)
			}
		}
	}

	return errors.New("agent did not become ready within timeout")
}

// StopDaemon stops the agent gracefully via RPC.
// Idempotent: returns nil if the agent is not running.
func StopDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if !IsDaemonRunning(paths.PID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		return fmt.Errorf("connect to agent: %w", err)
	}
	defer c.Close()

	if err := c.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown agent: %w", err)
	}

	for range 20 {
		time.Sleep(250 * time.Millisecond)
		if !IsDaemonRunning(paths.PID) {
			return nil
		}
	}

	return errors.New("agent did not stop within timeout")
}

// RestartDaemon stops and starts the agent.
func RestartDaemon(paths DaemonPaths) error {
	if err := StopDaemon(paths); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := StartDaemon(paths); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// IsDaemonRunning checks if the agent is running based on the PID file.
func IsDaemonRunning(pidPath string) bool {
	return daemon.IsDaemonRunning(pidPath)
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return AgentBinary + ".exe"
	}
	return AgentBinary
}

// resolveBinary finds the gametuned binary path.
// Priority: configured path > same directory as executable > GOBIN/GOPATH > PATH.
func resolveBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured binary not found: %s", configured)
		}
		return configured, nil
	}

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), binaryName())
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if candidate := goBinaryPath(); candidate != "" {
		return candidate, nil
	}

	if path, err := exec.LookPath(AgentBinary); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found", AgentBinary)
}

// goBinaryPath returns the agent under GOBIN, GOPATH/bin or ~/go/bin, the
// first that exists.
func goBinaryPath() string {
	var dirs []string
	if gobin := os.Getenv("GOBIN"); gobin != "" {
		dirs = append(dirs, gobin)
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		dirs = append(dirs, filepath.Join(gopath, "bin"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "go", "bin"))
	}

	for _, dir := range dirs {
		candidate := filepath.Join(dir, binaryName())
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
