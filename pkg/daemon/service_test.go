package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	gametunev1 "github.com/jamesainslie/gametune/pkg/api/gametune/v1"
	"github.com/jamesainslie/gametune/pkg/daemon/broadcaster"
	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/platform/platformtest"
	"github.com/jamesainslie/gametune/pkg/gametune/tables"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

const balancedScheme = "381b4222-f694-41f0-9685-ff5bb260df2e"

// machine seeds a stock Windows 11 install with one wired and one idle adapter.
func machine() *platformtest.Machine {
	m := platformtest.NewMachine()
	t := tables.Windows11

	m.Network.AddAdapter(platform.Adapter{Name: "Ethernet", Index: 12, Status: "Up"}, map[string]string{
		"*InterruptModeration": "1",
	})
	m.Network.AddAdapter(platform.Adapter{Name: "Wi-Fi", Index: 7, Status: "Disconnected"}, nil)
	m.Network.AddRoute(platform.Route{InterfaceIndex: 12, InterfaceMetric: 25})
	m.Network.SeedTCP("Internet", "CongestionProvider", "CUBIC")
	m.Network.SeedTCP("Internet", "AutoTuningLevelLocal", "Normal")
	m.Network.SeedTCP("Internet", "Timestamps", "Allowed")
	m.Network.SeedDNS(12, "192.168.1.1")

	m.Services.Add("SysMain", platform.StartAuto, platform.StateRunning)
	for _, e := range t.Xbox {
		m.Services.Add(e.Name, platform.StartManual, platform.StateStopped)
	}
	for _, e := range t.Telemetry {
		m.Services.Add(e.Name, e.Default, platform.StateRunning)
	}

	m.Power.AddScheme(balancedScheme, "Balanced", true)
	m.Power.AddTemplate(tables.UltimatePerformanceGUID, "Ultimate Performance")

	m.Registry.Seed(t.VisualEffects.Key, platform.DWord(0))
	m.Registry.Seed(t.GPUScheduling.Key, platform.DWord(1))
	m.Registry.Seed(t.Responsiveness[0].Key, platform.DWord(20))

	m.Memory.Readings = []platform.MemoryInfo{{Total: 16 << 30, Available: 4 << 30}}
	return m
}

type agent struct {
	client      gametunev1.AgentClient
	broadcaster *broadcaster.Broadcaster
	machine     *platformtest.Machine
	shutdown    chan struct{}
}

func startAgent(t *testing.T) *agent {
	t.Helper()

	a := &agent{
		broadcaster: broadcaster.New(),
		machine:     machine(),
		shutdown:    make(chan struct{}),
	}
	t.Cleanup(a.broadcaster.Close)

	session := engine.New(a.machine.System(), tables.ForBuild(tables.BuildWindows11), a.broadcaster.Notify)
	svc := NewService(session, a.broadcaster,
		WithShutdown(func() { close(a.shutdown) }),
		WithConfigFile("/etc/gametune/config.yaml"),
	)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary))
	gametunev1.RegisterAgentServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	a.client = gametunev1.NewAgentClient(conn)
	return a
}

func TestService_RunSingle(t *testing.T) {
	a := startAgent(t)
	ctx := context.Background()

	resp, err := a.client.Run(ctx, &gametunev1.RunRequest{Operation: engine.OpOptimizeTCP})
	require.NoError(t, err)
	require.Len(t, resp.Report.Steps, 1)
	assert.Equal(t, engine.OpOptimizeTCP, resp.Report.Steps[0].Operation)
	assert.True(t, resp.Report.Steps[0].Result.Success, resp.Report.Steps[0].Result.Message)

	backup, err := a.client.Backup(ctx, &gametunev1.BackupRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, backup.Records)
	for _, r := range backup.Records {
		assert.Equal(t, types.CategoryTCP, r.Category)
	}
}

func TestService_RunDetectsAdapter(t *testing.T) {
	a := startAgent(t)

	resp, err := a.client.Run(context.Background(), &gametunev1.RunRequest{Operation: engine.OpSetDNS, Provider: "cloudflare"})
	require.NoError(t, err)
	require.True(t, resp.Report.Steps[0].Result.Success, resp.Report.Steps[0].Result.Message)
	assert.Equal(t, []string{"1.1.1.1", "1.0.0.1"}, a.machine.Network.DNS(12))
}

func TestService_RunInvalid(t *testing.T) {
	a := startAgent(t)
	ctx := context.Background()

	_, err := a.client.Run(ctx, &gametunev1.RunRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = a.client.Run(ctx, &gametunev1.RunRequest{Operation: "overclock"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestService_RunAllAndRestore(t *testing.T) {
	a := startAgent(t)
	ctx := context.Background()

	resp, err := a.client.Run(ctx, &gametunev1.RunRequest{All: true})
	require.NoError(t, err)
	assert.Len(t, resp.Report.Steps, len(engine.RunAllOrder()))

	step, ok := resp.Report.Step(engine.OpOptimizeAdapter)
	require.True(t, ok)
	assert.False(t, step.Result.Skipped, "adapter should have been detected")
	assert.Equal(t, "0", mustProperty(t, a.machine, "Ethernet", "*InterruptModeration"))

	restored, err := a.client.Restore(ctx, &gametunev1.RestoreRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, restored.Report.Steps)
	assert.Empty(t, restored.Error)

	assert.Equal(t, "1", mustProperty(t, a.machine, "Ethernet", "*InterruptModeration"))
	assert.Equal(t, "CUBIC", a.machine.Network.TCP("Internet", "CongestionProvider"))
	svc, _ := a.machine.Services.Get("SysMain")
	assert.Equal(t, platform.StartAuto, svc.Mode)
	assert.Equal(t, balancedScheme, a.machine.Power.Active())

	backup, err := a.client.Backup(ctx, &gametunev1.BackupRequest{})
	require.NoError(t, err)
	assert.Empty(t, backup.Records)
}

func mustProperty(t *testing.T, m *platformtest.Machine, adapter, keyword string) string {
	t.Helper()
	v, ok := m.Network.Property(adapter, keyword)
	require.True(t, ok)
	return v
}

func TestService_Adapters(t *testing.T) {
	a := startAgent(t)

	resp, err := a.client.Adapters(context.Background(), &gametunev1.AdaptersRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Adapters, 2)
	require.NotNil(t, resp.Active)
	assert.Equal(t, "Ethernet", resp.Active.Name)
}

func TestService_Status(t *testing.T) {
	a := startAgent(t)
	ctx := context.Background()

	_, err := a.client.Run(ctx, &gametunev1.RunRequest{Operation: engine.OpDisableSysmain})
	require.NoError(t, err)

	resp, err := a.client.Status(ctx, &gametunev1.StatusRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Running)
	assert.Equal(t, os.Getpid(), resp.PID)
	assert.Equal(t, 1, resp.Records)
	assert.Equal(t, tables.Windows11.Name, resp.Table)
	assert.Equal(t, "/etc/gametune/config.yaml", resp.ConfigFile)
	assert.NotEmpty(t, resp.Session)
}

func TestService_Shutdown(t *testing.T) {
	a := startAgent(t)

	resp, err := a.client.Shutdown(context.Background(), &gametunev1.ShutdownRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	select {
	case <-a.shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown function not called")
	}
}

func TestService_Watch(t *testing.T) {
	a := startAgent(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := a.client.Watch(ctx, &gametunev1.WatchRequest{})
	require.NoError(t, err)
	ready, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, gametunev1.WatchReady, ready.Marker)
	assert.Equal(t, 1, a.broadcaster.SubscriberCount())

	_, err = a.client.Run(ctx, &gametunev1.RunRequest{Operation: engine.OpDisableSysmain})
	require.NoError(t, err)

	event, err := stream.Recv()
	require.NoError(t, err)
	assert.NotEmpty(t, event.Message)
	assert.False(t, event.Time.IsZero())

	cancel()
	require.Eventually(t, func() bool { return a.broadcaster.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestService_RunSendsMarkerLast(t *testing.T) {
	a := startAgent(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := a.client.Watch(ctx, &gametunev1.WatchRequest{})
	require.NoError(t, err)
	ready, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, gametunev1.WatchReady, ready.Marker)

	_, err = a.client.Run(ctx, &gametunev1.RunRequest{Operation: engine.OpOptimizeTCP, Marker: "tcp-call"})
	require.NoError(t, err)

	var lines []string
	for {
		event, err := stream.Recv()
		require.NoError(t, err)
		if event.Marker != "" {
			assert.Equal(t, "tcp-call", event.Marker)
			break
		}
		lines = append(lines, event.Message)
	}
	assert.NotEmpty(t, lines)
}

func TestService_Logs(t *testing.T) {
	a := startAgent(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Without Init there is no backlog, so a non-following request ends at once.
	stream, err := a.client.Logs(ctx, &gametunev1.LogsRequest{Backlog: 10})
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.True(t, errors.Is(err, io.EOF), "got %v", err)

	follow, err := a.client.Logs(ctx, &gametunev1.LogsRequest{Follow: true})
	require.NoError(t, err)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				logging.Get("logs-test").Info("ping")
			}
		}
	}()

	for {
		entry, err := follow.Recv()
		require.NoError(t, err)
		if entry.Component == "logs-test" {
			assert.Equal(t, "ping", entry.Message)
			assert.Equal(t, "info", entry.Level)
			return
		}
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{types.ErrNotFound, codes.NotFound},
		{types.ErrPermissionDenied, codes.PermissionDenied},
		{types.ErrInvalidArgument, codes.InvalidArgument},
		{types.ErrUnsupported, codes.Unimplemented},
		{errors.New("boom"), codes.Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}
