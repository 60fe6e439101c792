// Package daemon implements gametuned, the agent that owns one optimization
// session and serves it over gRPC so the recorded prior values live as long
// as the agent does, not as long as one CLI invocation.
package daemon

import (
	"context"
	"os"
	"runtime"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	gametunev1 "github.com/jamesainslie/gametune/pkg/api/gametune/v1"
	"github.com/jamesainslie/gametune/pkg/daemon/broadcaster"
	"github.com/jamesainslie/gametune/pkg/gametune/engine"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var logger = logging.Get("daemon")

// Service implements the Agent gRPC service.
type Service struct {
	gametunev1.UnimplementedAgentServer

	session     *engine.Session
	broadcaster *broadcaster.Broadcaster
	startTime   time.Time
	configFile  string
	shutdown    func()
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithShutdown sets the function the Shutdown RPC calls. It runs on its own
// goroutine after the response is sent.
func WithShutdown(fn func()) ServiceOption {
	return func(s *Service) {
		s.shutdown = fn
	}
}

// WithConfigFile records the config file in use for Status.
func WithConfigFile(path string) ServiceOption {
	return func(s *Service) {
		s.configFile = path
	}
}

// NewService creates the gRPC service over session. b carries the session's
// progress lines to Watch subscribers and may be nil.
func NewService(session *engine.Session, b *broadcaster.Broadcaster, opts ...ServiceOption) *Service {
	s := &Service{
		session:     session,
		broadcaster: b,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one operation, or the bulk sequence.
func (s *Service) Run(ctx context.Context, req *gametunev1.RunRequest) (*gametunev1.RunResponse, error) {
	defer s.mark(req.Marker)

	if req.All {
		adapter := req.Adapter
		if adapter == nil {
			adapter = s.detect(ctx)
		}
		return &gametunev1.RunResponse{Report: s.session.RunAll(ctx, adapter)}, nil
	}

	if req.Operation == "" {
		return nil, status.Error(codes.InvalidArgument, "operation is required")
	}
	if _, err := engine.Describe(req.Operation); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	args := engine.Args{Adapter: req.Adapter, Provider: req.Provider}
	if args.Adapter == nil && engine.NeedsAdapter(req.Operation) {
		args.Adapter = s.detect(ctx)
	}

	report := types.Report{Started: time.Now()}
	res := s.session.Do(ctx, req.Operation, args)
	report.Duration = time.Since(report.Started)
	report.Add(req.Operation, res)
	return &gametunev1.RunResponse{Report: report}, nil
}

// mark tells watchers that every progress line of a call has been sent.
func (s *Service) mark(marker string) {
	if marker != "" && s.broadcaster != nil {
		s.broadcaster.Mark(marker)
	}
}

func (s *Service) detect(ctx context.Context) *types.AdapterIdentity {
	adapter, err := s.session.DetectActiveAdapter(ctx)
	if err != nil {
		logger.Warn("adapter detection failed", "error", err)
		return nil
	}
	return adapter
}

// Restore puts back every recorded prior value.
func (s *Service) Restore(ctx context.Context, req *gametunev1.RestoreRequest) (*gametunev1.RestoreResponse, error) {
	defer s.mark(req.Marker)

	report, err := s.session.Restore(ctx)
	resp := &gametunev1.RestoreResponse{Report: report}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

// Backup lists the outstanding records.
func (s *Service) Backup(_ context.Context, _ *gametunev1.BackupRequest) (*gametunev1.BackupResponse, error) {
	return &gametunev1.BackupResponse{Records: s.session.Backup()}, nil
}

// Adapters lists the network adapters and the active one.
func (s *Service) Adapters(ctx context.Context, _ *gametunev1.AdaptersRequest) (*gametunev1.AdaptersResponse, error) {
	adapters, err := s.session.ListAdapters(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &gametunev1.AdaptersResponse{Adapters: adapters}
	for i := range adapters {
		if adapters[i].IsActive {
			active := adapters[i]
			resp.Active = &active
			break
		}
	}
	return resp, nil
}

// Status returns agent health information.
func (s *Service) Status(_ context.Context, _ *gametunev1.StatusRequest) (*gametunev1.StatusResponse, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := s.session.Status()
	resp := &gametunev1.StatusResponse{
		Running:       true,
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		MemoryBytes:   mem.Alloc,
		Session:       st.Session,
		Table:         st.Table,
		Build:         st.Build,
		Records:       st.Records,
		ConfigFile:    s.configFile,
	}
	if s.broadcaster != nil {
		resp.Subscribers = s.broadcaster.SubscriberCount()
	}
	return resp, nil
}

// Shutdown stops the agent.
func (s *Service) Shutdown(_ context.Context, _ *gametunev1.ShutdownRequest) (*gametunev1.ShutdownResponse, error) {
	logger.Info("shutdown requested")
	if s.shutdown != nil {
		go s.shutdown()
	}
	return &gametunev1.ShutdownResponse{Success: true}, nil
}

// Watch streams engine progress lines until the client goes away.
func (s *Service) Watch(_ *gametunev1.WatchRequest, stream grpc.ServerStreamingServer[gametunev1.Event]) error {
	if s.broadcaster == nil {
		return status.Error(codes.Unavailable, "progress events not available")
	}

	sub := s.broadcaster.Subscribe()
	if sub == nil {
		return status.Error(codes.Unavailable, "failed to subscribe")
	}
	defer func() {
		s.broadcaster.Unsubscribe(sub.ID)
		if n := sub.Dropped(); n > 0 {
			logger.Warn("watcher fell behind", "subscriber", sub.ID, "dropped", n)
		}
	}()

	if err := stream.Send(&gametunev1.Event{Time: time.Now(), Marker: gametunev1.WatchReady}); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if err := stream.Send(&gametunev1.Event{Time: event.Time, Message: event.Message, Marker: event.Marker}); err != nil {
				return err
			}
		}
	}
}

// Logs replays recent agent log entries and, with Follow, streams new ones.
func (s *Service) Logs(req *gametunev1.LogsRequest, stream grpc.ServerStreamingServer[gametunev1.LogEntry]) error {
	var live <-chan logging.Entry
	if req.Follow {
		live = logging.Subscribe()
		defer logging.Unsubscribe(live)
	}

	if req.Backlog > 0 {
		for _, e := range logging.Recent(req.Backlog) {
			if err := stream.Send(toLogEntry(e)); err != nil {
				return err
			}
		}
	}
	if !req.Follow {
		return nil
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-live:
			if !ok {
				return nil
			}
			if err := stream.Send(toLogEntry(e)); err != nil {
				return err
			}
		}
	}
}

func toLogEntry(e logging.Entry) *gametunev1.LogEntry {
	return &gametunev1.LogEntry{
		Time:      e.Time,
		Level:     e.Level.String(),
		Component: e.Component,
		Message:   e.Message,
	}
}

// toStatus maps an engine error to a gRPC status.
func toStatus(err error) error {
	code := codes.Unknown
	switch types.Classify(err) {
	case types.KindNotFound:
		code = codes.NotFound
	case types.KindPermissionDenied:
		code = codes.PermissionDenied
	case types.KindInvalidArgument:
		code = codes.InvalidArgument
	case types.KindUnsupported:
		code = codes.Unimplemented
	}
	return status.Error(code, err.Error())
}
