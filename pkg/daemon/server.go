package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"

	gametunev1 "github.com/jamesainslie/gametune/pkg/api/gametune/v1"
)

// Config holds agent configuration.
type Config struct {
	SocketPath string
	DataDir    string
}

// Server is the gametuned gRPC server.
type Server struct {
	cfg      Config
	grpc     *grpc.Server
	listener net.Listener
}

// NewServer creates the agent server listening on a Unix socket. Windows
// supports AF_UNIX sockets since build 17063.
func NewServer(cfg Config, svc gametunev1.AgentServer) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	// Remove stale socket if exists
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0o755); err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "unix", cfg.SocketPath)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:      cfg,
		grpc:     grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary)),
		listener: listener,
	}
	gametunev1.RegisterAgentServer(srv.grpc, svc)
	return srv, nil
}

// Serve starts the gRPC server. Blocks until stopped.
func (s *Server) Serve() error {
	return s.grpc.Serve(s.listener)
}

// stopGrace bounds how long Close waits for open streams.
const stopGrace = 5 * time.Second

// Close stops the server and cleans up. Streams still open after stopGrace
// are cut.
func (s *Server) Close() error {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		s.grpc.Stop()
		<-done
	}
	return os.RemoveAll(s.cfg.SocketPath)
}

func logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Warn("rpc failed", "method", info.FullMethod, "error", err, "duration", time.Since(start))
	} else {
		logger.Debug("rpc", "method", info.FullMethod, "duration", time.Since(start))
	}
	return resp, err
}
