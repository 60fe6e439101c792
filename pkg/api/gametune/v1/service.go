package gametunev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "gametune.v1.Agent"

// Full method names.
const (
	Agent_Run_FullMethodName      = "/" + ServiceName + "/Run"
	Agent_Restore_FullMethodName  = "/" + ServiceName + "/Restore"
	Agent_Backup_FullMethodName   = "/" + ServiceName + "/Backup"
	Agent_Adapters_FullMethodName = "/" + ServiceName + "/Adapters"
	Agent_Status_FullMethodName   = "/" + ServiceName + "/Status"
	Agent_Shutdown_FullMethodName = "/" + ServiceName + "/Shutdown"
	Agent_Watch_FullMethodName    = "/" + ServiceName + "/Watch"
	Agent_Logs_FullMethodName     = "/" + ServiceName + "/Logs"
)

// AgentServer is the server API for the Agent service.
// Implementations must embed UnimplementedAgentServer.
type AgentServer interface {
	Run(context.Context, *RunRequest) (*RunResponse, error)
	Restore(context.Context, *RestoreRequest) (*RestoreResponse, error)
	Backup(context.Context, *BackupRequest) (*BackupResponse, error)
	Adapters(context.Context, *AdaptersRequest) (*AdaptersResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Shutdown(context.Context, *ShutdownRequest) (*ShutdownResponse, error)
	Watch(*WatchRequest, grpc.ServerStreamingServer[Event]) error
	Logs(*LogsRequest, grpc.ServerStreamingServer[LogEntry]) error
	mustEmbedUnimplementedAgentServer()
}

// UnimplementedAgentServer answers every call with codes.Unimplemented.
type UnimplementedAgentServer struct{}

func (UnimplementedAgentServer) Run(context.Context, *RunRequest) (*RunResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Run not implemented")
}
func (UnimplementedAgentServer) Restore(context.Context, *RestoreRequest) (*RestoreResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Restore not implemented")
}
func (UnimplementedAgentServer) Backup(context.Context, *BackupRequest) (*BackupResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Backup not implemented")
}
func (UnimplementedAgentServer) Adapters(context.Context, *AdaptersRequest) (*AdaptersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Adapters not implemented")
}
func (UnimplementedAgentServer) Status(context.Context, *StatusRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Status not implemented")
}
func (UnimplementedAgentServer) Shutdown(context.Context, *ShutdownRequest) (*ShutdownResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Shutdown not implemented")
}
func (UnimplementedAgentServer) Watch(*WatchRequest, grpc.ServerStreamingServer[Event]) error {
	return status.Error(codes.Unimplemented, "method Watch not implemented")
}
func (UnimplementedAgentServer) Logs(*LogsRequest, grpc.ServerStreamingServer[LogEntry]) error {
	return status.Error(codes.Unimplemented, "method Logs not implemented")
}
func (UnimplementedAgentServer) mustEmbedUnimplementedAgentServer() {}

// RegisterAgentServer registers srv on s.
func RegisterAgentServer(s grpc.ServiceRegistrar, srv AgentServer) {
	s.RegisterService(&Agent_ServiceDesc, srv)
}

func unary[Req, Resp any](name, full string, call func(AgentServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AgentServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AgentServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func serverStream[Req, Resp any](name string, call func(AgentServer, *Req, grpc.ServerStreamingServer[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName: name,
		Handler: func(srv interface{}, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return call(srv.(AgentServer), in, &grpc.GenericServerStream[Req, Resp]{ServerStream: stream})
		},
		ServerStreams: true,
	}
}

// Agent_ServiceDesc is the grpc.ServiceDesc for the Agent service.
var Agent_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Run", Agent_Run_FullMethodName, AgentServer.Run),
		unary("Restore", Agent_Restore_FullMethodName, AgentServer.Restore),
		unary("Backup", Agent_Backup_FullMethodName, AgentServer.Backup),
		unary("Adapters", Agent_Adapters_FullMethodName, AgentServer.Adapters),
		unary("Status", Agent_Status_FullMethodName, AgentServer.Status),
		unary("Shutdown", Agent_Shutdown_FullMethodName, AgentServer.Shutdown),
	},
	Streams: []grpc.StreamDesc{
		serverStream("Watch", AgentServer.Watch),
		serverStream("Logs", AgentServer.Logs),
	},
	Metadata: "gametune/v1/agent",
}

// AgentClient is the client API for the Agent service.
type AgentClient interface {
	Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error)
	Restore(ctx context.Context, in *RestoreRequest, opts ...grpc.CallOption) (*RestoreResponse, error)
	Backup(ctx context.Context, in *BackupRequest, opts ...grpc.CallOption) (*BackupResponse, error)
	Adapters(ctx context.Context, in *AdaptersRequest, opts ...grpc.CallOption) (*AdaptersResponse, error)
	Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*ShutdownResponse, error)
	Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error)
	Logs(ctx context.Context, in *LogsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[LogEntry], error)
}

type agentClient struct {
	cc grpc.ClientConnInterface
}

// NewAgentClient creates a client over cc. Every call uses the JSON codec.
func NewAgentClient(cc grpc.ClientConnInterface) AgentClient {
	return &agentClient{cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func openStream[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Resp], error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Resp]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *agentClient) Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error) {
	return invoke[RunRequest, RunResponse](ctx, c.cc, Agent_Run_FullMethodName, in, opts)
}

func (c *agentClient) Restore(ctx context.Context, in *RestoreRequest, opts ...grpc.CallOption) (*RestoreResponse, error) {
	return invoke[RestoreRequest, RestoreResponse](ctx, c.cc, Agent_Restore_FullMethodName, in, opts)
}

func (c *agentClient) Backup(ctx context.Context, in *BackupRequest, opts ...grpc.CallOption) (*BackupResponse, error) {
	return invoke[BackupRequest, BackupResponse](ctx, c.cc, Agent_Backup_FullMethodName, in, opts)
}

func (c *agentClient) Adapters(ctx context.Context, in *AdaptersRequest, opts ...grpc.CallOption) (*AdaptersResponse, error) {
	return invoke[AdaptersRequest, AdaptersResponse](ctx, c.cc, Agent_Adapters_FullMethodName, in, opts)
}

func (c *agentClient) Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusRequest, StatusResponse](ctx, c.cc, Agent_Status_FullMethodName, in, opts)
}

func (c *agentClient) Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*ShutdownResponse, error) {
	return invoke[ShutdownRequest, ShutdownResponse](ctx, c.cc, Agent_Shutdown_FullMethodName, in, opts)
}

func (c *agentClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	return openStream[WatchRequest, Event](ctx, c.cc, &Agent_ServiceDesc.Streams[0], Agent_Watch_FullMethodName, in, opts)
}

func (c *agentClient) Logs(ctx context.Context, in *LogsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[LogEntry], error) {
	return openStream[LogsRequest, LogEntry](ctx, c.cc, &Agent_ServiceDesc.Streams[1], Agent_Logs_FullMethodName, in, opts)
}
