// SPDX-License-Identifier: MPL-2.0

package runnerv1

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "runnerd.runner.v1.RunnerService"

type (
	// RunnerServiceServer is the server API of the runner service.
	RunnerServiceServer interface {
		CreateSession(context.Context, *CreateSessionRequest) (*CreateSessionResponse, error)
		GetSession(context.Context, *GetSessionRequest) (*GetSessionResponse, error)
		ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
		UpdateSession(context.Context, *UpdateSessionRequest) (*UpdateSessionResponse, error)
		DeleteSession(context.Context, *DeleteSessionRequest) (*DeleteSessionResponse, error)
		MonitorEnvStore(*MonitorEnvStoreRequest, MonitorEnvStoreServer) error
		Execute(ExecuteServer) error
		ResolveProgram(context.Context, *ResolveProgramRequest) (*ResolveProgramResponse, error)
	}

	// ExecuteServer is the server side of the bidirectional Execute stream.
	ExecuteServer interface {
		Send(*ExecuteResponse) error
		Recv() (*ExecuteRequest, error)
		grpc.ServerStream
	}

	// MonitorEnvStoreServer is the server side of the MonitorEnvStore stream.
	MonitorEnvStoreServer interface {
		Send(*MonitorEnvStoreResponse) error
		grpc.ServerStream
	}

	executeServer struct {
		grpc.ServerStream
	}

	monitorEnvStoreServer struct {
		grpc.ServerStream
	}
)

// RunnerServiceDesc describes the runner service for grpc.Server.RegisterService.
var RunnerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RunnerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: unaryHandler("CreateSession", RunnerServiceServer.CreateSession)},
		{MethodName: "GetSession", Handler: unaryHandler("GetSession", RunnerServiceServer.GetSession)},
		{MethodName: "ListSessions", Handler: unaryHandler("ListSessions", RunnerServiceServer.ListSessions)},
		{MethodName: "UpdateSession", Handler: unaryHandler("UpdateSession", RunnerServiceServer.UpdateSession)},
		{MethodName: "DeleteSession", Handler: unaryHandler("DeleteSession", RunnerServiceServer.DeleteSession)},
		{MethodName: "ResolveProgram", Handler: unaryHandler("ResolveProgram", RunnerServiceServer.ResolveProgram)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "MonitorEnvStore",
			Handler:       monitorEnvStoreHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "Execute",
			Handler:       executeHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "runnerd/runner/v1",
}

// RegisterRunnerServiceServer registers srv on s.
func RegisterRunnerServiceServer(s grpc.ServiceRegistrar, srv RunnerServiceServer) {
	s.RegisterService(&RunnerServiceDesc, srv)
}

// FullMethod returns the "/service/method" path of a runner RPC.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req, Resp any](method string, call func(RunnerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RunnerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RunnerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func executeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(RunnerServiceServer).Execute(&executeServer{stream})
}

func monitorEnvStoreHandler(srv any, stream grpc.ServerStream) error {
	in := new(MonitorEnvStoreRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RunnerServiceServer).MonitorEnvStore(in, &monitorEnvStoreServer{stream})
}

func (s *executeServer) Send(m *ExecuteResponse) error {
	return s.ServerStream.SendMsg(m)
}

func (s *executeServer) Recv() (*ExecuteRequest, error) {
	m := new(ExecuteRequest)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *monitorEnvStoreServer) Send(m *MonitorEnvStoreResponse) error {
	return s.ServerStream.SendMsg(m)
}
