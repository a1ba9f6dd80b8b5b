// SPDX-License-Identifier: MPL-2.0

package runnerv1

import (
	"context"

	"google.golang.org/grpc"
)

type (
	// RunnerServiceClient is the client API of the runner service.
	RunnerServiceClient interface {
		CreateSession(ctx context.Context, in *CreateSessionRequest, opts ...grpc.CallOption) (*CreateSessionResponse, error)
		GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*GetSessionResponse, error)
		ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error)
		UpdateSession(ctx context.Context, in *UpdateSessionRequest, opts ...grpc.CallOption) (*UpdateSessionResponse, error)
		DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*DeleteSessionResponse, error)
		MonitorEnvStore(ctx context.Context, in *MonitorEnvStoreRequest, opts ...grpc.CallOption) (MonitorEnvStoreClient, error)
		Execute(ctx context.Context, opts ...grpc.CallOption) (ExecuteClient, error)
		ResolveProgram(ctx context.Context, in *ResolveProgramRequest, opts ...grpc.CallOption) (*ResolveProgramResponse, error)
	}

	// ExecuteClient is the client side of the bidirectional Execute stream.
	ExecuteClient interface {
		Send(*ExecuteRequest) error
		Recv() (*ExecuteResponse, error)
		grpc.ClientStream
	}

	// MonitorEnvStoreClient is the client side of the MonitorEnvStore stream.
	MonitorEnvStoreClient interface {
		Recv() (*MonitorEnvStoreResponse, error)
		grpc.ClientStream
	}

	runnerServiceClient struct {
		cc grpc.ClientConnInterface
	}

	executeClient struct {
		grpc.ClientStream
	}

	monitorEnvStoreClient struct {
		grpc.ClientStream
	}
)

// NewRunnerServiceClient returns a client that speaks the JSON codec over cc.
func NewRunnerServiceClient(cc grpc.ClientConnInterface) RunnerServiceClient {
	return &runnerServiceClient{cc: cc}
}

func (c *runnerServiceClient) CreateSession(ctx context.Context, in *CreateSessionRequest, opts ...grpc.CallOption) (*CreateSessionResponse, error) {
	return invoke[CreateSessionResponse](ctx, c.cc, "CreateSession", in, opts)
}

func (c *runnerServiceClient) GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*GetSessionResponse, error) {
	return invoke[GetSessionResponse](ctx, c.cc, "GetSession", in, opts)
}

func (c *runnerServiceClient) ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c.cc, "ListSessions", in, opts)
}

func (c *runnerServiceClient) UpdateSession(ctx context.Context, in *UpdateSessionRequest, opts ...grpc.CallOption) (*UpdateSessionResponse, error) {
	return invoke[UpdateSessionResponse](ctx, c.cc, "UpdateSession", in, opts)
}

func (c *runnerServiceClient) DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*DeleteSessionResponse, error) {
	return invoke[DeleteSessionResponse](ctx, c.cc, "DeleteSession", in, opts)
}

func (c *runnerServiceClient) ResolveProgram(ctx context.Context, in *ResolveProgramRequest, opts ...grpc.CallOption) (*ResolveProgramResponse, error) {
	return invoke[ResolveProgramResponse](ctx, c.cc, "ResolveProgram", in, opts)
}

func (c *runnerServiceClient) MonitorEnvStore(ctx context.Context, in *MonitorEnvStoreRequest, opts ...grpc.CallOption) (MonitorEnvStoreClient, error) {
	stream, err := c.cc.NewStream(ctx, &RunnerServiceDesc.Streams[0], FullMethod("MonitorEnvStore"), callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &monitorEnvStoreClient{stream}, nil
}

func (c *runnerServiceClient) Execute(ctx context.Context, opts ...grpc.CallOption) (ExecuteClient, error) {
	stream, err := c.cc.NewStream(ctx, &RunnerServiceDesc.Streams[1], FullMethod("Execute"), callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &executeClient{stream}, nil
}

func (c *executeClient) Send(m *ExecuteRequest) error {
	return c.ClientStream.SendMsg(m)
}

func (c *executeClient) Recv() (*ExecuteResponse, error) {
	m := new(ExecuteResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *monitorEnvStoreClient) Recv() (*MonitorEnvStoreResponse, error) {
	m := new(MonitorEnvStoreResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// callOptions pins the JSON content-subtype ahead of caller options.
func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
