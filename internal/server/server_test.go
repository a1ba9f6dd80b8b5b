// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/runnerd/runnerd/internal/core/serverbase"
	"github.com/runnerd/runnerd/internal/tracing"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

// fakeService answers the session listing RPCs; the other methods are never
// called by these tests.
type fakeService struct {
	runnerv1.RunnerServiceServer
}

func (fakeService) ListSessions(context.Context, *runnerv1.ListSessionsRequest) (*runnerv1.ListSessionsResponse, error) {
	return &runnerv1.ListSessionsResponse{}, nil
}

func (fakeService) GetSession(_ context.Context, req *runnerv1.GetSessionRequest) (*runnerv1.GetSessionResponse, error) {
	return nil, status.Errorf(grpccodes.NotFound, "session %q not found", req.ID)
}

func (fakeService) DeleteSession(context.Context, *runnerv1.DeleteSessionRequest) (*runnerv1.DeleteSessionResponse, error) {
	panic("boom")
}

func startServer(t *testing.T, opts ...Option) (*Server, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := New(Config{ShutdownTimeout: time.Second}, fakeService{}, append([]Option{WithListener(lis)}, opts...)...)
	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return s, conn
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	s, conn := startServer(t)
	if s.State() != serverbase.StateServing {
		t.Fatalf("State() = %s, want serving", s.State())
	}
	if s.Addr() != "bufconn" {
		t.Errorf("Addr() = %q, want bufconn", s.Addr())
	}

	health := healthpb.NewHealthClient(conn)
	for _, service := range []string{"", runnerv1.ServiceName} {
		resp, err := health.Check(t.Context(), &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%q) error = %v", service, err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("Check(%q) = %v, want SERVING", service, resp.GetStatus())
		}
	}

	client := runnerv1.NewRunnerServiceClient(conn)
	if _, err := client.ListSessions(t.Context(), &runnerv1.ListSessionsRequest{}); err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}

	if err := s.Stop(t.Context()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.State() != serverbase.StateStopped {
		t.Errorf("State() after Stop = %s, want stopped", s.State())
	}
	if err := s.Stop(t.Context()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestServerStopBeforeStart(t *testing.T) {
	t.Parallel()

	s := New(Config{}, fakeService{})
	if err := s.Stop(t.Context()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.State() != serverbase.StateStopped {
		t.Errorf("State() = %s, want stopped", s.State())
	}
	if s.Addr() != DefaultAddress {
		t.Errorf("Addr() = %q, want %q", s.Addr(), DefaultAddress)
	}
}

func TestServerStartTwice(t *testing.T) {
	t.Parallel()

	s, _ := startServer(t)
	err := s.Start(t.Context())
	var te *serverbase.TransitionError
	if !errors.As(err, &te) {
		t.Errorf("second Start() error = %v, want *serverbase.TransitionError", err)
	}
}

func TestServerListenFailure(t *testing.T) {
	t.Parallel()

	s := New(Config{Address: "127.0.0.1:-1"}, fakeService{})
	if err := s.Start(t.Context()); err == nil {
		t.Fatal("Start() succeeded on an invalid address")
	}
	if s.State() != serverbase.StateFailed {
		t.Errorf("State() = %s, want failed", s.State())
	}
	if err := s.Stop(t.Context()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if s.State() != serverbase.StateFailed {
		t.Errorf("State() after Stop = %s, want failed", s.State())
	}
}

func TestServerTracesRPCs(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider, err := tracing.WithExporter(tracing.Config{ServiceName: "runnerd"}, exporter)
	if err != nil {
		t.Fatalf("WithExporter() error = %v", err)
	}
	_, conn := startServer(t, WithTracer(provider.Tracer()))
	client := runnerv1.NewRunnerServiceClient(conn)

	if _, err := client.ListSessions(t.Context(), &runnerv1.ListSessionsRequest{}); err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	_, err = client.GetSession(t.Context(), &runnerv1.GetSessionRequest{ID: "missing"})
	if got := status.Code(err); got != grpccodes.NotFound {
		t.Fatalf("GetSession() code = %v, want NotFound", got)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	tests := []struct {
		name string
		code codes.Code
	}{
		{runnerv1.FullMethod("ListSessions"), codes.Ok},
		{runnerv1.FullMethod("GetSession"), codes.Error},
	}
	for i, tt := range tests {
		if spans[i].Name != tt.name || spans[i].Status.Code != tt.code {
			t.Errorf("span %d = %s %v, want %s %v", i, spans[i].Name, spans[i].Status.Code, tt.name, tt.code)
		}
	}
}

func TestServerRecoversPanics(t *testing.T) {
	t.Parallel()

	s, conn := startServer(t)
	client := runnerv1.NewRunnerServiceClient(conn)

	_, err := client.DeleteSession(t.Context(), &runnerv1.DeleteSessionRequest{ID: "x"})
	if got := status.Code(err); got != grpccodes.Internal {
		t.Errorf("DeleteSession() code = %v, want Internal", got)
	}
	if s.State() != serverbase.StateServing {
		t.Errorf("State() = %s, want serving after a handler panic", s.State())
	}
}
