// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/runnerd/runnerd/internal/core/serverbase"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

const (
	// DefaultAddress is the listen address used when none is configured.
	DefaultAddress = "127.0.0.1:7863"

	defaultMaxRecvMsgSize  = 4 << 20
	defaultShutdownTimeout = 10 * time.Second
)

type (
	// Config holds the listener settings of the server.
	Config struct {
		// Address is the TCP address to listen on (default: 127.0.0.1:7863).
		Address string
		// MaxRecvMsgSize bounds inbound messages in bytes (default: 4 MiB).
		MaxRecvMsgSize int
		// ShutdownTimeout bounds the graceful drain before in-flight
		// streams are cut (default: 10s).
		ShutdownTimeout time.Duration
	}

	// Option configures a Server.
	Option func(*Server)

	// Server serves the runner service over gRPC.
	// A Server is single-use: once stopped or failed, create a new instance.
	Server struct {
		*serverbase.Base

		cfg      Config
		grpc     *grpc.Server
		health   *health.Server
		listener net.Listener
		logger   *log.Logger
		tracer   trace.Tracer
	}
)

// DefaultConfig returns the default listener settings.
func DefaultConfig() Config {
	return Config{
		Address:         DefaultAddress,
		MaxRecvMsgSize:  defaultMaxRecvMsgSize,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// WithListener serves on l instead of listening on Config.Address.
func WithListener(l net.Listener) Option {
	return func(s *Server) { s.listener = l }
}

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer records a server span per RPC.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// New creates a server for svc. The server is not started; call Start.
func New(cfg Config, svc runnerv1.RunnerServiceServer, opts ...Option) *Server {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.MaxRecvMsgSize <= 0 {
		cfg.MaxRecvMsgSize = defaultMaxRecvMsgSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		cfg:    cfg,
		health: health.NewServer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("")
	}
	s.Base = serverbase.NewBase(serverbase.WithTransitionHook(s.onTransition))

	s.grpc = grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.ChainUnaryInterceptor(unaryRecover(s.logger), unaryObserve(s.logger, s.tracer)),
		grpc.ChainStreamInterceptor(streamRecover(s.logger), streamObserve(s.logger, s.tracer)),
	)
	runnerv1.RegisterRunnerServiceServer(s.grpc, svc)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setHealth(healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// Start binds the listener and begins serving in the background. After Start
// returns nil, use Err to observe serving failures.
func (s *Server) Start(ctx context.Context) error {
	if err := s.BeginStart(ctx); err != nil {
		return err
	}

	if s.listener == nil {
		var lc net.ListenConfig
		l, err := lc.Listen(ctx, "tcp", s.cfg.Address)
		if err != nil {
			err = fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
			s.Fail(err)
			return err
		}
		s.listener = l
	}

	s.Go(func(context.Context) {
		err := s.grpc.Serve(s.listener)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.Fail(fmt.Errorf("serve: %w", err))
		}
	})
	s.MarkServing()
	s.logger.Info("runner server listening", "address", s.Addr())
	return nil
}

// Stop drains in-flight RPCs for at most ShutdownTimeout (or until ctx is
// done) and then cuts the remaining streams. It is safe to call more than
// once and on a server that never started.
func (s *Server) Stop(ctx context.Context) error {
	switch {
	case s.BeginDrain():
		s.health.Shutdown()
		s.drain(ctx)
	case s.State() == serverbase.StateFailed:
		s.grpc.Stop()
	}
	s.MarkStopped()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Address
	}
	return s.listener.Addr().String()
}

func (s *Server) drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(s.cfg.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
		s.logger.Warn("graceful shutdown timed out, closing open streams", "timeout", s.cfg.ShutdownTimeout)
	case <-ctx.Done():
		s.logger.Warn("shutdown cancelled, closing open streams", "error", ctx.Err())
	}
	s.grpc.Stop()
	<-done
}

func (s *Server) onTransition(from, to serverbase.State) {
	s.logger.Debug("server state changed", "from", from, "to", to)
	switch to {
	case serverbase.StateServing:
		s.setHealth(healthpb.HealthCheckResponse_SERVING)
	case serverbase.StateDraining, serverbase.StateFailed:
		s.setHealth(healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

func (s *Server) setHealth(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(runnerv1.ServiceName, st)
}
