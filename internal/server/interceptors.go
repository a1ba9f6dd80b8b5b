// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/runnerd/runnerd/internal/tracing"
)

// observedStream replaces the stream context with the traced one.
type observedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *observedStream) Context() context.Context {
	return s.ctx
}

func unaryObserve(logger *log.Logger, tracer trace.Tracer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx, span := startRPCSpan(ctx, tracer, info.FullMethod)
		resp, err := handler(ctx, req)
		finishRPC(logger, span, info.FullMethod, start, err)
		return resp, err
	}
}

func streamObserve(logger *log.Logger, tracer trace.Tracer) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx, span := startRPCSpan(ss.Context(), tracer, info.FullMethod)
		err := handler(srv, &observedStream{ServerStream: ss, ctx: ctx})
		finishRPC(logger, span, info.FullMethod, start, err)
		return err
	}
}

func unaryRecover(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicStatus(logger, info.FullMethod, r)
			}
		}()
		return handler(ctx, req)
	}
}

func streamRecover(logger *log.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicStatus(logger, info.FullMethod, r)
			}
		}()
		return handler(srv, ss)
	}
}

func panicStatus(logger *log.Logger, method string, r any) error {
	logger.Error("rpc handler panicked", "method", method, "panic", r, "stack", string(debug.Stack()))
	return status.Errorf(codes.Internal, "%s: internal error", method)
}

func startRPCSpan(ctx context.Context, tracer trace.Tracer, method string) (context.Context, trace.Span) {
	return tracing.StartSpan(ctx, tracer, method, trace.SpanKindServer,
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.method", method),
	)
}

func finishRPC(logger *log.Logger, span trace.Span, method string, start time.Time, err error) {
	code := status.Code(err)
	span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
	tracing.EndSpan(span, err)

	kv := []any{"method", method, "code", code, "duration", time.Since(start)}
	switch code {
	case codes.OK:
		logger.Debug("rpc finished", kv...)
	case codes.Canceled, codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.DeadlineExceeded:
		logger.Info("rpc finished", append(kv, "error", err)...)
	default:
		logger.Error("rpc failed", append(kv, "error", err)...)
	}
}
