// SPDX-License-Identifier: MPL-2.0

package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// OutputStdout writes spans to the process stdout.
	OutputStdout = "stdout"
	// OutputStderr writes spans to the process stderr.
	OutputStderr = "stderr"

	instrumentationName = "github.com/runnerd/runnerd"
)

type (
	// Config selects whether and where spans are exported.
	Config struct {
		Enabled bool
		// Output is "stdout", "stderr" or a file path. Empty means stderr.
		Output         string
		ServiceName    string
		ServiceVersion string
	}

	// Provider owns the tracer provider and any file it writes to.
	Provider struct {
		provider trace.TracerProvider
		shutdown func(context.Context) error
		closer   io.Closer
	}
)

// Setup builds a provider from cfg. A disabled config returns a no-op provider.
func Setup(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{provider: noop.NewTracerProvider()}, nil
	}

	w, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		closeQuietly(closer)
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	p, err := WithExporter(cfg, exporter)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	p.closer = closer
	return p, nil
}

// WithExporter builds an enabled provider around an arbitrary span exporter.
func WithExporter(cfg Config, exporter sdktrace.SpanExporter) (*Provider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	return &Provider{provider: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns the runner's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.provider.Tracer(instrumentationName)
}

// Install registers the provider as the global OpenTelemetry provider.
func (p *Provider) Install() {
	otel.SetTracerProvider(p.provider)
}

// Shutdown flushes pending spans and closes the output file, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.shutdown != nil {
		errs = append(errs, p.shutdown(ctx))
	}
	if p.closer != nil {
		errs = append(errs, p.closer.Close())
	}
	return errors.Join(errs...)
}

// StartSpan starts a span of the given kind carrying attrs.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, as the span status and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", OutputStderr:
		return os.Stderr, nil, nil
	case OutputStdout:
		return os.Stdout, nil, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace output %q: %w", output, err)
	}
	return f, f, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
