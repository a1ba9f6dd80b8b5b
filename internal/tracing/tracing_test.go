// SPDX-License-Identifier: MPL-2.0

package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestSetupDisabled(t *testing.T) {
	t.Parallel()

	p, err := Setup(Config{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	_, span := StartSpan(t.Context(), p.Tracer(), "noop", trace.SpanKindInternal)
	if span.SpanContext().IsValid() {
		t.Error("disabled provider produced a recording span")
	}
	EndSpan(span, nil)
	if err := p.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestSetupFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "spans.json")
	p, err := Setup(Config{Enabled: true, Output: path, ServiceName: "runnerd", ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	_, span := StartSpan(context.Background(), p.Tracer(), "execute", trace.SpanKindServer, attribute.String("k", "v"))
	EndSpan(span, nil)
	if err := p.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("no spans written to the trace file")
	}
}

func TestSetupBadOutput(t *testing.T) {
	t.Parallel()

	_, err := Setup(Config{Enabled: true, Output: filepath.Join(t.TempDir(), "missing", "spans.json")})
	if err == nil {
		t.Fatal("Setup() succeeded with an unwritable output")
	}
}

func TestEndSpanStatus(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	p, err := WithExporter(Config{ServiceName: "runnerd"}, exporter)
	if err != nil {
		t.Fatalf("WithExporter() error = %v", err)
	}

	ctx, parent := StartSpan(t.Context(), p.Tracer(), "parent", trace.SpanKindServer)
	_, child := StartSpan(ctx, p.Tracer(), "child", trace.SpanKindInternal)
	EndSpan(child, errors.New("boom"))
	EndSpan(parent, nil)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	if got := spans[0]; got.Name != "child" || got.Status.Code != codes.Error || got.Status.Description != "boom" {
		t.Errorf("child span = %s %v", got.Name, got.Status)
	}
	if got := spans[1]; got.Name != "parent" || got.Status.Code != codes.Ok {
		t.Errorf("parent span = %s %v", got.Name, got.Status)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("child span is not parented to the outer span")
	}
}
