package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder
}

func TestStartStoreSpan(t *testing.T) {
	recorder := newRecorder(t)

	_, end := StartStoreSpan(context.Background(), "sessions", "query")
	end(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "query sessions" {
		t.Errorf("expected span name %q, got %q", "query sessions", span.Name())
	}
	if span.SpanKind() != trace.SpanKindClient {
		t.Errorf("expected client span kind, got %v", span.SpanKind())
	}
}

func TestStartStoreSpan_RecordsError(t *testing.T) {
	recorder := newRecorder(t)

	_, end := StartStoreSpan(context.Background(), "sessions", "insert")
	end(errors.New("connection refused"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected error event recorded on span")
	}
}

func TestStartSpan(t *testing.T) {
	recorder := newRecorder(t)

	ctx, end := StartSpan(context.Background(), "assemble_feed")
	SetAttributes(ctx, attribute.String("feed.mode", "following"))
	end(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "assemble_feed" {
		t.Errorf("expected span name assemble_feed, got %q", spans[0].Name())
	}

	found := false
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "feed.mode" && attr.Value.AsString() == "following" {
			found = true
		}
	}
	if !found {
		t.Error("expected feed.mode attribute on span")
	}
}
