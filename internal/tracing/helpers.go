package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartStoreSpan opens a client span around a store read or write. The
// returned func ends the span and records err on it when non-nil.
//
//	ctx, end := tracing.StartStoreSpan(ctx, "sessions", "list")
//	defer end(err)
func StartStoreSpan(ctx context.Context, store, operation string) (context.Context, func(error)) {
	tracer := otel.Tracer("pacelog/store")

	ctx, span := tracer.Start(ctx, operation+" "+store,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.name", store),
			attribute.String("store.operation", operation),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan opens a span for a unit of work such as a feed assembly pass or a
// statistics computation.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("pacelog")

	ctx, span := tracer.Start(ctx, name)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// SetAttributes adds attrs to the span active in ctx, if any.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
