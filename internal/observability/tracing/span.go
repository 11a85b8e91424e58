package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is shared by every span in the process and carries the
// instrumentation scope name.
var tracer = otel.Tracer("digest-feed")

// GetTracer exposes the shared tracer for call sites that need span
// options StartSpan does not cover.
func GetTracer() trace.Tracer {
	return tracer
}

// StartSpan starts a new span for a pipeline stage and hands back the
// derived context. Stage names follow the convention "pipeline.run",
// "feed.fetch", "item.process". The caller owns span.End.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// RecordError records err on the span and marks its status as error.
// A nil err is a no-op, so call sites can record unconditionally.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
