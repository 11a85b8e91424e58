// Package observability groups the pipeline's logging, metrics, tracing,
// and SLO instrumentation.
//
// Subpackages:
//   - logging: slog logger construction and per-run tagging
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry span helpers for pipeline stages
//   - slo: service level objective gauges
//
// The worker registers metrics and serves them on /metrics; spans are
// no-ops until a deployment wires an exporter. A typical stage records
// both:
//
//	ctx, span := tracing.StartSpan(ctx, "feed.fetch")
//	defer span.End()
//	metrics.RecordFeedFetch(src.Name, time.Since(start), err)
package observability
