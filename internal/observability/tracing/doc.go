// Package tracing wraps OpenTelemetry span creation for the pipeline.
//
// Spans follow the pipeline's stage structure: a run span wraps the whole
// execution, with child spans for each feed fetch and each item processed.
// Exporter wiring is the deployment's concern; without a configured
// provider the spans are no-ops.
//
// Typical call site:
//
//	ctx, span := tracing.StartSpan(ctx, "item.process",
//	    attribute.String("source", entry.SourceName))
//	defer span.End()
package tracing
