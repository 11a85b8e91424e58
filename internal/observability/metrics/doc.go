// Package metrics declares the Prometheus instruments for the digest
// pipeline and the recording helpers the rest of the code calls.
//
// Instrument families:
//   - pipeline: runs, feed fetches, item outcomes
//   - digest: provider calls and layer degradation
//   - cache: lookups and writes per namespace
//   - content fetch and database latency
//
// Everything registers itself against the default registry through
// promauto, so importing the package is enough; the worker's /metrics
// endpoint serves the result.
//
// Recording goes through the helpers rather than the raw vectors:
//
//	start := time.Now()
//	err := fetch(source)
//	metrics.RecordFeedFetch(source, time.Since(start), err)
package metrics
