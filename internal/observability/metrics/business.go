package metrics

import (
	"time"
)

// RecordRun records a completed pipeline run.
// Status should be "success", "partial" (some feeds or items failed), or "failed".
func RecordRun(status string, duration time.Duration) {
	PipelineRunsTotal.WithLabelValues(status).Inc()
	PipelineRunDuration.Observe(duration.Seconds())
}

// RecordFeedFetch records the outcome of one feed fetch operation.
func RecordFeedFetch(sourceName string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	FeedsFetchedTotal.WithLabelValues(sourceName, status).Inc()
	FeedFetchDuration.WithLabelValues(sourceName).Observe(duration.Seconds())
}

// RecordFeedFetchError records an error during feed fetching.
// ErrorType groups failures for alerting (e.g. "timeout", "parse", "http").
func RecordFeedFetchError(sourceName, errorType string) {
	FeedFetchErrors.WithLabelValues(sourceName, errorType).Inc()
}

// RecordItemOutcome records how a single feed item settled.
// Outcome should be "success", "failed", "skipped", or "cached".
func RecordItemOutcome(outcome string) {
	FeedItemsTotal.WithLabelValues(outcome).Inc()
}

// RecordDigestGeneration records one digest generation attempt against a provider.
func RecordDigestGeneration(provider string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	DigestGenerationsTotal.WithLabelValues(provider, status).Inc()
	DigestGenerationDuration.Observe(duration.Seconds())
}

// RecordLayerFailure records a digest layer that failed to generate.
// The pipeline degrades instead of failing, so these track silent quality loss.
func RecordLayerFailure(layer string) {
	DigestLayerFailures.WithLabelValues(layer).Inc()
}

// RecordCacheRequest records a cache lookup and its result.
func RecordCacheRequest(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(namespace, result).Inc()
}

// RecordCacheWrite records a cache write and whether it succeeded.
func RecordCacheWrite(namespace string, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	CacheWritesTotal.WithLabelValues(namespace, status).Inc()
}

// RecordContentFetchSuccess records an article fetch that produced
// content, with how long it took and how much text came back.
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records an article fetch that errored out.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a content fetch that was not attempted.
// This occurs when the feed body is already long enough to summarize.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// UpdatePublishedEntriesTotal updates the published-store entry count.
// Called after each publish with the post-merge entry count.
func UpdatePublishedEntriesTotal(count int) {
	PublishedEntriesTotal.Set(float64(count))
}

// RecordDBQuery observes one query's latency under its operation label
// (e.g. "load", "replace").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnStats updates the connection pool gauges.
// Callers sample sql.DB.Stats() periodically and pass the counts here.
func UpdateDBConnStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
