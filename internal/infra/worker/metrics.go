package worker

import (
	"digest-feed/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics bundles the worker's own collectors with the embedded
// ConfigMetrics that track configuration fallbacks. Everything lives
// under the worker_digest_run* name family:
//
//   - worker_digest_runs_total: scheduled runs by status (success/failure)
//   - worker_digest_run_duration_seconds: duration histogram of runs
//   - worker_digest_run_feeds_processed_total: feeds processed across runs
//   - worker_digest_run_items_processed_total: items processed across runs
//   - worker_digest_run_last_success_timestamp: unix time of last clean run
type WorkerMetrics struct {
	*config.ConfigMetrics

	// DigestRunsTotal counts scheduled digest runs, labeled by
	// "success" or "failure" status.
	DigestRunsTotal *prometheus.CounterVec

	// DigestRunDurationSeconds measures end-to-end digest run duration.
	// Buckets cover 1s through 30m, the plausible range for a full run.
	DigestRunDurationSeconds prometheus.Histogram

	// DigestRunFeedsProcessedTotal counts feeds processed across all runs.
	DigestRunFeedsProcessedTotal prometheus.Counter

	// DigestRunItemsProcessedTotal counts feed items processed across all runs.
	DigestRunItemsProcessedTotal prometheus.Counter

	// DigestRunLastSuccessTimestamp records when a run last completed,
	// partial feed failures included. Alerting on staleness of this gauge
	// catches silently broken schedules.
	DigestRunLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a WorkerMetrics instance with all collectors
// initialized and registered on the default registry via promauto.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		DigestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_digest_runs_total",
			Help: "Total number of scheduled digest runs by status (success/failure)",
		}, []string{"status"}),

		DigestRunDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_digest_run_duration_seconds",
			Help:    "Duration of digest run execution in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		DigestRunFeedsProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_digest_run_feeds_processed_total",
			Help: "Total number of feeds processed across all digest runs",
		}),

		DigestRunItemsProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_digest_run_items_processed_total",
			Help: "Total number of feed items processed across all digest runs",
		}),

		DigestRunLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_digest_run_last_success_timestamp",
			Help: "Unix timestamp of the last digest run that ran to completion",
		}),
	}
}

// RecordRun increments the run counter for the given status
// ("success" or "failure").
func (m *WorkerMetrics) RecordRun(status string) {
	m.DigestRunsTotal.WithLabelValues(status).Inc()
}

// RecordRunDuration observes the duration of a digest run in seconds.
func (m *WorkerMetrics) RecordRunDuration(seconds float64) {
	m.DigestRunDurationSeconds.Observe(seconds)
}

// RecordFeedsProcessed adds the number of feeds handled in one run.
func (m *WorkerMetrics) RecordFeedsProcessed(count int) {
	m.DigestRunFeedsProcessedTotal.Add(float64(count))
}

// RecordItemsProcessed adds the number of items handled in one run.
func (m *WorkerMetrics) RecordItemsProcessed(count int) {
	m.DigestRunItemsProcessedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last completed run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.DigestRunLastSuccessTimestamp.SetToCurrentTime()
}
