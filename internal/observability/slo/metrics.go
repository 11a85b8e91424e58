// Package slo tracks service level objectives for the pipeline.
//
// A batch pipeline's reliability is measured per run rather than per request:
// how often runs complete, how long they take, and how many items fail inside
// an otherwise successful run. The gauges here are updated by the worker after
// each run so dashboards can compare current values against the targets.
package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives for the pipeline.
const (
	// RunSuccessSLO defines the target ratio of runs finishing without feed failures (99% of runs)
	RunSuccessSLO = 0.99

	// RunDurationP95SLO defines the target for 95th percentile run duration in seconds (10 minutes)
	RunDurationP95SLO = 600.0

	// ItemFailureRateSLO defines the maximum acceptable item failure rate within a run (2%)
	ItemFailureRateSLO = 0.02
)

// Gauges the worker refreshes after each run so dashboards can compare
// recent measurements against the targets above.
var (
	// SLORunSuccess tracks the recent run success ratio (0-1)
	// calculated as: successful_runs / total_runs over the evaluation window
	SLORunSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_run_success_ratio",
			Help: "Recent run success ratio (0-1), target: 0.99",
		},
	)

	// SLORunDurationP95 tracks the current p95 run duration in seconds
	// calculated from pipeline_run_duration_seconds histogram
	SLORunDurationP95 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_run_duration_p95_seconds",
			Help: "Current p95 pipeline run duration in seconds, target: 600",
		},
	)

	// SLOItemFailureRate tracks the item failure rate of the latest run (0-1)
	// calculated as: failed_items / processed_items
	SLOItemFailureRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_item_failure_rate_ratio",
			Help: "Item failure rate of the latest run (0-1), target: 0.02",
		},
	)
)

// UpdateRunSuccess updates the run success SLO metric.
// Call this after each run with the success ratio over the evaluation window.
func UpdateRunSuccess(ratio float64) {
	SLORunSuccess.Set(ratio)
}

// UpdateRunDurationP95 updates the p95 run duration SLO metric. The
// equivalent PromQL over the raw histogram:
//
//	histogram_quantile(0.95, rate(pipeline_run_duration_seconds_bucket[1d]))
func UpdateRunDurationP95(seconds float64) {
	SLORunDurationP95.Set(seconds)
}

// UpdateItemFailureRate updates the item failure rate SLO metric:
//
//	rate := float64(summary.Items.Failed) / float64(summary.Items.Processed)
//	slo.UpdateItemFailureRate(rate)
func UpdateItemFailureRate(ratio float64) {
	SLOItemFailureRate.Set(ratio)
}
