package summarizer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LayerMetricsRecorder defines the interface for recording generation-quality
// metrics. It abstracts the metrics backend so tests can inject a mock
// recorder instead of Prometheus, and so the same recorder serves every
// provider (Claude, OpenAI, NoOp).
type LayerMetricsRecorder interface {
	// RecordLayerLength records the length of a generated layer in characters.
	RecordLayerLength(layer string, length int)

	// RecordLayerLimitExceeded increments the counter when a layer exceeds
	// its configured character budget.
	RecordLayerLimitExceeded(layer string)

	// RecordLayerCompliance records whether a layer came in within its
	// character budget.
	RecordLayerCompliance(layer string, withinLimit bool)

	// RecordCallDuration records the time taken by one provider API call.
	RecordCallDuration(provider string, duration time.Duration)
}

// PrometheusLayerMetrics implements LayerMetricsRecorder using Prometheus.
// This is the production implementation.
type PrometheusLayerMetrics struct {
	lengthHistogram   *prometheus.HistogramVec
	exceededCounter   *prometheus.CounterVec
	complianceGauge   *prometheus.GaugeVec
	durationHistogram *prometheus.HistogramVec
}

var (
	prometheusMetricsInstance *PrometheusLayerMetrics
	prometheusMetricsOnce     sync.Once
)

// getOrCreateHistogramVec gets an existing histogram vec or creates a new one.
func getOrCreateHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		return promauto.NewHistogramVec(opts, labels)
	}
	return h
}

// getOrCreateCounterVec gets an existing counter vec or creates a new one.
func getOrCreateCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		return promauto.NewCounterVec(opts, labels)
	}
	return c
}

// getOrCreateGaugeVec gets an existing gauge vec or creates a new one.
func getOrCreateGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	if err := prometheus.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.GaugeVec)
		}
		return promauto.NewGaugeVec(opts, labels)
	}
	return g
}

// NewPrometheusLayerMetrics creates a new Prometheus-based metrics recorder.
// Uses a singleton so repeated construction (one per provider, and tests)
// never re-registers the series.
func NewPrometheusLayerMetrics() *PrometheusLayerMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusLayerMetrics{
			lengthHistogram: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Name:    "digest_layer_length_characters",
				Help:    "Distribution of generated layer lengths in characters (Unicode runes)",
				Buckets: []float64{50, 100, 200, 400, 700, 900, 1200, 1500, 2000},
			}, []string{"layer"}),
			exceededCounter: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "digest_layer_limit_exceeded_total",
				Help: "Total number of generated layers exceeding their character budget",
			}, []string{"layer"}),
			complianceGauge: getOrCreateGaugeVec(prometheus.GaugeOpts{
				Name: "digest_layer_limit_compliance_ratio",
				Help: "Whether the most recent layer stayed within its character budget (0 or 1)",
			}, []string{"layer"}),
			durationHistogram: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Name:    "digest_provider_call_duration_seconds",
				Help:    "Time taken by one generation API call",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			}, []string{"provider"}),
		}
	})
	return prometheusMetricsInstance
}

// RecordLayerLength implements LayerMetricsRecorder.RecordLayerLength
func (p *PrometheusLayerMetrics) RecordLayerLength(layer string, length int) {
	p.lengthHistogram.WithLabelValues(layer).Observe(float64(length))
}

// RecordLayerLimitExceeded implements LayerMetricsRecorder.RecordLayerLimitExceeded
func (p *PrometheusLayerMetrics) RecordLayerLimitExceeded(layer string) {
	p.exceededCounter.WithLabelValues(layer).Inc()
}

// RecordLayerCompliance implements LayerMetricsRecorder.RecordLayerCompliance
func (p *PrometheusLayerMetrics) RecordLayerCompliance(layer string, withinLimit bool) {
	if withinLimit {
		p.complianceGauge.WithLabelValues(layer).Set(1.0)
	} else {
		p.complianceGauge.WithLabelValues(layer).Set(0.0)
	}
}

// RecordCallDuration implements LayerMetricsRecorder.RecordCallDuration
func (p *PrometheusLayerMetrics) RecordCallDuration(provider string, duration time.Duration) {
	p.durationHistogram.WithLabelValues(provider).Observe(duration.Seconds())
}
