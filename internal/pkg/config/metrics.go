package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics tracks configuration loading for one component. The metric
// names are prefixed with the component so the worker and the one-shot CLI
// register distinct series:
//
//	{component}_config_load_timestamp          last successful load (gauge)
//	{component}_config_validation_errors_total rejected values by field
//	{component}_config_fallbacks_total         fallback uses by field
//	{component}_config_fallback_active         1 while any fallback is live
type ConfigMetrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge

	componentName string
}

// NewConfigMetrics registers the component's config metrics with the
// Prometheus default registry. Registering the same component twice panics,
// so each process constructs its metrics once.
func NewConfigMetrics(componentName string) *ConfigMetrics {
	name := func(suffix string) string { return componentName + "_config_" + suffix }

	return &ConfigMetrics{
		LoadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: name("load_timestamp"),
			Help: "Unix time of the last " + componentName + " configuration load.",
		}),
		ValidationErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: name("validation_errors_total"),
			Help: "Configuration values rejected during " + componentName + " load, by field.",
		}, []string{"field"}),
		FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: name("fallbacks_total"),
			Help: "Times a " + componentName + " field fell back to its default, by field.",
		}, []string{"field"}),
		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: name("fallback_active"),
			Help: "1 while any " + componentName + " field is running on a fallback value.",
		}),
		componentName: componentName,
	}
}

// RecordLoadTimestamp marks now as the latest configuration load.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a rejected value for the field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts a fallback to the default for the field.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive raises or clears the fallback gauge.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	var v float64
	if active {
		v = 1
	}
	m.FallbackActive.Set(v)
}
