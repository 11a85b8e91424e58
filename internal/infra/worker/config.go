// Package worker holds the operational shell of the scheduled digest
// worker: its configuration, health endpoints, and Prometheus metrics.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"digest-feed/internal/pkg/config"
)

// WorkerConfig controls the cron schedule, timezone, and operational
// parameters of the worker service. Every field has a default and a
// validation rule, so a worker with a broken environment still starts on
// known-good values.
type WorkerConfig struct {
	// CronSchedule decides when digest runs fire, in five-field cron
	// syntax ("minute hour day month weekday").
	// Default: "0 6 * * *" (daily at 6:00)
	CronSchedule string

	// Timezone anchors the cron schedule, as an IANA zone name like
	// "Asia/Tokyo" or "UTC".
	// Default: "Asia/Tokyo"
	Timezone string

	// RunTimeout bounds a single digest run. When it expires the run
	// context is cancelled and in-flight items settle as failed.
	// Default: 30 minutes
	RunTimeout time.Duration

	// HealthPort is where the health and metrics HTTP server listens.
	// Range: 1024-65535 (avoid privileged ports)
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with production defaults: a daily
// run at 6:00 JST, a 30-minute timeout to stop stuck runs, and the common
// exporter port for health checks.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule: "0 6 * * *",
		Timezone:     "Asia/Tokyo",
		RunTimeout:   30 * time.Minute,
		HealthPort:   9091,
	}
}

// Validate checks the configuration values using the reusable validators
// from internal/pkg/config. All field errors are collected and returned
// together.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cron schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidatePositiveDuration(c.RunTimeout); err != nil {
		errors = append(errors, fmt.Errorf("run timeout: %w", err))
	}

	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv builds the worker configuration from environment
// variables, layered over DefaultConfig. The loading fails open: a value
// that does not parse or validate keeps its default, logs a warning and
// increments the fallback metrics, and the function still returns a usable
// configuration.
//
// Environment variables:
//   - CRON_SCHEDULE: Cron expression (default: "0 6 * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default: "Asia/Tokyo")
//   - RUN_TIMEOUT: Duration string 1m-4h, e.g. "30m" (default: 30 minutes)
//   - WORKER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	// note records the fallback bookkeeping for one field and returns the
	// loaded value for the caller to type-assert.
	note := func(field string, result config.ConfigLoadResult) interface{} {
		if result.FallbackApplied {
			fallbackApplied = true
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field)
			for _, warning := range result.Warnings {
				logger.Warn("config value rejected, using default",
					slog.String("field", field),
					slog.String("warning", warning))
			}
		}
		return result.Value
	}

	cfg.CronSchedule = note("cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)).(string)

	cfg.Timezone = note("timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)).(string)

	cfg.RunTimeout = note("run_timeout",
		config.LoadEnvDuration("RUN_TIMEOUT", cfg.RunTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, 1*time.Minute, 4*time.Hour)
		})).(time.Duration)

	cfg.HealthPort = note("health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		})).(int)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
