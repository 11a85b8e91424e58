// Package config defines the application configuration for the digest
// pipeline. Configuration is loaded once in main from environment variables
// and passed into constructors; nothing reads the environment after startup.
package config

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "digest-feed/internal/pkg/config"
	"digest-feed/internal/resilience/retry"
)

// Publish modes for the published-output store.
const (
	// PublishModeFlat publishes one entry per digest, keyed by fingerprint.
	PublishModeFlat = "flat"
	// PublishModeAggregate publishes one entry per run, grouping the run's
	// digests by source under a date-derived ID (digest-YYYY-MM-DD).
	PublishModeAggregate = "aggregate"
)

// Published-store backends.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// Config holds the pipeline configuration.
//
// All fields have defaults and validation rules; LoadConfigFromEnv applies a
// fail-open strategy where invalid values fall back to defaults with a logged
// warning, so a broken environment never prevents startup.
type Config struct {
	// CacheDir is the root directory for durable cache records.
	// Each namespace gets a subdirectory with one JSON file per key.
	// Default: ".cache"
	CacheDir string

	// RawCacheTTL is the freshness window for raw feed fetch results.
	// Zero or negative disables raw-feed caching entirely.
	// Default: 1 hour
	RawCacheTTL time.Duration

	// DigestCacheTTL is the freshness window for derived digests.
	// A cached digest is reused verbatim while fresh, skipping both content
	// fetch and summary generation. Zero or negative disables digest caching.
	// Default: 168 hours (7 days)
	DigestCacheTTL time.Duration

	// SourceConcurrency bounds how many sources are processed in parallel.
	// Range: 1-50
	// Default: 4
	SourceConcurrency int

	// ItemConcurrency bounds how many of one source's entries are processed
	// in parallel.
	// Range: 1-50
	// Default: 4
	ItemConcurrency int

	// ItemPause is an optional settle delay after each item completes,
	// held before the concurrency slot is released. Used to space out
	// calls against rate-limited summarization APIs.
	// Must be >= 0; zero disables the pause.
	// Default: 0
	ItemPause time.Duration

	// MaxRetries is the number of retries after the initial attempt for
	// transient feed fetch failures. Summarizer and article fetch retries
	// keep their own fixed tunings; see RetryPolicy.
	// Range: 0-10
	// Default: 3
	MaxRetries int

	// RetryBaseDelay seeds the exponential backoff between feed fetch
	// retries. Must be positive and not exceed RetryMaxDelay.
	// Default: 500ms
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff between feed fetch retries.
	// Default: 30s
	RetryMaxDelay time.Duration

	// SourcesPath is the YAML file listing feed sources.
	// Default: "sources.yaml"
	SourcesPath string

	// MaxEntriesPerSource caps how many entries of one source are processed
	// per run, newest first. Zero means no cap.
	// Range: 0-100
	// Default: 10
	MaxEntriesPerSource int

	// PublishMode selects the published-entry granularity: "flat" or
	// "aggregate".
	// Default: "flat"
	PublishMode string

	// RetentionDays is the horizon for previously published entries; entries
	// older than startOfUTCDay(now)-RetentionDays are pruned during merge.
	// Range: 0-365 (0 retains only entries from the current UTC day)
	// Default: 14
	RetentionDays int

	// StoreBackend selects the published-output store: "file" or "postgres".
	// Default: "file"
	StoreBackend string

	// PublishedPath is the JSON file used by the file store backend.
	// Default: "published.json"
	PublishedPath string

	// FeedPath is where the rendered RSS 2.0 document is written after
	// publishing. Empty disables feed rendering.
	// Default: "feed.xml"
	FeedPath string

	// DatabaseURL is the Postgres connection string, required when
	// StoreBackend is "postgres".
	DatabaseURL string
}

// DefaultConfig returns a Config with production defaults: hourly feed
// freshness, week-long digest reuse, conservative fan-out and a two-week
// publishing horizon.
func DefaultConfig() Config {
	return Config{
		CacheDir:            ".cache",
		RawCacheTTL:         time.Hour,
		DigestCacheTTL:      168 * time.Hour,
		SourceConcurrency:   4,
		ItemConcurrency:     4,
		ItemPause:           0,
		MaxRetries:          3,
		RetryBaseDelay:      500 * time.Millisecond,
		RetryMaxDelay:       30 * time.Second,
		SourcesPath:         "sources.yaml",
		MaxEntriesPerSource: 10,
		PublishMode:         PublishModeFlat,
		RetentionDays:       14,
		StoreBackend:        StoreBackendFile,
		PublishedPath:       "published.json",
		FeedPath:            "feed.xml",
	}
}

// ValidatePublishMode checks a publish mode string.
func ValidatePublishMode(mode string) error {
	switch mode {
	case PublishModeFlat, PublishModeAggregate:
		return nil
	default:
		return fmt.Errorf("invalid publish mode '%s' (must be %s or %s)", mode, PublishModeFlat, PublishModeAggregate)
	}
}

// ValidateStoreBackend checks a store backend string.
func ValidateStoreBackend(backend string) error {
	switch backend {
	case StoreBackendFile, StoreBackendPostgres:
		return nil
	default:
		return fmt.Errorf("invalid store backend '%s' (must be %s or %s)", backend, StoreBackendFile, StoreBackendPostgres)
	}
}

// Validate checks cross-field consistency. Field-level rules are enforced
// during load; Validate covers the relations a per-field validator cannot see.
func (c *Config) Validate() error {
	var errs []error

	if err := pkgconfig.ValidateIntRange(c.SourceConcurrency, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("source concurrency: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.ItemConcurrency, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("item concurrency: %w", err))
	}
	if err := pkgconfig.ValidateNonNegativeDuration(c.ItemPause); err != nil {
		errs = append(errs, fmt.Errorf("item pause: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.MaxRetries, 0, 10); err != nil {
		errs = append(errs, fmt.Errorf("max retries: %w", err))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.RetryBaseDelay); err != nil {
		errs = append(errs, fmt.Errorf("retry base delay: %w", err))
	}
	if c.RetryBaseDelay > c.RetryMaxDelay {
		errs = append(errs, fmt.Errorf("retry base delay %v exceeds max delay %v", c.RetryBaseDelay, c.RetryMaxDelay))
	}
	if err := ValidatePublishMode(c.PublishMode); err != nil {
		errs = append(errs, err)
	}
	if err := pkgconfig.ValidateIntRange(c.RetentionDays, 0, 365); err != nil {
		errs = append(errs, fmt.Errorf("retention days: %w", err))
	}
	if err := ValidateStoreBackend(c.StoreBackend); err != nil {
		errs = append(errs, err)
	}
	if c.StoreBackend == StoreBackendPostgres && c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required when store backend is %s", StoreBackendPostgres))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// RetryPolicy renders the retry fields into the backoff policy the feed
// fetcher runs under. Article fetches and summarizer calls are not covered:
// those keep the fixed tunings from the retry package, since an env typo
// must not multiply paid API attempts.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxRetries,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
	}
}

// LoadConfigFromEnv loads the pipeline configuration from environment
// variables with validation and fallback to defaults on failure.
//
// Environment variables:
//   - CACHE_DIR: cache root directory (default: ".cache")
//   - RAW_CACHE_TTL: raw feed freshness window, e.g. "1h" (<=0 disables)
//   - DIGEST_CACHE_TTL: digest freshness window, e.g. "168h" (<=0 disables)
//   - SOURCE_CONCURRENCY: parallel sources, 1-50 (default: 4)
//   - ITEM_CONCURRENCY: parallel entries per source, 1-50 (default: 4)
//   - ITEM_PAUSE: post-item settle delay, e.g. "2s" (default: 0)
//   - MAX_RETRIES: retries after the initial attempt, 0-10 (default: 3)
//   - RETRY_BASE_DELAY: backoff seed, e.g. "500ms"
//   - RETRY_MAX_DELAY: backoff cap, e.g. "30s"
//   - SOURCES_PATH: sources YAML file (default: "sources.yaml")
//   - MAX_ENTRIES_PER_SOURCE: per-run cap, 0-100, 0 = unlimited (default: 10)
//   - PUBLISH_MODE: "flat" or "aggregate" (default: "flat")
//   - RETENTION_DAYS: publishing horizon, 0-365 (default: 14)
//   - STORE_BACKEND: "file" or "postgres" (default: "file")
//   - PUBLISHED_PATH: JSON store file (default: "published.json")
//   - FEED_PATH: rendered RSS output, empty disables (default: "feed.xml")
//   - DATABASE_URL: Postgres connection string (postgres backend only)
//
// The returned error is non-nil only for cross-field violations that have no
// safe fallback, such as a postgres backend without DATABASE_URL.
func LoadConfigFromEnv(logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) (*Config, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	record := func(field string, result pkgconfig.ConfigLoadResult) pkgconfig.ConfigLoadResult {
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
		return result
	}

	cfg.CacheDir = pkgconfig.LoadEnvString("CACHE_DIR", cfg.CacheDir)

	// TTLs accept any duration: non-positive values mean "caching disabled".
	result := record("raw_cache_ttl", pkgconfig.LoadEnvDuration("RAW_CACHE_TTL", cfg.RawCacheTTL, nil))
	cfg.RawCacheTTL = result.Value.(time.Duration)

	result = record("digest_cache_ttl", pkgconfig.LoadEnvDuration("DIGEST_CACHE_TTL", cfg.DigestCacheTTL, nil))
	cfg.DigestCacheTTL = result.Value.(time.Duration)

	result = record("source_concurrency", pkgconfig.LoadEnvInt("SOURCE_CONCURRENCY", cfg.SourceConcurrency, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 50)
	}))
	cfg.SourceConcurrency = result.Value.(int)

	result = record("item_concurrency", pkgconfig.LoadEnvInt("ITEM_CONCURRENCY", cfg.ItemConcurrency, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 50)
	}))
	cfg.ItemConcurrency = result.Value.(int)

	result = record("item_pause", pkgconfig.LoadEnvDuration("ITEM_PAUSE", cfg.ItemPause, pkgconfig.ValidateNonNegativeDuration))
	cfg.ItemPause = result.Value.(time.Duration)

	result = record("max_retries", pkgconfig.LoadEnvInt("MAX_RETRIES", cfg.MaxRetries, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 0, 10)
	}))
	cfg.MaxRetries = result.Value.(int)

	result = record("retry_base_delay", pkgconfig.LoadEnvDuration("RETRY_BASE_DELAY", cfg.RetryBaseDelay, pkgconfig.ValidatePositiveDuration))
	cfg.RetryBaseDelay = result.Value.(time.Duration)

	result = record("retry_max_delay", pkgconfig.LoadEnvDuration("RETRY_MAX_DELAY", cfg.RetryMaxDelay, pkgconfig.ValidatePositiveDuration))
	cfg.RetryMaxDelay = result.Value.(time.Duration)

	cfg.SourcesPath = pkgconfig.LoadEnvString("SOURCES_PATH", cfg.SourcesPath)

	result = record("max_entries_per_source", pkgconfig.LoadEnvInt("MAX_ENTRIES_PER_SOURCE", cfg.MaxEntriesPerSource, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 0, 100)
	}))
	cfg.MaxEntriesPerSource = result.Value.(int)

	result = record("publish_mode", pkgconfig.LoadEnvWithFallback("PUBLISH_MODE", cfg.PublishMode, ValidatePublishMode))
	cfg.PublishMode = result.Value.(string)

	result = record("retention_days", pkgconfig.LoadEnvInt("RETENTION_DAYS", cfg.RetentionDays, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 0, 365)
	}))
	cfg.RetentionDays = result.Value.(int)

	result = record("store_backend", pkgconfig.LoadEnvWithFallback("STORE_BACKEND", cfg.StoreBackend, ValidateStoreBackend))
	cfg.StoreBackend = result.Value.(string)

	cfg.PublishedPath = pkgconfig.LoadEnvString("PUBLISHED_PATH", cfg.PublishedPath)
	cfg.FeedPath = pkgconfig.LoadEnvString("FEED_PATH", cfg.FeedPath)
	cfg.DatabaseURL = pkgconfig.LoadEnvString("DATABASE_URL", "")

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	if cfg.RetryBaseDelay > cfg.RetryMaxDelay {
		logger.Warn("config value rejected, using default",
			slog.String("field", "retry_base_delay"),
			slog.String("warning", fmt.Sprintf(
				"retry base delay %v exceeds max delay %v, falling back to defaults",
				cfg.RetryBaseDelay, cfg.RetryMaxDelay)))
		defaults := DefaultConfig()
		cfg.RetryBaseDelay = defaults.RetryBaseDelay
		cfg.RetryMaxDelay = defaults.RetryMaxDelay
	}

	if cfg.StoreBackend == StoreBackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
	}

	return &cfg, nil
}
