package fetcher

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the knobs for content extraction. Enabled and Threshold
// decide when an article fetch happens at all; the rest bound what an
// untrusted page can do to us once it does.
type Config struct {
	// Enabled controls whether content extraction runs at all.
	// When false, ShouldFetch always reports false and the pipeline
	// summarizes the feed-provided body directly.
	// Default: true
	Enabled bool

	// Threshold is the minimum feed body length (in runes) below which the
	// full article is fetched. Bodies at or above the threshold are
	// considered sufficient.
	// Default: 1500
	Threshold int

	// Timeout bounds one article page request end to end.
	// Default: 10s
	Timeout time.Duration

	// MaxBodySize caps how many response bytes are read, enforced while
	// reading rather than trusted from the Content-Length header.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects caps the redirect chain. Each redirect target is
	// re-validated against the SSRF rules.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs controls whether URLs resolving to private, loopback,
	// or link-local addresses are rejected. Should always be true in
	// production.
	// Default: true
	DenyPrivateIPs bool
}

// DefaultConfig returns the production defaults for content extraction.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Threshold:      1500,
		Timeout:        10 * time.Second,
		MaxBodySize:    10 << 20,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// Body size limits enforced by Validate. Below 1KB nothing useful fits,
// above 100MB a single article is certainly not what we are reading.
const (
	minBodySize = 1 << 10
	maxBodySize = 100 << 20
)

// Validate checks that the configuration values are within safe ranges.
// Threshold may be zero, which means every article is fetched.
func (c *Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("threshold %d is negative", c.Threshold)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout %v is not positive", c.Timeout)
	}

	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size %d outside %d..%d bytes", c.MaxBodySize, int64(minBodySize), int64(maxBodySize))
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects %d outside 0..10", c.MaxRedirects)
	}

	return nil
}

// LoadConfigFromEnv loads the extraction configuration from environment
// variables, starting from the defaults. Unlike the worker configuration,
// an invalid value here is an error rather than a fallback: a typo in a
// security limit must not silently widen it.
//
// Environment variables:
//   - CONTENT_FETCH_ENABLED: "true" or "false" (default: true)
//   - CONTENT_FETCH_THRESHOLD: integer runes (default: 1500)
//   - CONTENT_FETCH_TIMEOUT: duration string, e.g. "10s" (default: 10s)
//   - CONTENT_FETCH_MAX_BODY_SIZE: integer bytes (default: 10485760)
//   - CONTENT_FETCH_MAX_REDIRECTS: integer (default: 5)
//   - CONTENT_FETCH_DENY_PRIVATE_IPS: "true" or "false" (default: true)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := envFlag("CONTENT_FETCH_ENABLED", &cfg.Enabled); err != nil {
		return cfg, err
	}
	if err := envInt("CONTENT_FETCH_THRESHOLD", &cfg.Threshold); err != nil {
		return cfg, err
	}
	if err := envDuration("CONTENT_FETCH_TIMEOUT", &cfg.Timeout); err != nil {
		return cfg, err
	}
	if err := envBytes("CONTENT_FETCH_MAX_BODY_SIZE", &cfg.MaxBodySize); err != nil {
		return cfg, err
	}
	if err := envInt("CONTENT_FETCH_MAX_REDIRECTS", &cfg.MaxRedirects); err != nil {
		return cfg, err
	}
	if err := envFlag("CONTENT_FETCH_DENY_PRIVATE_IPS", &cfg.DenyPrivateIPs); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("content fetch configuration validation failed: %w", err)
	}

	return cfg, nil
}

// The env helpers leave dst untouched when the variable is unset and fail
// loudly when it is set to something unparseable.

func envFlag(key string, dst *bool) error {
	switch raw := os.Getenv(key); raw {
	case "":
	case "true":
		*dst = true
	case "false":
		*dst = false
	default:
		return fmt.Errorf("parse %s=%q: want true or false", key, raw)
	}
	return nil
}

func envInt(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("parse %s=%q: %w", key, raw, err)
	}
	*dst = parsed
	return nil
}

func envBytes(key string, dst *int64) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s=%q: %w", key, raw, err)
	}
	*dst = parsed
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s=%q: %w", key, raw, err)
	}
	*dst = parsed
	return nil
}
