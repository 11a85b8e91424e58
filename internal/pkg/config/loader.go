// Package config provides shared helpers for loading configuration values
// from environment variables with validation and warning-based fallback.
// Loading never fails: invalid values fall back to their defaults and the
// failure surfaces as a warning the caller is expected to log.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult carries a loaded value together with the warnings its
// loading produced and whether the default had to stand in for a rejected
// one. Callers log the warnings and type-assert Value:
//
//	result := LoadEnvDuration("RAW_CACHE_TTL", time.Hour, nil)
//	for _, warning := range result.Warnings {
//	    logger.Warn("configuration fallback", slog.String("warning", warning))
//	}
//	ttl := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString reads a plain string variable, returning the default when
// it is unset. No validation is performed; use LoadEnvWithFallback when
// validation is needed.
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvWithFallback reads a string variable and runs it through the
// validator. An unset or empty variable yields the default silently; a set
// value that fails validation yields the default with a warning.
//
// Example:
//
//	result := LoadEnvWithFallback("CRON_SCHEDULE", "30 5 * * *", ValidateCronSchedule)
//	cronExpr := result.Value.(string)
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	if validator != nil {
		if err := validator(value); err != nil {
			return fallbackResult(envKey, value, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: value}
}

// LoadEnvDuration reads a duration variable in time.ParseDuration syntax
// ("30s", "5m", "1h30m"). Parse or validation failures fall back to the
// default with a warning.
//
// Example:
//
//	result := LoadEnvDuration("ITEM_PAUSE", 0, ValidateNonNegativeDuration)
//	pause := result.Value.(time.Duration)
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallbackResult(envKey, valueStr, err, defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackResult(envKey, valueStr, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvInt reads an integer variable. Parse or validation failures fall
// back to the default with a warning.
//
// Example:
//
//	result := LoadEnvInt("ITEM_CONCURRENCY", 4, func(v int) error {
//	    return ValidateIntRange(v, 1, 50)
//	})
//	concurrency := result.Value.(int)
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallbackResult(envKey, valueStr, fmt.Errorf("not an integer"), defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackResult(envKey, valueStr, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvBool reads a boolean variable in any spelling strconv.ParseBool
// accepts: "1", "t", "true", "0", "f", "false" in any common casing. Parse
// failures fall back to the default with a warning.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallbackResult(envKey, valueStr, fmt.Errorf("not a boolean, use true or false"), defaultValue)
	}

	return ConfigLoadResult{Value: parsed}
}

func fallbackResult(envKey, value string, err error, defaultValue interface{}) ConfigLoadResult {
	return ConfigLoadResult{
		Value:           defaultValue,
		Warnings:        []string{fmt.Sprintf("%s=%q rejected: %v; using default %v", envKey, value, err, defaultValue)},
		FallbackApplied: true,
	}
}
