package logging

import (
	"log/slog"
	"os"
)

// parseLevel maps the LOG_LEVEL environment variable to a slog level.
// Unknown values default to info.
func parseLevel(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns the worker's JSON logger on stdout. LOG_LEVEL selects
// the level (debug, info, warn, error; default info); at debug the entries
// also carry source locations.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}))
}

// NewTextLogger returns a human-readable logger on stderr for the one-shot
// CLI, keeping stdout free for the digest output itself.
func NewTextLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
}

// WithRunID tags every entry with the pipeline run ID, grouping the log
// lines of one run across its concurrent workers. An empty ID returns the
// logger unchanged.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	if runID == "" {
		return logger
	}
	return logger.With("run_id", runID)
}
