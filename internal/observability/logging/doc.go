// Package logging builds the slog loggers used across the pipeline: a JSON
// logger on stdout for the worker and a text logger on stderr for the CLI,
// both level-controlled through LOG_LEVEL.
//
// Loggers are passed explicitly down the call chain rather than stashed in
// a context; WithRunID derives the per-run logger that every stage shares:
//
//	logger := logging.WithRunID(baseLogger, runID)
//	logger.Info("digest run started", slog.Int("sources", len(sources)))
package logging
