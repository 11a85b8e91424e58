package summarizer

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

const (
	// minCharLimit is the minimum allowed character limit for the overall layer.
	minCharLimit = 100

	// maxCharLimit is the maximum allowed character limit for the overall layer.
	maxCharLimit = 5000
)

// LayerConfig holds the per-layer size budgets for digest generation.
// Limits are in Unicode runes, not bytes. They bound both the prompt
// instructions sent to the provider and the truncation fallbacks used when a
// layer degrades.
type LayerConfig struct {
	// ParagraphLimit is the budget for each paragraph summary.
	ParagraphLimit int

	// SectionLimit is the budget for the section layer.
	SectionLimit int

	// OverallLimit is the budget for the overall layer. Loaded from
	// SUMMARIZER_CHAR_LIMIT. Valid range: 100-5000. Default: 900.
	OverallLimit int

	// OneLineLimit is the budget for the one-line layer.
	OneLineLimit int

	// MaxParagraphs caps how many source paragraphs are summarized per entry.
	MaxParagraphs int
}

// DefaultLayerConfig returns the default layer budgets.
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		ParagraphLimit: 200,
		SectionLimit:   1200,
		OverallLimit:   900,
		OneLineLimit:   120,
		MaxParagraphs:  12,
	}
}

// LoadLayerConfig loads layer budgets from environment variables.
// An invalid SUMMARIZER_CHAR_LIMIT falls back to the default with a warning
// log rather than failing startup.
//
// Environment variables:
//   - SUMMARIZER_CHAR_LIMIT: overall-layer limit (default: 900, range: 100-5000)
func LoadLayerConfig() LayerConfig {
	cfg := DefaultLayerConfig()

	if envLimit := os.Getenv("SUMMARIZER_CHAR_LIMIT"); envLimit != "" {
		parsed, err := strconv.Atoi(envLimit)
		if err != nil {
			slog.Warn("SUMMARIZER_CHAR_LIMIT is not a number, keeping default",
				slog.String("value", envLimit),
				slog.Int("default", cfg.OverallLimit),
				slog.String("error", err.Error()))
		} else if err := ValidateCharacterLimit(parsed); err != nil {
			slog.Warn("SUMMARIZER_CHAR_LIMIT outside allowed range, keeping default",
				slog.Int("value", parsed),
				slog.Int("min", minCharLimit),
				slog.Int("max", maxCharLimit),
				slog.Int("default", cfg.OverallLimit))
		} else {
			cfg.OverallLimit = parsed
		}
	}

	return cfg
}

// ValidateCharacterLimit validates that a character limit is within the valid
// range (100-5000).
func ValidateCharacterLimit(limit int) error {
	if limit < minCharLimit {
		return fmt.Errorf("character limit %d is below minimum %d", limit, minCharLimit)
	}
	if limit > maxCharLimit {
		return fmt.Errorf("character limit %d exceeds maximum %d", limit, maxCharLimit)
	}
	return nil
}
