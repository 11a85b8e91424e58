package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		// Matching is case-sensitive on purpose; the docs say lowercase.
		{"DEBUG", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.value))
		})
	}
}

func TestNewLogger_RespectsLogLevel(t *testing.T) {
	tests := []struct {
		envLevel    string
		enabledAt   slog.Level
		disabledAt  slog.Level
		description string
	}{
		{"", slog.LevelInfo, slog.LevelDebug, "default filters debug"},
		{"debug", slog.LevelDebug, slog.LevelDebug - 4, "debug lets everything through"},
		{"warn", slog.LevelWarn, slog.LevelInfo, "warn filters info"},
		{"error", slog.LevelError, slog.LevelWarn, "error filters warn"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.envLevel)

			logger := NewLogger()
			require.NotNil(t, logger)

			ctx := context.Background()
			assert.True(t, logger.Enabled(ctx, tt.enabledAt),
				"level %v should be enabled with LOG_LEVEL=%q", tt.enabledAt, tt.envLevel)
			assert.False(t, logger.Enabled(ctx, tt.disabledAt),
				"level %v should be filtered with LOG_LEVEL=%q", tt.disabledAt, tt.envLevel)
		})
	}
}

func TestNewTextLogger_DefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	logger := NewTextLogger()
	require.NotNil(t, logger)

	ctx := context.Background()
	assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.False(t, logger.Enabled(ctx, slog.LevelDebug))
}

func TestWithRunID_TagsEveryEntry(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithRunID(base, "7d44e01f-run")
	logger.Info("feed fetched")
	logger.Warn("item skipped")

	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, "7d44e01f-run", entry["run_id"])
	}
}

func TestWithRunID_EmptyIDLeavesLoggerUntouched(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithRunID(base, "")
	assert.Same(t, base, logger)

	logger.Info("no run context")
	assert.NotContains(t, buf.String(), "run_id")
}
