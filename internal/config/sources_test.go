package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digest-feed/internal/domain/entity"
)

func writeSourcesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSources_Valid(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - name: Tech Blog
    endpoint: https://example.com/feed.xml
  - name: Release Notes
    endpoint: https://example.org/releases.atom
`)

	sources, err := LoadSources(path)
	require.NoError(t, err)

	require.Len(t, sources, 2)
	assert.Equal(t, "Tech Blog", sources[0].Name)
	assert.Equal(t, "https://example.com/feed.xml", sources[0].Endpoint)
	assert.Equal(t, "Release Notes", sources[1].Name)
}

func TestLoadSources_DeduplicatesByEndpoint(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - name: Primary
    endpoint: https://example.com/feed.xml
  - name: Other
    endpoint: https://example.org/feed.xml
  - name: Duplicate
    endpoint: https://example.com/feed.xml
`)

	sources, err := LoadSources(path)
	require.NoError(t, err)

	// First occurrence wins, order preserved.
	require.Len(t, sources, 2)
	assert.Equal(t, "Primary", sources[0].Name)
	assert.Equal(t, "Other", sources[1].Name)
}

func TestLoadSources_EmptyFile(t *testing.T) {
	path := writeSourcesFile(t, `sources: []`)

	_, err := LoadSources(path)

	assert.True(t, errors.Is(err, entity.ErrNoSources))
}

func TestLoadSources_AllDuplicatesStillNonEmpty(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - name: A
    endpoint: https://example.com/feed.xml
  - name: B
    endpoint: https://example.com/feed.xml
`)

	sources, err := LoadSources(path)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestLoadSources_MissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read sources file")
}

func TestLoadSources_MalformedYAML(t *testing.T) {
	path := writeSourcesFile(t, "sources: [unclosed")

	_, err := LoadSources(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse sources file")
}

func TestLoadSources_InvalidSourceFailsLoad(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - name: Good
    endpoint: https://example.com/feed.xml
  - name: Bad
    endpoint: ftp://example.com/feed
`)

	_, err := LoadSources(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `source 1 ("Bad")`)
}

func TestLoadSources_MissingName(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - endpoint: https://example.com/feed.xml
`)

	_, err := LoadSources(path)

	require.Error(t, err)

	var validationErr *entity.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "name", validationErr.Field)
}
