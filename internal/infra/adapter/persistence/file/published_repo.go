// Package file implements the published-output store on a single JSON file.
// It is the default backend: no external service, human-inspectable state,
// and atomic replacement via rename.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"digest-feed/internal/domain/entity"
	"digest-feed/internal/repository"
)

type PublishedRepo struct {
	path string
	mu   sync.Mutex
}

func NewPublishedRepo(path string) repository.PublishedRepository {
	return &PublishedRepo{path: path}
}

// Load reads the state file. A missing file is a first run and yields an
// empty slice; a present but unreadable file is an error, because silently
// treating corrupt state as empty would republish the full history.
func (repo *PublishedRepo) Load(_ context.Context) ([]entity.PublishedEntry, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	data, err := os.ReadFile(repo.path)
	if os.IsNotExist(err) {
		return []entity.PublishedEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	var entries []entity.PublishedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("Load: decode %s: %w", repo.path, err)
	}
	return entries, nil
}

// Replace writes the entries to a temporary file in the same directory and
// renames it over the state file, so a crash mid-write never leaves a
// truncated state behind.
func (repo *PublishedRepo) Replace(_ context.Context, entries []entity.PublishedEntry) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if entries == nil {
		entries = []entity.PublishedEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("Replace: encode: %w", err)
	}

	dir := filepath.Dir(repo.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("Replace: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(repo.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("Replace: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("Replace: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("Replace: close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, repo.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("Replace: %w", err)
	}
	return nil
}
