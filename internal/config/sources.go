package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"digest-feed/internal/domain/entity"
)

// sourcesFile is the on-disk shape of the sources YAML:
//
//	sources:
//	  - name: Tech Blog
//	    endpoint: https://example.com/feed.xml
type sourcesFile struct {
	Sources []entity.Source `yaml:"sources"`
}

// LoadSources reads and validates the source list from a YAML file.
//
// Every source must pass entity validation; a single malformed source fails
// the whole load since a typo'd endpoint is an operator error, not a runtime
// condition to degrade around. Duplicate endpoints are collapsed to the first
// occurrence, preserving file order. An empty result after deduplication
// returns entity.ErrNoSources, which aborts a run before any processing.
func LoadSources(path string) ([]entity.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Sources))
	sources := make([]entity.Source, 0, len(file.Sources))
	for i := range file.Sources {
		src := file.Sources[i]
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("source %d (%q): %w", i, src.Name, err)
		}
		if _, dup := seen[src.Endpoint]; dup {
			continue
		}
		seen[src.Endpoint] = struct{}{}
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return nil, entity.ErrNoSources
	}
	return sources, nil
}
