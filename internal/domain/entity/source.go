// Package entity holds the domain objects the pipeline moves around: Source,
// Entry, Digest and PublishedEntry, together with their validation rules and
// domain errors. Nothing here knows about HTTP, storage or AI providers.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Source represents a content feed to ingest.
// Identity is the endpoint URL; sources are deduplicated by endpoint at load
// time and are immutable for the remainder of the run.
type Source struct {
	Name     string `yaml:"name" json:"name"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// Validate checks that the source has a usable name and endpoint.
func (s *Source) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "source name is required"}
	}
	return ValidateURL(s.Endpoint)
}

// CacheKey returns the raw-feed cache key for this source.
// The key is a hash of the endpoint so re-runs against the same endpoint reuse
// the cached fetch regardless of how the source is named.
func (s Source) CacheKey() string {
	sum := sha256.Sum256([]byte(s.Endpoint))
	return hex.EncodeToString(sum[:])
}
