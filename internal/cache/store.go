// Package cache implements the durable cache shared by pipeline runs.
//
// Records live one JSON file per (namespace, key) under a cache directory, so
// state survives process restarts without a daemon or database. Each record
// carries its own envelope with the write instant and the TTL it was written
// under; freshness is evaluated from the envelope, never from file metadata.
//
// The cache is strictly an optimization layer: every failure inside it is
// logged and absorbed, and callers proceed as if the cache were empty.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"digest-feed/internal/observability/metrics"
)

// Namespace identifies a cache partition with its own TTL.
type Namespace string

const (
	// NamespaceFeeds holds raw feed fetch results keyed by source cache key.
	NamespaceFeeds Namespace = "feeds"

	// NamespaceDigests holds derived digests keyed by entry fingerprint.
	NamespaceDigests Namespace = "digests"
)

// record is the on-disk envelope for one cached value.
type record struct {
	Key      string          `json:"key"`
	StoredAt time.Time       `json:"stored_at"`
	TTL      time.Duration   `json:"ttl"`
	Payload  json.RawMessage `json:"payload"`
}

// Store is a file-backed TTL cache with independent namespaces.
//
// A namespace whose TTL is zero or negative is disabled: Get always reports
// absent and Put is a no-op, so callers need no "is caching on" branch.
type Store struct {
	dir    string
	ttls   map[Namespace]time.Duration
	logger *slog.Logger

	now func() time.Time
}

// NewStore creates a cache store rooted at dir. The namespace directory for a
// record is created lazily on first write.
func NewStore(dir string, rawTTL, digestTTL time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir: dir,
		ttls: map[Namespace]time.Duration{
			NamespaceFeeds:   rawTTL,
			NamespaceDigests: digestTTL,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Get loads the cached value for (ns, key) into out and reports whether a
// fresh record was found. Absence, expiry, disabled namespaces and every kind
// of read or decode failure all report false; decode failures additionally
// delete the record so a corrupt file cannot fail again on every later run.
func (s *Store) Get(ns Namespace, key string, out any) bool {
	ttl, ok := s.ttls[ns]
	if !ok || ttl <= 0 {
		// Disabled namespaces are not lookups and stay out of the hit rate.
		return false
	}
	hit := s.lookup(ns, key, out, ttl)
	metrics.RecordCacheRequest(string(ns), hit)
	return hit
}

func (s *Store) lookup(ns Namespace, key string, out any, ttl time.Duration) bool {
	if !validKey(key) {
		s.logger.Warn("cache key rejected",
			slog.String("namespace", string(ns)),
			slog.String("key", key))
		return false
	}

	path := s.path(ns, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache read failed",
				slog.String("namespace", string(ns)),
				slog.String("key", key),
				slog.Any("error", err))
		}
		return false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.deleteCorrupt(ns, key, path, err)
		return false
	}

	// Records written under an older envelope without a TTL fall back to the
	// namespace TTL.
	effectiveTTL := rec.TTL
	if effectiveTTL <= 0 {
		effectiveTTL = ttl
	}
	if s.now().Sub(rec.StoredAt) > effectiveTTL {
		return false
	}

	if err := json.Unmarshal(rec.Payload, out); err != nil {
		s.deleteCorrupt(ns, key, path, err)
		return false
	}
	return true
}

// Put stores value under (ns, key), overwriting any existing record.
// The write goes through a temp file and rename so a concurrent reader never
// observes a torn record. Failures are logged and absorbed.
func (s *Store) Put(ns Namespace, key string, value any) {
	ttl, ok := s.ttls[ns]
	if !ok || ttl <= 0 {
		return
	}
	if !validKey(key) {
		s.logger.Warn("cache key rejected",
			slog.String("namespace", string(ns)),
			slog.String("key", key))
		return
	}
	metrics.RecordCacheWrite(string(ns), s.write(ns, key, value, ttl))
}

func (s *Store) write(ns Namespace, key string, value any, ttl time.Duration) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed",
			slog.String("namespace", string(ns)),
			slog.String("key", key),
			slog.Any("error", err))
		return false
	}

	rec := record{
		Key:      key,
		StoredAt: s.now(),
		TTL:      ttl,
		Payload:  payload,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("cache encode failed",
			slog.String("namespace", string(ns)),
			slog.String("key", key),
			slog.Any("error", err))
		return false
	}

	nsDir := filepath.Join(s.dir, string(ns))
	if err := os.MkdirAll(nsDir, 0o755); err != nil {
		s.logger.Warn("cache dir create failed",
			slog.String("namespace", string(ns)),
			slog.Any("error", err))
		return false
	}

	tmp, err := os.CreateTemp(nsDir, key+".tmp-*")
	if err != nil {
		s.logger.Warn("cache write failed",
			slog.String("namespace", string(ns)),
			slog.String("key", key),
			slog.Any("error", err))
		return false
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Rename(tmpName, s.path(ns, key))
	}
	if writeErr != nil {
		s.logger.Warn("cache write failed",
			slog.String("namespace", string(ns)),
			slog.String("key", key),
			slog.Any("error", writeErr))
		_ = os.Remove(tmpName)
		return false
	}
	return true
}

func (s *Store) path(ns Namespace, key string) string {
	return filepath.Join(s.dir, string(ns), key+".json")
}

func (s *Store) deleteCorrupt(ns Namespace, key, path string, cause error) {
	s.logger.Warn("deleting corrupt cache record",
		slog.String("namespace", string(ns)),
		slog.String("key", key),
		slog.Any("error", cause))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("corrupt cache record delete failed",
			slog.String("namespace", string(ns)),
			slog.String("key", key),
			slog.Any("error", err))
	}
}

// validKey rejects keys that could escape the namespace directory. Production
// keys are hex digests; anything with a separator or relative component is a
// caller bug, reported as a miss rather than a panic.
func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`)
}
