package cache

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T, rawTTL, digestTTL time.Duration) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewStore(t.TempDir(), rawTTL, digestTTL, logger)
}

func TestStore_PutGet_Roundtrip(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	in := testPayload{Title: "Release Notes", Count: 3}
	store.Put(NamespaceFeeds, "abc123", in)

	var out testPayload
	ok := store.Get(NamespaceFeeds, "abc123", &out)

	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestStore_Get_Missing(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	var out testPayload
	assert.False(t, store.Get(NamespaceFeeds, "never-written", &out))
}

func TestStore_Get_Expired(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	store.Put(NamespaceFeeds, "abc123", testPayload{Title: "stale"})

	// Advance the clock past the TTL.
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	var out testPayload
	assert.False(t, store.Get(NamespaceFeeds, "abc123", &out))
}

func TestStore_Get_FreshWithinTTL(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	store.Put(NamespaceFeeds, "abc123", testPayload{Title: "fresh"})

	store.now = func() time.Time { return time.Now().Add(30 * time.Minute) }

	var out testPayload
	assert.True(t, store.Get(NamespaceFeeds, "abc123", &out))
}

func TestStore_ExpiryBoundary(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	storedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return storedAt }
	store.Put(NamespaceFeeds, "abc123", testPayload{Title: "boundary"})

	var out testPayload

	// One second inside the TTL the record is still served.
	store.now = func() time.Time { return storedAt.Add(time.Hour - time.Second) }
	assert.True(t, store.Get(NamespaceFeeds, "abc123", &out))

	// One second past the TTL it reads as absent.
	store.now = func() time.Time { return storedAt.Add(time.Hour + time.Second) }
	assert.False(t, store.Get(NamespaceFeeds, "abc123", &out))
}

func TestStore_DisabledNamespace(t *testing.T) {
	store := newTestStore(t, 0, -time.Second)

	store.Put(NamespaceFeeds, "abc123", testPayload{Title: "ignored"})
	store.Put(NamespaceDigests, "def456", testPayload{Title: "ignored"})

	var out testPayload
	assert.False(t, store.Get(NamespaceFeeds, "abc123", &out))
	assert.False(t, store.Get(NamespaceDigests, "def456", &out))

	// No record files should exist at all.
	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_IndependentNamespaceTTLs(t *testing.T) {
	store := newTestStore(t, time.Minute, time.Hour)

	store.Put(NamespaceFeeds, "key", testPayload{Title: "raw"})
	store.Put(NamespaceDigests, "key", testPayload{Title: "derived"})

	// 30 minutes later the raw record is expired, the digest record is not.
	store.now = func() time.Time { return time.Now().Add(30 * time.Minute) }

	var out testPayload
	assert.False(t, store.Get(NamespaceFeeds, "key", &out))
	require.True(t, store.Get(NamespaceDigests, "key", &out))
	assert.Equal(t, "derived", out.Title)
}

func TestStore_NamespaceIsolation(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	store.Put(NamespaceFeeds, "shared-key", testPayload{Title: "feeds"})
	store.Put(NamespaceDigests, "shared-key", testPayload{Title: "digests"})

	var feeds, digests testPayload
	require.True(t, store.Get(NamespaceFeeds, "shared-key", &feeds))
	require.True(t, store.Get(NamespaceDigests, "shared-key", &digests))

	assert.Equal(t, "feeds", feeds.Title)
	assert.Equal(t, "digests", digests.Title)
}

func TestStore_Put_Overwrites(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	store.Put(NamespaceDigests, "fp", testPayload{Title: "first", Count: 1})
	store.Put(NamespaceDigests, "fp", testPayload{Title: "second", Count: 2})

	var out testPayload
	require.True(t, store.Get(NamespaceDigests, "fp", &out))
	assert.Equal(t, "second", out.Title)
	assert.Equal(t, 2, out.Count)
}

func TestStore_CorruptRecordDeleted(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	store.Put(NamespaceFeeds, "abc123", testPayload{Title: "good"})

	path := store.path(NamespaceFeeds, "abc123")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var out testPayload
	assert.False(t, store.Get(NamespaceFeeds, "abc123", &out))

	// The corrupt file must be gone so it cannot fail again next run.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_CorruptPayloadDeleted(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	// Valid envelope, payload that cannot decode into testPayload.
	envelope := `{"key":"abc123","stored_at":"` + time.Now().Format(time.RFC3339) + `","ttl":3600000000000,"payload":{"count":"not-a-number"}}`
	nsDir := filepath.Join(store.dir, string(NamespaceFeeds))
	require.NoError(t, os.MkdirAll(nsDir, 0o755))
	path := store.path(NamespaceFeeds, "abc123")
	require.NoError(t, os.WriteFile(path, []byte(envelope), 0o644))

	var out testPayload
	assert.False(t, store.Get(NamespaceFeeds, "abc123", &out))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	first := NewStore(dir, time.Hour, time.Hour, logger)
	first.Put(NamespaceDigests, "fp", testPayload{Title: "persisted"})

	// A brand-new store over the same directory sees the record.
	second := NewStore(dir, time.Hour, time.Hour, logger)

	var out testPayload
	require.True(t, second.Get(NamespaceDigests, "fp", &out))
	assert.Equal(t, "persisted", out.Title)
}

func TestStore_RejectsUnsafeKeys(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	unsafe := []string{"", ".", "..", "../escape", "a/b", `a\b`}
	for _, key := range unsafe {
		store.Put(NamespaceFeeds, key, testPayload{Title: "nope"})

		var out testPayload
		assert.False(t, store.Get(NamespaceFeeds, key, &out), "key %q should be rejected", key)
	}

	// Nothing outside the cache dir, and nothing inside it either.
	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	for _, e := range entries {
		sub, err := os.ReadDir(filepath.Join(store.dir, e.Name()))
		require.NoError(t, err)
		assert.Empty(t, sub)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := newTestStore(t, time.Hour, time.Hour)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 20; j++ {
				store.Put(NamespaceDigests, "contested", testPayload{Title: "value", Count: j})

				var out testPayload
				if store.Get(NamespaceDigests, "contested", &out) {
					// A reader must never observe a torn record.
					if out.Title != "value" {
						t.Errorf("torn read: %+v", out)
						return
					}
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
