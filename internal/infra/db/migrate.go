package db

import "database/sql"

// MigrateUp creates the published_entries table and its read-order index.
// Idempotent; the worker runs it on every startup.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS published_entries (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    link         TEXT,
    source_name  TEXT,
    body         TEXT,
    published_at TIMESTAMPTZ NOT NULL
)`); err != nil {
		return err
	}

	// Load reads ORDER BY published_at DESC.
	if _, err := db.Exec(`
CREATE INDEX IF NOT EXISTS idx_published_entries_published_at
    ON published_entries(published_at DESC)`); err != nil {
		return err
	}

	return nil
}

// MigrateDown drops the published-entry state. Use with caution: the next
// run republishes from an empty history.
func MigrateDown(db *sql.DB) error {
	_, err := db.Exec(`DROP TABLE IF EXISTS published_entries`)
	return err
}
