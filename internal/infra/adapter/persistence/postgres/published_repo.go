package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"digest-feed/internal/domain/entity"
	"digest-feed/internal/observability/metrics"
	"digest-feed/internal/repository"
	"digest-feed/internal/resilience/circuitbreaker"
)

// PublishedRepo stores published entries in the published_entries table.
// Every statement runs behind the database circuit breaker, so a dead
// Postgres fails the publish step fast instead of stalling the run behind
// connection timeouts.
type PublishedRepo struct {
	db *circuitbreaker.DBCircuitBreaker
}

func NewPublishedRepo(db *sql.DB) repository.PublishedRepository {
	return &PublishedRepo{db: circuitbreaker.NewDBCircuitBreaker(db)}
}

func (repo *PublishedRepo) Load(ctx context.Context) ([]entity.PublishedEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("load", time.Since(start)) }()

	const query = `
SELECT id, title, link, source_name, body, published_at
FROM published_entries
ORDER BY published_at DESC, id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]entity.PublishedEntry, 0, 64)
	for rows.Next() {
		var e entity.PublishedEntry
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Link, &e.SourceName, &e.Body, &e.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Replace swaps the table contents inside one transaction: readers observe
// either the previous state or the new one, never the gap between the
// delete and the inserts.
func (repo *PublishedRepo) Replace(ctx context.Context, entries []entity.PublishedEntry) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("replace", time.Since(start)) }()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Replace: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM published_entries`); err != nil {
		return fmt.Errorf("Replace: clear: %w", err)
	}

	const insert = `
INSERT INTO published_entries (id, title, link, source_name, body, published_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("Replace: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Title, e.Link, e.SourceName, e.Body, e.PublishedAt,
		); err != nil {
			return fmt.Errorf("Replace: insert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Replace: commit: %w", err)
	}
	return nil
}
