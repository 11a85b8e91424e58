package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"digest-feed/internal/domain/entity"
	"digest-feed/internal/infra/adapter/persistence/postgres"
)

func publishedRows(entries ...entity.PublishedEntry) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "title", "link", "source_name", "body", "published_at",
	})
	for _, e := range entries {
		rows.AddRow(e.ID, e.Title, e.Link, e.SourceName, e.Body, e.PublishedAt)
	}
	return rows
}

func TestPublishedRepo_Load(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := []entity.PublishedEntry{
		{
			ID: "aa11", Title: "Go 1.25 Released", Link: "https://go.dev/blog/go1.25",
			SourceName: "Go Blog", Body: "Release digest.",
			PublishedAt: time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: "bb22", Title: "Scheduling in Kubernetes", Link: "https://example.com/k8s",
			SourceName: "CNCF Blog", Body: "Scheduler digest.",
			PublishedAt: time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC),
		},
	}

	mock.ExpectQuery(`FROM published_entries`).
		WillReturnRows(publishedRows(want...))

	repo := postgres.NewPublishedRepo(db)
	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPublishedRepo_LoadEmpty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM published_entries`).
		WillReturnRows(publishedRows())

	repo := postgres.NewPublishedRepo(db)
	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load = %d entries, want 0", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPublishedRepo_Replace(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	entries := []entity.PublishedEntry{
		{
			ID: "aa11", Title: "Go 1.25 Released", Link: "https://go.dev/blog/go1.25",
			SourceName: "Go Blog", Body: "Release digest.",
			PublishedAt: time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC),
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM published_entries`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO published_entries`))
	prep.ExpectExec().
		WithArgs("aa11", "Go 1.25 Released", "https://go.dev/blog/go1.25",
			"Go Blog", "Release digest.",
			time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := postgres.NewPublishedRepo(db)
	if err := repo.Replace(context.Background(), entries); err != nil {
		t.Fatalf("Replace err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPublishedRepo_ReplaceEmpty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM published_entries`)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO published_entries`))
	mock.ExpectCommit()

	repo := postgres.NewPublishedRepo(db)
	if err := repo.Replace(context.Background(), nil); err != nil {
		t.Fatalf("Replace err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPublishedRepo_ReplaceRollsBackOnInsertFailure(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM published_entries`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO published_entries`))
	prep.ExpectExec().
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	repo := postgres.NewPublishedRepo(db)
	err := repo.Replace(context.Background(), []entity.PublishedEntry{{ID: "aa11"}})
	if err == nil {
		t.Fatal("Replace succeeded despite insert failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPublishedRepo_LoadQueryError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM published_entries`).
		WillReturnError(errors.New("connection refused"))

	repo := postgres.NewPublishedRepo(db)
	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("Load succeeded despite query failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
