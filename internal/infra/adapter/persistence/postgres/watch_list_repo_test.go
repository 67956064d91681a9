package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/infra/adapter/persistence/postgres"
)

/* ──────────────────────────────── 1. Add ──────────────────────────────── */

func TestWatchListRepo_Add(t *testing.T) {
	tests := []struct {
		name      string
		affected  int64
		wantAdded bool
	}{
		{name: "new title", affected: 1, wantAdded: true},
		{name: "duplicate title is a no-op", affected: 0, wantAdded: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, _ := sqlmock.New()
			defer func() { _ = db.Close() }()

			mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO watch_titles`)).
				WithArgs("Show A", "show a", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			repo := postgres.NewWatchListRepo(db)
			added, err := repo.Add(context.Background(), "Show A")
			if err != nil {
				t.Fatalf("Add err=%v", err)
			}
			if added != tt.wantAdded {
				t.Fatalf("Add added=%v want %v", added, tt.wantAdded)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestWatchListRepo_Add_Error(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO watch_titles`).WillReturnError(errors.New("boom"))

	repo := postgres.NewWatchListRepo(db)
	if _, err := repo.Add(context.Background(), "Show A"); err == nil {
		t.Fatal("want error, got nil")
	}
}

/* ──────────────────────────────── 2. Remove ──────────────────────────────── */

func TestWatchListRepo_Remove(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM watch_titles WHERE title_key = $1`)).
		WithArgs("show a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewWatchListRepo(db)
	removed, err := repo.Remove(context.Background(), "SHOW A")
	if err != nil || !removed {
		t.Fatalf("Remove removed=%v err=%v", removed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 3. List ──────────────────────────────── */

func TestWatchListRepo_List(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM watch_titles`)).
		WillReturnRows(sqlmock.NewRows([]string{"title", "created_at"}).
			AddRow("Show A", t1).
			AddRow("show b", t2))

	repo := postgres.NewWatchListRepo(db)
	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List err=%v", err)
	}
	want := []*entity.WatchTitle{
		{Title: "Show A", CreatedAt: t1},
		{Title: "show b", CreatedAt: t2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
