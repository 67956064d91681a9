package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/repository"
)

var recordColumns = []string{
	"entry_key", "title", "matched_title", "source_link", "submitted_at",
	"outcome", "artifact_ref", "shareable_link", "failure_reason",
}

type DispatchLedgerRepo struct{ db DBTX }

func NewDispatchLedgerRepo(db DBTX) repository.DispatchLedger {
	return &DispatchLedgerRepo{db: db}
}

func scanRecord(scan func(dest ...any) error) (*entity.DispatchRecord, error) {
	var rec entity.DispatchRecord
	var outcome string
	if err := scan(
		&rec.EntryKey, &rec.Title, &rec.MatchedTitle, &rec.SourceLink, &rec.SubmittedAt,
		&outcome, &rec.ArtifactRef, &rec.ShareableLink, &rec.FailureReason,
	); err != nil {
		return nil, err
	}
	rec.Outcome = entity.OutcomeStatus(outcome)
	rec.SubmittedAt = rec.SubmittedAt.UTC()
	return &rec, nil
}

func (repo *DispatchLedgerRepo) Exists(ctx context.Context, entryKey string) (bool, error) {
	const query = `SELECT 1 FROM dispatch_records WHERE entry_key = ? LIMIT 1`
	var one int
	err := repo.db.QueryRowContext(ctx, query, entryKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Exists: QueryRowContext: %w", err)
	}
	return true, nil
}

func (repo *DispatchLedgerRepo) Record(ctx context.Context, rec *entity.DispatchRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	const query = `
INSERT INTO dispatch_records
    (entry_key, title, matched_title, source_link, submitted_at, outcome, artifact_ref, shareable_link, failure_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (entry_key) DO NOTHING`
	res, err := repo.db.ExecContext(ctx, query,
		rec.EntryKey, rec.Title, rec.MatchedTitle, rec.SourceLink, rec.SubmittedAt.UTC(),
		string(rec.Outcome), rec.ArtifactRef, rec.ShareableLink, rec.FailureReason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Record: %w", entity.ErrAlreadyDispatched)
		}
		return fmt.Errorf("Record: ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Record: RowsAffected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Record: %w", entity.ErrAlreadyDispatched)
	}
	return nil
}

func (repo *DispatchLedgerRepo) Get(ctx context.Context, entryKey string) (*entity.DispatchRecord, error) {
	query, args, err := qb.Select(recordColumns...).
		From("dispatch_records").
		Where(sq.Eq{"entry_key": entryKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("Get: build query: %w", err)
	}
	rec, err := scanRecord(repo.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: QueryRowContext: %w", err)
	}
	return rec, nil
}

func (repo *DispatchLedgerRepo) List(ctx context.Context, filter repository.ListFilter) ([]*entity.DispatchRecord, error) {
	builder := qb.Select(recordColumns...).
		From("dispatch_records").
		OrderBy("submitted_at DESC", "entry_key DESC").
		Limit(uint64(filter.EffectiveLimit()))
	if filter.Outcome != "" {
		builder = builder.Where(sq.Eq{"outcome": string(filter.Outcome)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("List: build query: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*entity.DispatchRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return records, nil
}

func (repo *DispatchLedgerRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatch_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: QueryRowContext: %w", err)
	}
	return n, nil
}
