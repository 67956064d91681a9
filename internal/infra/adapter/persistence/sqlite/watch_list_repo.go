package sqlite

import (
	"context"
	"fmt"
	"time"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/repository"
)

type WatchListRepo struct{ db DBTX }

func NewWatchListRepo(db DBTX) repository.WatchListRepository {
	return &WatchListRepo{db: db}
}

func (repo *WatchListRepo) Add(ctx context.Context, title string) (bool, error) {
	const query = `
INSERT INTO watch_titles (title, title_key, created_at)
VALUES (?, ?, ?)
ON CONFLICT (title_key) DO NOTHING`
	res, err := repo.db.ExecContext(ctx, query, title, entity.FoldTitle(title), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("Add: ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Add: RowsAffected: %w", err)
	}
	return n > 0, nil
}

func (repo *WatchListRepo) Remove(ctx context.Context, title string) (bool, error) {
	const query = `DELETE FROM watch_titles WHERE title_key = ?`
	res, err := repo.db.ExecContext(ctx, query, entity.FoldTitle(title))
	if err != nil {
		return false, fmt.Errorf("Remove: ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Remove: RowsAffected: %w", err)
	}
	return n > 0, nil
}

func (repo *WatchListRepo) List(ctx context.Context) ([]*entity.WatchTitle, error) {
	const query = `
SELECT
    title,
    created_at
FROM watch_titles
ORDER BY id ASC
`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	titles := make([]*entity.WatchTitle, 0, 16)
	for rows.Next() {
		var w entity.WatchTitle
		if err := rows.Scan(&w.Title, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		titles = append(titles, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return titles, nil
}
