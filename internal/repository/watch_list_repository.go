package repository

import (
	"context"

	"relayfeed/internal/domain/entity"
)

// WatchListRepository stores the operator's watch titles.
// List returns titles in insertion order, which is the order matching is evaluated in.
type WatchListRepository interface {
	// Add stores title. Adding a title that already exists (case-insensitively) is a no-op
	// and reports added=false.
	Add(ctx context.Context, title string) (added bool, err error)
	// Remove deletes title, matched case-insensitively. Removing an absent title reports removed=false.
	Remove(ctx context.Context, title string) (removed bool, err error)
	List(ctx context.Context) ([]*entity.WatchTitle, error)
}
