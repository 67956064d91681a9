package repository

import (
	"context"

	"relayfeed/internal/domain/entity"
)

// DefaultListLimit is applied when a ListFilter carries no limit.
const DefaultListLimit = 50

// MaxListLimit caps a single ledger listing.
const MaxListLimit = 1000

// ListFilter narrows a ledger listing.
type ListFilter struct {
	Outcome entity.OutcomeStatus // empty matches every outcome
	Limit   int
}

// EffectiveLimit clamps Limit into [1, MaxListLimit], defaulting to DefaultListLimit.
func (f ListFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// DispatchLedger is the persistent, write-once record of dispatched entries.
type DispatchLedger interface {
	Exists(ctx context.Context, entryKey string) (bool, error)
	// Record inserts rec. It returns entity.ErrAlreadyDispatched when a record with the
	// same entry key exists; the existing record is left untouched.
	Record(ctx context.Context, rec *entity.DispatchRecord) error
	// Get returns entity.ErrNotFound when no record exists.
	Get(ctx context.Context, entryKey string) (*entity.DispatchRecord, error)
	// List returns records newest first.
	List(ctx context.Context, filter ListFilter) ([]*entity.DispatchRecord, error)
	Count(ctx context.Context) (int64, error)
}
