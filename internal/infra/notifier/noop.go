package notifier

import (
	"context"

	"relayfeed/internal/domain/entity"
)

// NoOpNotifier accepts and discards every record. Disabled webhook channels are built
// on it so the fan-out can call NotifyDispatch unconditionally.
type NoOpNotifier struct{}

// NewNoOpNotifier returns a NoOpNotifier.
func NewNoOpNotifier() NoOpNotifier { return NoOpNotifier{} }

// NotifyDispatch drops rec.
func (NoOpNotifier) NotifyDispatch(context.Context, *entity.DispatchRecord) error { return nil }
