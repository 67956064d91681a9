package entity

import "errors"

var (
	// ErrNotFound is returned by lookups (ledger Get, watch title removal) that match nothing.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput is matched by every *ValidationError through errors.Is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyDispatched means the ledger already holds a record for the entry key.
	// The existing record is never overwritten.
	ErrAlreadyDispatched = errors.New("entry already dispatched")

	// ErrEntryKeyUnavailable means neither the source link nor the feed entry id
	// yields a usable entry key.
	ErrEntryKeyUnavailable = errors.New("entry key unavailable")
)

// ValidationError reports which operator-supplied field was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return "invalid " + e.Field + ": " + e.Message
}

// Unwrap lets errors.Is(err, ErrInvalidInput) classify validation failures.
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
