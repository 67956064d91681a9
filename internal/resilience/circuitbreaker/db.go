package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DBConfig trips after five failed statements in a row and retries after 30s.
// sql.ErrNoRows and cancellation (Stop during a pass) are not database failures.
func DBConfig() Config {
	return Config{
		Name:                "database",
		MaxRequests:         3,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, sql.ErrNoRows) ||
				errors.Is(err, context.Canceled)
		},
	}
}

// DBCircuitBreaker is the ledger and watch-list pool seen through a breaker. It
// satisfies the repositories' DBTX interface, so an unreachable database fails each
// entry fast instead of stalling the pass on connection timeouts.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// NewDBCircuitBreaker wraps db with DBConfig, adjusted by opts.
func NewDBCircuitBreaker(db *sql.DB, opts ...func(*Config)) *DBCircuitBreaker {
	cfg := DBConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

// QueryContext runs a query through the breaker.
func (d *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return Do(d.cb, func() (*sql.Rows, error) {
		return d.db.QueryContext(ctx, query, args...)
	})
}

// ExecContext runs a statement through the breaker.
func (d *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return Do(d.cb, func() (sql.Result, error) {
		return d.db.ExecContext(ctx, query, args...)
	})
}

// QueryRowContext bypasses the breaker: the error only surfaces from Scan.
func (d *DBCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// PingContext checks the connection through the breaker. Readiness probes use it,
// so an open breaker reports the database as down.
func (d *DBCircuitBreaker) PingContext(ctx context.Context) error {
	_, err := Do(d.cb, func() (struct{}, error) {
		return struct{}{}, d.db.PingContext(ctx)
	})
	return err
}

// IsOpen reports whether statements are being refused.
func (d *DBCircuitBreaker) IsOpen() bool {
	return d.cb.IsOpen()
}

// DB returns the unguarded pool for migrations and pool statistics.
func (d *DBCircuitBreaker) DB() *sql.DB {
	return d.db
}
