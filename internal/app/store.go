// Package app assembles relayfeed's components from a WorkerConfig. The worker and
// relayctl binaries share it so both talk to the same ledger, feed and gateway.
package app

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	pgRepo "relayfeed/internal/infra/adapter/persistence/postgres"
	sqliteRepo "relayfeed/internal/infra/adapter/persistence/sqlite"
	"relayfeed/internal/infra/cache"
	"relayfeed/internal/infra/db"
	"relayfeed/internal/repository"
	"relayfeed/internal/resilience/circuitbreaker"
)

// Store is the opened database with its repositories.
type Store struct {
	DB      *sql.DB
	Dialect db.Dialect
	Breaker *circuitbreaker.DBCircuitBreaker
	Ledger  repository.DispatchLedger
	Watches repository.WatchListRepository

	closers []func() error
}

// OpenStore opens the database for driver, applies the schema and builds the
// repositories behind a circuit breaker.
func OpenStore(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := db.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	database, err := db.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(database, dialect); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	breaker := circuitbreaker.NewDBCircuitBreaker(database)
	s := &Store{DB: database, Dialect: dialect, Breaker: breaker}
	switch dialect {
	case db.DialectPostgres:
		s.Ledger = pgRepo.NewDispatchLedgerRepo(breaker)
		s.Watches = pgRepo.NewWatchListRepo(breaker)
	default:
		s.Ledger = sqliteRepo.NewDispatchLedgerRepo(breaker)
		s.Watches = sqliteRepo.NewWatchListRepo(breaker)
	}
	return s, nil
}

// UseRedisCache puts a Redis set in front of Ledger.Exists. An empty address leaves
// the ledger uncached. It returns whether the cache is active.
func (s *Store) UseRedisCache(ctx context.Context, cfg cache.Config, logger *slog.Logger) (bool, error) {
	if cfg.Addr == "" {
		return false, nil
	}
	client, err := cache.NewClient(ctx, cfg)
	if err != nil {
		return false, err
	}
	s.Ledger = cache.NewCachedLedger(s.Ledger, client, cfg.Key, logger)
	s.closers = append(s.closers, client.Close)
	return true, nil
}

// PingContext checks the database through the breaker.
func (s *Store) PingContext(ctx context.Context) error {
	return s.Breaker.PingContext(ctx)
}

// Close releases the cache client and the database.
func (s *Store) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	errs = append(errs, s.DB.Close())
	return errors.Join(errs...)
}

// NewHTTPClient returns a pooled client that enforces TLS 1.2+. A zero timeout leaves
// per-request deadlines to the caller.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
