// Package cache provides a Redis read-through cache in front of the dispatch ledger.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/repository"
)

// DefaultLedgerKey is the Redis set holding dispatched entry keys.
const DefaultLedgerKey = "relayfeed:dispatched"

// SetClient is the subset of *redis.Client the cache uses.
type SetClient interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// CachedLedger answers Exists from a Redis set before falling back to the
// underlying ledger. Only positive answers are cached: a key, once dispatched,
// stays dispatched. Redis failures degrade to the underlying ledger.
type CachedLedger struct {
	repository.DispatchLedger
	client SetClient
	key    string
	logger *slog.Logger
}

// NewCachedLedger wraps next with a Redis set cache stored under key.
func NewCachedLedger(next repository.DispatchLedger, client SetClient, key string, logger *slog.Logger) *CachedLedger {
	if key == "" {
		key = DefaultLedgerKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLedger{DispatchLedger: next, client: client, key: key, logger: logger}
}

func (c *CachedLedger) Exists(ctx context.Context, entryKey string) (bool, error) {
	hit, err := c.client.SIsMember(ctx, c.key, entryKey).Result()
	if err != nil {
		c.logger.Warn("ledger cache lookup failed",
			slog.String("entry_key", entryKey),
			slog.Any("error", err))
	} else if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return true, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	exists, err := c.DispatchLedger.Exists(ctx, entryKey)
	if err != nil {
		return false, err
	}
	if exists {
		c.remember(ctx, entryKey)
	}
	return exists, nil
}

func (c *CachedLedger) Record(ctx context.Context, rec *entity.DispatchRecord) error {
	err := c.DispatchLedger.Record(ctx, rec)
	if err == nil || errors.Is(err, entity.ErrAlreadyDispatched) {
		c.remember(ctx, rec.EntryKey)
	}
	return err
}

func (c *CachedLedger) remember(ctx context.Context, entryKey string) {
	if err := c.client.SAdd(ctx, c.key, entryKey).Err(); err != nil {
		c.logger.Warn("ledger cache write failed",
			slog.String("entry_key", entryKey),
			slog.Any("error", err))
	}
}
