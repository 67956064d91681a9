// Package feed fetches the release feed using the gofeed library with reliability patterns.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/resilience/circuitbreaker"
	"relayfeed/internal/resilience/retry"
)

// DefaultUserAgent is sent with every feed request.
const DefaultUserAgent = "RelayFeedBot/1.0"

// RSSSource fetches a single RSS/Atom feed URL.
// It includes circuit breaker and retry logic for improved reliability.
type RSSSource struct {
	url            string
	client         *http.Client
	userAgent      string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// Option configures an RSSSource.
type Option func(*RSSSource)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *RSSSource) { s.retryConfig = cfg }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *RSSSource) { s.userAgent = ua }
}

// NewRSSSource creates a source for feedURL using client.
func NewRSSSource(feedURL string, client *http.Client, opts ...Option) *RSSSource {
	s := &RSSSource{
		url:            feedURL,
		client:         client,
		userAgent:      DefaultUserAgent,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the feed URL.
func (s *RSSSource) URL() string { return s.url }

// Fetch retrieves the current feed snapshot in feed order.
func (s *RSSSource) Fetch(ctx context.Context) ([]entity.FeedEntry, error) {
	var entries []entity.FeedEntry

	retryErr := retry.WithBackoff(ctx, s.retryConfig, func() error {
		fetched, err := circuitbreaker.Do(s.circuitBreaker, func() ([]entity.FeedEntry, error) {
			return s.doFetch(ctx)
		})
		if err != nil {
			if circuitbreaker.IsRejected(err) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("service", "feed-fetch"),
					slog.String("url", s.url),
					slog.String("state", s.circuitBreaker.State().String()))
			}
			return err
		}

		entries = fetched
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return entries, nil
}

// doFetch performs the actual feed fetch without retry or circuit breaker.
func (s *RSSSource) doFetch(ctx context.Context) ([]entity.FeedEntry, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = s.userAgent
	fp.Client = s.client

	parsed, err := fp.ParseURLWithContext(s.url, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &retry.HTTPError{StatusCode: httpErr.StatusCode, Message: httpErr.Status}
		}
		return nil, err
	}

	entries := make([]entity.FeedEntry, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		entries = append(entries, toEntry(it))
	}
	return entries, nil
}

func toEntry(it *gofeed.Item) entity.FeedEntry {
	pubAt := time.Now()
	if it.PublishedParsed != nil {
		pubAt = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		pubAt = *it.UpdatedParsed
	}

	id := strings.TrimSpace(it.GUID)
	if id == "" {
		id = strings.TrimSpace(it.Link)
	}

	return entity.FeedEntry{
		Title:       strings.TrimSpace(it.Title),
		SourceLink:  strings.TrimSpace(it.Link),
		EntryID:     id,
		PublishedAt: pubAt,
	}
}
