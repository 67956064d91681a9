// Package transcoder submits source links to the remote transcode-and-host service
// and normalizes its replies into dispatch outcomes.
package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/resilience/circuitbreaker"
	"relayfeed/internal/resilience/retry"
)

const (
	// maxErrorBodyLength is how much of a rejected response body ends up in the failure reason.
	maxErrorBodyLength = 200

	// maxResponseBytes bounds how much of any response body is read.
	maxResponseBytes = 1 << 20
)

// Client is the transcode gateway. Submit blocks until the service answers,
// the retry budget is spent, or ctx is cancelled.
type Client struct {
	cfg      Config
	client   *http.Client
	resolver *Resolver
	breaker  *circuitbreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithBreakerConfig replaces the default circuit breaker settings.
func WithBreakerConfig(bc circuitbreaker.Config) Option {
	return func(c *Client) {
		if bc.IsSuccessful == nil {
			bc.IsSuccessful = countsAsSuccess
		}
		c.breaker = circuitbreaker.New(bc)
	}
}

// WithResolver replaces the link resolver.
func WithResolver(r *Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

// NewClient creates a gateway client. Timeouts are applied per attempt from cfg,
// so client should not carry its own overall timeout.
func NewClient(cfg Config, client *http.Client, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transcoder config: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}

	bc := circuitbreaker.TranscoderConfig()
	bc.IsSuccessful = countsAsSuccess

	c := &Client{
		cfg:      cfg,
		client:   client,
		resolver: NewResolver(cfg.DownloadTemplate, cfg.ResolvePage, client, cfg.UserAgent),
		breaker:  circuitbreaker.New(bc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// countsAsSuccess keeps permanent rejections (4xx, bad envelopes) from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil || !retry.IsRetryable(err)
}

// Submit hands title and link to the transcode service and returns the normalized outcome.
//
// A failed probe or an open breaker yields entity.Unavailable without contacting the
// submit endpoint. A cancelled ctx yields entity.Cancelled. Both are deferred; every
// other failure, including one reported in the service's own envelope, is final.
func (c *Client) Submit(ctx context.Context, title, link string) entity.Outcome {
	start := time.Now()
	outcome := c.submit(ctx, title, link)
	submissionDuration.Observe(time.Since(start).Seconds())
	submissionsTotal.WithLabelValues(outcomeLabel(outcome)).Inc()

	logger := slog.With(
		slog.String("service", "transcoder"),
		slog.String("title", title),
		slog.Duration("duration", time.Since(start)),
	)
	if outcome.IsSuccess() {
		logger.Info("transcode submission succeeded", slog.String("artifact_id", outcome.ArtifactID))
	} else {
		logger.Warn("transcode submission failed", slog.String("reason", outcome.Reason))
	}
	return outcome
}

func (c *Client) submit(ctx context.Context, title, link string) entity.Outcome {
	if c.breaker.IsOpen() {
		slog.Warn("transcoder circuit breaker open, deferring submission",
			slog.String("service", "transcoder"),
			slog.String("state", c.breaker.State().String()))
		return entity.Unavailable()
	}

	if err := c.Probe(ctx); err != nil {
		if ctx.Err() != nil {
			return entity.Cancelled()
		}
		slog.Warn("transcoder probe failed", slog.String("service", "transcoder"), slog.Any("error", err))
		return entity.Unavailable()
	}

	download, err := c.resolver.Resolve(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return entity.Cancelled()
		}
		slog.Warn("source link could not be resolved",
			slog.String("link", link),
			slog.Any("error", err))
		return entity.Failed(entity.ReasonUnresolvableLink)
	}

	var outcome entity.Outcome
	err = retry.WithBackoff(ctx, c.cfg.Retry, func() error {
		res, err := circuitbreaker.Do(c.breaker, func() (entity.Outcome, error) {
			return c.doSubmit(ctx, title, download)
		})
		if err != nil {
			return err
		}
		outcome = res
		return nil
	})
	if err == nil {
		return outcome
	}
	return outcomeFromError(ctx, err)
}

// Probe checks that the service is up. It returns nil when no probe URL is configured.
func (c *Client) Probe(ctx context.Context) error {
	if c.cfg.ProbeURL == "" {
		return nil
	}

	timeout := c.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.cfg.ProbeURL, nil)
	if err != nil {
		probesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("create probe request: %w", err)
	}
	c.setCommonHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		probesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		probesTotal.WithLabelValues("down").Inc()
		return fmt.Errorf("%w: probe status %d", ErrServiceUnavailable, resp.StatusCode)
	}
	probesTotal.WithLabelValues("up").Inc()
	return nil
}

// doSubmit performs a single submission attempt without retry or circuit breaker.
func (c *Client) doSubmit(ctx context.Context, title, download string) (entity.Outcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("title", title)
	form.Set("torrent", download)
	form.Set("crf", strconv.Itoa(c.cfg.CRF))
	form.Set("preset", c.cfg.Preset)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		attemptsTotal.WithLabelValues("error").Inc()
		return entity.Outcome{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	c.setCommonHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		attemptsTotal.WithLabelValues("transport_error").Inc()
		if ctx.Err() != nil {
			return entity.Outcome{}, ctx.Err()
		}
		return entity.Outcome{}, retry.Transient(fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		attemptsTotal.WithLabelValues("transport_error").Inc()
		if ctx.Err() != nil {
			return entity.Outcome{}, ctx.Err()
		}
		return entity.Outcome{}, retry.Transient(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		attemptsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return entity.Outcome{}, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    truncate(strings.TrimSpace(string(body)), maxErrorBodyLength),
		}
	}

	outcome, err := normalizeEnvelope(body)
	if err != nil {
		attemptsTotal.WithLabelValues("invalid").Inc()
		slog.Warn("transcoder returned an unrecognized body",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncate(string(body), maxErrorBodyLength)))
		return entity.Outcome{}, err
	}
	attemptsTotal.WithLabelValues("ok").Inc()
	return outcome, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
}

// outcomeFromError maps the error left after retries onto a failure outcome.
func outcomeFromError(ctx context.Context, err error) entity.Outcome {
	var httpErr *retry.HTTPError
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return entity.Cancelled()
	case errors.Is(err, retry.ErrMaxAttemptsExceeded):
		return entity.Failed(entity.ReasonExhaustedRetries)
	case errors.As(err, &httpErr):
		return entity.PermanentFailure(httpErr.StatusCode, httpErr.Message)
	case errors.Is(err, ErrInvalidResponse):
		return entity.Failed(entity.ReasonInvalidResponse)
	case circuitbreaker.IsRejected(err):
		return entity.Unavailable()
	default:
		return entity.Failed(err.Error())
	}
}

func outcomeLabel(o entity.Outcome) string {
	switch {
	case o.IsSuccess():
		return "success"
	case o.IsDeferred():
		return "deferred"
	default:
		return "failed"
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
