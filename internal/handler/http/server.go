package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"relayfeed/internal/handler/http/auth"
	"relayfeed/internal/handler/http/dispatches"
	"relayfeed/internal/handler/http/pipeline"
	"relayfeed/internal/handler/http/requestid"
	"relayfeed/internal/handler/http/watch"
	"relayfeed/internal/observability/tracing"
)

// PipelineAPI is satisfied by *dispatch.Pipeline.
type PipelineAPI interface {
	pipeline.Pipeline
	dispatches.Ledger
}

// API wires the admin routes and their middleware.
type API struct {
	Pipeline           PipelineAPI
	Watches            watch.Service
	Health             *Health
	JWTSecret          []byte
	RateLimitPerMinute int // 0 disables rate limiting
	TrustedProxies     []netip.Prefix
	MaxBodyBytes       int64
	Logger             *slog.Logger
}

// Handler returns the full admin handler. Probes and /metrics bypass authentication;
// every other route needs a bearer token.
func (a API) Handler() http.Handler {
	mux := http.NewServeMux()
	if a.Health != nil {
		a.Health.Register(mux)
	}
	mux.Handle("GET /metrics", MetricsHandler())
	pipeline.Register(mux, a.Pipeline)
	dispatches.Register(mux, a.Pipeline)
	watch.Register(mux, a.Watches)

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := a.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	mws := []func(http.Handler) http.Handler{
		Recover(logger),
		requestid.Middleware,
		tracing.Middleware,
		Logging(logger),
		MetricsMiddleware,
	}
	if a.RateLimitPerMinute > 0 {
		mws = append(mws, NewRateLimiter(a.RateLimitPerMinute, a.RateLimitPerMinute/6+1, a.TrustedProxies).Middleware)
	}
	mws = append(mws, LimitRequest(maxBody), auth.Authz(a.JWTSecret, nil))
	return Chain(mux, mws...)
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it down
// gracefully within shutdownTimeout. A clean shutdown returns nil.
func Serve(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
