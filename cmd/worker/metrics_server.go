package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpapi "relayfeed/internal/handler/http"
)

// metricsShutdownTimeout bounds the metrics server's graceful shutdown.
const metricsShutdownTimeout = 5 * time.Second

// metricsHandler serves the unauthenticated operations surface:
//   - GET /metrics - Prometheus metrics endpoint (scraped by Prometheus server)
//   - GET /health, /live, /ready - health report and probes
//   - GET /health/channels - notification channel state with circuit breaker status
//   - GET /health/pipeline - dispatch pipeline state and last pass
func metricsHandler(health *httpapi.Health) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", httpapi.MetricsHandler())
	health.Register(mux)
	return mux
}

// serveMetrics runs the metrics server on port until ctx is cancelled.
func serveMetrics(ctx context.Context, logger *slog.Logger, port int, health *httpapi.Health) error {
	addr := fmt.Sprintf(":%d", port)
	return httpapi.Serve(ctx, addr, metricsHandler(health), metricsShutdownTimeout, logger.With(slog.String("server", "metrics")))
}
