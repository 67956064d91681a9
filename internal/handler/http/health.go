// Package http assembles the admin HTTP surface: middleware, health probes, metrics
// and the pipeline, watch list and dispatch ledger handlers.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"relayfeed/internal/usecase/dispatch"
	"relayfeed/internal/usecase/notify"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one health check.
type CheckStatus struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Pinger is satisfied by *sql.DB and *redis.Client wrappers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

// PipelineStatus reports the dispatch pipeline's state.
type PipelineStatus interface {
	Status() dispatch.Status
}

// ChannelHealth reports notification channel state.
type ChannelHealth interface {
	GetChannelHealth() []notify.ChannelHealthStatus
}

// Health serves the liveness, readiness and detailed health endpoints.
//
// The ledger database is the only hard dependency: when it fails to ping /health answers
// 503. Optional dependencies (cache, transcode service) and a stopped pipeline only
// degrade the report.
type Health struct {
	Version  string
	Ledger   Pinger
	Optional map[string]Pinger
	Pipeline PipelineStatus
	Channels ChannelHealth
	Logger   *slog.Logger

	ready atomic.Bool
}

// SetReady flips the /ready probe.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
	h.logger().Info("readiness changed", slog.Bool("ready", ready))
}

func (h *Health) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Register installs the probe routes on mux.
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.serveHealth)
	mux.HandleFunc("GET /live", h.serveLive)
	mux.HandleFunc("GET /ready", h.serveReady)
	mux.HandleFunc("GET /health/channels", h.serveChannels)
	mux.HandleFunc("GET /health/pipeline", h.servePipeline)
}

func (h *Health) serveLive(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Health) serveReady(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Health) serveHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	overall := statusHealthy

	if h.Ledger == nil {
		checks["ledger"] = CheckStatus{Status: statusUnhealthy, Message: "not configured"}
		overall = statusUnhealthy
	} else {
		checks["ledger"] = ping(ctx, h.Ledger)
		if checks["ledger"].Status != statusHealthy {
			overall = statusUnhealthy
		}
	}

	for name, p := range h.Optional {
		c := ping(ctx, p)
		if c.Status != statusHealthy {
			c.Status = statusDegraded
			if overall == statusHealthy {
				overall = statusDegraded
			}
		}
		checks[name] = c
	}

	if h.Pipeline != nil {
		st := h.Pipeline.Status()
		c := CheckStatus{
			Status: statusHealthy,
			Details: map[string]interface{}{
				"running": st.Running,
				"enabled": st.Enabled,
				"state":   st.State,
			},
		}
		if st.LastPassError != "" {
			c.Message = "last pass failed"
			c.Status = statusDegraded
		}
		if c.Status != statusHealthy && overall == statusHealthy {
			overall = statusDegraded
		}
		checks["pipeline"] = c
	}

	code := http.StatusOK
	if overall == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.writeJSON(w, code, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func (h *Health) serveChannels(w http.ResponseWriter, _ *http.Request) {
	if h.Channels == nil {
		h.writeJSON(w, http.StatusOK, []notify.ChannelHealthStatus{})
		return
	}
	h.writeJSON(w, http.StatusOK, h.Channels.GetChannelHealth())
}

func (h *Health) servePipeline(w http.ResponseWriter, _ *http.Request) {
	if h.Pipeline == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not configured"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.Pipeline.Status())
}

func (h *Health) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger().Error("health: encode response", slog.Any("error", err))
	}
}

func ping(ctx context.Context, p Pinger) CheckStatus {
	start := time.Now()
	if err := p.PingContext(ctx); err != nil {
		return CheckStatus{Status: statusUnhealthy, Message: "ping failed"}
	}
	return CheckStatus{
		Status:  statusHealthy,
		Details: map[string]interface{}{"latency_ms": time.Since(start).Milliseconds()},
	}
}
