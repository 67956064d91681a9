// Package pipeline serves the admin endpoints that drive the dispatch pipeline.
package pipeline

import (
	"context"
	"net/http"

	dispatchUC "relayfeed/internal/usecase/dispatch"
)

// Pipeline is the part of *dispatch.Pipeline these handlers drive.
type Pipeline interface {
	Start(ctx context.Context) dispatchUC.StartResult
	Stop(ctx context.Context) dispatchUC.StopResult
	Status() dispatchUC.Status
	SetEnabled(enabled bool)
	RunPass(ctx context.Context) (*dispatchUC.PassStats, error)
}

// Register installs the pipeline routes on mux.
func Register(mux *http.ServeMux, p Pipeline) {
	mux.Handle("GET    /pipeline", StatusHandler{p})
	mux.Handle("POST   /pipeline/start", StartHandler{p})
	mux.Handle("POST   /pipeline/stop", StopHandler{p})
	mux.Handle("POST   /pipeline/run", RunHandler{p})
	mux.Handle("PUT    /pipeline/enabled", EnabledHandler{p})
}
