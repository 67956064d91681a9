// Package watch serves the admin endpoints for the watch list.
package watch

import (
	"context"
	"net/http"

	"relayfeed/internal/domain/entity"
)

// Service is the part of *watchlist.Service these handlers use.
type Service interface {
	Add(ctx context.Context, raw string) (string, bool, error)
	Remove(ctx context.Context, raw string) (bool, error)
	List(ctx context.Context) ([]*entity.WatchTitle, error)
}

// Register installs the watch list routes on mux.
func Register(mux *http.ServeMux, svc Service) {
	mux.Handle("GET    /watches", ListHandler{svc})
	mux.Handle("POST   /watches", AddHandler{svc})
	mux.Handle("DELETE /watches", RemoveHandler{svc})
}
