// Package dispatches serves the admin endpoints for the dispatch ledger and manual
// submissions.
package dispatches

import (
	"context"
	"net/http"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/repository"
)

// Ledger is the part of *dispatch.Pipeline these handlers use.
type Ledger interface {
	ListDispatchRecords(ctx context.Context, filter repository.ListFilter) ([]*entity.DispatchRecord, error)
	GetDispatchRecord(ctx context.Context, entryKey string) (*entity.DispatchRecord, error)
	CountDispatchRecords(ctx context.Context) (int64, error)
	Submit(ctx context.Context, title, link string) (*entity.DispatchRecord, error)
}

// Register installs the dispatch routes on mux.
func Register(mux *http.ServeMux, l Ledger) {
	mux.Handle("GET    /dispatches", ListHandler{l})
	mux.Handle("GET    /dispatches/{key}", GetHandler{l})
	mux.Handle("POST   /dispatches", SubmitHandler{l})
}
