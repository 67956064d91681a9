package dispatches_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/handler/http/dispatches"
	"relayfeed/internal/repository"
	dispatchUC "relayfeed/internal/usecase/dispatch"
)

/*──────────────────────── インメモリスタブ ────────────────────────*/

type stubLedger struct {
	records    []*entity.DispatchRecord
	lastFilter repository.ListFilter
	submitRec  *entity.DispatchRecord
	submitErr  error
	listErr    error
}

func (s *stubLedger) ListDispatchRecords(_ context.Context, f repository.ListFilter) ([]*entity.DispatchRecord, error) {
	s.lastFilter = f
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*entity.DispatchRecord
	for _, r := range s.records {
		if f.Outcome == "" || r.Outcome == f.Outcome {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubLedger) GetDispatchRecord(_ context.Context, key string) (*entity.DispatchRecord, error) {
	for _, r := range s.records {
		if r.EntryKey == key {
			return r, nil
		}
	}
	return nil, fmt.Errorf("get dispatch record: %w", entity.ErrNotFound)
}

func (s *stubLedger) CountDispatchRecords(context.Context) (int64, error) {
	return int64(len(s.records)), nil
}

func (s *stubLedger) Submit(_ context.Context, _, link string) (*entity.DispatchRecord, error) {
	if err := entity.ValidateSourceLink(link); err != nil {
		return nil, err
	}
	return s.submitRec, s.submitErr
}

var at = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func fixture() *stubLedger {
	return &stubLedger{records: []*entity.DispatchRecord{
		{EntryKey: "100", Title: "Show 01", MatchedTitle: "Show", SourceLink: "https://nyaa.si/view/100",
			SubmittedAt: at, Outcome: entity.OutcomeSuccess, ArtifactRef: "art-1", ShareableLink: "https://t.me/relay_bot?start=art-1"},
		{EntryKey: "101", Title: "Show 02", MatchedTitle: "Show", SourceLink: "https://nyaa.si/view/101",
			SubmittedAt: at, Outcome: entity.OutcomeFailed, FailureReason: "exhausted retries"},
	}}
}

func serve(l dispatches.Ledger, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	dispatches.Register(mux, l)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

/*──────────────────────── テストケース ────────────────────────*/

func TestList(t *testing.T) {
	l := fixture()

	rec := serve(l, http.MethodGet, "/dispatches?outcome=failed&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out dispatches.ListDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, "101", out.Items[0].EntryKey)
	assert.Equal(t, "exhausted retries", out.Items[0].FailureReason)
	assert.Equal(t, int64(2), out.Total)
	assert.Equal(t, repository.ListFilter{Outcome: entity.OutcomeFailed, Limit: 5}, l.lastFilter)
}

func TestList_BadFilter(t *testing.T) {
	for _, target := range []string{"/dispatches?outcome=pending", "/dispatches?limit=zero", "/dispatches?limit=-1"} {
		rec := serve(fixture(), http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestList_StorageError(t *testing.T) {
	rec := serve(&stubLedger{listErr: errors.New("sqlite: database is locked")}, http.MethodGet, "/dispatches", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sqlite")
}

func TestGet(t *testing.T) {
	rec := serve(fixture(), http.MethodGet, "/dispatches/100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dto dispatches.DTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	assert.Equal(t, "art-1", dto.ArtifactRef)
	assert.True(t, dto.SubmittedAt.Equal(at))

	rec = serve(fixture(), http.MethodGet, "/dispatches/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmit(t *testing.T) {
	ok := &entity.DispatchRecord{EntryKey: "magnet", Outcome: entity.OutcomeSuccess, ArtifactRef: "a"}
	tests := []struct {
		name     string
		ledger   *stubLedger
		body     string
		wantCode int
		wantBody string
	}{
		{"recorded", &stubLedger{submitRec: ok}, `{"link":"https://example.org/a.torrent"}`, http.StatusCreated, `"entry_key":"magnet"`},
		{"already dispatched", &stubLedger{submitRec: ok, submitErr: entity.ErrAlreadyDispatched}, `{"link":"https://example.org/a.torrent"}`, http.StatusConflict, `"entry_key":"magnet"`},
		{"deferred", &stubLedger{submitErr: fmt.Errorf("%w: service unavailable", dispatchUC.ErrDispatchDeferred)}, `{"link":"https://example.org/a.torrent"}`, http.StatusServiceUnavailable, "Service Unavailable"},
		{"invalid link", &stubLedger{}, `{"link":"ftp://example.org/a"}`, http.StatusBadRequest, "scheme"},
		{"missing link", &stubLedger{}, `{"title":"x"}`, http.StatusBadRequest, "link is required"},
		{"malformed", &stubLedger{}, `nope`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.ledger, http.MethodPost, "/dispatches", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
