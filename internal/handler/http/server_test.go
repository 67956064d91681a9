package http

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/handler/http/auth"
	"relayfeed/internal/repository"
	"relayfeed/internal/usecase/dispatch"
)

/*──────────────────────── インメモリスタブ ────────────────────────*/

type stubPipeline struct{ enabled bool }

func (s *stubPipeline) Start(context.Context) dispatch.StartResult {
	return dispatch.StartResultStarted
}
func (s *stubPipeline) Stop(context.Context) dispatch.StopResult { return dispatch.StopResultStopped }
func (s *stubPipeline) Status() dispatch.Status {
	return dispatch.Status{Enabled: s.enabled, State: "idle"}
}
func (s *stubPipeline) SetEnabled(enabled bool) { s.enabled = enabled }
func (s *stubPipeline) RunPass(context.Context) (*dispatch.PassStats, error) {
	return &dispatch.PassStats{}, nil
}
func (s *stubPipeline) ListDispatchRecords(context.Context, repository.ListFilter) ([]*entity.DispatchRecord, error) {
	return nil, nil
}
func (s *stubPipeline) GetDispatchRecord(context.Context, string) (*entity.DispatchRecord, error) {
	return nil, entity.ErrNotFound
}
func (s *stubPipeline) CountDispatchRecords(context.Context) (int64, error) { return 0, nil }
func (s *stubPipeline) Submit(context.Context, string, string) (*entity.DispatchRecord, error) {
	return nil, entity.ErrNotFound
}

type stubWatches struct{}

func (stubWatches) Add(_ context.Context, raw string) (string, bool, error) { return raw, true, nil }
func (stubWatches) Remove(context.Context, string) (bool, error)            { return true, nil }
func (stubWatches) List(context.Context) ([]*entity.WatchTitle, error)      { return nil, nil }

var apiSecret = []byte("admin-api-secret-at-least-32-bytes-long")

func newAPI() (API, *stubPipeline) {
	p := &stubPipeline{}
	return API{
		Pipeline:  p,
		Watches:   stubWatches{},
		Health:    &Health{Ledger: okPing},
		JWTSecret: apiSecret,
	}, p
}

func token(t *testing.T, role string) string {
	t.Helper()
	raw, err := auth.IssueToken(apiSecret, "ops", role, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + raw
}

/*──────────────────────── テストケース ────────────────────────*/

func TestAPI_Routes(t *testing.T) {
	api, p := newAPI()
	h := api.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"status needs token", http.MethodGet, "/pipeline", "", "", http.StatusUnauthorized},
		{"channel health needs token", http.MethodGet, "/health/channels", "", "", http.StatusUnauthorized},
		{"viewer reads status", http.MethodGet, "/pipeline", "", token(t, auth.RoleViewer), http.StatusOK},
		{"viewer reads watches", http.MethodGet, "/watches", "", token(t, auth.RoleViewer), http.StatusOK},
		{"viewer cannot toggle", http.MethodPut, "/pipeline/enabled", `{"enabled":true}`, token(t, auth.RoleViewer), http.StatusForbidden},
		{"admin toggles", http.MethodPut, "/pipeline/enabled", `{"enabled":true}`, token(t, auth.RoleAdmin), http.StatusOK},
		{"admin adds watch", http.MethodPost, "/watches", `{"title":"Show"}`, token(t, auth.RoleAdmin), http.StatusCreated},
		{"unknown record", http.MethodGet, "/dispatches/42", "", token(t, auth.RoleAdmin), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
	assert.True(t, p.enabled)
}

func TestAPI_RateLimit(t *testing.T) {
	api, _ := newAPI()
	api.RateLimitPerMinute = 6 // burst 2
	h := api.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, addr, http.NotFoundHandler(), time.Second, testLogger())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
