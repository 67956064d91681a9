package pipeline

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"relayfeed/internal/handler/http/requestid"
	"relayfeed/internal/handler/http/respond"
	dispatchUC "relayfeed/internal/usecase/dispatch"
)

type StatusHandler struct{ P Pipeline }

// ServeHTTP パイプライン状態取得
// @Summary      Pipeline status
// @Tags         pipeline
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} dispatch.Status
// @Router       /pipeline [get]
func (h StatusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, h.P.Status())
}

// ResultDTO reports the outcome of a start or stop request.
type ResultDTO struct {
	Result string            `json:"result"`
	Status dispatchUC.Status `json:"status"`
}

type StartHandler struct{ P Pipeline }

func (h StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := h.P.Start(r.Context())
	requestid.Logger(r.Context()).Info("pipeline start requested", slog.String("result", string(res)))
	respond.JSON(w, http.StatusOK, ResultDTO{Result: string(res), Status: h.P.Status()})
}

type StopHandler struct{ P Pipeline }

func (h StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := h.P.Stop(r.Context())
	requestid.Logger(r.Context()).Info("pipeline stop requested", slog.String("result", string(res)))
	respond.JSON(w, http.StatusOK, ResultDTO{Result: string(res), Status: h.P.Status()})
}

type RunHandler struct{ P Pipeline }

// ServeHTTP 手動パス実行
// @Summary      Run one poll-match-dispatch pass now
// @Description  Blocks until the pass completes. Runs even when the loop is stopped.
// @Tags         pipeline
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} dispatch.PassStats
// @Failure      503 {string} string "Pass abandoned"
// @Router       /pipeline/run [post]
func (h RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.P.RunPass(r.Context())
	if err != nil {
		if errors.Is(err, dispatchUC.ErrPipelineStopped) {
			respond.SafeError(w, http.StatusServiceUnavailable, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}

type EnabledHandler struct{ P Pipeline }

func (h EnabledHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Enabled == nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("enabled is required"))
		return
	}
	h.P.SetEnabled(*req.Enabled)
	requestid.Logger(r.Context()).Info("pipeline enabled flag changed", slog.Bool("enabled", *req.Enabled))
	respond.JSON(w, http.StatusOK, h.P.Status())
}
