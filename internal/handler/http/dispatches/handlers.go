package dispatches

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/handler/http/respond"
	"relayfeed/internal/repository"
	dispatchUC "relayfeed/internal/usecase/dispatch"
)

type ListHandler struct{ L Ledger }

// ServeHTTP 配信履歴一覧
// @Summary      List dispatch records, newest first
// @Tags         dispatches
// @Security     BearerAuth
// @Produce      json
// @Param        outcome query string false "success or failed"
// @Param        limit   query int    false "1-1000, default 50"
// @Success      200 {object} ListDTO
// @Failure      400 {string} string "Bad request - invalid filter"
// @Router       /dispatches [get]
func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	outcome, err := entity.ParseOutcomeStatus(q.Get("outcome"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 {
			respond.SafeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
	}

	recs, err := h.L.ListDispatchRecords(r.Context(), repository.ListFilter{Outcome: outcome, Limit: limit})
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := h.L.CountDispatchRecords(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	out := ListDTO{Items: make([]DTO, 0, len(recs)), Total: total}
	for _, rec := range recs {
		out.Items = append(out.Items, toDTO(rec))
	}
	respond.JSON(w, http.StatusOK, out)
}

type GetHandler struct{ L Ledger }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec, err := h.L.GetDispatchRecord(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toDTO(rec))
}

type SubmitHandler struct{ L Ledger }

// ServeHTTP 手動投入
// @Summary      Submit a source link for transcoding outside the watch list
// @Description  The outcome is recorded like any matched entry. A link whose entry key
// @Description  is already in the ledger is rejected with the existing record.
// @Tags         dispatches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Success      201 {object} DTO
// @Failure      400 {string} string "Bad request - invalid link"
// @Failure      409 {object} DTO "Already dispatched"
// @Failure      503 {string} string "Transcode service unavailable"
// @Router       /dispatches [post]
func (h SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	rec, err := h.L.Submit(r.Context(), req.Title, req.Link)
	if errors.Is(err, entity.ErrAlreadyDispatched) && rec != nil {
		respond.JSON(w, http.StatusConflict, toDTO(rec))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toDTO(rec))
}

func writeError(w http.ResponseWriter, err error) {
	var ve *entity.ValidationError
	switch {
	case errors.As(err, &ve):
		respond.Error(w, http.StatusBadRequest, errors.New(ve.Message))
	case errors.Is(err, entity.ErrNotFound):
		respond.SafeError(w, http.StatusNotFound, errors.New("dispatch record not found"))
	case errors.Is(err, entity.ErrAlreadyDispatched):
		respond.SafeError(w, http.StatusConflict, entity.ErrAlreadyDispatched)
	case errors.Is(err, dispatchUC.ErrDispatchDeferred):
		respond.SafeError(w, http.StatusServiceUnavailable, err)
	default:
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}
