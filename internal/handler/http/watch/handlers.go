package watch

import (
	"encoding/json"
	"errors"
	"net/http"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/handler/http/respond"
)

type ListHandler struct{ Svc Service }

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.List(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]DTO, 0, len(list))
	for _, t := range list {
		out = append(out, DTO{Title: t.Title, CreatedAt: t.CreatedAt})
	}
	respond.JSON(w, http.StatusOK, out)
}

type AddHandler struct{ Svc Service }

// ServeHTTP 監視タイトル追加
// @Summary      Add a watch title
// @Description  Titles are unique case-insensitively. Adding an existing title is not an error.
// @Tags         watches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Success      201 {object} AddResultDTO "Added"
// @Success      200 {object} AddResultDTO "Already watched"
// @Failure      400 {string} string "Bad request - invalid title"
// @Router       /watches [post]
func (h AddHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	title, added, err := h.Svc.Add(r.Context(), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusOK
	if added {
		code = http.StatusCreated
	}
	respond.JSON(w, code, AddResultDTO{Title: title, Added: added})
}

type RemoveHandler struct{ Svc Service }

// ServeHTTP removes the title given in the "title" query parameter.
func (h RemoveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Svc.Remove(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		respond.SafeError(w, http.StatusNotFound, errors.New("watch title not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		respond.Error(w, http.StatusBadRequest, errors.New(ve.Message))
		return
	}
	respond.SafeError(w, http.StatusInternalServerError, err)
}
