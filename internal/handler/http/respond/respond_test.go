package respond

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		data         any
		expectedBody string
	}{
		{name: "map", code: http.StatusOK, data: map[string]string{"message": "success"}, expectedBody: `{"message":"success"}`},
		{name: "struct", code: http.StatusCreated, data: struct{ ID int }{ID: 123}, expectedBody: `{"ID":123}`},
		{name: "nil", code: http.StatusNoContent, data: nil, expectedBody: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			JSON(w, tt.code, tt.data)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.expectedBody, strings.TrimSpace(w.Body.String()))
		})
	}
}

func TestJSON_EncodingError(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, make(chan int))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSafeError(t *testing.T) {
	tests := []struct {
		name string
		code int
		err  error
		want string
	}{
		{name: "validation message", code: http.StatusBadRequest,
			err:  errors.New("invalid title: title is required"),
			want: `{"error":"invalid title: title is required"}`},
		{name: "not found", code: http.StatusNotFound, err: errors.New("entity not found"),
			want: `{"error":"entity not found"}`},
		{name: "internal detail hidden", code: http.StatusBadRequest,
			err: errors.New("pq: connection refused"), want: `{"error":"Bad Request"}`},
		{name: "5xx always hidden", code: http.StatusInternalServerError,
			err: errors.New("title is required"), want: `{"error":"Internal Server Error"}`},
		{name: "app error", code: http.StatusInternalServerError,
			err:  NewAppError(http.StatusConflict, "entry already dispatched", fmt.Errorf("db: %w", errors.New("dup"))),
			want: `{"error":"entry already dispatched"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			SafeError(w, tt.code, tt.err)
			assert.Equal(t, tt.want, strings.TrimSpace(w.Body.String()))
		})
	}
}

func TestSafeError_AppErrorUsesOwnCode(t *testing.T) {
	w := httptest.NewRecorder()

	SafeError(w, http.StatusInternalServerError, NewAppError(http.StatusConflict, "conflict", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSafeError_Nil(t *testing.T) {
	w := httptest.NewRecorder()

	SafeError(w, http.StatusBadRequest, nil)

	assert.Empty(t, w.Body.String())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := NewAppError(http.StatusBadRequest, "bad", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "cause", err.Error())
	assert.Equal(t, "bad", NewAppError(http.StatusBadRequest, "bad", nil).Error())
}
