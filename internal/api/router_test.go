package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iconidentify/ytgrabba/internal/api/handler"
	"github.com/iconidentify/ytgrabba/internal/domain"
)

type stubQuery struct{}

func (stubQuery) Search(context.Context, string) ([]domain.VideoSummary, error) {
	return []domain.VideoSummary{{ID: "abc123", Title: "hit"}}, nil
}

func (stubQuery) Inspect(context.Context, string) (*domain.VideoDetail, error) {
	panic("inspect exploded")
}

type stubDownload struct{}

func (stubDownload) Download(w http.ResponseWriter, _ *http.Request, _, _, _ string) error {
	w.Header().Set("Content-Disposition", `attachment; filename="x.mp4"`)
	_, _ = io.WriteString(w, "bytes")
	return nil
}

type stubStorage struct{}

func (stubStorage) Dir() string     { return "/tmp" }
func (stubStorage) Writable() error { return nil }

func newTestRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(
		handler.NewVideoHandler(stubQuery{}, stubDownload{}, logger),
		handler.NewHealthHandler(stubStorage{}, nil, "yt-dlp"),
		"*",
	)
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		method   string
		path     string
		body     string
		wantCode int
		wantBody string
	}{
		{http.MethodGet, "/", "", http.StatusOK, handler.HomeText},
		{http.MethodGet, "//health", "", http.StatusOK, `"status":"ok"`},
		{http.MethodPost, "/search", `{"query":"x"}`, http.StatusOK, `"id":"abc123"`},
		{http.MethodPost, "/download", `{"url":"https://youtu.be/abc123"}`, http.StatusOK, "bytes"},
		{http.MethodPost, "/info", `{"url":"https://youtu.be/abc123"}`, http.StatusInternalServerError, "internal server error"},
		{http.MethodGet, "/search", "", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/nope", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRouter_Preflight(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/download", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}
