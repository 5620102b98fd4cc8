package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/lo"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// QueryService answers search and info requests.
type QueryService interface {
	Search(ctx context.Context, query string) ([]domain.VideoSummary, error)
	Inspect(ctx context.Context, rawURL string) (*domain.VideoDetail, error)
}

// DownloadService produces and streams a file. A returned error means
// nothing has been written to w.
type DownloadService interface {
	Download(w http.ResponseWriter, r *http.Request, rawURL, format, formatID string) error
}

// VideoHandler handles search, info and download requests.
type VideoHandler struct {
	querySvc    QueryService
	downloadSvc DownloadService
	logger      *slog.Logger
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(querySvc QueryService, downloadSvc DownloadService, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		querySvc:    querySvc,
		downloadSvc: downloadSvc,
		logger:      logger,
	}
}

// SearchRequest is the JSON request body for POST /search.
type SearchRequest struct {
	Query string `json:"query"`
}

// InfoRequest is the JSON request body for POST /info.
type InfoRequest struct {
	URL string `json:"url"`
}

// DownloadRequest is the JSON request body for POST /download.
type DownloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
	Itag   string `json:"itag,omitempty"`
}

// VideoResponse is one search result.
type VideoResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Duration  *int   `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	Channel   string `json:"channel"`
}

// FormatResponse is one downloadable encoding.
type FormatResponse struct {
	Itag       string `json:"itag"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	Filesize   int64  `json:"filesize"`
	FormatNote string `json:"format_note"`
	URL        string `json:"url"`
}

// InfoResponse is the JSON response for POST /info.
type InfoResponse struct {
	VideoResponse
	Formats []FormatResponse `json:"formats"`
}

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Search handles POST /search
func (h *VideoHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	// an unreadable body is treated as an empty query
	_ = decodeJSON(w, r, &req)

	results, err := h.querySvc.Search(r.Context(), req.Query)
	if err != nil {
		if domain.KindOf(err) == domain.KindBadRequest {
			h.writeError(w, http.StatusBadRequest, "No search query provided", "")
			return
		}
		h.logger.Error("search failed", "query", req.Query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, lo.Map(results, func(v domain.VideoSummary, _ int) VideoResponse {
		return VideoResponse{
			ID:        v.ID.String(),
			Title:     v.Title,
			URL:       v.URL,
			Duration:  v.Duration,
			Thumbnail: v.Thumbnail,
			Channel:   v.Channel,
		}
	}))
}

// Info handles POST /info
func (h *VideoHandler) Info(w http.ResponseWriter, r *http.Request) {
	var req InfoRequest
	_ = decodeJSON(w, r, &req)

	detail, err := h.querySvc.Inspect(r.Context(), req.URL)
	if err != nil {
		if domain.KindOf(err) == domain.KindBadRequest {
			h.writeError(w, http.StatusBadRequest, "Invalid YouTube URL", "")
			return
		}
		// details are logged only
		h.logger.Error("info failed", "url", req.URL, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Could not fetch video info", "")
		return
	}

	h.writeJSON(w, http.StatusOK, InfoResponse{
		VideoResponse: VideoResponse{
			ID:        detail.ID.String(),
			Title:     detail.Title,
			URL:       detail.URL,
			Duration:  detail.Duration,
			Thumbnail: detail.Thumbnail,
			Channel:   detail.Channel,
		},
		Formats: lo.Map(detail.Formats, func(f domain.EncodingOption, _ int) FormatResponse {
			return FormatResponse{
				Itag:       f.FormatID,
				Ext:        f.Extension,
				Resolution: f.Resolution,
				Filesize:   f.FileSize,
				FormatNote: f.Note,
				URL:        f.SourceURL,
			}
		}),
	})
}

// Download handles POST /download
func (h *VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	_ = decodeJSON(w, r, &req)

	err := h.downloadSvc.Download(w, r, req.URL, req.Format, req.Itag)
	if err == nil {
		return
	}

	if domain.KindOf(err) == domain.KindBadRequest {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			h.writeError(w, http.StatusBadRequest, "Unsupported format, expected mp3 or mp4", "")
			return
		}
		h.writeError(w, http.StatusBadRequest, "Invalid YouTube URL", "")
		return
	}

	h.writeError(w, http.StatusInternalServerError, "Download failed", err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *VideoHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *VideoHandler) writeError(w http.ResponseWriter, status int, message, details string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
