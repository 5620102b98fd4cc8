package service

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/extractor"
	"github.com/iconidentify/ytgrabba/internal/stream"
)

// State is a step of a single download.
type State string

const (
	StateValidating State = "validating"
	StateFetching   State = "fetching"
	StateFinalizing State = "finalizing"
	StateStreaming  State = "streaming"
	StateReleased   State = "released"
	StateErrored    State = "errored"
)

// FileRegistry hands out the output template and binds fetched files.
type FileRegistry interface {
	Template() string
	Finalize(res *domain.FetchResult, mode domain.Mode) (*domain.ManagedFile, error)
}

// FileStreamer sends a managed file and releases it afterwards.
type FileStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, mf *domain.ManagedFile) (int64, error)
}

// DownloadService drives one download from validation to release.
type DownloadService struct {
	extractor extractor.Extractor
	registry  FileRegistry
	streamer  FileStreamer
	creds     *domain.CredentialBundle
	logger    *slog.Logger
}

// NewDownloadService creates a new download service.
func NewDownloadService(
	ex extractor.Extractor,
	registry FileRegistry,
	streamer FileStreamer,
	creds *domain.CredentialBundle,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		extractor: ex,
		registry:  registry,
		streamer:  streamer,
		creds:     creds,
		logger:    logger,
	}
}

// download tracks the state of one request.
type download struct {
	id     string
	state  State
	logger *slog.Logger
}

func (d *download) to(next State) {
	d.logger.Debug("download state", "from", d.state, "to", next)
	d.state = next
}

// Download fetches rawURL in the requested format and streams the result to w.
// A returned error means nothing has been written to w yet. Once streaming
// starts, failures are logged and the file is released regardless.
func (s *DownloadService) Download(w http.ResponseWriter, r *http.Request, rawURL, format, formatID string) error {
	id := "dl_" + uuid.New().String()[:8]
	d := &download{
		id:     id,
		state:  StateValidating,
		logger: s.logger.With("download_id", id),
	}

	req, err := domain.NewDownloadRequest(rawURL, format, formatID)
	if err != nil {
		d.to(StateErrored)
		return err
	}

	d.logger.Info("download started", "url", req.URL, "mode", req.Mode)
	start := time.Now()

	d.to(StateFetching)
	res, err := s.extractor.Fetch(r.Context(), req, s.registry.Template(), s.creds)
	if err != nil {
		d.to(StateErrored)
		d.logger.Error("fetch failed", "url", req.URL, "error", err)
		return err
	}

	d.to(StateFinalizing)
	mf, err := s.registry.Finalize(res, req.Mode)
	if err != nil {
		d.to(StateErrored)
		d.logger.Error("finalize failed", "path", res.Path, "error", err)
		return err
	}

	d.to(StateStreaming)
	n, err := s.streamer.Serve(w, r, mf)
	d.to(StateReleased)

	switch {
	case err == nil:
		d.logger.Info("download complete",
			"video_id", res.VideoID,
			"file", mf.Filename,
			"size", humanize.IBytes(uint64(n)),
			"duration", time.Since(start),
		)
		return nil
	case errors.Is(err, stream.ErrAborted):
		d.logger.Warn("download aborted by client",
			"video_id", res.VideoID,
			"sent", humanize.IBytes(uint64(n)),
			"error", err,
		)
		return nil
	default:
		d.logger.Error("stream failed", "video_id", res.VideoID, "error", err)
		return err
	}
}
