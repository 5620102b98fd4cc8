package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/domain"
)

// audioFormatSelector asks for the best audio before post-processing.
const audioFormatSelector = "bestaudio/best"

// authMarkers are yt-dlp error fragments that indicate a login or bot wall.
var authMarkers = []string{
	"sign in to confirm",
	"not a bot",
	"use --cookies",
	"cookies-from-browser",
	"login required",
	"age-restricted",
	"confirm your age",
	"members-only",
	"private video",
}

// YTDLP implements Extractor on top of the yt-dlp executable.
type YTDLP struct {
	runner Runner
	cfg    config.ExtractorConfig
	logger *slog.Logger
}

// NewYTDLP creates a yt-dlp backed extractor.
func NewYTDLP(runner Runner, cfg config.ExtractorConfig, logger *slog.Logger) *YTDLP {
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
}

// Search runs a flat platform search.
func (y *YTDLP) Search(ctx context.Context, query string, limit int) ([]domain.VideoSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewBadRequestError(domain.ErrEmptyQuery)
	}
	if limit <= 0 {
		limit = y.cfg.SearchLimit
	}

	ctx, cancel := y.queryContext(ctx)
	defer cancel()

	out, err := y.runner.Run(ctx, Invocation{
		Target:         fmt.Sprintf("ytsearch%d:%s", limit, query),
		FlatPlaylist:   true,
		DumpSingleJSON: true,
		NoPlaylist:     true,
	})
	if err != nil {
		return nil, domain.NewExtractionError("search", query, classify(out, err))
	}

	info, err := parseInfo(out.Stdout)
	if err != nil {
		return nil, domain.NewExtractionError("search", query, err)
	}

	results := make([]domain.VideoSummary, 0, len(info.Entries))
	for _, entry := range info.Entries {
		if entry == nil || entry.ID == "" {
			continue
		}
		results = append(results, entry.summary())
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

// Inspect resolves one video without downloading it.
func (y *YTDLP) Inspect(ctx context.Context, url string) (*domain.VideoDetail, error) {
	ctx, cancel := y.queryContext(ctx)
	defer cancel()

	out, err := y.runner.Run(ctx, Invocation{
		Target:         url,
		DumpSingleJSON: true,
		NoPlaylist:     true,
		SkipDownload:   true,
	})
	if err != nil {
		return nil, domain.NewExtractionError("inspect", url, classify(out, err))
	}

	info, err := parseInfo(out.Stdout)
	if err != nil {
		return nil, domain.NewExtractionError("inspect", url, err)
	}
	if info.ID == "" || (len(info.Formats) == 0 && info.URL == "") {
		return nil, domain.NewExtractionError("inspect", url, domain.ErrNoStreams)
	}

	return info.detail(), nil
}

// Fetch downloads req into the directory named by template. It is not
// cancelled by ctx: once started it runs to completion or FetchTimeout.
func (y *YTDLP) Fetch(ctx context.Context, req domain.DownloadRequest, template string, creds *domain.CredentialBundle) (*domain.FetchResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), y.fetchTimeout())
	defer cancel()

	inv := Invocation{
		Target:     req.URL,
		NoPlaylist: true,
		DumpJSON:   true,
		NoSimulate: true,
		Output:     template,
		Cookies:    y.resolveCookies(creds),
	}

	switch req.Mode {
	case domain.ModeAudio:
		inv.Format = audioFormatSelector
		inv.ExtractAudio = true
		inv.AudioFormat = y.cfg.AudioCodec
		inv.AudioQuality = y.cfg.AudioQuality
	case domain.ModeExplicit:
		inv.Format = req.FormatID
	default:
		inv.Format = y.cfg.VideoFormat
	}

	start := time.Now()
	out, err := y.runner.Run(ctx, inv)
	if err != nil {
		return nil, domain.NewExtractionError("fetch", req.URL, classify(out, err))
	}

	info, err := parseInfo(out.Stdout)
	if err != nil {
		return nil, domain.NewExtractionError("fetch", req.URL, err)
	}

	path := info.downloadedPath(template)
	if req.Mode == domain.ModeAudio {
		path = ReplaceExt(path, domain.AudioExtension(y.cfg.AudioCodec))
	}

	y.logger.Debug("fetch finished",
		"video_id", info.ID,
		"mode", req.Mode,
		"path", path,
		"duration", time.Since(start),
	)

	return &domain.FetchResult{
		VideoID: domain.VideoID(info.ID),
		Title:   info.Title,
		Path:    path,
		Kind:    req.Mode.Kind(),
	}, nil
}

// resolveCookies returns the cookie file to pass to yt-dlp, or "" to run
// without credentials. A declared but missing file is not an error.
func (y *YTDLP) resolveCookies(creds *domain.CredentialBundle) string {
	if !creds.Configured() {
		y.logger.Debug("no credential bundle configured, downloading without cookies")
		return ""
	}
	if _, err := os.Stat(creds.CookiesFile); err != nil {
		y.logger.Warn("cookie file not found, the platform may require login",
			"path", creds.CookiesFile,
			"error", err,
		)
		return ""
	}
	y.logger.Debug("using cookies", "path", creds.CookiesFile)
	return creds.CookiesFile
}

func (y *YTDLP) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if y.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, y.cfg.QueryTimeout)
}

func (y *YTDLP) fetchTimeout() time.Duration {
	if y.cfg.FetchTimeout <= 0 {
		return 30 * time.Minute
	}
	return y.cfg.FetchTimeout
}

// ReplaceExt swaps the extension of path for ext (without dot).
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}

// classify turns a failed run into a cause error carrying yt-dlp's diagnostics.
func classify(out *Output, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out", domain.ErrExtractionFailed)
	}

	detail := ""
	if out != nil {
		detail = strings.TrimSpace(out.Stderr)
	}
	if detail == "" && err != nil {
		detail = err.Error()
	}

	lower := strings.ToLower(detail)
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%w: %s", domain.ErrAuthRequired, truncate(lastLine(detail), 300))
		}
	}

	return fmt.Errorf("%w: %s", domain.ErrExtractionFailed, truncate(lastLine(detail), 300))
}

// lastLine returns the last non-empty line, which is where yt-dlp puts ERROR:.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
