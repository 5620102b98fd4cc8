package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/ytgrabba/internal/service"
)

var startTime = time.Now()

// HomeText is the body of GET /.
const HomeText = "ytgrabba backend running"

// StorageChecker reports on the download directory.
type StorageChecker interface {
	Dir() string
	Writable() error
}

// ToolChecker reports on an external executable.
type ToolChecker interface {
	IsAvailable() bool
	Version(ctx context.Context) (string, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	storage   StorageChecker
	ffmpeg    ToolChecker
	ytdlpPath string

	lookPath  func(string) (string, error)
	freeSpace func(string) uint64
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(storage StorageChecker, ffmpeg ToolChecker, ytdlpPath string) *HealthHandler {
	return &HealthHandler{
		storage:   storage,
		ffmpeg:    ffmpeg,
		ytdlpPath: ytdlpPath,
		lookPath:  exec.LookPath,
		freeSpace: service.FreeDiskSpace,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Uptime    string       `json:"uptime,omitempty"`
	Checks    *ReadyChecks `json:"checks,omitempty"`
}

// ReadyChecks contains the individual readiness results.
type ReadyChecks struct {
	DownloadsDir  string `json:"downloads_dir"`
	Writable      bool   `json:"writable"`
	DiskFree      string `json:"disk_free"`
	DiskFreeBytes uint64 `json:"disk_free_bytes"`
	Ytdlp         bool   `json:"ytdlp"`
	Ffmpeg        bool   `json:"ffmpeg"`
	FfmpegVersion string `json:"ffmpeg_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Home handles GET / - plain text liveness.
func (h *HealthHandler) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, HomeText)
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    formatUptime(time.Since(startTime)),
	})
}

// Ready handles GET /ready - readiness probe. The service is ready when the
// download directory is writable and yt-dlp can be found. A missing ffmpeg
// only disables audio extraction and merging, so it is reported but not fatal.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := &ReadyChecks{DownloadsDir: h.storage.Dir()}

	if err := h.storage.Writable(); err != nil {
		checks.Error = err.Error()
	} else {
		checks.Writable = true
	}

	checks.DiskFreeBytes = h.freeSpace(checks.DownloadsDir)
	checks.DiskFree = humanize.IBytes(checks.DiskFreeBytes)

	if _, err := h.lookPath(h.ytdlpPath); err != nil {
		if checks.Error == "" {
			checks.Error = fmt.Sprintf("yt-dlp not found: %v", err)
		}
	} else {
		checks.Ytdlp = true
	}

	if h.ffmpeg != nil && h.ffmpeg.IsAvailable() {
		checks.Ffmpeg = true
		if v, err := h.ffmpeg.Version(ctx); err == nil {
			checks.FfmpegVersion = v
		}
	}

	status, code := "ok", http.StatusOK
	if !checks.Writable || !checks.Ytdlp {
		status, code = "error", http.StatusServiceUnavailable
	}

	writeHealth(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func writeHealth(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
