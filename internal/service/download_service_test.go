package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/stream"
	"github.com/iconidentify/ytgrabba/internal/tempfile"
)

// fakeExtractor records calls and delegates to per-test functions.
type fakeExtractor struct {
	mu          sync.Mutex
	searchCalls int
	inspectCall int
	fetchCalls  []domain.DownloadRequest
	templates   []string
	creds       []*domain.CredentialBundle

	searchFn  func(query string, limit int) ([]domain.VideoSummary, error)
	inspectFn func(url string) (*domain.VideoDetail, error)
	fetchFn   func(req domain.DownloadRequest, template string) (*domain.FetchResult, error)
}

func (f *fakeExtractor) Search(_ context.Context, query string, limit int) ([]domain.VideoSummary, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	return f.searchFn(query, limit)
}

func (f *fakeExtractor) Inspect(_ context.Context, url string) (*domain.VideoDetail, error) {
	f.mu.Lock()
	f.inspectCall++
	f.mu.Unlock()
	return f.inspectFn(url)
}

func (f *fakeExtractor) Fetch(_ context.Context, req domain.DownloadRequest, template string, creds *domain.CredentialBundle) (*domain.FetchResult, error) {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, req)
	f.templates = append(f.templates, template)
	f.creds = append(f.creds, creds)
	f.mu.Unlock()
	return f.fetchFn(req, template)
}

func (f *fakeExtractor) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetchCalls)
}

// writeOutput expands the output template like yt-dlp would and writes content there.
func writeOutput(t *testing.T, template, id, ext, content string) string {
	t.Helper()
	path := strings.NewReplacer("%(id)s", id, "%(ext)s", ext).Replace(template)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	dir string
	ex  *fakeExtractor
	svc *DownloadService
}

func newHarness(t *testing.T, creds *domain.CredentialBundle) *harness {
	t.Helper()
	dir := t.TempDir()
	fsys := afero.NewOsFs()
	logger := discardLogger()

	reg, err := tempfile.NewRegistry(fsys, tempfile.Options{Dir: dir, TitleMaxLength: 50, AudioCodec: "mp3"}, logger)
	require.NoError(t, err)

	ex := &fakeExtractor{}
	return &harness{
		dir: dir,
		ex:  ex,
		svc: NewDownloadService(ex, reg, stream.NewStreamer(reg.Fs(), reg, logger), creds, logger),
	}
}

func (h *harness) entries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func postDownload() *http.Request {
	return httptest.NewRequest(http.MethodPost, "/download", nil)
}

func TestDownload_InvalidURLNeverFetches(t *testing.T) {
	h := newHarness(t, nil)

	for _, u := range []string{"", "   ", "https://vimeo.com/123", "not a url"} {
		rec := httptest.NewRecorder()
		err := h.svc.Download(rec, postDownload(), u, "mp4", "")

		assert.Equal(t, domain.KindBadRequest, domain.KindOf(err), u)
		assert.Zero(t, rec.Body.Len())
	}

	rec := httptest.NewRecorder()
	err := h.svc.Download(rec, postDownload(), "https://youtu.be/abc123", "flac", "")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	assert.Zero(t, h.ex.fetchCount())
	assert.Empty(t, h.entries(t))
}

func TestDownload_AudioRewritesExtensionAndCleansUp(t *testing.T) {
	h := newHarness(t, nil)
	h.ex.fetchFn = func(req domain.DownloadRequest, template string) (*domain.FetchResult, error) {
		// the extractor reports the pre-transcode file; the transcoded one sits next to it
		m4a := writeOutput(t, template, "abc123", "m4a", "raw")
		writeOutput(t, template, "abc123", "mp3", "ID3-audio")
		return &domain.FetchResult{VideoID: "abc123", Title: "Song", Path: m4a, Kind: domain.KindAudio}, nil
	}

	rec := httptest.NewRecorder()
	err := h.svc.Download(rec, postDownload(), "https://youtu.be/abc123", "mp3", "")
	require.NoError(t, err)

	assert.Equal(t, "ID3-audio", rec.Body.String())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Song.mp3"`)

	require.Len(t, h.ex.fetchCalls, 1)
	assert.Equal(t, domain.ModeAudio, h.ex.fetchCalls[0].Mode)
	assert.Equal(t, filepath.Join(h.dir, "%(id)s.%(ext)s"), h.ex.templates[0])

	assert.Empty(t, h.entries(t), "download directory is back to its baseline")
}

func TestDownload_VideoAndExplicitModes(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		itag     string
		ext      string
		wantMode domain.Mode
		wantType string
		wantName string
	}{
		{"default container", "", "", "mp4", domain.ModeVideo, "video/mp4", "Clip.mp4"},
		{"mp4", "mp4", "", "mp4", domain.ModeVideo, "video/mp4", "Clip.mp4"},
		{"explicit itag", "mp4", "248", "webm", domain.ModeExplicit, "video/webm", "Clip.webm"},
		{"mp3 wins over itag", "mp3", "248", "mp3", domain.ModeAudio, "audio/mpeg", "Clip.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.ex.fetchFn = func(req domain.DownloadRequest, template string) (*domain.FetchResult, error) {
				path := writeOutput(t, template, "vid1", tt.ext, "payload")
				return &domain.FetchResult{VideoID: "vid1", Title: "Clip", Path: path}, nil
			}

			rec := httptest.NewRecorder()
			require.NoError(t, h.svc.Download(rec, postDownload(), "https://www.youtube.com/watch?v=vid1", tt.format, tt.itag))

			assert.Equal(t, tt.wantMode, h.ex.fetchCalls[0].Mode)
			if tt.wantMode == domain.ModeExplicit {
				assert.Equal(t, tt.itag, h.ex.fetchCalls[0].FormatID)
			}
			assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Content-Disposition"), tt.wantName)
			assert.Equal(t, "payload", rec.Body.String())
			assert.Empty(t, h.entries(t))
		})
	}
}

func TestDownload_FetchFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.ex.fetchFn = func(req domain.DownloadRequest, _ string) (*domain.FetchResult, error) {
		return nil, domain.NewExtractionError("fetch", req.URL, fmt.Errorf("%w: Sign in to confirm", domain.ErrAuthRequired))
	}

	rec := httptest.NewRecorder()
	err := h.svc.Download(rec, postDownload(), "https://youtu.be/abc123", "mp4", "")

	assert.Equal(t, domain.KindExtraction, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Zero(t, rec.Body.Len(), "nothing is written before the handler answers")
	assert.Empty(t, rec.Header())
	assert.Empty(t, h.entries(t))
}

func TestDownload_FinalizeFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.ex.fetchFn = func(_ domain.DownloadRequest, template string) (*domain.FetchResult, error) {
		return &domain.FetchResult{VideoID: "ghost", Path: filepath.Join(filepath.Dir(template), "ghost.mp4")}, nil
	}

	rec := httptest.NewRecorder()
	err := h.svc.Download(rec, postDownload(), "https://youtu.be/ghost", "", "")

	assert.Equal(t, domain.KindFilesystem, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
	assert.Zero(t, rec.Body.Len())
}

// failingWriter accepts headers and fails every body write.
type failingWriter struct {
	header http.Header
}

func (f *failingWriter) Header() http.Header {
	if f.header == nil {
		f.header = http.Header{}
	}
	return f.header
}

func (f *failingWriter) WriteHeader(int) {}

func (f *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestDownload_ClientAbortReleasesFile(t *testing.T) {
	h := newHarness(t, nil)
	h.ex.fetchFn = func(_ domain.DownloadRequest, template string) (*domain.FetchResult, error) {
		path := writeOutput(t, template, "abc123", "mp4", strings.Repeat("v", 1<<16))
		return &domain.FetchResult{VideoID: "abc123", Title: "Long", Path: path}, nil
	}

	err := h.svc.Download(&failingWriter{}, postDownload(), "https://youtu.be/abc123", "mp4", "")
	assert.NoError(t, err, "an aborted stream is already committed")
	assert.Empty(t, h.entries(t))
}

func TestDownload_PassesCredentials(t *testing.T) {
	creds := &domain.CredentialBundle{CookiesFile: "/etc/ytgrabba/cookies.txt"}
	h := newHarness(t, creds)
	h.ex.fetchFn = func(_ domain.DownloadRequest, template string) (*domain.FetchResult, error) {
		path := writeOutput(t, template, "abc123", "mp4", "x")
		return &domain.FetchResult{VideoID: "abc123", Path: path}, nil
	}

	require.NoError(t, h.svc.Download(httptest.NewRecorder(), postDownload(), "https://youtu.be/abc123", "mp4", ""))
	assert.Same(t, creds, h.ex.creds[0])
}

func TestDownload_ConcurrentDistinctVideos(t *testing.T) {
	h := newHarness(t, nil)
	h.ex.fetchFn = func(req domain.DownloadRequest, template string) (*domain.FetchResult, error) {
		id := strings.TrimPrefix(req.URL, domain.ShortURLPrefix)
		path := strings.NewReplacer("%(id)s", id, "%(ext)s", "mp4").Replace(template)
		if err := os.WriteFile(path, []byte("video-"+id), 0644); err != nil {
			return nil, err
		}
		return &domain.FetchResult{VideoID: domain.VideoID(id), Title: id, Path: path}, nil
	}

	const n = 8
	bodies := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			errs[i] = h.svc.Download(rec, postDownload(), fmt.Sprintf("https://youtu.be/vid%d", i), "mp4", "")
			bodies[i] = rec.Body.String()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("video-vid%d", i), bodies[i])
	}
	assert.Empty(t, h.entries(t))
}
