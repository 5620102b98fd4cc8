package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockQueryService is a test implementation of QueryService.
type mockQueryService struct {
	mu           sync.Mutex
	searchCalls  []string
	inspectCalls []string

	results   []domain.VideoSummary
	searchErr error
	detail    *domain.VideoDetail
	detailErr error
}

func (m *mockQueryService) Search(ctx context.Context, query string) ([]domain.VideoSummary, error) {
	m.mu.Lock()
	m.searchCalls = append(m.searchCalls, query)
	m.mu.Unlock()
	return m.results, m.searchErr
}

func (m *mockQueryService) Inspect(ctx context.Context, rawURL string) (*domain.VideoDetail, error) {
	m.mu.Lock()
	m.inspectCalls = append(m.inspectCalls, rawURL)
	m.mu.Unlock()
	return m.detail, m.detailErr
}

// mockDownloadService records calls and either writes a body or fails.
type mockDownloadService struct {
	calls [][3]string
	body  string
	err   error
}

func (m *mockDownloadService) Download(w http.ResponseWriter, r *http.Request, rawURL, format, formatID string) error {
	m.calls = append(m.calls, [3]string{rawURL, format, formatID})
	if m.err != nil {
		return m.err
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, m.body)
	return nil
}

// mockStorage is a test implementation of StorageChecker.
type mockStorage struct {
	dir         string
	writableErr error
}

func (m *mockStorage) Dir() string     { return m.dir }
func (m *mockStorage) Writable() error { return m.writableErr }

// mockTool is a test implementation of ToolChecker.
type mockTool struct {
	available bool
	version   string
}

func (m *mockTool) IsAvailable() bool { return m.available }

func (m *mockTool) Version(ctx context.Context) (string, error) {
	if !m.available {
		return "", errors.New("not installed")
	}
	return m.version, nil
}
