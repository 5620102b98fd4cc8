package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/extractor"
)

// QueryService answers read-only search and info requests.
type QueryService struct {
	extractor extractor.Extractor
	limit     int
	retry     extractor.RetryConfig
	logger    *slog.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(ex extractor.Extractor, cfg config.ExtractorConfig, logger *slog.Logger) *QueryService {
	return &QueryService{
		extractor: ex,
		limit:     cfg.SearchLimit,
		retry:     extractor.QueryRetryConfig(cfg.QueryRetries, cfg.RetryDelay),
		logger:    logger,
	}
}

// Search returns up to the configured number of matches for query.
func (s *QueryService) Search(ctx context.Context, query string) ([]domain.VideoSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewBadRequestError(domain.ErrEmptyQuery)
	}

	attempt := 0
	results, err := extractor.RetryWithCheck(ctx, s.retry, func() ([]domain.VideoSummary, error) {
		attempt++
		res, err := s.extractor.Search(ctx, query, s.limit)
		if err != nil && domain.IsRetryable(err) {
			s.logger.Warn("search attempt failed", "attempt", attempt, "error", err)
		}
		return res, err
	}, domain.IsRetryable)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}

// Inspect validates rawURL and returns its metadata and video encodings.
func (s *QueryService) Inspect(ctx context.Context, rawURL string) (*domain.VideoDetail, error) {
	u, err := domain.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	attempt := 0
	return extractor.RetryWithCheck(ctx, s.retry, func() (*domain.VideoDetail, error) {
		attempt++
		d, err := s.extractor.Inspect(ctx, u)
		if err != nil && domain.IsRetryable(err) {
			s.logger.Warn("inspect attempt failed", "attempt", attempt, "url", u, "error", err)
		}
		return d, err
	}, domain.IsRetryable)
}
