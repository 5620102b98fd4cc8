package extractor

import (
	"context"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// Extractor resolves platform URLs and queries and produces encoded files.
// Every failure is reported as a *domain.ExtractionError, except caller
// errors which are *domain.BadRequestError.
type Extractor interface {
	// Search returns at most limit flat search hits for query, in platform order.
	Search(ctx context.Context, query string, limit int) ([]domain.VideoSummary, error)

	// Inspect returns metadata and video-capable encodings for a video URL.
	Inspect(ctx context.Context, url string) (*domain.VideoDetail, error)

	// Fetch writes the requested encoding to a path derived from template,
	// which must contain the %(id)s and %(ext)s placeholders.
	Fetch(ctx context.Context, req domain.DownloadRequest, template string, creds *domain.CredentialBundle) (*domain.FetchResult, error)
}

// Runner executes one yt-dlp invocation.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Output, error)
}

// Invocation is the set of yt-dlp options this package uses.
type Invocation struct {
	Target         string
	FlatPlaylist   bool
	NoPlaylist     bool
	SkipDownload   bool
	DumpJSON       bool // one JSON object per video, printed as it is processed
	DumpSingleJSON bool // one JSON object for the whole target
	NoSimulate     bool
	Format         string
	Output         string
	Cookies        string
	ExtractAudio   bool
	AudioFormat    string
	AudioQuality   string
}

// Output is what a finished invocation printed.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}
