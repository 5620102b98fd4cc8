package domain

import (
	"net/url"
	"strings"
)

// PlatformDomains is the host allow-list for accepted video URLs.
var PlatformDomains = []string{"youtube.com", "youtu.be"}

// ShortURLPrefix is prepended to a video ID to build its canonical short link.
const ShortURLPrefix = "https://youtu.be/"

// Download target formats accepted on the wire.
const (
	FormatMP4 = "mp4"
	FormatMP3 = "mp3"
)

// ShortURL returns the canonical short link for a video ID.
func ShortURL(id VideoID) string {
	return ShortURLPrefix + id.String()
}

// IsPlatformURL reports whether raw parses as a URL whose host contains one of
// the platform domains.
func IsPlatformURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false
	}
	for _, d := range PlatformDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// ValidateURL trims raw and checks it against the allow-list.
func ValidateURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if !IsPlatformURL(u) {
		return "", NewBadRequestError(ErrInvalidURL)
	}
	return u, nil
}

// NewDownloadRequest validates wire input and resolves the download mode.
// An empty format means mp4. Audio wins over an explicit format identifier.
func NewDownloadRequest(rawURL, format, formatID string) (DownloadRequest, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return DownloadRequest{}, err
	}

	formatID = strings.TrimSpace(formatID)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMP3:
		return DownloadRequest{URL: u, Mode: ModeAudio}, nil
	case "", FormatMP4:
		if formatID != "" {
			return DownloadRequest{URL: u, Mode: ModeExplicit, FormatID: formatID}, nil
		}
		return DownloadRequest{URL: u, Mode: ModeVideo}, nil
	default:
		return DownloadRequest{}, NewBadRequestError(ErrUnsupportedFormat)
	}
}

// Kind returns the declared content kind a mode produces.
func (m Mode) Kind() ContentKind {
	if m == ModeAudio {
		return KindAudio
	}
	return KindVideo
}
