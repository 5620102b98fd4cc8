package domain

import (
	"path/filepath"
	"strings"
)

// VideoID is the platform's own identifier for a video.
type VideoID string

// String returns the string representation of the VideoID.
func (id VideoID) String() string {
	return string(id)
}

// VideoSummary is a single search hit.
type VideoSummary struct {
	ID        VideoID
	Title     string
	URL       string
	Duration  *int // seconds, nil when the platform does not report one
	Thumbnail string
	Channel   string
}

// VideoDetail is the full metadata of one video, including the encodings it
// can be downloaded in.
type VideoDetail struct {
	ID        VideoID
	Title     string
	URL       string
	Duration  *int
	Thumbnail string
	Channel   string
	Formats   []EncodingOption
}

// EncodingOption is one concrete encoding the extractor can produce.
type EncodingOption struct {
	FormatID   string
	Extension  string
	Resolution string // e.g. "1920x1080", a bare height, or "audio"
	FileSize   int64  // bytes, 0 if unknown
	Note       string
	SourceURL  string // informational only
}

// Mode selects what a download produces.
type Mode string

const (
	// ModeVideo downloads muxed mp4 video with audio.
	ModeVideo Mode = "video-container"
	// ModeAudio downloads the best audio and transcodes it to a fixed codec.
	ModeAudio Mode = "audio-extract"
	// ModeExplicit downloads the exact encoding named by a format identifier.
	ModeExplicit Mode = "explicit-format"
)

// DownloadRequest is a validated request to produce one file.
type DownloadRequest struct {
	URL      string
	Mode     Mode
	FormatID string // only meaningful for ModeExplicit
}

// ContentKind is the declared kind of a produced file.
type ContentKind string

const (
	KindVideo ContentKind = "video"
	KindAudio ContentKind = "audio"
)

// audioExtensions maps the audio codecs yt-dlp can extract to the file
// extension it writes for each.
var audioExtensions = map[string]string{
	"mp3":    "mp3",
	"aac":    "m4a",
	"alac":   "m4a",
	"m4a":    "m4a",
	"flac":   "flac",
	"opus":   "opus",
	"vorbis": "ogg",
	"wav":    "wav",
}

// KnownAudioCodec reports whether codec is one the extractor can transcode to.
func KnownAudioCodec(codec string) bool {
	_, ok := audioExtensions[strings.ToLower(codec)]
	return ok
}

// AudioExtension returns the extension, without the dot, of a file extracted
// with codec. Unknown codecs map to themselves.
func AudioExtension(codec string) string {
	codec = strings.ToLower(codec)
	if ext, ok := audioExtensions[codec]; ok {
		return ext
	}
	return codec
}

// FetchResult describes what the extractor wrote to disk.
type FetchResult struct {
	VideoID VideoID
	Title   string
	Path    string
	Kind    ContentKind
}

// ManagedFile binds one request to exactly one file on disk. It is created
// when the extractor finishes writing and released after the response is sent.
type ManagedFile struct {
	Path string
	// Source is the path the extractor reported before post-processing; it is
	// removed together with Path if it differs.
	Source      string
	Kind        ContentKind
	Filename    string // suggested external filename
	ContentType string
}

// Extension returns the lowercase extension of the managed file without the dot.
func (f *ManagedFile) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Path), "."))
}

// CredentialBundle points at platform cookies used to unlock restricted content.
type CredentialBundle struct {
	CookiesFile string
}

// Configured reports whether a credential path was supplied at all.
func (c *CredentialBundle) Configured() bool {
	return c != nil && c.CookiesFile != ""
}
