package tempfile

import (
	"strings"
	"unicode"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"opus": "audio/opus",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"3gp":  "video/3gpp",
	"flv":  "video/x-flv",
}

// ContentType returns the media type for a file of the given kind and
// extension, falling back to audio/mpeg or video/mp4.
func ContentType(kind domain.ContentKind, ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	if kind == domain.KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// SuggestedFilename derives a download name (without extension) from title.
// Characters that are illegal in filenames or headers are replaced and the
// result is cut to maxRunes. An empty result falls back to id.
func SuggestedFilename(title, id string, maxRunes int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, title)
	name = strings.TrimSpace(name)

	if maxRunes > 0 {
		if runes := []rune(name); len(runes) > maxRunes {
			name = string(runes[:maxRunes])
		}
	}
	name = strings.TrimRight(name, " .")

	if name == "" {
		name = strings.TrimSpace(id)
	}
	if name == "" {
		name = "download"
	}
	return name
}
