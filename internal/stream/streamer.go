// Package stream sends managed files to HTTP clients and releases them
// afterwards, however the response ends.
package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// ErrAborted is returned when the body could not be fully written, usually
// because the client went away. Headers have been sent by then.
var ErrAborted = errors.New("stream aborted")

// Releaser deletes a managed file once it is no longer needed.
type Releaser interface {
	Release(mf *domain.ManagedFile)
}

// Streamer writes managed files to responses.
type Streamer struct {
	fs       afero.Fs
	releaser Releaser
	logger   *slog.Logger
}

// NewStreamer creates a streamer reading from fsys.
func NewStreamer(fsys afero.Fs, releaser Releaser, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		fs:       fsys,
		releaser: releaser,
		logger:   logger,
	}
}

// Serve streams mf to w and releases it on every exit path. An error
// wrapping ErrAborted means the response is already committed; any other
// error occurred before anything was written.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, mf *domain.ManagedFile) (int64, error) {
	defer s.releaser.Release(mf)

	f, err := s.fs.Open(mf.Path)
	if err != nil {
		return 0, &domain.FilesystemError{Path: mf.Path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, &domain.FilesystemError{Path: mf.Path, Err: err}
	}

	h := w.Header()
	h.Set("Content-Type", mf.ContentType)
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("Content-Disposition", ContentDisposition(mf.Filename))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return 0, nil
	}

	start := time.Now()
	n, err := io.Copy(w, f)
	if err != nil {
		s.logger.Warn("stream interrupted",
			"file", mf.Filename,
			"sent", humanize.IBytes(uint64(n)),
			"size", humanize.IBytes(uint64(info.Size())),
			"client_gone", r.Context().Err() != nil,
			"error", err,
		)
		return n, fmt.Errorf("%w: %v", ErrAborted, err)
	}

	s.logger.Debug("stream complete",
		"file", mf.Filename,
		"size", humanize.IBytes(uint64(n)),
		"duration", time.Since(start),
	)
	return n, nil
}

// ContentDisposition builds an attachment header carrying both an ASCII
// fallback filename and the UTF-8 original.
func ContentDisposition(filename string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)

	return `attachment; filename="` + fallback + `"; filename*=UTF-8''` + encodeExtValue(filename)
}

// encodeExtValue percent-encodes s as an RFC 5987 ext-value.
func encodeExtValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
