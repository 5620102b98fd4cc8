// Package tempfile manages the transient download directory: files are
// created by the extractor, handed to exactly one response and then deleted.
package tempfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// OutputTemplate names downloads after the platform video ID so concurrent
// downloads of different videos never collide.
const OutputTemplate = "%(id)s.%(ext)s"

// Options configures a Registry.
type Options struct {
	Dir            string
	TitleMaxLength int
	AudioCodec     string
}

// Registry tracks files in the download directory.
type Registry struct {
	fs             afero.Fs
	dir            string
	titleMaxLength int
	audioExt       string
	logger         *slog.Logger
}

// NewRegistry creates a registry rooted at opts.Dir, resolved to an absolute path.
func NewRegistry(fsys afero.Fs, opts Options, logger *slog.Logger) (*Registry, error) {
	if opts.Dir == "" {
		return nil, errors.New("download directory is required")
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve download directory: %w", err)
	}
	if opts.TitleMaxLength < 1 {
		opts.TitleMaxLength = 50
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = domain.FormatMP3
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		fs:             fsys,
		dir:            dir,
		titleMaxLength: opts.TitleMaxLength,
		audioExt:       domain.AudioExtension(opts.AudioCodec),
		logger:         logger,
	}, nil
}

// Dir returns the absolute download directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Fs returns the filesystem the registry operates on.
func (r *Registry) Fs() afero.Fs {
	return r.fs
}

// Template returns the yt-dlp output template for the download directory.
func (r *Registry) Template() string {
	return filepath.Join(r.dir, OutputTemplate)
}

// Ensure creates the download directory if it does not exist.
func (r *Registry) Ensure() error {
	if err := r.fs.MkdirAll(r.dir, 0755); err != nil {
		return &domain.FilesystemError{Path: r.dir, Err: err}
	}
	return nil
}

// Sweep deletes every entry in the download directory. Per-entry failures are
// logged and skipped; only an unreadable directory is returned as an error.
func (r *Registry) Sweep() (int, error) {
	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, &domain.FilesystemError{Path: r.dir, Err: err}
	}

	removed := 0
	var freed uint64
	for _, entry := range entries {
		path := filepath.Join(r.dir, entry.Name())
		if err := r.fs.RemoveAll(path); err != nil {
			r.logger.Warn("sweep: failed to remove stale file",
				"path", path,
				"error", err,
			)
			continue
		}
		removed++
		if !entry.IsDir() && entry.Size() > 0 {
			freed += uint64(entry.Size())
		}
	}

	if removed > 0 {
		r.logger.Info("swept stale downloads",
			"dir", r.dir,
			"removed", removed,
			"freed", humanize.IBytes(freed),
		)
	}
	return removed, nil
}

// Finalize binds a completed fetch to the file it produced. For audio the
// path is rewritten to the extension the codec is written with; the
// pre-transcode path is kept as Source so Release removes it too.
func (r *Registry) Finalize(res *domain.FetchResult, mode domain.Mode) (*domain.ManagedFile, error) {
	if res == nil || res.Path == "" {
		return nil, &domain.FilesystemError{Err: domain.ErrFileNotFound}
	}

	source := res.Path
	path := res.Path
	if mode == domain.ModeAudio {
		path = replaceExt(path, r.audioExt)
	}

	if _, err := r.fs.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.FilesystemError{Path: path, Err: domain.ErrFileNotFound}
		}
		return nil, &domain.FilesystemError{Path: path, Err: err}
	}

	mf := &domain.ManagedFile{
		Path:   path,
		Source: source,
		Kind:   mode.Kind(),
	}
	ext := r.extensionFor(mode, mf)
	mf.Filename = SuggestedFilename(res.Title, res.VideoID.String(), r.titleMaxLength) + "." + ext
	mf.ContentType = ContentType(mf.Kind, ext)
	return mf, nil
}

// Release deletes the managed file. It is idempotent and never fails: a file
// that is already gone is fine, anything else is logged.
func (r *Registry) Release(mf *domain.ManagedFile) {
	if mf == nil {
		return
	}
	r.remove(mf.Path)
	if mf.Source != "" && mf.Source != mf.Path {
		r.remove(mf.Source)
	}
}

func (r *Registry) remove(path string) {
	info, statErr := r.fs.Stat(path)
	if err := r.fs.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		r.logger.Warn("failed to remove temp file",
			"error", &domain.FilesystemError{Path: path, Err: err},
		)
		return
	}
	if statErr == nil {
		r.logger.Debug("temp file removed",
			"path", path,
			"size", humanize.IBytes(uint64(info.Size())),
		)
	}
}

// Writable reports whether a file can be created in the download directory.
func (r *Registry) Writable() error {
	f, err := afero.TempFile(r.fs, r.dir, ".probe-*")
	if err != nil {
		return &domain.FilesystemError{Path: r.dir, Err: err}
	}
	name := f.Name()
	_ = f.Close()
	_ = r.fs.Remove(name)
	return nil
}

func (r *Registry) extensionFor(mode domain.Mode, mf *domain.ManagedFile) string {
	switch mode {
	case domain.ModeAudio:
		return r.audioExt
	case domain.ModeExplicit:
		if ext := mf.Extension(); ext != "" {
			return ext
		}
	}
	return domain.FormatMP4
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}
