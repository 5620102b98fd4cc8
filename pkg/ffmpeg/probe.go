// Package ffmpeg reports whether the ffmpeg toolchain that yt-dlp uses for
// merging and audio extraction is installed.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Probe locates ffmpeg and ffprobe.
type Probe struct {
	ffmpeg  string
	ffprobe string

	lookPath func(string) (string, error)
	output   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewProbe creates a probe that searches PATH.
func NewProbe() *Probe {
	return &Probe{
		ffmpeg:   "ffmpeg",
		ffprobe:  "ffprobe",
		lookPath: exec.LookPath,
		output: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// IsAvailable checks that both ffmpeg and ffprobe are on PATH.
func (p *Probe) IsAvailable() bool {
	if _, err := p.lookPath(p.ffmpeg); err != nil {
		return false
	}
	_, err := p.lookPath(p.ffprobe)
	return err == nil
}

// Version returns the ffmpeg version, e.g. "6.1.1".
func (p *Probe) Version(ctx context.Context) (string, error) {
	path, err := p.lookPath(p.ffmpeg)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	out, err := p.output(ctx, path, "-version")
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	return parseVersion(string(out)), nil
}

// parseVersion extracts the version token from the first line of
// `ffmpeg -version`.
func parseVersion(output string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(first)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	if first == "" {
		return "unknown"
	}
	return first
}
