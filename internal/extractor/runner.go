package extractor

import (
	"context"

	"github.com/lrstanley/go-ytdlp"
)

// CLIRunner runs the yt-dlp executable through go-ytdlp.
type CLIRunner struct {
	executable string
}

// NewCLIRunner creates a runner for the yt-dlp executable at path.
func NewCLIRunner(path string) *CLIRunner {
	return &CLIRunner{executable: path}
}

// Executable returns the configured yt-dlp path.
func (r *CLIRunner) Executable() string {
	return r.executable
}

// Run builds the command for inv and executes it.
func (r *CLIRunner) Run(ctx context.Context, inv Invocation) (*Output, error) {
	res, err := inv.Command(r.executable).Run(ctx, inv.Target)
	if res == nil {
		return &Output{ExitCode: -1}, err
	}
	return &Output{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
	}, err
}

// Command translates inv into a go-ytdlp command.
func (inv Invocation) Command(executable string) *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings()
	if executable != "" {
		cmd.SetExecutable(executable)
	}

	if inv.FlatPlaylist {
		cmd.FlatPlaylist()
	}
	if inv.NoPlaylist {
		cmd.NoPlaylist()
	}
	if inv.SkipDownload {
		cmd.SkipDownload()
	}
	if inv.DumpJSON {
		cmd.DumpJSON()
	}
	if inv.DumpSingleJSON {
		cmd.DumpSingleJSON()
	}
	if inv.NoSimulate {
		cmd.NoSimulate()
	}
	if inv.Format != "" {
		cmd.Format(inv.Format)
	}
	if inv.Output != "" {
		cmd.Output(inv.Output)
	}
	if inv.Cookies != "" {
		cmd.Cookies(inv.Cookies)
	}
	if inv.ExtractAudio {
		cmd.ExtractAudio()
		if inv.AudioFormat != "" {
			cmd.AudioFormat(inv.AudioFormat)
		}
		if inv.AudioQuality != "" {
			cmd.AudioQuality(inv.AudioQuality)
		}
	}

	return cmd
}
