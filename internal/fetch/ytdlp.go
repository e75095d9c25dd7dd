// Package fetch pulls the audio track of a media URL into a local mp3 file
// using yt-dlp.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// AudioFormat is the only container/codec the fetcher produces.
const AudioFormat = "mp3"

// Error reports a failed yt-dlp run together with the tool's diagnostics.
type Error struct {
	URL      string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("yt-dlp failed for %s: %v", e.URL, e.Err)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\nOutput: " + out
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

var errNoAudio = errors.New("no audio file produced")

type runFunc func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error)

// YTDLP fetches audio by running yt-dlp once per call. It never retries and
// leaves partial files where yt-dlp put them.
type YTDLP struct {
	executable string
	logger     *zap.Logger
	run        runFunc
}

// NewYTDLP uses executable when set, otherwise yt-dlp from $PATH.
func NewYTDLP(executable string, logger *zap.Logger) *YTDLP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YTDLP{
		executable: executable,
		logger:     logger,
		run: func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error) {
			return cmd.Run(ctx, url)
		},
	}
}

// Fetch downloads url's audio as mp3 to dest.
func (y *YTDLP) Fetch(ctx context.Context, url, dest string) error {
	dl := ytdlp.New().
		Format("bestaudio").
		NoPlaylist().
		ExtractAudio().
		AudioFormat(AudioFormat).
		Output(dest)
	if y.executable != "" {
		dl = dl.SetExecutable(y.executable)
	}

	y.logger.Debug("running yt-dlp", zap.String("url", url), zap.String("output", dest))
	result, err := y.run(ctx, dl, url)
	if err != nil {
		fetchErr := &Error{URL: url, Err: err}
		if result != nil {
			fetchErr.ExitCode = result.ExitCode
			fetchErr.Output = result.Stderr
		}
		return fetchErr
	}

	info, err := os.Stat(dest)
	if err != nil || info.IsDir() {
		out := ""
		if result != nil {
			out = result.Stdout
		}
		return &Error{URL: url, Output: out, Err: fmt.Errorf("%w at %s", errNoAudio, dest)}
	}

	return nil
}

// Install makes sure a yt-dlp executable is available, downloading one into
// the user cache when it is not on $PATH, and returns its path.
func Install(ctx context.Context) (string, error) {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("install yt-dlp: %w", err)
	}
	return resolved.Executable, nil
}
