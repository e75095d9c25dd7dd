// Package download fetches ggml model weights over HTTP and only moves them
// into place once their SHA-256 matches the pinned value.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

const (
	defaultRetries = 3
	userAgent      = "ytscribe/1"
	retryStep      = 300 * time.Millisecond
)

// Options configures a model weights download.
type Options struct {
	URL            string
	Destination    string
	ExpectedSHA256 string
	Retries        int
	NoProgress     bool
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("download URL is required")
	}
	if o.Destination == "" {
		return errors.New("destination path is required")
	}
	if o.Retries <= 0 {
		o.Retries = defaultRetries
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Minute}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.ExpectedSHA256 = normalizeChecksum(o.ExpectedSHA256)
	return nil
}

// File downloads opts.URL to opts.Destination. Each attempt streams into its
// own temp file next to the destination, so concurrent downloads of the same
// weights never see each other's partial bytes. The rename is the only
// write to Destination.
func File(ctx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		if attempt > 1 {
			opts.Logger.Warn("retrying model download",
				zap.Int("attempt", attempt), zap.Int("max", opts.Retries), zap.String("url", opts.URL), zap.Error(lastErr))
			if err := backoff(ctx, attempt); err != nil {
				return err
			}
		}

		if lastErr = fetchOnce(ctx, opts); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * retryStep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// VerifyFileChecksum hashes an existing weights file. An empty expected
// checksum always passes.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := normalizeChecksum(expectedSHA256)
	if expected == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}
	return compareChecksum(expected, h)
}

func fetchOnce(ctx context.Context, opts Options) error {
	part, err := os.CreateTemp(filepath.Dir(opts.Destination), filepath.Base(opts.Destination)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	partPath := part.Name()

	keep := false
	defer func() {
		_ = part.Close()
		if !keep {
			_ = os.Remove(partPath)
		}
	}()

	body, size, err := open(ctx, opts)
	if err != nil {
		return err
	}
	defer body.Close()

	h := sha256.New()
	sinks := []io.Writer{part, h}
	bar := newProgressBar(opts.NoProgress, size)
	if bar != nil {
		sinks = append(sinks, bar)
	}

	if _, err := io.Copy(io.MultiWriter(sinks...), body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := compareChecksum(opts.ExpectedSHA256, h); err != nil {
		return err
	}
	if err := part.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := part.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(partPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(partPath, opts.Destination); err != nil {
		return fmt.Errorf("move temp file into destination: %w", err)
	}

	keep = true
	return nil
}

// open starts the GET and returns the body with its advertised length.
func open(ctx context.Context, opts Options) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func compareChecksum(expected string, h hash.Hash) error {
	if expected == "" {
		return nil
	}
	if actual := hex.EncodeToString(h.Sum(nil)); actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}

func normalizeChecksum(sum string) string {
	return strings.ToLower(strings.TrimSpace(sum))
}

func newProgressBar(noProgress bool, size int64) *progressbar.ProgressBar {
	if noProgress || size <= 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return progressbar.NewOptions64(
		size,
		progressbar.OptionSetDescription("downloading model"),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}
