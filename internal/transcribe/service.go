// Package transcribe turns a local audio file into text with a Whisper
// engine, fetching model weights on first use.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fmueller/ytscribe/internal/download"
	"github.com/fmueller/ytscribe/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrModelMissing is returned when weights are absent and auto download is off.
var ErrModelMissing = errors.New("model weights missing")

type Options struct {
	Engine       whisper.Engine
	ModelDir     string
	AutoDownload bool
	NoProgress   bool
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

type Service struct {
	engine       whisper.Engine
	modelDir     string
	autoDownload bool
	noProgress   bool
	httpClient   *http.Client
	logger       *zap.Logger

	// downloads collapses concurrent fetches of the same weights file.
	downloads    singleflight.Group
	fetchWeights func(context.Context, download.Options) error
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		engine:       opts.Engine,
		modelDir:     opts.ModelDir,
		autoDownload: opts.AutoDownload,
		noProgress:   opts.NoProgress,
		httpClient:   opts.HTTPClient,
		logger:       logger,
		fetchWeights: download.File,
	}
}

// Transcribe runs one full pass of the variant's model over audioPath.
// Nothing is cached between calls.
func (s *Service) Transcribe(ctx context.Context, audioPath string, variant whisper.Variant) (string, error) {
	if s.engine == nil {
		return "", errors.New("no transcription engine configured")
	}

	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	req := whisper.Request{AudioPath: audioPath, Variant: variant}
	if s.engine.RequiresModelFile() {
		model, err := s.EnsureModel(ctx, variant)
		if err != nil {
			return "", err
		}
		req.ModelPath = model.Path
	}

	s.logger.Debug("transcribing", zap.String("audio", audioPath), zap.String("model", string(variant)), zap.String("weights", req.ModelPath))
	started := time.Now()

	text, err := s.engine.Transcribe(ctx, req)
	if err != nil {
		s.logger.Debug("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	s.logger.Debug("transcription finished", zap.Duration("elapsed", time.Since(started)))

	return text, nil
}

// Prepare makes sure the engine can run variant, fetching weights up front
// so a missing model is noticed before any audio is downloaded.
func (s *Service) Prepare(ctx context.Context, variant whisper.Variant) error {
	if s.engine == nil {
		return errors.New("no transcription engine configured")
	}
	if !s.engine.RequiresModelFile() {
		return nil
	}
	_, err := s.EnsureModel(ctx, variant)
	return err
}

// EnsureModel resolves the weights for variant, downloading them if allowed.
func (s *Service) EnsureModel(ctx context.Context, variant whisper.Variant) (whisper.ResolvedModel, error) {
	resolved, err := whisper.ResolveModel(string(variant), s.modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}
	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !s.autoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("%w: %q not found at %s; run `ytscribe setup --model %s` or use --auto-download=true",
			ErrModelMissing, resolved.Variant, resolved.Path, resolved.Variant)
	}

	_, err, _ = s.downloads.Do(resolved.Path, func() (any, error) {
		if _, err := os.Stat(resolved.Path); err == nil {
			return nil, nil
		}
		s.logger.Info("Model weights not found, downloading...", zap.String("model", string(resolved.Variant)), zap.String("destination", resolved.Path))
		return nil, s.fetchWeights(ctx, download.Options{
			URL:            resolved.URL,
			Destination:    resolved.Path,
			ExpectedSHA256: resolved.SHA256,
			NoProgress:     s.noProgress,
			HTTPClient:     s.httpClient,
			Logger:         s.logger,
		})
	})
	if err != nil {
		return whisper.ResolvedModel{}, fmt.Errorf("download model %q: %w", resolved.Variant, err)
	}

	resolved.NeedsDownload = false
	return resolved, nil
}
