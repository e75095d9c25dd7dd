// Package pipeline sequences one transcription job: fetch the audio, run it
// through a Whisper engine, write the text to disk.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/ytscribe/internal/whisper"
	"go.uber.org/zap"
)

// Job is one transcription request. Nothing about it outlives Run.
type Job struct {
	URL            string
	AudioPath      string
	TranscriptPath string
	Model          whisper.Variant
}

// Result describes a finished job.
type Result struct {
	AudioPath      string
	TranscriptPath string
	Text           string
}

// Fetcher pulls the audio of url into dest as mp3.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Transcriber turns an audio file into text with the given model variant.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, variant whisper.Variant) (string, error)
}

// WriteFunc matches os.WriteFile.
type WriteFunc func(name string, data []byte, perm os.FileMode) error

// Step identifies a stage for progress hooks.
type Step string

const (
	StepFetch      Step = "fetch"
	StepTranscribe Step = "transcribe"
	StepPersist    Step = "persist"
)

type Pipeline struct {
	Fetcher     Fetcher
	Transcriber Transcriber
	Write       WriteFunc
	Logger      *zap.Logger

	// BeforeStep and AfterStep, when set, bracket every step that runs.
	BeforeStep func(Step)
	AfterStep  func(Step, error)
}

// Run executes Fetch, Transcribe and Persist in order and stops at the
// first failure. Every returned error is a *Failure. Run never retries and
// never removes the audio file.
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	write := p.Write
	if write == nil {
		write = os.WriteFile
	}

	if err := job.validate(); err != nil {
		return Result{}, err
	}

	err := p.step(StepFetch, func() error {
		log.Info("Downloading audio...", zap.String("url", job.URL))
		if err := p.Fetcher.Fetch(ctx, job.URL, job.AudioPath); err != nil {
			return Fail(KindDownload, err)
		}
		if err := checkReadable(job.AudioPath); err != nil {
			return Fail(KindDownload, err)
		}
		log.Info("Audio downloaded to " + job.AudioPath)
		return nil
	})
	if err != nil {
		log.Error("Failed to download audio: " + err.Error())
		return Result{}, err
	}

	var text string
	err = p.step(StepTranscribe, func() error {
		log.Info("Transcribing audio...", zap.String("model", string(job.Model)))
		var err error
		text, err = p.Transcriber.Transcribe(ctx, job.AudioPath, job.Model)
		return Fail(KindTranscription, err)
	})
	if err != nil {
		log.Error("Failed to transcribe audio: " + err.Error())
		return Result{}, err
	}

	err = p.step(StepPersist, func() error {
		if err := write(job.TranscriptPath, []byte(text), 0o644); err != nil {
			return Fail(KindPersistence, fmt.Errorf("write transcript: %w", err))
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to save transcription: " + err.Error())
		return Result{}, err
	}
	log.Info("Transcription saved to " + job.TranscriptPath)

	return Result{AudioPath: job.AudioPath, TranscriptPath: job.TranscriptPath, Text: text}, nil
}

func (p *Pipeline) step(s Step, fn func() error) error {
	if p.BeforeStep != nil {
		p.BeforeStep(s)
	}
	err := fn()
	if p.AfterStep != nil {
		p.AfterStep(s, err)
	}
	return err
}

func (j Job) validate() error {
	if strings.TrimSpace(j.URL) == "" {
		return Failf(KindValidation, "source URL is required")
	}
	if j.AudioPath == "" || j.TranscriptPath == "" {
		return Failf(KindValidation, "audio and transcript paths are required")
	}
	if _, err := whisper.ParseVariant(string(j.Model)); err != nil {
		return Fail(KindValidation, err)
	}
	return nil
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("audio file not readable after download: %w", err)
	}
	return f.Close()
}
