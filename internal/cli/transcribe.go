package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/fmueller/ytscribe/internal/whisper"
	"github.com/spf13/cobra"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var (
		output string
		model  = string(whisper.DefaultVariant)
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a local audio file without downloading anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath := filepath.Clean(args[0])
			if output == "" {
				output = strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".txt"
			}
			return app.transcribeLocal(cmd, audioPath, output, model)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", output, "File to save the transcription (default <audio-file>.txt)")
	cmd.Flags().StringVarP(&model, "model", "m", model, "Whisper model: tiny|base|small|medium|large")
	return cmd
}

func (a *appState) transcribeLocal(cmd *cobra.Command, audioPath, output, model string) error {
	variant, err := whisper.ParseVariant(model)
	if err != nil {
		return pipeline.Fail(pipeline.KindValidation, err)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return pipeline.Fail(pipeline.KindValidation, fmt.Errorf("audio file not found: %w", err))
	}

	if err := a.ensureConfig(cmd); err != nil {
		return err
	}
	if err := a.preflightFn(cmd.Context(), variant); err != nil {
		return pipeline.Fail(pipeline.KindTranscription, err)
	}
	transcriber, err := a.transcriberFn()
	if err != nil {
		return pipeline.Fail(pipeline.KindTranscription, err)
	}

	spinner := newStepSpinner(a.progressEnabled())
	result, err := (&pipeline.Pipeline{
		Fetcher:     localAudio{},
		Transcriber: transcriber,
		Write:       a.writeFn,
		Logger:      a.log(),
		BeforeStep:  spinner.before,
		AfterStep:   spinner.after,
	}).Run(cmd.Context(), pipeline.Job{
		URL:            "file://" + audioPath,
		AudioPath:      audioPath,
		TranscriptPath: output,
		Model:          variant,
	})
	if err != nil {
		return err
	}

	if isBlankTranscript(result.Text) {
		a.log().Warn(noSpeechHint())
	}
	a.log().Info("Transcription completed successfully!")
	return nil
}

// localAudio is a Fetcher for audio that is already on disk.
type localAudio struct{}

func (localAudio) Fetch(context.Context, string, string) error { return nil }
