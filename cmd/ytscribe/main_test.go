package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/fmueller/ytscribe/internal/cli"
	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/fmueller/ytscribe/internal/whisper"
	"github.com/stretchr/testify/require"
)

func TestIsUsageError(t *testing.T) {
	t.Parallel()

	unknownModel := fmt.Errorf("%w %q (choose from tiny, base, small, medium, large)", whisper.ErrUnknownVariant, "huge")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unknown command", err: errors.New("unknown command \"bad\" for \"ytscribe version\""), want: true},
		{name: "unknown flag", err: errors.New("unknown flag: --oops"), want: true},
		{name: "arg count", err: errors.New("accepts 1 arg(s), received 0"), want: true},
		{name: "invalid model", err: pipeline.Fail(pipeline.KindValidation, unknownModel), want: true},
		{name: "wrapped validation", err: fmt.Errorf("transcribe: %w", pipeline.Failf(pipeline.KindValidation, "audio file not found")), want: true},
		{name: "download failure", err: pipeline.Fail(pipeline.KindDownload, errors.New("yt-dlp failed for https://youtu.be/x: exit status 1")), want: false},
		{name: "download failure quoting cobra text", err: pipeline.Fail(pipeline.KindDownload, errors.New("ERROR: option accepts a URL")), want: false},
		{name: "transcription failure", err: pipeline.Fail(pipeline.KindTranscription, errors.New("whisper-cli not found")), want: false},
		{name: "untagged runtime error", err: errors.New("read config: permission denied"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, isUsageError(tt.err))
		})
	}
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "ytscribe", helpHintTarget(root, nil))
	require.Equal(t, "ytscribe", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "ytscribe", helpHintTarget(root, []string{"https://youtu.be/x", "extra"}))
	require.Equal(t, "ytscribe setup", helpHintTarget(root, []string{"setup"}))
	require.Equal(t, "ytscribe serve", helpHintTarget(root, []string{"serve", "--bogus"}))
	require.Equal(t, "ytscribe", helpHintTarget(nil, []string{"setup"}))
}

func TestRunUnknownModelPrintsHint(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	code := run([]string{"https://www.youtube.com/watch?v=jNQXAC9IVRw", "--model", "huge", "--no-progress"}, &stderr)

	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr.String(), "unknown model variant \"huge\"")
	require.Contains(t, stderr.String(), "Run 'ytscribe --help' for usage.")
}

func TestRunUnknownFlagPrintsSubcommandHint(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	code := run([]string{"serve", "--bogus"}, &stderr)

	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr.String(), "unknown flag: --bogus")
	require.Contains(t, stderr.String(), "Run 'ytscribe serve --help' for usage.")
}

func TestRunSuccessExitsZero(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	require.Zero(t, run([]string{"--help"}, &stderr))
	require.Empty(t, stderr.String())
}
