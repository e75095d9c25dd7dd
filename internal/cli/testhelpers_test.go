package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/ytscribe/internal/config"
	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/fmueller/ytscribe/internal/whisper"
	"github.com/spf13/cobra"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runApp(t, newAppState(), args)
}

func runApp(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// fakeFetcher writes a small mp3 stub, optionally before failing, so cleanup
// can be observed on every path.
type fakeFetcher struct {
	calls         int
	err           error
	writePartial  bool
	lastURL, dest string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, dest string) error {
	f.calls++
	f.lastURL, f.dest = url, dest
	if f.err != nil {
		if f.writePartial {
			_ = os.WriteFile(dest, []byte("ID3 partial"), 0o644)
		}
		return f.err
	}
	return os.WriteFile(dest, []byte("ID3 audio"), 0o644)
}

type fakeTranscriber struct {
	text    string
	err     error
	variant whisper.Variant
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, variant whisper.Variant) (string, error) {
	f.variant = variant
	return f.text, f.err
}

type testApp struct {
	*appState
	dir         string
	fetcher     *fakeFetcher
	transcriber *fakeTranscriber
	preflights  []whisper.Variant
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dir := t.TempDir()
	ta := &testApp{
		appState:    newAppState(),
		dir:         dir,
		fetcher:     &fakeFetcher{},
		transcriber: &fakeTranscriber{text: "And that's pretty much all there is to say."},
	}
	ta.audioPath = filepath.Join(dir, tempAudioFile)
	ta.loadConfigFn = func(*cobra.Command) (*config.Config, error) {
		return &config.Config{
			OutputDir:    filepath.Join(dir, "transcriptions"),
			Listen:       "127.0.0.1:0",
			ModelDir:     filepath.Join(dir, "models"),
			Engine:       config.EngineWhisperCPP,
			AutoDownload: false,
			GinMode:      "test",
		}, nil
	}
	ta.preflightFn = func(_ context.Context, v whisper.Variant) error {
		ta.preflights = append(ta.preflights, v)
		return nil
	}
	ta.fetcherFn = func() pipeline.Fetcher { return ta.fetcher }
	ta.transcriberFn = func() (pipeline.Transcriber, error) { return ta.transcriber, nil }
	return ta
}

func (ta *testApp) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runApp(t, ta.appState, args)
	return stdout, err
}
