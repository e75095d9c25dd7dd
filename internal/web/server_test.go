package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/fmueller/ytscribe/internal/whisper"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, url, dest string) error {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("ID3 fake audio"), 0o644)
}

type fakeTranscriber struct {
	mu       sync.Mutex
	text     string
	err      error
	variants []whisper.Variant
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, variant whisper.Variant) (string, error) {
	f.mu.Lock()
	f.variants = append(f.variants, variant)
	f.mu.Unlock()
	return f.text, f.err
}

type fixture struct {
	dir         string
	fetcher     *fakeFetcher
	transcriber *fakeTranscriber
	pipeline    *pipeline.Pipeline
	server      *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		dir:         filepath.Join(t.TempDir(), "transcriptions"),
		fetcher:     &fakeFetcher{},
		transcriber: &fakeTranscriber{text: "Me at the zoo. The cool thing about these guys is that they have really long trunks."},
	}
	f.pipeline = &pipeline.Pipeline{Fetcher: f.fetcher, Transcriber: f.transcriber}

	server, err := New(Options{OutputDir: f.dir, Runner: f.pipeline})
	require.NoError(t, err)
	f.server = server
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) submit(values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func form(sourceURL, name, model string) url.Values {
	values := url.Values{"youtube_url": {sourceURL}, "output_name": {name}}
	if model != "" {
		values.Set("model_type", model)
	}
	return values
}

const demoURL = "https://www.youtube.com/watch?v=jNQXAC9IVRw"

func TestNewCreatesOutputDir(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.DirExists(t, f.dir)

	_, err := New(Options{OutputDir: f.dir})
	require.Error(t, err)
}

func TestShowForm(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `name="youtube_url"`)
	require.Contains(t, body, `name="output_name"`)
	require.Contains(t, body, `name="model_type"`)
	require.Contains(t, body, `<option value="base" selected>base</option>`)
	require.Contains(t, body, `<option value="large">large</option>`)
}

func TestEndToEndDemo(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.submit(form(demoURL, "demo", "base"))

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/success/demo.txt", rec.Header().Get("Location"))
	require.FileExists(t, filepath.Join(f.dir, "demo.mp3"))
	require.Equal(t, []string{demoURL}, f.fetcher.calls)
	require.Equal(t, []whisper.Variant{whisper.VariantBase}, f.transcriber.variants)

	content, err := os.ReadFile(filepath.Join(f.dir, "demo.txt"))
	require.NoError(t, err)
	require.Equal(t, f.transcriber.text, string(content))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/success/demo.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `Transcription saved as: <a href="/transcriptions/demo.txt">demo.txt</a>`)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/transcriptions/demo.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `attachment; filename="demo.txt"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, string(content), rec.Body.String())
}

func TestSubmitDefaultsModelToBase(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.submit(form(demoURL, "nomodel", ""))

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, []whisper.Variant{whisper.VariantBase}, f.transcriber.variants)
}

func TestSubmitOverwritesExistingTranscript(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.Equal(t, http.StatusFound, f.submit(form(demoURL, "demo", "tiny")).Code)

	f.transcriber.text = "second run"
	require.Equal(t, http.StatusFound, f.submit(form(demoURL, "demo", "tiny")).Code)

	content, err := os.ReadFile(filepath.Join(f.dir, "demo.txt"))
	require.NoError(t, err)
	require.Equal(t, "second run", string(content))
}

func TestSubmitFailuresRenderPlainTextError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setup      func(f *fixture)
		kind       pipeline.Kind
		wantAudio  bool
		errMessage string
	}{
		{
			name: "download fails",
			setup: func(f *fixture) {
				f.fetcher.err = errors.New("yt-dlp: ERROR: Video unavailable")
			},
			kind:       pipeline.KindDownload,
			wantAudio:  false,
			errMessage: "Video unavailable",
		},
		{
			name: "transcription fails",
			setup: func(f *fixture) {
				f.transcriber.err = errors.New("failed to decode audio")
			},
			kind:       pipeline.KindTranscription,
			wantAudio:  true,
			errMessage: "failed to decode audio",
		},
		{
			name: "write fails",
			setup: func(f *fixture) {
				f.pipeline.Write = func(string, []byte, os.FileMode) error {
					return errors.New("permission denied")
				}
			},
			kind:       pipeline.KindPersistence,
			wantAudio:  true,
			errMessage: "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			tt.setup(f)
			rec := f.submit(form(demoURL, "demo", "base"))

			require.Equal(t, http.StatusOK, rec.Code)
			require.Empty(t, rec.Header().Get("Location"))
			require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
			require.True(t, strings.HasPrefix(rec.Body.String(), "An error occurred: "))
			require.Contains(t, rec.Body.String(), tt.errMessage)
			require.Equal(t, string(tt.kind), rec.Header().Get(FailureKindHeader))

			require.NoFileExists(t, filepath.Join(f.dir, "demo.txt"))
			if tt.wantAudio {
				require.FileExists(t, filepath.Join(f.dir, "demo.mp3"))
			} else {
				require.NoFileExists(t, filepath.Join(f.dir, "demo.mp3"))
			}
		})
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values url.Values
	}{
		{name: "unknown model", values: form(demoURL, "demo", "huge")},
		{name: "missing url", values: form("", "demo", "base")},
		{name: "missing name", values: form(demoURL, "", "base")},
		{name: "name with directory", values: form(demoURL, "../demo", "base")},
		{name: "name with trailing space", values: form(demoURL, "demo ", "base")},
		{name: "blank name", values: form(demoURL, "   ", "base")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			rec := f.submit(tt.values)

			require.Equal(t, http.StatusOK, rec.Code)
			require.True(t, strings.HasPrefix(rec.Body.String(), "An error occurred: "))
			require.Equal(t, string(pipeline.KindValidation), rec.Header().Get(FailureKindHeader))
			require.Empty(t, f.fetcher.calls)
			require.NoFileExists(t, filepath.Join(f.dir, "demo.txt"))
		})
	}
}

func TestDownloadMissingTranscript(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/transcriptions/nope.txt", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIsPlainFileName(t *testing.T) {
	t.Parallel()

	require.True(t, isPlainFileName("demo.txt"))
	require.True(t, isPlainFileName("my talk (2024).txt"))
	require.False(t, isPlainFileName(""))
	require.False(t, isPlainFileName("."))
	require.False(t, isPlainFileName(".."))
	require.False(t, isPlainFileName("../secret.txt"))
	require.False(t, isPlainFileName(`..\secret.txt`))
	require.False(t, isPlainFileName("sub/demo.txt"))
}

func TestHealthzAndRequestID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = f.do(req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestMetricsCountJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.submit(form(demoURL, "ok", "base"))
	f.submit(form(demoURL, "bad", "huge"))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `ytscribe_jobs_total{result="success"} 1`)
	require.Contains(t, body, `ytscribe_jobs_total{result="validation"} 1`)
	require.Contains(t, body, "ytscribe_job_duration_seconds_count 2")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	require.NoError(t, <-done)
}
