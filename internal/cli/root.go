package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fmueller/ytscribe/internal/config"
	"github.com/fmueller/ytscribe/internal/fetch"
	"github.com/fmueller/ytscribe/internal/logging"
	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/fmueller/ytscribe/internal/platform"
	"github.com/fmueller/ytscribe/internal/transcribe"
	"github.com/fmueller/ytscribe/internal/version"
	"github.com/fmueller/ytscribe/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// tempAudioFile is where the CLI puts the downloaded audio. It is removed
// when the command returns.
const tempAudioFile = "audio.mp3"

type appState struct {
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	configFile   string
	output       string
	model        string
	modelDir     string
	engine       string
	whisperPath  string
	autoDownload bool
	audioPath    string

	cfg    *config.Config
	logger *zap.Logger
	svc    *transcribe.Service

	loadConfigFn  func(cmd *cobra.Command) (*config.Config, error)
	preflightFn   func(ctx context.Context, variant whisper.Variant) error
	fetcherFn     func() pipeline.Fetcher
	transcriberFn func() (pipeline.Transcriber, error)
	writeFn       pipeline.WriteFunc
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	app := &appState{
		output:       "transcription.txt",
		model:        string(whisper.DefaultVariant),
		engine:       config.EngineWhisperCPP,
		autoDownload: true,
		audioPath:    tempAudioFile,
	}
	app.loadConfigFn = app.loadConfig
	app.preflightFn = app.prepareModel
	app.fetcherFn = app.newFetcher
	app.transcriberFn = app.newTranscriber
	app.writeFn = os.WriteFile
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ytscribe <url>",
		Short:         "Download a video's audio and transcribe it with Whisper",
		Example:       "  ytscribe https://www.youtube.com/watch?v=jNQXAC9IVRw --output zoo.txt --model small",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, Writer: cmd.OutOrStdout()})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTranscribe(cmd, args[0])
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindGlobalFlags(cmd, app)
	cmd.Flags().StringVarP(&app.output, "output", "o", app.output, "File to save the transcription")
	cmd.Flags().StringVarP(&app.model, "model", "m", app.model, "Whisper model: tiny|base|small|medium|large")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newModelsCmd(app))
	cmd.AddCommand(newVersionCmd(app))

	return cmd
}

func bindGlobalFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	flags.StringVar(&app.configFile, "config", app.configFile, "Config file (default $XDG_CONFIG_HOME/ytscribe/config.toml)")
	flags.StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where model weights are stored")
	flags.StringVar(&app.engine, "engine", app.engine, "Transcription engine: whisper-cpp|openai")
	flags.StringVar(&app.whisperPath, "whisper-path", app.whisperPath, "Path to the whisper-cli executable")
	flags.BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing model weights")
}

func (a *appState) runTranscribe(cmd *cobra.Command, url string) error {
	ctx := cmd.Context()

	variant, err := whisper.ParseVariant(a.model)
	if err != nil {
		return pipeline.Fail(pipeline.KindValidation, err)
	}

	// From here on the temp audio is gone when the command returns,
	// whichever step fails.
	defer a.removeTempAudio(a.audioPath)

	if err := a.ensureConfig(cmd); err != nil {
		return err
	}
	if err := a.preflightFn(ctx, variant); err != nil {
		return pipeline.Fail(pipeline.KindTranscription, err)
	}
	transcriber, err := a.transcriberFn()
	if err != nil {
		return pipeline.Fail(pipeline.KindTranscription, err)
	}

	spinner := newStepSpinner(a.progressEnabled())
	p := &pipeline.Pipeline{
		Fetcher:     a.fetcherFn(),
		Transcriber: transcriber,
		Write:       a.writeFn,
		Logger:      a.log(),
		BeforeStep:  spinner.before,
		AfterStep:   spinner.after,
	}

	result, err := p.Run(ctx, pipeline.Job{
		URL:            url,
		AudioPath:      a.audioPath,
		TranscriptPath: a.output,
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

func (a *appState) removeTempAudio(path string) {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}
	a.log().Warn("failed to remove temporary audio", zap.String("path", path), zap.Error(err))
}

func (a *appState) ensureConfig(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := a.loadConfigFn(cmd)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log().Debug("configuration loaded", zap.String("file", cfg.ConfigFile), zap.String("engine", cfg.Engine), zap.String("model_dir", cfg.ModelDir))
	return nil
}

func (a *appState) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: a.configFile, Flags: cmd.Flags()})
}

func (a *appState) service() (*transcribe.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	if a.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}

	var engine whisper.Engine
	switch a.cfg.Engine {
	case config.EngineOpenAI:
		openaiEngine, err := whisper.NewOpenAIEngine(a.cfg.OpenAIAPIKey, a.log())
		if err != nil {
			return nil, err
		}
		engine = openaiEngine
	default:
		cliEngine, err := whisper.NewCLIEngine(a.cfg.WhisperPath, a.log())
		if err != nil {
			return nil, err
		}
		engine = cliEngine
	}

	modelDir, err := platform.EnsureModelDir(a.cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	a.svc = transcribe.New(transcribe.Options{
		Engine:       engine,
		ModelDir:     modelDir,
		AutoDownload: a.cfg.AutoDownload,
		NoProgress:   a.noProgress,
		Logger:       a.log(),
	})
	return a.svc, nil
}

func (a *appState) prepareModel(ctx context.Context, variant whisper.Variant) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.Prepare(ctx, variant)
}

func (a *appState) newTranscriber() (pipeline.Transcriber, error) {
	return a.service()
}

func (a *appState) newFetcher() pipeline.Fetcher {
	return fetch.NewYTDLP("", a.log())
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
