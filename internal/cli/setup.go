package cli

import (
	"context"
	"fmt"

	"github.com/fmueller/ytscribe/internal/config"
	"github.com/fmueller/ytscribe/internal/download"
	"github.com/fmueller/ytscribe/internal/fetch"
	"github.com/fmueller/ytscribe/internal/platform"
	"github.com/fmueller/ytscribe/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const allModels = "all"

func newSetupCmd(app *appState) *cobra.Command {
	var (
		model      = string(whisper.DefaultVariant)
		skipYTDLP  bool
		skipConfig bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download and verify model weights and the yt-dlp executable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			refs := []string{model}
			if model == allModels {
				refs = whisper.ModelNames()
			}

			if err := app.ensureConfig(cmd); err != nil {
				return err
			}
			modelDir, err := platform.EnsureModelDir(app.cfg.ModelDir)
			if err != nil {
				return err
			}

			for _, ref := range refs {
				if err := app.setupModel(cmd, ref, modelDir); err != nil {
					return err
				}
			}

			if !skipYTDLP {
				path, err := app.installYTDLP(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "yt-dlp available at %s\n", path)
			}

			if !skipConfig {
				path, created, err := config.WriteDefault(platform.ConfigDir())
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", model, "Model to install: tiny|base|small|medium|large|all")
	cmd.Flags().BoolVar(&skipYTDLP, "skip-ytdlp", skipYTDLP, "Do not check for or install yt-dlp")
	cmd.Flags().BoolVar(&skipConfig, "skip-config", skipConfig, "Do not write a default config.toml")

	return cmd
}

func (a *appState) setupModel(cmd *cobra.Command, ref, modelDir string) error {
	resolved, err := whisper.ResolveModel(ref, modelDir)
	if err != nil {
		return err
	}
	if resolved.IsCustomPath {
		return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
	}

	if !resolved.NeedsDownload {
		if err := download.VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
			a.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", string(resolved.Variant)), zap.Error(err))
			resolved.NeedsDownload = true
		}
	}

	if !resolved.NeedsDownload {
		a.log().Debug("model already present", zap.String("model", string(resolved.Variant)), zap.String("path", resolved.Path))
		fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s\n", resolved.Variant, resolved.Path)
		return nil
	}

	a.log().Info("downloading model", zap.String("model", string(resolved.Variant)), zap.String("path", resolved.Path))
	if err := download.File(cmd.Context(), download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	}); err != nil {
		return fmt.Errorf("download model %s: %w", resolved.Variant, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", resolved.Variant, resolved.Path)
	return nil
}

func (a *appState) installYTDLP(ctx context.Context) (string, error) {
	a.log().Info("checking for yt-dlp")
	stop := startSpinner(a.progressEnabled(), "Installing yt-dlp")
	defer stop()
	return fetch.Install(ctx)
}
