package cli

import (
	"os/signal"
	"syscall"

	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/fmueller/ytscribe/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transcription web form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.ensureConfig(cmd); err != nil {
				return err
			}
			gin.SetMode(app.cfg.GinMode)

			transcriber, err := app.transcriberFn()
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			server, err := web.New(web.Options{
				OutputDir: app.cfg.OutputDir,
				Runner: &pipeline.Pipeline{
					Fetcher:     app.fetcherFn(),
					Transcriber: transcriber,
					Write:       app.writeFn,
					Logger:      app.log(),
				},
				Logger:   app.log(),
				Registry: registry,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.ListenAndServe(ctx, app.cfg.Listen)
		},
	}

	cmd.Flags().String("listen", "127.0.0.1:5000", "Address to listen on")
	cmd.Flags().String("output-dir", "transcriptions", "Directory for downloaded audio and transcripts")
	cmd.Flags().String("gin-mode", "release", "gin mode: release|debug|test")

	return cmd
}
