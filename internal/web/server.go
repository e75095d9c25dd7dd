// Package web serves the single-page transcription form.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Runner executes one job. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

type Options struct {
	OutputDir string
	Runner    Runner
	Logger    *zap.Logger
	// Registry receives the job metrics. A private registry is used when nil.
	Registry *prometheus.Registry
}

type Server struct {
	outputDir string
	runner    Runner
	logger    *zap.Logger
	metrics   *metrics
	router    *gin.Engine
}

// New creates the output directory and wires the routes.
func New(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New("web: runner is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("web: output directory is required")
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	m, err := newMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		outputDir: opts.OutputDir,
		runner:    opts.Runner,
		logger:    opts.Logger,
		metrics:   m,
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(requestLogger(opts.Logger))
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.showForm)
	router.POST("/", s.submit)
	router.GET("/success/:file", s.success)
	router.GET("/transcriptions/:file", s.download)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))

	s.router = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving transcription form on http://"+addr, zap.String("output_dir", s.outputDir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
