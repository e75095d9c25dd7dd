package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/fmueller/ytscribe/internal/whisper"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FailureKindHeader tells API callers which step failed. Users only see the
// generic error page.
const FailureKindHeader = "X-Failure-Kind"

func (s *Server) showForm(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Models":  whisper.ModelNames(),
		"Default": string(whisper.DefaultVariant),
	})
}

type submitForm struct {
	URL   string `form:"youtube_url" binding:"required"`
	Name  string `form:"output_name" binding:"required"`
	Model string `form:"model_type"`
}

func (s *Server) submit(c *gin.Context) {
	started := time.Now()

	var form submitForm
	var job pipeline.Job
	err := c.ShouldBind(&form)
	if err != nil {
		err = pipeline.Fail(pipeline.KindValidation, err)
	} else {
		job, err = s.buildJob(form)
	}
	if err == nil {
		// Jobs run to completion even if the client goes away.
		ctx := context.WithoutCancel(c.Request.Context())
		_, err = s.runner.Run(ctx, job)
	}
	s.metrics.observe(started, err)

	if err != nil {
		s.logger.Error("An error occurred: "+err.Error(),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("kind", string(pipeline.KindOf(err))),
		)
		_ = c.Error(err)
		c.Header(FailureKindHeader, string(pipeline.KindOf(err)))
		c.String(http.StatusOK, "An error occurred: %v", err)
		return
	}

	c.Redirect(http.StatusFound, "/success/"+url.PathEscape(filepath.Base(job.TranscriptPath)))
}

func (s *Server) buildJob(form submitForm) (pipeline.Job, error) {
	sourceURL := strings.TrimSpace(form.URL)
	name := form.Name
	modelType := strings.TrimSpace(form.Model)
	if modelType == "" {
		modelType = string(whisper.DefaultVariant)
	}

	if name != strings.TrimSpace(name) {
		return pipeline.Job{}, pipeline.Failf(pipeline.KindValidation, "output_name %q must not start or end with whitespace", name)
	}
	if !isPlainFileName(name) {
		return pipeline.Job{}, pipeline.Failf(pipeline.KindValidation, "output_name %q must be a plain file name", name)
	}
	variant, err := whisper.ParseVariant(modelType)
	if err != nil {
		return pipeline.Job{}, pipeline.Fail(pipeline.KindValidation, err)
	}

	return pipeline.Job{
		URL:            sourceURL,
		AudioPath:      filepath.Join(s.outputDir, name+".mp3"),
		TranscriptPath: filepath.Join(s.outputDir, name+".txt"),
		Model:          variant,
	}, nil
}

func (s *Server) success(c *gin.Context) {
	c.HTML(http.StatusOK, "success.html", gin.H{"File": c.Param("file")})
}

func (s *Server) download(c *gin.Context) {
	name := c.Param("file")
	if !isPlainFileName(name) {
		c.String(http.StatusNotFound, "Not Found")
		return
	}

	path := filepath.Join(s.outputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("stat transcript", zap.String("path", path), zap.Error(err))
		}
		c.String(http.StatusNotFound, "Not Found")
		return
	}

	c.FileAttachment(path, name)
}

// isPlainFileName reports whether name is a single path element.
func isPlainFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}
