package cli

import (
	"os"
	"sync"
	"time"

	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

// stepSpinner shows one spinner per pipeline step.
type stepSpinner struct {
	enabled bool
	stop    stopFunc
}

func newStepSpinner(enabled bool) *stepSpinner {
	return &stepSpinner{enabled: enabled}
}

var stepDescriptions = map[pipeline.Step]string{
	pipeline.StepFetch:      "Downloading audio",
	pipeline.StepTranscribe: "Transcribing",
	pipeline.StepPersist:    "Saving",
}

func (s *stepSpinner) before(step pipeline.Step) {
	if s.stop != nil {
		s.stop()
	}
	s.stop = startSpinner(s.enabled, stepDescriptions[step])
}

func (s *stepSpinner) after(pipeline.Step, error) {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}
