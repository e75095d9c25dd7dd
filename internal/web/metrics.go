package web

import (
	"fmt"
	"time"

	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

const resultSuccess = "success"

type metrics struct {
	jobs     *prometheus.CounterVec
	duration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytscribe_jobs_total",
			Help: "Transcription jobs by outcome; failures are labelled with the failing step.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ytscribe_job_duration_seconds",
			Help:    "Wall time of transcription jobs, including download.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}

	for _, c := range []prometheus.Collector{m.jobs, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *metrics) observe(started time.Time, err error) {
	m.duration.Observe(time.Since(started).Seconds())

	result := resultSuccess
	if err != nil {
		result = string(pipeline.KindOf(err))
		if result == "" {
			result = "unknown"
		}
	}
	m.jobs.WithLabelValues(result).Inc()
}
