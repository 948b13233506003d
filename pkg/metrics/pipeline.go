package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records outcomes of submission pipeline runs.
type PipelineMetrics struct {
	duration   *prometheus.HistogramVec
	success    *prometheus.CounterVec
	failure    *prometheus.CounterVec
	duplicates *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "submission_duration_seconds",
		Help:    "Duration of submission pipeline runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_success",
		Help: "Submissions processed end to end.",
	}, []string{"kind"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_failure",
		Help: "Submissions that stopped with an error.",
	}, []string{"kind", "code"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_trigger_duplicates",
		Help: "Trigger events dropped because they were already handled.",
	}, []string{"source"})
	reg.MustRegister(duration, success, failure, duplicates)
	return &PipelineMetrics{
		duration:   duration,
		success:    success,
		failure:    failure,
		duplicates: duplicates,
	}
}

// ObserveDuration records how long a run for kind took.
func (p *PipelineMetrics) ObserveDuration(kind string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for kind.
func (p *PipelineMetrics) IncSuccess(kind string) {
	if p == nil || p.success == nil {
		return
	}
	p.success.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailure increments the failure counter for kind and error code.
func (p *PipelineMetrics) IncFailure(kind, code string) {
	if p == nil || p.failure == nil {
		return
	}
	p.failure.WithLabelValues(normalizeLabel(kind), normalizeLabel(code)).Inc()
}

// IncDuplicate counts a redelivered trigger event.
func (p *PipelineMetrics) IncDuplicate(source string) {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.WithLabelValues(normalizeLabel(source)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
