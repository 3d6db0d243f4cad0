package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PipelineRuns       prometheus.Counter
	TransformDuration  *prometheus.HistogramVec
	TransformFatals    *prometheus.CounterVec
	TransformDegraded  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		PipelineRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimgate_pipeline_runs_total",
			Help: "Total number of completed pipeline runs",
		}),
		TransformDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimgate_transform_duration_seconds",
			Help:    "Wall-clock duration of individual transforms",
			Buckets: prometheus.DefBuckets,
		}, []string{"transform"}),
		TransformFatals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgate_transform_fatal_errors_total",
			Help: "Total number of fatal transform errors aborting a route",
		}, []string{"transform"}),
		TransformDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgate_transform_degraded_total",
			Help: "Total number of transform runs that fell back to a local-only result",
		}, []string{"transform"}),
	}
}

func (m *Metrics) IncRuns() {
	m.PipelineRuns.Inc()
}

func (m *Metrics) ObserveTransform(name string, seconds float64) {
	m.TransformDuration.WithLabelValues(name).Observe(seconds)
}

func (m *Metrics) IncFatal(name string) {
	m.TransformFatals.WithLabelValues(name).Inc()
}

func (m *Metrics) IncDegraded(name string) {
	m.TransformDegraded.WithLabelValues(name).Inc()
}
