// Package metrics records per-step timings and outcomes of a report run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry so repeated runs in one process do not collide.
type Recorder struct {
	registry *prometheus.Registry
	duration *prometheus.HistogramVec
	groups   *prometheus.GaugeVec
	failures *prometheus.CounterVec
	runs     prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}
	r.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sidebarqa",
		Name:      "step_duration_seconds",
		Help:      "Time spent counting and pivoting one report step",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
	}, []string{"step"})
	r.groups = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sidebarqa",
		Name:      "step_groups",
		Help:      "Number of groups returned by the last run of a step",
	}, []string{"step"})
	r.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidebarqa",
		Name:      "step_failures_total",
		Help:      "Number of failed step executions",
	}, []string{"step"})
	r.runs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sidebarqa",
		Name:      "runs_total",
		Help:      "Number of report runs started",
	})
	r.registry.MustRegister(r.duration, r.groups, r.failures, r.runs)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) RunStarted() { r.runs.Inc() }

// ObserveStep records one step execution. The group gauge is left untouched on failure.
func (r *Recorder) ObserveStep(step string, d time.Duration, groups int, err error) {
	r.duration.WithLabelValues(step).Observe(d.Seconds())
	if err != nil {
		r.failures.WithLabelValues(step).Inc()
		return
	}
	r.groups.WithLabelValues(step).Set(float64(groups))
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
