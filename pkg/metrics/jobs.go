package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records outcomes for scheduled jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	checked  *prometheus.CounterVec
	updated  *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful scheduled job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed scheduled job executions.",
	}, []string{"job"})
	checked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_subscriptions_checked",
		Help: "Subscriptions evaluated by sweep jobs.",
	}, []string{"job"})
	updated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_subscriptions_updated",
		Help: "Subscription transitions applied by sweep jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, checked, updated)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		checked:  checked,
		updated:  updated,
	}
}

// ObserveDuration records the duration for the named job.
func (m *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (m *JobMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *JobMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddSweepCounts records how many subscriptions a sweep touched.
func (m *JobMetrics) AddSweepCounts(job string, checked, updated int) {
	if m == nil || m.checked == nil || m.updated == nil {
		return
	}
	label := normalizeLabel(job)
	m.checked.WithLabelValues(label).Add(float64(checked))
	m.updated.WithLabelValues(label).Add(float64(updated))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
