package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics records processing outcomes for notification jobs.
type WorkerMetrics struct {
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	depth     *prometheus.GaugeVec
}

// NewWorkerMetrics registers the worker metrics on the provided registerer.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		return &WorkerMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_jobs_processed_total",
		Help: "Notification jobs processed, labeled by type and result.",
	}, []string{"type", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notification_job_duration_seconds",
		Help:    "Duration of notification job processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	depth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notification_queue_depth",
		Help: "Jobs currently tracked by the queue, labeled by state.",
	}, []string{"state"})
	reg.MustRegister(processed, duration, depth)
	return &WorkerMetrics{
		processed: processed,
		duration:  duration,
		depth:     depth,
	}
}

// IncProcessed counts one processed job with the given result label.
func (w *WorkerMetrics) IncProcessed(jobType, result string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(jobType), normalizeLabel(result)).Inc()
}

// ObserveDuration records how long one job took to process.
func (w *WorkerMetrics) ObserveDuration(jobType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(jobType)).Observe(duration.Seconds())
}

// SetQueueDepth records the point-in-time job count for a queue state.
func (w *WorkerMetrics) SetQueueDepth(state string, count int64) {
	if w == nil || w.depth == nil {
		return
	}
	w.depth.WithLabelValues(normalizeLabel(state)).Set(float64(count))
}
