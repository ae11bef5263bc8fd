package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchd_jobs_submitted_total",
		Help: "Total number of jobs submitted",
	})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchd_jobs_completed_total",
		Help: "Total number of jobs completed successfully",
	})

	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchd_jobs_failed_total",
		Help: "Total number of jobs that ended in error",
	})

	JobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchd_jobs_cancelled_total",
		Help: "Total number of jobs cancelled",
	})

	JobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchd_job_retries_total",
		Help: "Total number of retry attempts",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fetchd_active_jobs",
		Help: "Number of jobs currently holding a concurrency slot",
	})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fetchd_queue_length",
		Help: "Number of jobs waiting for a free slot",
	})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetchd_job_duration_seconds",
		Help:    "Wall-clock duration of completed jobs in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	ArtifactBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchd_artifact_bytes_total",
		Help: "Total bytes of completed artifacts on disk",
	})
)
