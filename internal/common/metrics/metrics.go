// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowq_extractions_total",
			Help: "Extractions by outcome (ok, empty, failed, cached)",
		},
		[]string{"outcome"},
	)

	ShadowQueriesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowq_queries_found_total",
			Help: "Shadow queries reported, split by visibility",
		},
		[]string{"hidden"},
	)

	CitationsFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shadowq_citations_found_total",
			Help: "Citations reported after deduplication",
		},
	)

	FetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowq_fetch_retries_total",
			Help: "Conversation fetch retries by upstream status",
		},
		[]string{"status"},
	)
)

// JobTimer tracks one job from start to finish.
type JobTimer struct {
	taskType string
	start    time.Time
}

// StartJob marks a job active for taskType.
func StartJob(taskType string) *JobTimer {
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return &JobTimer{taskType: taskType, start: time.Now()}
}

// Done records the job duration and outcome. An empty errorCode counts as success.
func (t *JobTimer) Done(errorCode string) time.Duration {
	d := time.Since(t.start)
	WorkerJobsActive.WithLabelValues(t.taskType).Dec()
	WorkerJobDuration.WithLabelValues(t.taskType).Observe(d.Seconds())
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(t.taskType).Inc()
	} else {
		WorkerJobsFailed.WithLabelValues(t.taskType, errorCode).Inc()
	}
	return d
}

// RecordReport counts what an extraction found.
func RecordReport(hidden, visible, citations int) {
	ShadowQueriesFound.WithLabelValues("true").Add(float64(hidden))
	ShadowQueriesFound.WithLabelValues("false").Add(float64(visible))
	CitationsFound.Add(float64(citations))
}
