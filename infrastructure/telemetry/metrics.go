package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the autopost workers.
// All methods are safe on a nil receiver.
//
// Metrics:
//   - autopost_posts_processed_total{outcome}
//   - autopost_publish_duration_seconds{result}
//   - autopost_sweep_posts_found
//   - autopost_engagement_fetch_failures_total{part}
//   - autopost_task_runs_total{task,result}
//   - autopost_task_duration_seconds{task}
type Metrics struct {
	PostsProcessed          *prometheus.CounterVec
	PublishDuration         *prometheus.HistogramVec
	SweepPostsFound         prometheus.Gauge
	EngagementFetchFailures *prometheus.CounterVec
	TaskRuns                *prometheus.CounterVec
	TaskDuration            *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PostsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopost_posts_processed_total",
				Help: "Posts handled by the dispatcher by outcome",
			},
			[]string{"outcome"}, // posted, failed, ineligible, claim_lost, skipped
		),
		PublishDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autopost_publish_duration_seconds",
				Help:    "Duration of LinkedIn publish calls",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"result"},
		),
		SweepPostsFound: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "autopost_sweep_posts_found",
				Help: "Due posts found by the last sweep",
			},
		),
		EngagementFetchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopost_engagement_fetch_failures_total",
				Help: "Engagement sub-fetches that failed and were zeroed",
			},
			[]string{"part"}, // counters, comments
		),
		TaskRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopost_task_runs_total",
				Help: "Scheduled task runs by result",
			},
			[]string{"task", "result"},
		),
		TaskDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autopost_task_duration_seconds",
				Help:    "Duration of scheduled task runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
	}
}

func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.PostsProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePublish(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PublishDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) SetSweepFound(n int) {
	if m == nil {
		return
	}
	m.SweepPostsFound.Set(float64(n))
}

func (m *Metrics) RecordEngagementFailure(part string) {
	if m == nil {
		return
	}
	m.EngagementFetchFailures.WithLabelValues(part).Inc()
}

// RecordTask records one scheduled run. result is ok, error or skipped.
func (m *Metrics) RecordTask(task, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.TaskRuns.WithLabelValues(task, result).Inc()
	if result != "skipped" {
		m.TaskDuration.WithLabelValues(task).Observe(d.Seconds())
	}
}
