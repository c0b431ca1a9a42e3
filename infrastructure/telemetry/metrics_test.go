package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordOutcome("posted")
	m.RecordOutcome("posted")
	m.RecordOutcome("failed")
	m.ObservePublish(200*time.Millisecond, nil)
	m.ObservePublish(time.Second, errors.New("boom"))
	m.SetSweepFound(3)
	m.RecordEngagementFailure("comments")
	m.RecordTask("sweep", "ok", time.Second)
	m.RecordTask("sweep", "skipped", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PostsProcessed.WithLabelValues("posted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PostsProcessed.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepPostsFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngagementFetchFailures.WithLabelValues("comments")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRuns.WithLabelValues("sweep", "skipped")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.PublishDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TaskDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOutcome("posted")
		m.ObservePublish(time.Second, nil)
		m.SetSweepFound(1)
		m.RecordEngagementFailure("counters")
		m.RecordTask("sweep", "ok", time.Second)
	})
}
