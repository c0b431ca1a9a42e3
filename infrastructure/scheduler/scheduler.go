package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"autopost/infrastructure/logger"
	"autopost/infrastructure/telemetry"

	"golang.org/x/sync/errgroup"
)

// Task is a periodic job. Run receives a context bounded by Timeout.
type Task struct {
	Name         string
	Interval     time.Duration
	Timeout      time.Duration
	Immediate    bool // run once at start
	AllowOverlap bool
	Run          func(ctx context.Context) error
}

// Scheduler drives tasks on tickers until its context is cancelled.
type Scheduler struct {
	tasks   []Task
	metrics *telemetry.Metrics
	now     func() time.Time
}

func New(metrics *telemetry.Metrics) *Scheduler {
	return &Scheduler{metrics: metrics, now: time.Now}
}

// Add registers a task. Tasks without an interval or Run func are ignored.
func (s *Scheduler) Add(t Task) {
	if t.Interval <= 0 || t.Run == nil {
		logger.GetLogger().WithField("task", t.Name).Warn("task not scheduled: missing interval or run func")
		return
	}
	s.tasks = append(s.tasks, t)
}

func (s *Scheduler) Tasks() []string {
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.Name)
	}
	return names
}

// Run blocks until ctx is done and every in-flight run has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		t := t
		g.Go(func() error {
			s.loop(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	var (
		running atomic.Bool
		wg      sync.WaitGroup
	)
	defer wg.Wait()

	fire := func() {
		owner := running.CompareAndSwap(false, true)
		if !owner && !t.AllowOverlap {
			logger.GetLogger().WithField("task", t.Name).Warn("previous run still in progress, skipping")
			s.metrics.RecordTask(t.Name, "skipped", 0)
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if owner {
				defer running.Store(false)
			}
			s.runOnce(ctx, t)
		}()
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	if t.Immediate {
		fire()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	runCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	start := s.now()
	lg := logger.GetLogger().WithField("task", t.Name)
	defer func() {
		if r := recover(); r != nil {
			lg.WithField("panic", r).Error("task panicked")
			s.metrics.RecordTask(t.Name, "error", s.now().Sub(start))
		}
	}()

	err := t.Run(runCtx)
	elapsed := s.now().Sub(start)
	switch {
	case err == nil:
		s.metrics.RecordTask(t.Name, "ok", elapsed)
		lg.WithField("elapsed", elapsed.String()).Debug("task run finished")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.metrics.RecordTask(t.Name, "cancelled", elapsed)
	default:
		s.metrics.RecordTask(t.Name, "error", elapsed)
		lg.WithError(err).Error("task run failed")
	}
}
