package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/domain/repository"
	"autopost/infrastructure/logger"
	"autopost/infrastructure/telemetry"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	saveTimeout  = 10 * time.Second
	eventTimeout = 5 * time.Second
)

// Outcome is what happened to one post during a sweep.
type Outcome string

const (
	OutcomePosted     Outcome = "posted"
	OutcomeFailed     Outcome = "failed"
	OutcomeIneligible Outcome = "ineligible"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeClaimLost  Outcome = "claim_lost"
	OutcomeError      Outcome = "error"
)

type SweepResult struct {
	Found      int `json:"found"`
	Posted     int `json:"posted"`
	Failed     int `json:"failed"`
	Ineligible int `json:"ineligible"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

func (r *SweepResult) add(o Outcome) {
	switch o {
	case OutcomePosted:
		r.Posted++
	case OutcomeFailed:
		r.Failed++
	case OutcomeIneligible:
		r.Ineligible++
	case OutcomeSkipped, OutcomeClaimLost:
		r.Skipped++
	default:
		r.Errors++
	}
}

type DispatcherConfig struct {
	BatchSize      int
	Concurrency    int
	PublishTimeout time.Duration
	ClaimLease     time.Duration
}

// Dispatcher moves due posts through POSTING to POSTED or FAILED. Several
// dispatchers may sweep the same store; the claim step guarantees a post is
// published at most once per claim.
type Dispatcher struct {
	posts     repository.IPost
	creds     ICredentialProvider
	publisher repository.ILinkedInPublisher
	events    []repository.IPostEventPublisher
	broadcast func(model.PostEvent)
	metrics   *telemetry.Metrics
	cfg       DispatcherConfig
	now       func() time.Time
	newToken  func() string
}

func NewDispatcher(posts repository.IPost, creds ICredentialProvider, publisher repository.ILinkedInPublisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Minute
	}
	if cfg.ClaimLease <= cfg.PublishTimeout {
		cfg.ClaimLease = 5 * cfg.PublishTimeout
	}
	return &Dispatcher{
		posts:     posts,
		creds:     creds,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		newToken:  uuid.NewString,
	}
}

// WithEvents adds lifecycle event sinks.
func (d *Dispatcher) WithEvents(pubs ...repository.IPostEventPublisher) *Dispatcher {
	d.events = append(d.events, pubs...)
	return d
}

// WithBroadcaster sets an in-process listener for terminal transitions.
func (d *Dispatcher) WithBroadcaster(fn func(model.PostEvent)) *Dispatcher {
	d.broadcast = fn
	return d
}

func (d *Dispatcher) WithMetrics(m *telemetry.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Sweep processes one batch of due posts. Only a failing due-post query
// fails the sweep; per-post errors are counted and logged.
func (d *Dispatcher) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	lg := logger.GetLogger()

	now := d.now()
	posts, err := d.posts.FindDuePosts(ctx, now, now.Add(-d.cfg.ClaimLease), d.cfg.BatchSize)
	if err != nil {
		if !errors.Is(err, errs.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
		}
		lg.WithError(err).Error("sweep aborted: due posts unavailable")
		return res, err
	}
	res.Found = len(posts)
	d.metrics.SetSweepFound(len(posts))
	if len(posts) == 0 {
		return res, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.cfg.Concurrency)
	for _, p := range posts {
		g.Go(func() error {
			outcome, err := d.process(ctx, p)
			if err != nil {
				lg.WithField("post_id", p.ID).WithField("outcome", outcome).WithError(err).Error("post processing failed")
			}
			mu.Lock()
			res.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	lg.WithField("found", res.Found).
		WithField("posted", res.Posted).
		WithField("failed", res.Failed).
		WithField("ineligible", res.Ineligible).
		WithField("skipped", res.Skipped).
		WithField("errors", res.Errors).
		Info("sweep finished")
	return res, nil
}

// Dispatch processes a single post outside the sweep, e.g. for publish-now.
// Only p.ID is trusted; the rest is reloaded by the claim.
func (d *Dispatcher) Dispatch(ctx context.Context, p *model.Post) (Outcome, error) {
	return d.process(ctx, p)
}

func (d *Dispatcher) process(ctx context.Context, p *model.Post) (Outcome, error) {
	lg := logger.GetLogger().WithField("post_id", p.ID).WithField("user_id", p.UserID)

	now := d.now()
	token := d.newToken()
	claimed, err := d.posts.ClaimPost(ctx, p.ID, token, now, now.Add(-d.cfg.ClaimLease))
	if err != nil {
		d.metrics.RecordOutcome(string(OutcomeError))
		return OutcomeError, err
	}
	if claimed == nil {
		lg.Debug("post claimed elsewhere, skipping")
		d.metrics.RecordOutcome(string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}
	// Work on the claimed copy; the input may be an older snapshot.
	p = claimed

	creds, err := d.creds.Credentials(ctx, p.UserID)
	if err != nil {
		if !errors.Is(err, errs.ErrOwnerNotEligible) {
			// Claim stays until the lease runs out; a later sweep retries.
			d.metrics.RecordOutcome(string(OutcomeError))
			return OutcomeError, err
		}
		_ = p.MarkIneligible(d.now())
		return d.finish(ctx, p, OutcomeIneligible, err)
	}

	pctx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	start := time.Now()
	ref, perr := d.publisher.Publish(pctx, p.Text, p.Images, creds)
	cancel()
	d.metrics.ObservePublish(time.Since(start), perr)

	if perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) && !errors.Is(perr, errs.ErrTransientNetwork) {
			perr = errs.NewPublishError("publish", errs.ErrTransientNetwork, 0, perr)
		}
		_ = p.MarkPublishFailed(d.now())
		return d.finish(ctx, p, OutcomeFailed, perr)
	}
	if err := p.MarkPosted(ref, d.now()); err != nil {
		return OutcomeError, err
	}
	return d.finish(ctx, p, OutcomePosted, nil)
}

// finish persists the terminal state and notifies listeners. The write is
// detached from ctx so a publish that already happened is not lost to a
// cancelled sweep.
func (d *Dispatcher) finish(ctx context.Context, p *model.Post, outcome Outcome, cause error) (Outcome, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	lg := logger.GetLogger().WithField("post_id", p.ID).WithField("status", p.Status)
	if err := d.posts.Save(sctx, p); err != nil {
		if errors.Is(err, errs.ErrClaimLost) {
			lg.Warn("claim lost before save, result discarded")
			d.metrics.RecordOutcome(string(OutcomeClaimLost))
			return OutcomeClaimLost, nil
		}
		d.metrics.RecordOutcome(string(OutcomeError))
		return OutcomeError, err
	}
	p.ReleaseClaim()
	d.metrics.RecordOutcome(string(outcome))

	evt := model.PostEvent{
		ID:             uuid.NewString(),
		PostID:         p.ID,
		UserID:         p.UserID,
		Status:         p.Status,
		ExternalPostID: p.ExternalPostID,
		RetryCount:     p.RetryCount,
		Reason:         errs.KindOf(cause),
		At:             p.UpdatedAt,
	}
	switch outcome {
	case OutcomePosted:
		evt.Type = model.PostEventPosted
		lg.WithField("external_post_id", *p.ExternalPostID).Info("post published")
	case OutcomeIneligible:
		evt.Type = model.PostEventIneligible
		lg.WithError(cause).Warn("owner not eligible, post failed")
	default:
		evt.Type = model.PostEventFailed
		lg.WithField("kind", evt.Reason).WithField("retry_count", p.RetryCount).WithError(cause).Warn("publish failed")
	}
	d.emit(sctx, evt)
	return outcome, nil
}

func (d *Dispatcher) emit(ctx context.Context, evt model.PostEvent) {
	if d.broadcast != nil {
		d.broadcast(evt)
	}
	for _, pub := range d.events {
		ectx, cancel := context.WithTimeout(ctx, eventTimeout)
		if err := pub.PublishPostEvent(ectx, evt); err != nil {
			logger.GetLogger().WithField("post_id", evt.PostID).WithField("event", evt.Type).WithError(err).Warn("post event not delivered")
		}
		cancel()
	}
}
