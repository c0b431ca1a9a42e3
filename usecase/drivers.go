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

	"golang.org/x/sync/errgroup"
)

// DriverResult summarizes one run of a scheduling driver.
type DriverResult struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Synced    int `json:"synced,omitempty"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func campaignPostID(campaignID string, cursor int) string {
	return fmt.Sprintf("campaign:%s:%d", campaignID, cursor)
}

func calendarPostID(entryID string) string {
	return "calendar:" + entryID
}

// createScheduled inserts a SCHEDULED post. A duplicate id means an earlier
// tick already enqueued it.
func createScheduled(ctx context.Context, posts repository.IPost, p *model.Post) (bool, error) {
	err := posts.Create(ctx, p)
	if errors.Is(err, errs.ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

func newScheduledPost(id, userID, text string, images []string, source model.PostSource, at, now time.Time) *model.Post {
	if images == nil {
		images = []string{}
	}
	return &model.Post{
		ID:          id,
		UserID:      userID,
		Text:        text,
		Images:      images,
		Status:      model.PostStatusScheduled,
		Source:      source,
		ScheduledAt: at,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CampaignDriver turns the next item of every due campaign into a post.
type CampaignDriver struct {
	campaigns repository.ICampaign
	posts     repository.IPost
	admission IAdmission
	batchSize int
	now       func() time.Time
}

func NewCampaignDriver(campaigns repository.ICampaign, posts repository.IPost, admission IAdmission, batchSize int) *CampaignDriver {
	return &CampaignDriver{campaigns: campaigns, posts: posts, admission: admission, batchSize: batchSize,
		now: func() time.Time { return time.Now().UTC() }}
}

func (d *CampaignDriver) Run(ctx context.Context) (DriverResult, error) {
	var res DriverResult
	now := d.now()
	campaigns, err := d.campaigns.FindDue(ctx, now, d.batchSize)
	if err != nil {
		return res, err
	}
	for _, c := range campaigns {
		res.Processed++
		if err := d.runCampaign(ctx, c, now, &res); err != nil {
			res.Errors++
			logger.GetLogger().WithField("campaign_id", c.ID).WithError(err).Error("campaign tick failed")
		}
	}
	return res, nil
}

func (d *CampaignDriver) runCampaign(ctx context.Context, c *model.Campaign, now time.Time, res *DriverResult) error {
	lg := logger.GetLogger().WithField("campaign_id", c.ID).WithField("cursor", c.Cursor)
	if c.Cursor >= len(c.Items) {
		_, err := d.campaigns.Advance(ctx, c.ID, c.Cursor, now, false)
		lg.Info("campaign exhausted, deactivated")
		res.Skipped++
		return err
	}
	item := c.Items[c.Cursor]

	err := d.admission.Check(ctx, c.UserID, now, len(item.Images))
	switch {
	case errors.Is(err, errs.ErrPlanLimit):
		lg.WithError(err).Warn("campaign item skipped by plan")
		res.Skipped++
	case err != nil:
		return err
	default:
		p := newScheduledPost(campaignPostID(c.ID, c.Cursor), c.UserID, item.Text, item.Images, model.PostSourceCampaign, now, now)
		created, err := createScheduled(ctx, d.posts, p)
		if err != nil {
			return err
		}
		if created {
			res.Created++
			lg.WithField("post_id", p.ID).Info("campaign post scheduled")
		} else {
			res.Skipped++
		}
	}

	next := c.Cursor + 1
	advanced, err := d.campaigns.Advance(ctx, c.ID, c.Cursor, now.Add(c.Interval()), next < len(c.Items))
	if err != nil {
		return err
	}
	if !advanced {
		lg.Debug("campaign advanced concurrently")
	}
	return nil
}

// CalendarDriver enqueues calendar entries whose publish time has come.
type CalendarDriver struct {
	calendar  repository.ICalendar
	posts     repository.IPost
	admission IAdmission
	batchSize int
	now       func() time.Time
}

func NewCalendarDriver(calendar repository.ICalendar, posts repository.IPost, admission IAdmission, batchSize int) *CalendarDriver {
	return &CalendarDriver{calendar: calendar, posts: posts, admission: admission, batchSize: batchSize,
		now: func() time.Time { return time.Now().UTC() }}
}

func (d *CalendarDriver) Run(ctx context.Context) (DriverResult, error) {
	var res DriverResult
	now := d.now()
	entries, err := d.calendar.FindDue(ctx, now, d.batchSize)
	if err != nil {
		return res, err
	}
	for _, e := range entries {
		res.Processed++
		if err := d.runEntry(ctx, e, now, &res); err != nil {
			res.Errors++
			logger.GetLogger().WithField("calendar_id", e.ID).WithError(err).Error("calendar entry failed")
		}
	}
	return res, nil
}

func (d *CalendarDriver) runEntry(ctx context.Context, e *model.CalendarEntry, now time.Time, res *DriverResult) error {
	lg := logger.GetLogger().WithField("calendar_id", e.ID)

	err := d.admission.Check(ctx, e.UserID, e.PublishAt, len(e.Images))
	if errors.Is(err, errs.ErrPlanLimit) {
		lg.WithError(err).Warn("calendar entry skipped by plan")
		res.Skipped++
		_, err = d.calendar.SetStatus(ctx, e.ID, model.CalendarStatusSkipped, "", now)
		return err
	}
	if err != nil {
		return err
	}

	p := newScheduledPost(calendarPostID(e.ID), e.UserID, e.Text, e.Images, model.PostSourceCalendar, e.PublishAt, now)
	created, err := createScheduled(ctx, d.posts, p)
	if err != nil {
		return err
	}
	if created {
		res.Created++
	} else {
		res.Skipped++
	}
	if _, err := d.calendar.SetStatus(ctx, e.ID, model.CalendarStatusEnqueued, p.ID, now); err != nil {
		return err
	}
	lg.WithField("post_id", p.ID).Info("calendar entry enqueued")
	return nil
}

// EngagementSync refreshes the engagement summary of recently posted posts.
type EngagementSync struct {
	posts       repository.IPost
	creds       ICredentialProvider
	metrics     repository.ILinkedInMetrics
	cache       repository.IEngagementCache
	window      time.Duration
	batchSize   int
	concurrency int
	now         func() time.Time
}

func NewEngagementSync(posts repository.IPost, creds ICredentialProvider, metrics repository.ILinkedInMetrics, cache repository.IEngagementCache, window time.Duration, batchSize, concurrency int) *EngagementSync {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &EngagementSync{posts: posts, creds: creds, metrics: metrics, cache: cache, window: window,
		batchSize: batchSize, concurrency: concurrency, now: func() time.Time { return time.Now().UTC() }}
}

func (s *EngagementSync) Run(ctx context.Context) (DriverResult, error) {
	var res DriverResult
	now := s.now()
	posts, err := s.posts.ListPostedForSync(ctx, now.Add(-s.window), s.batchSize)
	if err != nil {
		return res, err
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, p := range posts {
		g.Go(func() error {
			err := s.syncOne(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			res.Processed++
			switch {
			case errors.Is(err, errs.ErrOwnerNotEligible):
				res.Skipped++
			case err != nil:
				res.Errors++
				logger.GetLogger().WithField("post_id", p.ID).WithError(err).Warn("engagement sync failed")
			default:
				res.Synced++
			}
			return nil
		})
	}
	_ = g.Wait()
	return res, nil
}

func (s *EngagementSync) syncOne(ctx context.Context, p *model.Post) error {
	if p.ExternalPostID == nil {
		return nil
	}
	creds, err := s.creds.Credentials(ctx, p.UserID)
	if err != nil {
		return err
	}
	eng := s.metrics.FetchEngagement(ctx, *p.ExternalPostID, creds)
	if eng.Partial {
		// Keep the last good summary instead of overwriting it with zeros.
		return fmt.Errorf("%w: partial engagement for %s", errs.ErrMetricsFetchFailure, p.ID)
	}
	if s.cache != nil {
		s.cache.SetEngagement(ctx, p.ID, eng)
	}
	return s.posts.UpdateEngagement(ctx, p.ID, model.EngagementSummary{
		LikeCount:    eng.LikeCount,
		CommentCount: eng.CommentCount,
		SyncedAt:     s.now(),
	})
}
