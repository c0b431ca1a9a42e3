package usecase

import (
	"context"
	"fmt"
	"time"

	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/domain/repository"
	"autopost/infrastructure/logger"
)

type IPostUsecase interface {
	Get(ctx context.Context, userID, postID string) (*model.Post, error)
	PublishNow(ctx context.Context, userID, postID string) (*model.Post, error)
	Retry(ctx context.Context, userID, postID string, at *time.Time) (*model.Post, error)
	Engagement(ctx context.Context, userID, postID string) (*model.Engagement, error)
	Sweep(ctx context.Context) (SweepResult, error)
}

type PostUsecase struct {
	posts      repository.IPost
	dispatcher *Dispatcher
	creds      ICredentialProvider
	metrics    repository.ILinkedInMetrics
	cache      repository.IEngagementCache
	now        func() time.Time
}

func NewPostUsecase(posts repository.IPost, dispatcher *Dispatcher, creds ICredentialProvider, metrics repository.ILinkedInMetrics, cache repository.IEngagementCache) IPostUsecase {
	return &PostUsecase{
		posts:      posts,
		dispatcher: dispatcher,
		creds:      creds,
		metrics:    metrics,
		cache:      cache,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (u *PostUsecase) owned(ctx context.Context, userID, postID string) (*model.Post, error) {
	p, err := u.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, errs.ErrForbidden
	}
	return p, nil
}

func (u *PostUsecase) Get(ctx context.Context, userID, postID string) (*model.Post, error) {
	return u.owned(ctx, userID, postID)
}

// PublishNow moves a DRAFT or SCHEDULED post to POSTING and dispatches it
// right away. A post already POSTING is dispatched if nobody holds its claim.
func (u *PostUsecase) PublishNow(ctx context.Context, userID, postID string) (*model.Post, error) {
	p, err := u.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PostStatusPosting {
		ok, err := u.posts.MarkPublishNow(ctx, postID, u.now())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: post is %s", errs.ErrInvalidTransition, p.Status)
		}
	}

	outcome, err := u.dispatcher.Dispatch(ctx, p)
	if err != nil {
		logger.GetLogger().WithField("post_id", postID).WithError(err).Warn("publish now deferred to next sweep")
	} else {
		logger.GetLogger().WithField("post_id", postID).WithField("outcome", outcome).Info("publish now dispatched")
	}
	return u.posts.GetByID(ctx, postID)
}

// Retry resets a FAILED post to SCHEDULED. at defaults to now.
func (u *PostUsecase) Retry(ctx context.Context, userID, postID string, at *time.Time) (*model.Post, error) {
	p, err := u.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	now := u.now()
	when := now
	if at != nil {
		when = at.UTC()
	}
	ok, err := u.posts.Requeue(ctx, postID, when, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: post is %s", errs.ErrInvalidTransition, p.Status)
	}
	return u.posts.GetByID(ctx, postID)
}

// Engagement returns the engagement of a POSTED post, from cache when fresh.
func (u *PostUsecase) Engagement(ctx context.Context, userID, postID string) (*model.Engagement, error) {
	p, err := u.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PostStatusPosted || p.ExternalPostID == nil {
		return nil, fmt.Errorf("%w: post is %s", errs.ErrInvalidTransition, p.Status)
	}
	if u.cache != nil {
		if eng, ok := u.cache.GetEngagement(ctx, postID); ok {
			return eng, nil
		}
	}
	creds, err := u.creds.Credentials(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	eng := u.metrics.FetchEngagement(ctx, *p.ExternalPostID, creds)
	if eng.Partial {
		logger.GetLogger().WithField("post_id", postID).Warn("partial engagement not stored")
		return &eng, nil
	}
	if u.cache != nil {
		u.cache.SetEngagement(ctx, postID, eng)
	}
	summary := model.EngagementSummary{LikeCount: eng.LikeCount, CommentCount: eng.CommentCount, SyncedAt: u.now()}
	if err := u.posts.UpdateEngagement(ctx, postID, summary); err != nil {
		logger.GetLogger().WithField("post_id", postID).WithError(err).Warn("engagement summary not stored")
	}
	return &eng, nil
}

func (u *PostUsecase) Sweep(ctx context.Context) (SweepResult, error) {
	return u.dispatcher.Sweep(ctx)
}
