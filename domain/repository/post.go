package repository

import (
	"context"
	"time"

	"autopost/domain/model"
)

// IPost is the post record store. Every durable status transition goes
// through ClaimPost, Save, MarkPublishNow or Requeue.
type IPost interface {
	// FindDuePosts returns unclaimed SCHEDULED posts with scheduledAt <= now
	// and unclaimed POSTING posts. A claim older than leaseCutoff counts as
	// released.
	FindDuePosts(ctx context.Context, now, leaseCutoff time.Time, limit int) ([]*model.Post, error)
	// ClaimPost atomically marks a due post as in flight under token and
	// returns the post as stored after the claim. It returns nil when another
	// sweep got there first or the post is no longer due.
	ClaimPost(ctx context.Context, id, token string, now, leaseCutoff time.Time) (*model.Post, error)
	// Save persists the lifecycle fields of post. It fails with
	// errs.ErrClaimLost when the stored post is POSTED or held under a
	// different claim token.
	Save(ctx context.Context, post *model.Post) error

	GetByID(ctx context.Context, id string) (*model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	// MarkPublishNow flags a DRAFT or SCHEDULED post for immediate publishing.
	MarkPublishNow(ctx context.Context, id string, now time.Time) (bool, error)
	// Requeue resets a FAILED post to SCHEDULED at the given time.
	Requeue(ctx context.Context, id string, at, now time.Time) (bool, error)
	// CountScheduledBetween counts the user's non-draft posts scheduled in [from, to).
	CountScheduledBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
	// ListPostedForSync returns POSTED posts published after since.
	ListPostedForSync(ctx context.Context, since time.Time, limit int) ([]*model.Post, error)
	UpdateEngagement(ctx context.Context, id string, summary model.EngagementSummary) error
}
