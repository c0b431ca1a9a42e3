package model

import (
	"time"

	"autopost/domain/errs"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusScheduled PostStatus = "SCHEDULED"
	PostStatusPosting   PostStatus = "POSTING"
	PostStatusPosted    PostStatus = "POSTED"
	PostStatusFailed    PostStatus = "FAILED"
)

// PostSource records which flow created the post.
type PostSource string

const (
	PostSourceManual   PostSource = "manual"
	PostSourceCampaign PostSource = "campaign"
	PostSourceCalendar PostSource = "calendar"
)

// Post is a schedulable unit of LinkedIn content.
type Post struct {
	ID             string             `json:"id"                       bson:"_id"`
	UserID         string             `json:"user_id"                  bson:"userId"`
	Text           string             `json:"text"                     bson:"text"`
	Images         []string           `json:"images"                   bson:"images"`
	Status         PostStatus         `json:"status"                   bson:"status"`
	Source         PostSource         `json:"source,omitempty"         bson:"source,omitempty"`
	ScheduledAt    time.Time          `json:"scheduled_at"             bson:"scheduledAt"`
	PostedAt       *time.Time         `json:"posted_at,omitempty"      bson:"postedAt,omitempty"`
	ExternalPostID *string            `json:"external_post_id,omitempty" bson:"externalPostId,omitempty"`
	RetryCount     int                `json:"retry_count"              bson:"retryCount"`
	ClaimToken     string             `json:"-"                        bson:"claimToken,omitempty"`
	ClaimedAt      *time.Time         `json:"-"                        bson:"claimedAt,omitempty"`
	Engagement     *EngagementSummary `json:"engagement,omitempty"     bson:"engagement,omitempty"`
	CreatedAt      time.Time          `json:"created_at"               bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updated_at"               bson:"updatedAt"`
}

// EngagementSummary is the last synced engagement snapshot of a POSTED post.
type EngagementSummary struct {
	LikeCount    int       `json:"like_count"    bson:"likeCount"`
	CommentCount int       `json:"comment_count" bson:"commentCount"`
	SyncedAt     time.Time `json:"synced_at"     bson:"syncedAt"`
}

// DueStatuses are the statuses the dispatcher picks up.
var DueStatuses = []PostStatus{PostStatusScheduled, PostStatusPosting}

// IsDue reports whether the post should be picked up by a sweep at now.
// Claims are not considered here.
func (p *Post) IsDue(now time.Time) bool {
	switch p.Status {
	case PostStatusPosting:
		return true
	case PostStatusScheduled:
		return !p.ScheduledAt.After(now)
	default:
		return false
	}
}

// IsClaimed reports whether a claim newer than leaseCutoff is held on the post.
func (p *Post) IsClaimed(leaseCutoff time.Time) bool {
	if p.ClaimToken == "" || p.ClaimedAt == nil {
		return false
	}
	return !p.ClaimedAt.Before(leaseCutoff)
}

// MarkPosted moves a claimed post to POSTED. postedAt and externalPostId are
// only ever set here.
func (p *Post) MarkPosted(externalID string, now time.Time) error {
	if p.Status == PostStatusPosted {
		return errs.ErrInvalidTransition
	}
	ref := externalID
	at := now
	p.Status = PostStatusPosted
	p.ExternalPostID = &ref
	p.PostedAt = &at
	p.UpdatedAt = now
	return nil
}

// MarkPublishFailed records a failed publish attempt.
func (p *Post) MarkPublishFailed(now time.Time) error {
	if p.Status == PostStatusPosted {
		return errs.ErrInvalidTransition
	}
	p.Status = PostStatusFailed
	p.RetryCount++
	p.ExternalPostID = nil
	p.PostedAt = nil
	p.UpdatedAt = now
	return nil
}

// MarkIneligible fails the post without counting a publish attempt.
func (p *Post) MarkIneligible(now time.Time) error {
	if p.Status == PostStatusPosted {
		return errs.ErrInvalidTransition
	}
	p.Status = PostStatusFailed
	p.ExternalPostID = nil
	p.PostedAt = nil
	p.UpdatedAt = now
	return nil
}

// Requeue resets a FAILED post to SCHEDULED at the given time.
func (p *Post) Requeue(at, now time.Time) error {
	if p.Status != PostStatusFailed {
		return errs.ErrInvalidTransition
	}
	p.Status = PostStatusScheduled
	p.ScheduledAt = at
	p.ClaimToken = ""
	p.ClaimedAt = nil
	p.UpdatedAt = now
	return nil
}

// ReleaseClaim clears the in-flight marker once the post reached a terminal state.
func (p *Post) ReleaseClaim() {
	p.ClaimToken = ""
	p.ClaimedAt = nil
}

// PostEventType names a lifecycle notification.
type PostEventType string

const (
	PostEventPosted     PostEventType = "post.posted"
	PostEventFailed     PostEventType = "post.failed"
	PostEventIneligible PostEventType = "post.ineligible"
)

// PostEvent is emitted on every terminal transition.
type PostEvent struct {
	ID             string        `json:"id"`
	Type           PostEventType `json:"type"`
	PostID         string        `json:"post_id"`
	UserID         string        `json:"user_id"`
	Status         PostStatus    `json:"status"`
	ExternalPostID *string       `json:"external_post_id,omitempty"`
	RetryCount     int           `json:"retry_count"`
	Reason         string        `json:"reason,omitempty"`
	At             time.Time     `json:"at"`
}
