package repository

import (
	"context"

	"autopost/domain/model"
)

// IPostEventPublisher delivers lifecycle events to an external sink.
type IPostEventPublisher interface {
	PublishPostEvent(ctx context.Context, evt model.PostEvent) error
}

// IEngagementCache holds recently fetched engagement per post.
type IEngagementCache interface {
	GetEngagement(ctx context.Context, postID string) (*model.Engagement, bool)
	SetEngagement(ctx context.Context, postID string, eng model.Engagement)
}
