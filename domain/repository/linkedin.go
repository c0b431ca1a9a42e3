package repository

import (
	"context"

	"autopost/domain/model"
)

// ILinkedInPublisher creates posts on the platform and returns the external
// post reference.
type ILinkedInPublisher interface {
	Publish(ctx context.Context, text string, images []string, creds model.Credentials) (string, error)
}

// ILinkedInMetrics reads engagement of a published post. It never fails;
// unreadable parts come back zeroed.
type ILinkedInMetrics interface {
	FetchEngagement(ctx context.Context, externalPostID string, creds model.Credentials) model.Engagement
}
