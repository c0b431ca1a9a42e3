package model

import (
	"time"

	"golang.org/x/oauth2"
)

// Engagement is the aggregate of a published post's likes and comments.
type Engagement struct {
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	Comments     []Comment `json:"comments"`
	// Partial is set when counters or comments could not be read and were
	// zeroed. A partial value is not persisted or cached.
	Partial bool `json:"partial,omitempty"`
}

type Comment struct {
	CommentID string    `json:"comment_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials are what the publish and metrics clients need for one user.
type Credentials struct {
	AccountURN string
	Token      *oauth2.Token
}
