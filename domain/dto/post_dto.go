package dto

import (
	"time"

	"autopost/domain/model"
)

// Res is the generic error envelope used by middleware.
type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}

// RetryPostRequest optionally carries the new scheduled time.
type RetryPostRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// PostStatusResponse is what status endpoints expose of a post.
type PostStatusResponse struct {
	ID             string                   `json:"id"`
	Status         model.PostStatus         `json:"status"`
	ScheduledAt    time.Time                `json:"scheduled_at"`
	PostedAt       *time.Time               `json:"posted_at,omitempty"`
	ExternalPostID *string                  `json:"external_post_id,omitempty"`
	RetryCount     int                      `json:"retry_count"`
	Engagement     *model.EngagementSummary `json:"engagement,omitempty"`
}

func NewPostStatusResponse(p *model.Post) PostStatusResponse {
	return PostStatusResponse{
		ID:             p.ID,
		Status:         p.Status,
		ScheduledAt:    p.ScheduledAt,
		PostedAt:       p.PostedAt,
		ExternalPostID: p.ExternalPostID,
		RetryCount:     p.RetryCount,
		Engagement:     p.Engagement,
	}
}

// SweepResponse reports a manually triggered sweep.
type SweepResponse struct {
	Found      int `json:"found"`
	Posted     int `json:"posted"`
	Failed     int `json:"failed"`
	Ineligible int `json:"ineligible"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}
