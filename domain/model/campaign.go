package model

import "time"

// Campaign is a recurring industry campaign: a prepared queue of content
// published every IntervalHours while Active.
type Campaign struct {
	ID            string         `json:"id"             bson:"_id"`
	UserID        string         `json:"user_id"        bson:"userId"`
	Industry      string         `json:"industry"       bson:"industry"`
	Active        bool           `json:"active"         bson:"active"`
	IntervalHours int            `json:"interval_hours" bson:"intervalHours"`
	NextRunAt     time.Time      `json:"next_run_at"    bson:"nextRunAt"`
	Cursor        int            `json:"cursor"         bson:"cursor"`
	Items         []CampaignItem `json:"items"          bson:"items"`
	UpdatedAt     time.Time      `json:"updated_at"     bson:"updatedAt"`
}

type CampaignItem struct {
	Text   string   `json:"text"   bson:"text"`
	Images []string `json:"images" bson:"images"`
}

// Interval falls back to one day when unset.
func (c *Campaign) Interval() time.Duration {
	if c.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.IntervalHours) * time.Hour
}

type CalendarStatus string

const (
	CalendarStatusPending  CalendarStatus = "pending"
	CalendarStatusEnqueued CalendarStatus = "enqueued"
	CalendarStatusSkipped  CalendarStatus = "skipped"
)

// CalendarEntry is a content calendar slot turned into a post when due.
type CalendarEntry struct {
	ID        string         `json:"id"                bson:"_id"`
	UserID    string         `json:"user_id"           bson:"userId"`
	PublishAt time.Time      `json:"publish_at"        bson:"publishAt"`
	Text      string         `json:"text"              bson:"text"`
	Images    []string       `json:"images"            bson:"images"`
	Status    CalendarStatus `json:"status"            bson:"status"`
	PostID    string         `json:"post_id,omitempty" bson:"postId,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"        bson:"updatedAt"`
}
