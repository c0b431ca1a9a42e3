package repository

import (
	"context"
	"time"

	"autopost/domain/model"
)

type ICampaign interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error)
	// Advance moves the campaign cursor forward only if it is still at
	// expectedCursor. Deactivates the campaign when active is false.
	Advance(ctx context.Context, id string, expectedCursor int, nextRunAt time.Time, active bool) (bool, error)
}

type ICalendar interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.CalendarEntry, error)
	// SetStatus moves a pending entry to status. Entries no longer pending are left untouched.
	SetStatus(ctx context.Context, id string, status model.CalendarStatus, postID string, now time.Time) (bool, error)
}
