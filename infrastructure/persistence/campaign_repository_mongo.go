package persistence

import (
	"context"
	"time"

	"autopost/domain/model"
	"autopost/domain/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type CampaignRepositoryMongo struct {
	coll *mongo.Collection
}

var _ repository.ICampaign = (*CampaignRepositoryMongo)(nil)

func NewCampaignRepositoryMongo(db *mongo.Database) *CampaignRepositoryMongo {
	return &CampaignRepositoryMongo{coll: db.Collection("campaigns")}
}

func (r *CampaignRepositoryMongo) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	filter := bson.D{
		{Key: "active", Value: true},
		{Key: "nextRunAt", Value: bson.D{{Key: "$lte", Value: now}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "nextRunAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("find due campaigns", err)
	}
	var out []*model.Campaign
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("decode campaigns", err)
	}
	return out, nil
}

// Advance moves the campaign cursor forward only if nobody else did first.
func (r *CampaignRepositoryMongo) Advance(ctx context.Context, id string, expectedCursor int, nextRunAt time.Time, active bool) (bool, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "cursor", Value: expectedCursor},
		{Key: "active", Value: true},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "cursor", Value: expectedCursor + 1},
		{Key: "nextRunAt", Value: nextRunAt},
		{Key: "active", Value: active},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("advance campaign", err)
	}
	return res.MatchedCount == 1, nil
}

type CalendarRepositoryMongo struct {
	coll *mongo.Collection
}

var _ repository.ICalendar = (*CalendarRepositoryMongo)(nil)

func NewCalendarRepositoryMongo(db *mongo.Database) *CalendarRepositoryMongo {
	return &CalendarRepositoryMongo{coll: db.Collection("calendar_entries")}
}

func (r *CalendarRepositoryMongo) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.CalendarEntry, error) {
	filter := bson.D{
		{Key: "status", Value: model.CalendarStatusPending},
		{Key: "publishAt", Value: bson.D{{Key: "$lte", Value: now}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "publishAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("find due calendar entries", err)
	}
	var out []*model.CalendarEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("decode calendar entries", err)
	}
	return out, nil
}

func (r *CalendarRepositoryMongo) SetStatus(ctx context.Context, id string, status model.CalendarStatus, postID string, now time.Time) (bool, error) {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: model.CalendarStatusPending}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: status},
		{Key: "postId", Value: postID},
		{Key: "updatedAt", Value: now},
	}}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("set calendar status", err)
	}
	return res.MatchedCount == 1, nil
}
