package persistence

import (
	"context"
	"errors"
	"time"

	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/domain/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const postCollection = "posts"

type PostRepositoryMongo struct {
	coll *mongo.Collection
}

var _ repository.IPost = (*PostRepositoryMongo)(nil)

func NewPostRepositoryMongo(db *mongo.Database) *PostRepositoryMongo {
	return &PostRepositoryMongo{coll: db.Collection(postCollection)}
}

// EnsurePostIndexes creates the indexes the sweep and engagement queries rely on.
func EnsurePostIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(postCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledAt", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "scheduledAt", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "postedAt", Value: -1}}},
	})
	return err
}

func dueStatuses() bson.A {
	a := bson.A{}
	for _, s := range model.DueStatuses {
		a = append(a, s)
	}
	return a
}

// dueFilter matches posts a sweep at now may pick: due by status and schedule
// and not held by a claim newer than leaseCutoff.
func dueFilter(now, leaseCutoff time.Time) bson.D {
	return bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: dueStatuses()}}},
		{Key: "$and", Value: bson.A{
			bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "status", Value: model.PostStatusPosting}},
				bson.D{{Key: "scheduledAt", Value: bson.D{{Key: "$lte", Value: now}}}},
			}}},
			bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "claimToken", Value: bson.D{{Key: "$exists", Value: false}}}},
				bson.D{{Key: "claimToken", Value: ""}},
				bson.D{{Key: "claimedAt", Value: bson.D{{Key: "$lt", Value: leaseCutoff}}}},
			}}},
		}},
	}
}

// saveFilter guards a write: never overwrite POSTED, never lower the retry
// count, and require the claim token when the writer holds one.
func saveFilter(p *model.Post) bson.D {
	f := bson.D{
		{Key: "_id", Value: p.ID},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: model.PostStatusPosted}}},
		{Key: "retryCount", Value: bson.D{{Key: "$lte", Value: p.RetryCount}}},
	}
	if p.ClaimToken != "" {
		f = append(f, bson.E{Key: "claimToken", Value: p.ClaimToken})
	}
	return f
}

func isTerminal(s model.PostStatus) bool {
	return s == model.PostStatusPosted || s == model.PostStatusFailed
}

// saveUpdate writes the lifecycle fields. Terminal states drop the claim.
func saveUpdate(p *model.Post) bson.D {
	set := bson.D{
		{Key: "status", Value: p.Status},
		{Key: "retryCount", Value: p.RetryCount},
		{Key: "scheduledAt", Value: p.ScheduledAt},
		{Key: "updatedAt", Value: p.UpdatedAt},
	}
	unset := bson.D{}
	if p.ExternalPostID != nil {
		set = append(set, bson.E{Key: "externalPostId", Value: *p.ExternalPostID})
	} else {
		unset = append(unset, bson.E{Key: "externalPostId", Value: ""})
	}
	if p.PostedAt != nil {
		set = append(set, bson.E{Key: "postedAt", Value: *p.PostedAt})
	} else {
		unset = append(unset, bson.E{Key: "postedAt", Value: ""})
	}
	if isTerminal(p.Status) || p.ClaimToken == "" {
		unset = append(unset, bson.E{Key: "claimToken", Value: ""}, bson.E{Key: "claimedAt", Value: ""})
	}
	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}

func (r *PostRepositoryMongo) FindDuePosts(ctx context.Context, now, leaseCutoff time.Time, limit int) ([]*model.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, dueFilter(now, leaseCutoff), opts)
	if err != nil {
		return nil, storeErr("find due posts", err)
	}
	var posts []*model.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, storeErr("decode due posts", err)
	}
	return posts, nil
}

func (r *PostRepositoryMongo) ClaimPost(ctx context.Context, id, token string, now, leaseCutoff time.Time) (*model.Post, error) {
	filter := append(bson.D{{Key: "_id", Value: id}}, dueFilter(now, leaseCutoff)...)
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: model.PostStatusPosting},
		{Key: "claimToken", Value: token},
		{Key: "claimedAt", Value: now},
		{Key: "updatedAt", Value: now},
	}}}
	var p model.Post
	err := r.coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("claim post", err)
	}
	return &p, nil
}

func (r *PostRepositoryMongo) Save(ctx context.Context, p *model.Post) error {
	res, err := r.coll.UpdateOne(ctx, saveFilter(p), saveUpdate(p))
	if err != nil {
		return storeErr("save post", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, p.ID); err != nil {
		return err
	}
	return errs.ErrClaimLost
}

func (r *PostRepositoryMongo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get post", err)
	}
	return &p, nil
}

func (r *PostRepositoryMongo) Create(ctx context.Context, p *model.Post) error {
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		if isDuplicate(err) {
			return errs.ErrDuplicate
		}
		return storeErr("create post", err)
	}
	return nil
}

func (r *PostRepositoryMongo) MarkPublishNow(ctx context.Context, id string, now time.Time) (bool, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{model.PostStatusDraft, model.PostStatusScheduled}}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: model.PostStatusPosting},
		{Key: "updatedAt", Value: now},
	}}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("mark publish now", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *PostRepositoryMongo) Requeue(ctx context.Context, id string, at, now time.Time) (bool, error) {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: model.PostStatusFailed}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: model.PostStatusScheduled},
			{Key: "scheduledAt", Value: at},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$unset", Value: bson.D{{Key: "claimToken", Value: ""}, {Key: "claimedAt", Value: ""}}},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("requeue post", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *PostRepositoryMongo) CountScheduledBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	filter := bson.D{
		{Key: "userId", Value: userID},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: model.PostStatusDraft}}},
		{Key: "scheduledAt", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lt", Value: to}}},
	}
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, storeErr("count scheduled posts", err)
	}
	return int(n), nil
}

func (r *PostRepositoryMongo) ListPostedForSync(ctx context.Context, since time.Time, limit int) ([]*model.Post, error) {
	filter := bson.D{
		{Key: "status", Value: model.PostStatusPosted},
		{Key: "externalPostId", Value: bson.D{{Key: "$exists", Value: true}}},
		{Key: "postedAt", Value: bson.D{{Key: "$gte", Value: since}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "postedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("list posted posts", err)
	}
	var posts []*model.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, storeErr("decode posted posts", err)
	}
	return posts, nil
}

func (r *PostRepositoryMongo) UpdateEngagement(ctx context.Context, id string, summary model.EngagementSummary) error {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: model.PostStatusPosted}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "engagement", Value: summary}}}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return storeErr("update engagement", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}
