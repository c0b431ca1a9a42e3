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
)

type UserRepositoryMongo struct {
	coll *mongo.Collection
}

var _ repository.IUser = (*UserRepositoryMongo)(nil)

func NewUserRepositoryMongo(db *mongo.Database) *UserRepositoryMongo {
	return &UserRepositoryMongo{coll: db.Collection("users")}
}

func (r *UserRepositoryMongo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return &u, nil
}

func (r *UserRepositoryMongo) UpdateLinkedInToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	set := bson.D{
		{Key: "linkedin.accessToken", Value: accessToken},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}
	if refreshToken != "" {
		set = append(set, bson.E{Key: "linkedin.refreshToken", Value: refreshToken})
	}
	if expiresAt != nil {
		set = append(set, bson.E{Key: "linkedin.expiresAt", Value: *expiresAt})
	}
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return storeErr("update linkedin token", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

type PlanRepositoryMongo struct {
	coll *mongo.Collection
}

var _ repository.IPlan = (*PlanRepositoryMongo)(nil)

func NewPlanRepositoryMongo(db *mongo.Database) *PlanRepositoryMongo {
	return &PlanRepositoryMongo{coll: db.Collection("plans")}
}

func (r *PlanRepositoryMongo) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	var p model.Plan
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get plan", err)
	}
	return &p, nil
}
