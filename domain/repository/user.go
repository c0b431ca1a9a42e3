package repository

import (
	"context"
	"time"

	"autopost/domain/model"
)

type IUser interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateLinkedInToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
}

type IPlan interface {
	GetByID(ctx context.Context, id string) (*model.Plan, error)
}
