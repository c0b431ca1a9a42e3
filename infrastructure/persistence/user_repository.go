package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/domain/repository"
)

const (
	getUserQuery = `SELECT u.id, u.email, u.name, u.plan_id, u.linkedin_connected, u.linkedin_access_token, u.linkedin_refresh_token, u.linkedin_expires_at, u.linkedin_account_urn, u.created_at, u.updated_at
	FROM users AS u
	WHERE u.id = $1`

	updateLinkedInTokenQuery = `UPDATE users SET linkedin_access_token=$1,
	linkedin_refresh_token=CASE WHEN $2::text = '' THEN linkedin_refresh_token ELSE $2 END,
	linkedin_expires_at=COALESCE($3, linkedin_expires_at), updated_at=$4
	WHERE id=$5`

	getPlanQuery = `SELECT p.id, p.name, p.generation_quota, p.image_quota, p.daily_schedule_limit, p.feature_autopost, p.feature_carousel, p.feature_analytics
	FROM plans AS p
	WHERE p.id = $1`
)

type UserRepository struct {
	db *sql.DB
}

var _ repository.IUser = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	stmt, err := r.db.PrepareContext(ctx, getUserQuery)
	if err != nil {
		return nil, storeErr("prepare get user", err)
	}
	defer stmt.Close()

	u := &model.User{}
	var expiresAt sql.NullTime
	err = stmt.QueryRowContext(ctx, id).Scan(&u.ID, &u.Email, &u.Name, &u.PlanID,
		&u.LinkedIn.Connected, &u.LinkedIn.AccessToken, &u.LinkedIn.RefreshToken, &expiresAt, &u.LinkedIn.AccountURN,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		u.LinkedIn.ExpiresAt = &t
	}
	return u, nil
}

// UpdateLinkedInToken stores a refreshed token. An empty refresh token or nil
// expiry keeps the stored value.
func (r *UserRepository) UpdateLinkedInToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	stmt, err := r.db.PrepareContext(ctx, updateLinkedInTokenQuery)
	if err != nil {
		return storeErr("prepare update linkedin token", err)
	}
	defer stmt.Close()

	var exp sql.NullTime
	if expiresAt != nil {
		exp = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	res, err := stmt.ExecContext(ctx, accessToken, refreshToken, exp, time.Now().UTC(), id)
	if err != nil {
		return storeErr("update linkedin token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("update linkedin token", err)
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

type PlanRepository struct {
	db *sql.DB
}

var _ repository.IPlan = (*PlanRepository)(nil)

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	p := &model.Plan{}
	err := r.db.QueryRowContext(ctx, getPlanQuery, id).Scan(&p.ID, &p.Name, &p.GenerationQuota, &p.ImageQuota,
		&p.DailyScheduleLimit, &p.Features.Autopost, &p.Features.Carousel, &p.Features.Analytics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get plan", err)
	}
	return p, nil
}
