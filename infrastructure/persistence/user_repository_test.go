package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"autopost/domain/errs"
	"autopost/domain/model"
)

var userColumns = []string{"id", "email", "name", "plan_id", "linkedin_connected", "linkedin_access_token",
	"linkedin_refresh_token", "linkedin_expires_at", "linkedin_account_urn", "created_at", "updated_at"}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUserRepository(db)

	createdAt := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	expiresAt := createdAt.Add(60 * 24 * time.Hour)

	mock.ExpectPrepare(regexp.QuoteMeta(getUserQuery)).
		ExpectQuery().WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "ana@example.com", "Ana", "pro", true, "tok", "refresh", expiresAt, "urn:li:person:abc", createdAt, createdAt))

	res, err := repository.GetByID(context.Background(), "u1")
	expected := &model.User{
		ID:     "u1",
		Email:  "ana@example.com",
		Name:   "Ana",
		PlanID: "pro",
		LinkedIn: model.LinkedInConnection{
			Connected:    true,
			AccessToken:  "tok",
			RefreshToken: "refresh",
			ExpiresAt:    &expiresAt,
			AccountURN:   "urn:li:person:abc",
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	require.NoError(t, err)
	require.Equal(t, expected, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUserRepository(db)

	mock.ExpectPrepare(regexp.QuoteMeta(getUserQuery)).
		ExpectQuery().WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	res, err := repository.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Nil(t, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_PrepareError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUserRepository(db)

	mock.ExpectPrepare(regexp.QuoteMeta(getUserQuery)).
		WillReturnError(fmt.Errorf("prepare error"))

	res, err := repository.GetByID(context.Background(), "u1")
	require.ErrorIs(t, err, errs.ErrStoreUnavailable)
	require.Nil(t, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateLinkedInToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUserRepository(db)
	expiresAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectPrepare(regexp.QuoteMeta(updateLinkedInTokenQuery)).
		ExpectExec().WithArgs("new-token", "", sql.NullTime{Time: expiresAt, Valid: true}, sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.UpdateLinkedInToken(context.Background(), "u1", "new-token", "", &expiresAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateLinkedInToken_UnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewUserRepository(db)

	mock.ExpectPrepare(regexp.QuoteMeta(updateLinkedInTokenQuery)).
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repository.UpdateLinkedInToken(context.Background(), "ghost", "tok", "", nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(getPlanQuery)).WithArgs("pro").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "generation_quota", "image_quota", "daily_schedule_limit",
			"feature_autopost", "feature_carousel", "feature_analytics"}).
			AddRow("pro", "Pro", 100, 50, 5, true, true, false))

	res, err := repository.GetByID(context.Background(), "pro")
	require.NoError(t, err)
	require.Equal(t, &model.Plan{
		ID: "pro", Name: "Pro", GenerationQuota: 100, ImageQuota: 50, DailyScheduleLimit: 5,
		Features: model.PlanFeatures{Autopost: true, Carousel: true},
	}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}
