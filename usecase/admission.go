package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autopost/domain/errs"
	"autopost/domain/repository"
)

// IAdmission decides whether a user's plan allows scheduling another post.
type IAdmission interface {
	Check(ctx context.Context, userID string, at time.Time, imageCount int) error
}

type admission struct {
	users repository.IUser
	plans repository.IPlan
	posts repository.IPost
}

func NewAdmission(users repository.IUser, plans repository.IPlan, posts repository.IPost) IAdmission {
	return &admission{users: users, plans: plans, posts: posts}
}

func (a *admission) Check(ctx context.Context, userID string, at time.Time, imageCount int) error {
	user, err := a.users.GetByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("%w: unknown user %s", errs.ErrPlanLimit, userID)
	}
	if err != nil {
		return err
	}
	if user.PlanID == "" {
		return fmt.Errorf("%w: no plan", errs.ErrPlanLimit)
	}
	plan, err := a.plans.GetByID(ctx, user.PlanID)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("%w: unknown plan %s", errs.ErrPlanLimit, user.PlanID)
	}
	if err != nil {
		return err
	}

	switch {
	case !plan.Features.Autopost:
		return fmt.Errorf("%w: autopost not included in plan %s", errs.ErrPlanLimit, plan.ID)
	case imageCount > 1 && !plan.Features.Carousel:
		return fmt.Errorf("%w: carousel not included in plan %s", errs.ErrPlanLimit, plan.ID)
	case plan.ImageQuota > 0 && imageCount > plan.ImageQuota:
		return fmt.Errorf("%w: %d images exceed quota %d", errs.ErrPlanLimit, imageCount, plan.ImageQuota)
	}

	if plan.DailyScheduleLimit > 0 {
		day := at.UTC().Truncate(24 * time.Hour)
		n, err := a.posts.CountScheduledBetween(ctx, userID, day, day.Add(24*time.Hour))
		if err != nil {
			return err
		}
		if n >= plan.DailyScheduleLimit {
			return fmt.Errorf("%w: daily limit %d reached", errs.ErrPlanLimit, plan.DailyScheduleLimit)
		}
	}
	return nil
}
