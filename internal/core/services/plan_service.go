package services

import (
	"context"
	"fmt"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/progress"
)

type PlanService struct {
	repo domain.PlanRepository
}

func NewPlanService(repo domain.PlanRepository) *PlanService {
	return &PlanService{
		repo: repo,
	}
}

type SavePlanInput struct {
	UserID                 string
	StartDate              domain.CalendarDate
	InitialDailyCigarettes int
	PackPrice              float64
	Currency               string
	Phases                 []domain.WeekPhase
	Version                int
	// Today, when set, rejects start dates whose tracking window could
	// never be reconciled.
	Today domain.CalendarDate
}

// GetActive returns ErrPlanMissing when the user has no plan.
func (s *PlanService) GetActive(ctx context.Context, userID string) (*domain.Plan, error) {
	plan, err := s.repo.GetActivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanMissing
	}
	return plan, nil
}

// Save creates the user's plan or replaces its schedule. A non-zero Version
// must match the stored one.
func (s *PlanService) Save(ctx context.Context, input SavePlanInput) (*domain.Plan, error) {
	if !input.Today.IsZero() && !input.StartDate.IsZero() && input.Today.DaysSince(input.StartDate) >= progress.MaxWindowDays {
		return nil, fmt.Errorf("%w: %w (%s, at most %d days before %s)",
			domain.ErrInvalidPlan, domain.ErrPlanStartTooOld, input.StartDate, progress.MaxWindowDays-1, input.Today)
	}

	existing, err := s.repo.GetActivePlan(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		plan, err := domain.NewPlan(input.UserID, input.StartDate, input.InitialDailyCigarettes, input.PackPrice, input.Phases)
		if err != nil {
			return nil, err
		}
		if input.Currency != "" {
			plan.Currency = input.Currency
		}
		if err := s.repo.SavePlan(ctx, plan); err != nil {
			return nil, err
		}
		return plan, nil
	}

	if input.Version > 0 && existing.Version != input.Version {
		return nil, fmt.Errorf("%w: client v%d vs server v%d", domain.ErrPlanConflict, input.Version, existing.Version)
	}

	if err := existing.Update(input.StartDate, input.InitialDailyCigarettes, input.PackPrice, input.Currency, input.Phases); err != nil {
		return nil, err
	}

	if err := s.repo.SavePlan(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}
