package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/progress"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
)

func TestPlanService_GetActive(t *testing.T) {
	ctx := context.Background()

	t.Run("Success: Returns stored plan", func(t *testing.T) {
		repo := new(MockPlanRepo)
		repo.On("GetActivePlan", ctx, "u1").Return(testPlan("u1"), nil)

		plan, err := services.NewPlanService(repo).GetActive(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "plan-1", plan.ID)
	})

	t.Run("Error: No plan maps to ErrPlanMissing", func(t *testing.T) {
		repo := new(MockPlanRepo)
		repo.On("GetActivePlan", ctx, "u1").Return(nil, nil)

		_, err := services.NewPlanService(repo).GetActive(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrPlanMissing)
	})

	t.Run("Error: Repository failure is propagated", func(t *testing.T) {
		repo := new(MockPlanRepo)
		repo.On("GetActivePlan", ctx, "u1").Return(nil, errors.New("db down"))

		_, err := services.NewPlanService(repo).GetActive(ctx, "u1")
		assert.EqualError(t, err, "db down")
	})
}

func TestPlanService_Save(t *testing.T) {
	ctx := context.Background()
	input := services.SavePlanInput{
		UserID:                 "u1",
		StartDate:              day0,
		InitialDailyCigarettes: 20,
		PackPrice:              4500,
		Currency:               "EUR",
		Phases:                 []domain.WeekPhase{domain.NewWeekPhase(1, 10)},
	}

	t.Run("Success: Creates a new plan when none exists", func(t *testing.T) {
		repo := new(MockPlanRepo)
		repo.On("GetActivePlan", ctx, "u1").Return(nil, nil)
		repo.On("SavePlan", ctx, mock.MatchedBy(func(p *domain.Plan) bool {
			return p.UserID == "u1" && p.Version == 1 && p.Currency == "EUR"
		})).Return(nil)

		plan, err := services.NewPlanService(repo).Save(ctx, input)
		require.NoError(t, err)
		assert.NotEmpty(t, plan.ID)
		repo.AssertExpectations(t)
	})

	t.Run("Error: Invalid plan is rejected before persistence", func(t *testing.T) {
		repo := new(MockPlanRepo)
		repo.On("GetActivePlan", ctx, "u1").Return(nil, nil)

		bad := input
		bad.Phases = nil
		_, err := services.NewPlanService(repo).Save(ctx, bad)
		assert.ErrorIs(t, err, domain.ErrInvalidPlan)
		repo.AssertNotCalled(t, "SavePlan", mock.Anything, mock.Anything)
	})

	t.Run("Error: Start date beyond the tracking window is rejected", func(t *testing.T) {
		repo := new(MockPlanRepo)

		old := input
		old.StartDate = domain.MustParseCalendarDate("1980-01-01")
		old.Today = domain.MustParseCalendarDate("2026-10-17")
		_, err := services.NewPlanService(repo).Save(ctx, old)
		assert.ErrorIs(t, err, domain.ErrInvalidPlan)
		assert.ErrorIs(t, err, domain.ErrPlanStartTooOld)
		repo.AssertNotCalled(t, "SavePlan", mock.Anything, mock.Anything)
	})

	t.Run("Success: Oldest start date that still fits the window", func(t *testing.T) {
		repo := new(MockPlanRepo)
		repo.On("GetActivePlan", ctx, "u1").Return(nil, nil)
		repo.On("SavePlan", ctx, mock.Anything).Return(nil)

		edge := input
		edge.Today = domain.MustParseCalendarDate("2026-10-17")
		edge.StartDate = edge.Today.AddDays(-(progress.MaxWindowDays - 1))
		_, err := services.NewPlanService(repo).Save(ctx, edge)
		require.NoError(t, err)
	})

	t.Run("Success: Updates the existing plan", func(t *testing.T) {
		repo := new(MockPlanRepo)
		existing := testPlan("u1")
		repo.On("GetActivePlan", ctx, "u1").Return(existing, nil)
		repo.On("SavePlan", ctx, mock.MatchedBy(func(p *domain.Plan) bool {
			return p.ID == "plan-1" && p.InitialDailyCigarettes == 20 && len(p.Phases) == 1
		})).Return(nil)

		update := input
		update.Version = 1
		plan, err := services.NewPlanService(repo).Save(ctx, update)
		require.NoError(t, err)
		assert.Equal(t, "plan-1", plan.ID)
		assert.Equal(t, "EUR", plan.Currency)
	})

	t.Run("Error: Stale version conflicts", func(t *testing.T) {
		repo := new(MockPlanRepo)
		existing := testPlan("u1")
		existing.Version = 4
		repo.On("GetActivePlan", ctx, "u1").Return(existing, nil)

		stale := input
		stale.Version = 3
		_, err := services.NewPlanService(repo).Save(ctx, stale)
		assert.ErrorIs(t, err, domain.ErrPlanConflict)
		assert.Contains(t, err.Error(), "client v3 vs server v4")
	})
}
