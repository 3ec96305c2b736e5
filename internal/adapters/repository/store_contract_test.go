package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

var (
	day0 = domain.MustParseCalendarDate("2024-03-01")
	t0   = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testRecord(userID string, offset, actual int, state domain.CheckinState) domain.CheckinRecord {
	return domain.CheckinRecord{
		UserID:           userID,
		Date:             day0.AddDays(offset),
		TargetCigarettes: 10,
		ActualCigarettes: actual,
		Notes:            "after lunch",
		Origin:           domain.OriginLocal,
		State:            state,
		Version:          1,
		CreatedAt:        t0,
		UpdatedAt:        t0.Add(time.Duration(offset) * time.Minute),
	}
}

func testPlan(userID string) *domain.Plan {
	return &domain.Plan{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		StartDate:              day0,
		InitialDailyCigarettes: 20,
		Phases: []domain.WeekPhase{
			domain.NewWeekPhase(1, 10),
			domain.NewWeekPhase(2, 5),
		},
		PackPrice: 20000,
		Currency:  domain.DefaultCurrency,
		Version:   1,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func assertSameRecord(t *testing.T, want, got domain.CheckinRecord) {
	t.Helper()
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Date, got.Date)
	assert.Equal(t, want.TargetCigarettes, got.TargetCigarettes)
	assert.Equal(t, want.ActualCigarettes, got.ActualCigarettes)
	assert.Equal(t, want.Notes, got.Notes)
	assert.Equal(t, want.State, got.State)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at: want %v, got %v", want.UpdatedAt, got.UpdatedAt)
}

// runLocalStoreContract exercises the LocalCheckinStore behavior every tier
// implementation must share. userID should be unique per run for shared backends.
func runLocalStoreContract(t *testing.T, store domain.LocalCheckinStore, userID string) {
	ctx := context.Background()

	t.Run("Empty store returns an empty, non-nil slice", func(t *testing.T) {
		got := store.GetLocalRecords(ctx, userID, domain.DateRange{From: day0, To: day0.AddDays(6)})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("Missing record is ErrCheckinNotFound", func(t *testing.T) {
		_, err := store.GetLocalRecord(ctx, userID, day0)
		assert.ErrorIs(t, err, domain.ErrCheckinNotFound)
	})

	t.Run("Success: put and read back", func(t *testing.T) {
		rec := testRecord(userID, 0, 4, domain.StateDraft)
		require.NoError(t, store.PutLocalRecord(ctx, rec))

		got, err := store.GetLocalRecord(ctx, userID, rec.Date)
		require.NoError(t, err)
		assertSameRecord(t, rec, *got)
	})

	t.Run("Success: put replaces the record for the same date", func(t *testing.T) {
		rec := testRecord(userID, 0, 2, domain.StateCommitted)
		rec.UpdatedAt = t0.Add(time.Hour)
		require.NoError(t, store.PutLocalRecord(ctx, rec))

		got, err := store.GetLocalRecord(ctx, userID, rec.Date)
		require.NoError(t, err)
		assertSameRecord(t, rec, *got)
	})

	t.Run("Range read is ascending and bounded", func(t *testing.T) {
		for _, off := range []int{5, 2, 9, -1} {
			require.NoError(t, store.PutLocalRecord(ctx, testRecord(userID, off, off+1, domain.StateDraft)))
		}

		got := store.GetLocalRecords(ctx, userID, domain.DateRange{From: day0, To: day0.AddDays(6)})
		require.Len(t, got, 3)
		assert.Equal(t, day0, got[0].Date)
		assert.Equal(t, day0.AddDays(2), got[1].Date)
		assert.Equal(t, day0.AddDays(5), got[2].Date)
	})

	t.Run("Other users are isolated", func(t *testing.T) {
		got := store.GetLocalRecords(ctx, userID+"-other", domain.DateRange{From: day0.AddDays(-5), To: day0.AddDays(30)})
		assert.Empty(t, got)
	})

	t.Run("Refresh fills an empty day", func(t *testing.T) {
		rec := testRecord(userID, 20, 3, domain.StateCommitted)
		rec.Origin = domain.OriginRemote

		written, err := store.RefreshLocalRecord(ctx, rec)
		require.NoError(t, err)
		assert.True(t, written)

		got, err := store.GetLocalRecord(ctx, userID, rec.Date)
		require.NoError(t, err)
		assertSameRecord(t, rec, *got)
	})

	t.Run("Refresh replaces only an older committed record", func(t *testing.T) {
		newer := testRecord(userID, 20, 6, domain.StateCommitted)
		newer.UpdatedAt = t0.Add(2 * time.Hour)
		written, err := store.RefreshLocalRecord(ctx, newer)
		require.NoError(t, err)
		assert.True(t, written)

		stale := testRecord(userID, 20, 9, domain.StateCommitted)
		written, err = store.RefreshLocalRecord(ctx, stale)
		require.NoError(t, err)
		assert.False(t, written)

		got, err := store.GetLocalRecord(ctx, userID, newer.Date)
		require.NoError(t, err)
		assert.Equal(t, 6, got.ActualCigarettes)
	})

	t.Run("Refresh never overwrites a draft", func(t *testing.T) {
		draft := testRecord(userID, 21, 2, domain.StateDraft)
		require.NoError(t, store.PutLocalRecord(ctx, draft))

		remote := testRecord(userID, 21, 9, domain.StateCommitted)
		remote.UpdatedAt = t0.Add(24 * time.Hour)
		written, err := store.RefreshLocalRecord(ctx, remote)
		require.NoError(t, err)
		assert.False(t, written)

		got, err := store.GetLocalRecord(ctx, userID, draft.Date)
		require.NoError(t, err)
		assertSameRecord(t, draft, *got)
	})

	t.Run("Refresh ignores drafts from the remote tier", func(t *testing.T) {
		rec := testRecord(userID, 22, 1, domain.StateDraft)
		written, err := store.RefreshLocalRecord(ctx, rec)
		require.NoError(t, err)
		assert.False(t, written)

		_, err = store.GetLocalRecord(ctx, userID, rec.Date)
		assert.ErrorIs(t, err, domain.ErrCheckinNotFound)
	})

	t.Run("Invalid records are rejected", func(t *testing.T) {
		rec := testRecord(userID, 3, -1, domain.StateDraft)
		assert.ErrorIs(t, store.PutLocalRecord(ctx, rec), domain.ErrNegativeCount)

		_, err := store.GetLocalRecord(ctx, userID, rec.Date)
		assert.ErrorIs(t, err, domain.ErrCheckinNotFound)
	})
}

// runPlanRepositoryContract checks the optimistic locking shared by every PlanRepository.
func runPlanRepositoryContract(t *testing.T, repo domain.PlanRepository, userID string) {
	ctx := context.Background()

	t.Run("No plan is nil without error", func(t *testing.T) {
		p, err := repo.GetActivePlan(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("Success: create and read back", func(t *testing.T) {
		p := testPlan(userID)
		require.NoError(t, repo.SavePlan(ctx, p))
		assert.Equal(t, 1, p.Version)

		got, err := repo.GetActivePlan(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, day0, got.StartDate)
		assert.Equal(t, 20, got.InitialDailyCigarettes)
		assert.Equal(t, 20000.0, got.PackPrice)
		assert.Equal(t, p.Phases, got.Phases)
		assert.Equal(t, 1, got.Version)
	})

	t.Run("Success: update with the current version bumps it", func(t *testing.T) {
		got, err := repo.GetActivePlan(ctx, userID)
		require.NoError(t, err)
		got.Phases = append(got.Phases, domain.NewWeekPhase(3, 2))

		require.NoError(t, repo.SavePlan(ctx, got))
		assert.Equal(t, 2, got.Version)

		again, err := repo.GetActivePlan(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, again.Phases, 3)
		assert.Equal(t, 2, again.Version)
	})

	t.Run("Failure: stale version is a conflict", func(t *testing.T) {
		stale := testPlan(userID)
		stale.Version = 1

		err := repo.SavePlan(ctx, stale)
		assert.ErrorIs(t, err, domain.ErrPlanConflict)

		got, err := repo.GetActivePlan(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version, "failed save must not change the stored plan")
	})
}
