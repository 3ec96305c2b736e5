package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "kanso", "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_LocalContract(t *testing.T) {
	runLocalStoreContract(t, newTestSQLite(t), "u1")
}

func TestSQLiteStore_PlanContract(t *testing.T) {
	runPlanRepositoryContract(t, newTestSQLite(t), "u1")
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.PutLocalRecord(ctx, testRecord("u1", 0, 3, domain.StateDraft)))

	got := store.GetLocalRecords(ctx, "u1", domain.DateRange{From: day0, To: day0})
	assert.Len(t, got, 1)
}

func TestSQLiteStore_CorruptRowsAreDropped(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.PutLocalRecord(ctx, testRecord("u1", 0, 3, domain.StateCommitted)))

	_, err := store.db.Exec(`INSERT INTO checkins (`+sqliteCheckinColumns+`)
		VALUES ('u1', '2024-03-02', 10, 4, '', 'sideways', 'draft', 1, 0, 0)`)
	require.NoError(t, err)
	_, err = store.db.Exec(`INSERT INTO checkins (`+sqliteCheckinColumns+`)
		VALUES ('u1', 'not-a-date', 10, 4, '', 'local', 'draft', 1, 0, 0)`)
	require.NoError(t, err)

	t.Run("Range read skips corrupt rows without failing", func(t *testing.T) {
		got := store.GetLocalRecords(ctx, "u1", domain.DateRange{From: day0, To: day0.AddDays(3)})
		require.Len(t, got, 1)
		assert.Equal(t, day0, got[0].Date)
	})

	t.Run("Corrupt row was deleted", func(t *testing.T) {
		var n int
		require.NoError(t, store.db.Get(&n, `SELECT COUNT(*) FROM checkins WHERE checkin_date = '2024-03-02'`))
		assert.Equal(t, 0, n)
	})

	t.Run("Single read of a corrupt row reports not found", func(t *testing.T) {
		_, err := store.db.Exec(`INSERT INTO checkins (`+sqliteCheckinColumns+`)
			VALUES ('u1', '2024-03-03', 10, 4, '', 'local', 'limbo', 1, 0, 0)`)
		require.NoError(t, err)

		_, err = store.GetLocalRecord(ctx, "u1", day0.AddDays(2))
		assert.ErrorIs(t, err, domain.ErrCheckinNotFound)
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.PutLocalRecord(ctx, testRecord("u1", 1, 7, domain.StateDraft)))
	require.NoError(t, store.SavePlan(ctx, testPlan("u1")))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.GetLocalRecord(ctx, "u1", day0.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, 7, rec.ActualCigarettes)

	plan, err := reopened.GetActivePlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Len(t, plan.Phases, 2)
}
