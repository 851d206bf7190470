package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/storage"
)

func testRun(id string, started time.Time) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:          id,
		Season:         "S2",
		Status:         domain.RunStatusCompleted,
		StartedAt:      started,
		CompletedAt:    started.Add(2 * time.Second),
		CandidatesRead:      5,
		DuplicateCandidates: 1,
		Prefiltered:         1,
		RemoteRecords:       3,
		MalformedRemotes:    1,
		Kept:                2,
		TotalWaifu:          4,
		TotalLlama:          6,
		TotalBase:           17,
		OutputPath:          "out.csv",
	}
}

func TestRunStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()
	started := time.Date(2025, 3, 6, 16, 49, 46, 0, time.UTC)

	run := testRun("run-1", started)
	require.NoError(t, store.InsertRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	err = store.InsertRun(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_Records(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()
	require.NoError(t, store.InsertRun(ctx, testRun("run-1", time.Now().UTC())))

	records := []domain.ReconciledRecord{
		{Address: "0xbb", Waifu: 2, Llama: 3, BaseTotal: 12, LocalBaseTotal: 5, Source: domain.RewardSourceRemote},
		{Address: "0xaa", Waifu: 2, Llama: 3, BaseTotal: 5, LocalBaseTotal: 5, Source: domain.RewardSourceLocal,
			Extra: map[string]string{"S1 Waifu Points": "7"}},
	}
	require.NoError(t, store.InsertRecords(ctx, "run-1", records))

	got, err := store.GetRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, records, got)

	err = store.InsertRecords(ctx, "run-1", records)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	empty, err := store.GetRecords(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRunStore_ListRuns(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertRun(ctx, testRun("run-b", base.Add(time.Hour))))
	require.NoError(t, store.InsertRun(ctx, testRun("run-a", base)))
	other := testRun("run-c", base)
	other.Season = "S1"
	require.NoError(t, store.InsertRun(ctx, other))

	runs, err := store.ListRuns(ctx, "S2")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
}

func TestRunStore_InvalidInput(t *testing.T) {
	store := NewRunStore(nil)
	ctx := context.Background()

	assert.ErrorIs(t, store.InsertRun(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.InsertRecords(ctx, "", nil), storage.ErrInvalidInput)
	assert.NoError(t, store.InsertRecords(ctx, "run-1", nil))
}

func TestRunStore_SaveRunRollsBackOnRecordFailure(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	records := []domain.ReconciledRecord{
		{Address: "0xaa", BaseTotal: 5, LocalBaseTotal: 5, Source: domain.RewardSourceLocal},
	}
	require.NoError(t, store.SaveRun(ctx, testRun("run-1", time.Now().UTC()), records))

	got, err := store.GetRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, records, got)

	err = store.SaveRun(ctx, testRun("run-1", time.Now().UTC()), records)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// PostgreSQL rejects NUL bytes in text, failing the second row.
	err = store.SaveRun(ctx, testRun("run-2", time.Now().UTC()), []domain.ReconciledRecord{
		{Address: "0xbb", Source: domain.RewardSourceLocal},
		{Address: "0xcc\x00", Source: domain.RewardSourceLocal},
	})
	require.Error(t, err)

	_, err = store.GetRun(ctx, "run-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rows, err := store.GetRecords(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
