package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"airdrop-reconciler/internal/aggregate"
	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/stats"
	"airdrop-reconciler/internal/statsapi"
	"airdrop-reconciler/internal/storage"
	"airdrop-reconciler/internal/storage/memory"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrC = "0xcccccccccccccccccccccccccccccccccccccccc"
	addrD = "0xdddddddddddddddddddddddddddddddddddddddd"

	header = "Address,S2 waifu_reward_tokens,S2 llama_reward_tokens,S2 Total Base Tokens\n"
)

var fixedTime = time.Date(2025, 3, 6, 16, 49, 46, 0, time.UTC)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestPipeline(cfg Config) *Pipeline {
	return New(cfg).
		WithClock(func() time.Time { return fixedTime }).
		WithIDGenerator(func() string { return "run-1" })
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+
		addrA+",2,3,5\n"+
		addrB+",2,3,5\n"+
		addrC+",4,4,8\n"+
		"0x123,9,9,18\n"+
		addrD+",0.25,0.25,0.5\n")
	writeFile(t, dir, "cluster_1.csv", "\""+addrC+",0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee\"\n")
	statsPath := writeFile(t, dir, "stats.json", `[{"address": "`+addrB+`", "revisedTokens": 12, "totalTokens": 3}]`)
	output := filepath.Join(dir, "out.csv")

	runStore := memory.NewRunStore()
	snapshots := memory.NewRewardSnapshotStore()

	summary, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		ClusterGlob:   filepath.Join(dir, "cluster_*.csv"),
		ClaimedPath:   filepath.Join(dir, "claimed_missing.csv"),
		StatsPath:     statsPath,
		OutputPath:    output,
	}).WithRunStore(runStore).WithSnapshotStore(snapshots).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, domain.RunStatusCompleted, summary.Status)
	assert.Equal(t, 5, summary.CandidatesRead)
	assert.Equal(t, 1, summary.RemoteRecords)
	assert.Equal(t, 1, summary.RemoteOverrides)
	assert.Equal(t, 1, summary.InvalidAddresses)
	assert.Equal(t, 1, summary.Excluded)
	assert.Equal(t, 1, summary.BelowThreshold)
	assert.Equal(t, 2, summary.Kept)
	assert.Equal(t, 17.0, summary.TotalBase)
	assert.Equal(t, output, summary.OutputPath)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, header+
		addrA+",2,3,5\n"+
		addrB+",2,3,12\n"+
		",,,\n"+
		"TOTAL,4,6,17\n", string(got))

	stored, err := runStore.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Kept)

	records, err := runStore.GetRecords(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.RewardSourceRemote, records[1].Source)
	assert.Equal(t, 5.0, records[1].LocalBaseTotal)

	snaps, err := snapshots.GetByRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[1].Position)
	assert.Equal(t, "S2", snaps[1].Season)
}

func TestRun_EmptyResult(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+addrA+",2,3,5\n")
	claimed := writeFile(t, dir, "claimed.csv", "Address,amount\n"+addrA+",5\n")
	output := filepath.Join(dir, "out.csv")
	runStore := memory.NewRunStore()

	summary, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		ClaimedPath:   claimed,
		OutputPath:    output,
	}).WithRunStore(runStore).Run(context.Background())

	require.ErrorIs(t, err, aggregate.ErrEmptyResult)
	require.NotNil(t, summary)
	assert.Equal(t, domain.RunStatusEmpty, summary.Status)
	assert.Equal(t, 1, summary.Excluded)
	assert.Empty(t, summary.OutputPath)

	_, statErr := os.Stat(output)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	stored, err := runStore.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusEmpty, stored.Status)
}

func TestRun_MissingExclusionSourcesDegrade(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+addrA+",2,3,5\n")

	core, logs := observer.New(zap.WarnLevel)
	summary, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		ClusterGlob:   filepath.Join(dir, "sybils", "*.csv"),
		ClaimedPath:   filepath.Join(dir, "absent.csv"),
	}).WithLogger(zap.New(core)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Kept)
	assert.Equal(t, 1, logs.FilterMessage("skipping exclusion source").Len())
	assert.Equal(t, 1, logs.FilterMessage("no cluster files matched").Len())
}

func TestRun_AmbiguousRemoteFallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+addrA+",2,3,5\n")
	statsPath := writeFile(t, dir, "stats.json", `[{"address": "`+addrA+`", "hardware": "gpu"}]`)

	core, logs := observer.New(zap.WarnLevel)
	summary, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		StatsPath:     statsPath,
	}).WithLogger(zap.New(core)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AmbiguousRemotes)
	assert.Zero(t, summary.RemoteOverrides)
	assert.Equal(t, 5.0, summary.TotalBase)
	assert.Equal(t, 1, logs.FilterMessageSnippet("neither revisedTokens nor totalTokens").Len())
}

func TestRun_RejectConflictingDuplicates(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+addrA+",2,3,5\n")
	statsPath := writeFile(t, dir, "stats.json",
		`[{"address": "`+addrA+`", "totalTokens": 7}, {"address": "`+addrA+`", "totalTokens": 9}]`)

	_, err := newTestPipeline(Config{
		Season:          "S2",
		CandidatePath:   candidates,
		StatsPath:       statsPath,
		DuplicatePolicy: stats.RejectConflict,
	}).Run(context.Background())
	assert.ErrorIs(t, err, stats.ErrConflictingDuplicate)
}

func TestRun_SortByTotal(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+
		addrA+",1,1,2\n"+
		addrB+",5,5,10\n")
	output := filepath.Join(dir, "out.csv")

	_, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		OutputPath:    output,
		SortByTotal:   true,
	}).Run(context.Background())
	require.NoError(t, err)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, header+
		addrB+",5,5,10\n"+
		addrA+",1,1,2\n"+
		",,,\n"+
		"TOTAL,6,6,12\n", string(got))
}

type stubGetter map[string]string

func (s stubGetter) GetMinerStats(_ context.Context, address string) (*statsapi.MinerStats, error) {
	payload, ok := s[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", statsapi.ErrNotFound, address)
	}
	return &statsapi.MinerStats{Address: address, Data: json.RawMessage(payload)}, nil
}

func TestRun_LiveStats(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+
		addrA+",2,3,5\n"+
		addrB+",0,0,0\n")

	summary, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		Workers:       2,
	}).WithStatsGetter(stubGetter{
		addrA: `{"totalTokens": 4}`,
		addrB: `{"revisedTokens": "3.5"}`,
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RemoteRecords)
	assert.Zero(t, summary.Prefiltered)
	assert.Equal(t, 1, summary.RemoteOverrides)
	assert.Equal(t, 2, summary.Kept)
	assert.Equal(t, 8.5, summary.TotalBase)
}

func TestRun_PrefilterDropsZeroRowsWithoutRemote(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+
		addrA+",2,3,5\n"+
		addrB+",0,0,0\n")

	summary, err := newTestPipeline(Config{Season: "S2", CandidatePath: candidates}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Prefiltered)
	assert.Equal(t, 1, summary.Kept)
}

func TestRun_ExclusionStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+
		addrA+",2,3,5\n"+
		addrB+",2,3,5\n")
	store := memory.NewExclusionStore()
	require.NoError(t, store.InsertBulk(context.Background(), "s2", []domain.Address{addrB}))
	writeFile(t, dir, "cluster_1.csv", addrD+"\n")

	summary, err := newTestPipeline(Config{
		Season:          "S2",
		CandidatePath:   candidates,
		ClusterGlob:     filepath.Join(dir, "cluster_*.csv"),
		ExtraExclusions: []string{addrA},
		ExclusionList:   "s2",
	}).WithExclusionStore(store).Run(context.Background())
	require.ErrorIs(t, err, aggregate.ErrEmptyResult)
	assert.Equal(t, 2, summary.Excluded)

	// Run-only exclusions are applied but never stored.
	list, err := store.GetByList(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{addrB, addrD}, list)
}

func TestRun_MissingCandidateFile(t *testing.T) {
	_, err := newTestPipeline(Config{Season: "S2", CandidatePath: filepath.Join(t.TempDir(), "nope.csv")}).
		Run(context.Background())
	assert.Error(t, err)
}

func TestRun_NonFiniteAmountsAreSkipped(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+
		addrA+",2,3,5\n"+
		addrB+",0,0,NaN\n"+
		addrC+",Inf,1,1\n")
	output := filepath.Join(dir, "out.csv")

	summary, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		OutputPath:    output,
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CandidatesRead)
	assert.Equal(t, 1, summary.Kept)
	assert.Equal(t, 5.0, summary.TotalBase)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, header+addrA+",2,3,5\n,,,\nTOTAL,2,3,5\n", string(got))
}

func TestRun_MalformedRemoteFigureDegrades(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+
		addrA+",2,3,5\n"+
		addrC+",1,1,2\n")
	statsPath := writeFile(t, dir, "stats.json", `[
		{"address": "`+addrA+`", "revisedTokens": 12},
		{"address": "`+addrB+`", "revisedTokens": 9, "totalTokens": "n/a"},
		{"address": "`+addrC+`", "totalTokens": "lots"}
	]`)

	core, logs := observer.New(zap.WarnLevel)
	summary, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		StatsPath:     statsPath,
	}).WithLogger(zap.New(core)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MalformedRemotes)
	assert.Equal(t, 1, summary.AmbiguousRemotes)
	assert.Equal(t, 1, summary.RemoteOverrides)
	assert.Equal(t, 2, summary.Kept)
	assert.Equal(t, 14.0, summary.TotalBase)

	entries := logs.FilterMessage("ignoring malformed remote figure").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "totalTokens", entries[0].ContextMap()["field"])
}

func TestRun_DuplicateCandidatesKeepFirst(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+
		addrA+",2,3,5\n"+
		"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,2,3,5\n")

	core, logs := observer.New(zap.WarnLevel)
	summary, err := newTestPipeline(Config{Season: "S2", CandidatePath: candidates}).
		WithLogger(zap.New(core)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.DuplicateCandidates)
	assert.Equal(t, 1, summary.Kept)
	assert.Equal(t, 5.0, summary.TotalBase)
	assert.Equal(t, 1, logs.FilterMessage("dropping duplicate candidate row").Len())
}

// brokenRunStore fails every save, as a lost connection would.
type brokenRunStore struct {
	*memory.RunStore
}

func (brokenRunStore) SaveRun(context.Context, *domain.RunSummary, []domain.ReconciledRecord) error {
	return errors.New("connection reset")
}

func TestRun_PersistFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	candidates := writeFile(t, dir, "rewards.csv", header+addrA+",2,3,5\n")
	output := filepath.Join(dir, "out.csv")
	runs := memory.NewRunStore()

	_, err := newTestPipeline(Config{
		Season:        "S2",
		CandidatePath: candidates,
		OutputPath:    output,
	}).WithRunStore(brokenRunStore{runs}).Run(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(output)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the candidate file remains")

	_, err = runs.GetRun(context.Background(), "run-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
