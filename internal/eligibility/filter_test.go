package eligibility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airdrop-reconciler/internal/address"
	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/exclusion"
	"airdrop-reconciler/internal/reconcile"
	"airdrop-reconciler/internal/stats"
)

const (
	addrA = domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	addrB = domain.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	addrC = domain.Address("0xcccccccccccccccccccccccccccccccccccccccc")
)

func ptr[T any](v T) *T {
	return &v
}

func TestFilter_ThresholdInclusiveAtOne(t *testing.T) {
	records := []domain.ReconciledRecord{
		{Address: addrA, BaseTotal: 1.0},
		{Address: addrB, BaseTotal: 0.999999},
	}

	kept, d := Filter(records, exclusion.NewSet())

	require.Len(t, kept, 1)
	assert.Equal(t, addrA, kept[0].Address)
	assert.Equal(t, 1, d.BelowThreshold)
	assert.Equal(t, 1, d.Kept)
}

func TestFilter_NonFiniteTotalsAreBelowThreshold(t *testing.T) {
	records := []domain.ReconciledRecord{
		{Address: addrA, BaseTotal: 5},
		{Address: addrB, BaseTotal: math.NaN()},
		{Address: addrC, BaseTotal: math.Inf(-1)},
	}

	kept, d := Filter(records, exclusion.NewSet())

	require.Len(t, kept, 1)
	assert.Equal(t, addrA, kept[0].Address)
	assert.Equal(t, 2, d.BelowThreshold)
	assert.Equal(t, ReasonBelowThreshold, Check(records[1], nil))
}

func TestFilter_PredicatesAndDiagnostics(t *testing.T) {
	records := []domain.ReconciledRecord{
		{Address: addrA, BaseTotal: 10},
		{Address: "not-an-address", BaseTotal: 10},
		{Address: "11111111111111111111111111111111", BaseTotal: 10},
		{Address: addrB, BaseTotal: 10},
		{Address: addrC, BaseTotal: 0.5},
		// invalid and below threshold: attributed to the first failing predicate
		{Address: "0x1234", BaseTotal: 0},
	}

	kept, d := Filter(records, exclusion.NewSet(string(addrB)))

	require.Len(t, kept, 1)
	assert.Equal(t, addrA, kept[0].Address)

	assert.Equal(t, 6, d.Input)
	assert.Equal(t, 1, d.Kept)
	assert.Equal(t, 3, d.InvalidAddress)
	assert.Equal(t, 1, d.Excluded)
	assert.Equal(t, 1, d.BelowThreshold)
	assert.Equal(t, 5, d.Dropped())
	assert.Equal(t, 1, d.InvalidByKind[address.KindSolana])
	assert.Equal(t, 2, d.InvalidByKind[address.KindUnknown])
}

func TestFilter_ExclusionIsCaseInsensitive(t *testing.T) {
	kept, d := Filter(
		[]domain.ReconciledRecord{{Address: addrA, BaseTotal: 3}},
		exclusion.NewSet("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"),
	)
	assert.Empty(t, kept)
	assert.Equal(t, 1, d.Excluded)
}

func TestFilter_NilExclusionSet(t *testing.T) {
	kept, _ := Filter([]domain.ReconciledRecord{{Address: addrA, BaseTotal: 3}}, nil)
	assert.Len(t, kept, 1)
}

func TestFilter_PreservesOrder(t *testing.T) {
	records := []domain.ReconciledRecord{
		{Address: addrC, BaseTotal: 3},
		{Address: addrA, BaseTotal: 1},
		{Address: addrB, BaseTotal: 2},
	}
	kept, _ := Filter(records, nil)
	assert.Equal(t, records, kept)
}

func TestCheck(t *testing.T) {
	set := exclusion.NewSet(string(addrB))
	assert.Equal(t, Reason(""), Check(domain.ReconciledRecord{Address: addrA, BaseTotal: 1}, set))
	assert.Equal(t, ReasonInvalidAddress, Check(domain.ReconciledRecord{Address: "", BaseTotal: 1}, set))
	assert.Equal(t, ReasonExcluded, Check(domain.ReconciledRecord{Address: addrB, BaseTotal: 1}, set))
	assert.Equal(t, ReasonBelowThreshold, Check(domain.ReconciledRecord{Address: addrA}, set))
}

func TestHasAnyReward(t *testing.T) {
	assert.False(t, HasAnyReward(domain.CandidateRecord{Address: addrA}))
	assert.True(t, HasAnyReward(domain.CandidateRecord{Address: addrA, Waifu: 0.1}))
	assert.True(t, HasAnyReward(domain.CandidateRecord{Address: addrA, Llama: 1}))
	assert.True(t, HasAnyReward(domain.CandidateRecord{Address: addrA, BaseTotal: 2}))
}

func TestPrefilter_KeepsZeroCandidateWithRemoteFigure(t *testing.T) {
	resolver, err := stats.Index([]domain.RemoteStatRecord{
		{Address: addrB, TotalTokens: ptr(4.0)},
		{Address: addrC},
	}, stats.LastWriteWins)
	require.NoError(t, err)

	candidates := []domain.CandidateRecord{
		{Address: addrA},
		{Address: addrB},
		{Address: addrC},
		{Address: "0xdddddddddddddddddddddddddddddddddddddddd", Waifu: 1, BaseTotal: 1},
	}

	kept, dropped := Prefilter(candidates, resolver)

	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, addrB, kept[0].Address)
	assert.Equal(t, domain.Address("0xdddddddddddddddddddddddddddddddddddddddd"), kept[1].Address)
}

func TestPrefilter_DoesNotChangeFinalSet(t *testing.T) {
	resolver, err := stats.Index([]domain.RemoteStatRecord{
		{Address: addrB, RevisedTokens: ptr(3.0)},
	}, stats.LastWriteWins)
	require.NoError(t, err)

	candidates := []domain.CandidateRecord{
		{Address: addrA},
		{Address: addrB},
		{Address: addrC, Waifu: 1, Llama: 1, BaseTotal: 2},
		{Address: "0xdddddddddddddddddddddddddddddddddddddddd", Waifu: 0.2, BaseTotal: 0.2},
	}

	direct, _ := reconcile.ReconcileAll(candidates, resolver)
	wantKept, _ := Filter(direct, nil)

	survivors, _ := Prefilter(candidates, resolver)
	viaPrefilter, _ := reconcile.ReconcileAll(survivors, resolver)
	gotKept, _ := Filter(viaPrefilter, nil)

	assert.Equal(t, wantKept, gotKept)
}
