package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/stats"
)

const (
	addrA = domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	addrB = domain.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func ptr[T any](v T) *T {
	return &v
}

func candidate(base float64) domain.CandidateRecord {
	return domain.CandidateRecord{Address: addrA, Waifu: 2, Llama: 3, BaseTotal: base}
}

func TestReconcile_NoRemotePassesThrough(t *testing.T) {
	c := candidate(5)
	c.Extra = map[string]string{"note": "x"}

	got := Reconcile(c, nil)

	assert.Equal(t, 5.0, got.BaseTotal)
	assert.Equal(t, 2.0, got.Waifu)
	assert.Equal(t, 3.0, got.Llama)
	assert.Equal(t, domain.RewardSourceLocal, got.Source)
	assert.Equal(t, "x", got.Extra["note"])

	got.Extra["note"] = "changed"
	assert.Equal(t, "x", c.Extra["note"], "candidate must not be mutated")
}

func TestReconcile_LargerTotalWins(t *testing.T) {
	tests := []struct {
		name       string
		local      float64
		remote     domain.RemoteStatRecord
		wantTotal  float64
		wantSource domain.RewardSource
	}{
		{"local greater", 100, domain.RemoteStatRecord{TotalTokens: ptr(80.0)}, 100, domain.RewardSourceLocal},
		{"remote greater", 80, domain.RemoteStatRecord{TotalTokens: ptr(100.0)}, 100, domain.RewardSourceRemote},
		{"equal uses remote", 100, domain.RemoteStatRecord{TotalTokens: ptr(100.0)}, 100, domain.RewardSourceRemote},
		{"revised preferred over total", 5, domain.RemoteStatRecord{RevisedTokens: ptr(12.0), TotalTokens: ptr(50.0)}, 12, domain.RewardSourceRemote},
		{"revised lower than local", 20, domain.RemoteStatRecord{RevisedTokens: ptr(12.0), TotalTokens: ptr(50.0)}, 20, domain.RewardSourceLocal},
		{"zero remote over zero local", 0, domain.RemoteStatRecord{TotalTokens: ptr(0.0)}, 0, domain.RewardSourceRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := tt.remote
			got := Reconcile(candidate(tt.local), &remote)

			assert.Equal(t, tt.wantTotal, got.BaseTotal)
			assert.Equal(t, tt.wantSource, got.Source)
			assert.Equal(t, tt.local, got.LocalBaseTotal)
			assert.Equal(t, 2.0, got.Waifu)
			assert.Equal(t, 3.0, got.Llama)
		})
	}
}

func TestReconcile_AmbiguousRemoteFallsBackToLocal(t *testing.T) {
	got := Reconcile(candidate(5), &domain.RemoteStatRecord{Address: addrA})

	assert.Equal(t, 5.0, got.BaseTotal)
	assert.Equal(t, domain.RewardSourceLocal, got.Source)
}

func TestReconcileAll(t *testing.T) {
	resolver, err := stats.Index([]domain.RemoteStatRecord{
		{Address: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", RevisedTokens: ptr(12.0)},
		{Address: addrB},
	}, stats.LastWriteWins)
	require.NoError(t, err)

	candidates := []domain.CandidateRecord{
		{Address: addrA, Waifu: 2, Llama: 3, BaseTotal: 5},
		{Address: addrB, Waifu: 1, BaseTotal: 1},
		{Address: "0xcccccccccccccccccccccccccccccccccccccccc", BaseTotal: 9},
	}

	out, st := ReconcileAll(candidates, resolver)
	require.Len(t, out, 3)

	assert.Equal(t, addrA, out[0].Address)
	assert.Equal(t, 12.0, out[0].BaseTotal)
	assert.Equal(t, 2.0, out[0].Waifu)
	assert.Equal(t, 3.0, out[0].Llama)
	assert.Equal(t, 1.0, out[1].BaseTotal)
	assert.Equal(t, 9.0, out[2].BaseTotal)

	assert.Equal(t, Stats{Matched: 2, RemoteOverrides: 1, AmbiguousRemotes: 1}, st)
}

func TestReconcileAll_NilResolver(t *testing.T) {
	out, st := ReconcileAll([]domain.CandidateRecord{candidate(5)}, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 5.0, out[0].BaseTotal)
	assert.Equal(t, Stats{}, st)
}
