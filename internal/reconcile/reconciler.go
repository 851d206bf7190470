// Package reconcile merges locally computed rewards with remote stats.
package reconcile

import (
	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/stats"
)

// Reconcile decides the final base-token total of a candidate.
//
// Without a usable remote record the candidate passes through unchanged.
// Otherwise the larger total wins: the remote figure replaces the local one when
// it is greater than or equal to it, and the local figure is kept when strictly greater.
// The remote service only corrects rewards upward. Category amounts always come from
// the candidate because the remote record carries no breakdown.
func Reconcile(c domain.CandidateRecord, remote *domain.RemoteStatRecord) domain.ReconciledRecord {
	out := domain.ReconciledRecord{
		Address:        c.Address,
		Waifu:          c.Waifu,
		Llama:          c.Llama,
		BaseTotal:      c.BaseTotal,
		LocalBaseTotal: c.BaseTotal,
		Source:         domain.RewardSourceLocal,
		Extra:          copyExtra(c.Extra),
	}

	if remote == nil {
		return out
	}
	remoteTotal, ok := remote.EffectiveTotal()
	if !ok {
		return out
	}

	if remoteTotal >= c.BaseTotal {
		out.BaseTotal = remoteTotal
		out.Source = domain.RewardSourceRemote
	}
	return out
}

// Stats counts reconciliation outcomes.
type Stats struct {
	Matched          int // candidates with a remote record
	RemoteOverrides  int // records whose total came from the remote record
	AmbiguousRemotes int // remote records carrying neither figure
}

// ReconcileAll reconciles every candidate against the resolver, preserving input order.
func ReconcileAll(candidates []domain.CandidateRecord, resolver *stats.Resolver) ([]domain.ReconciledRecord, Stats) {
	var st Stats
	out := make([]domain.ReconciledRecord, 0, len(candidates))

	for _, c := range candidates {
		var remote *domain.RemoteStatRecord
		if rec, ok := resolver.Lookup(c.Address); ok {
			st.Matched++
			if _, usable := rec.EffectiveTotal(); !usable {
				st.AmbiguousRemotes++
			}
			remote = &rec
		}

		r := Reconcile(c, remote)
		if r.Source == domain.RewardSourceRemote {
			st.RemoteOverrides++
		}
		out = append(out, r)
	}
	return out, st
}

func copyExtra(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
