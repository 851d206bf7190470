package eligibility

import (
	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/stats"
)

// HasAnyReward reports whether a candidate carries any non-zero amount.
func HasAnyReward(c domain.CandidateRecord) bool {
	return c.Waifu != 0 || c.Llama != 0 || c.BaseTotal != 0
}

// Prefilter drops candidates that cannot become eligible: no reward in any
// category or base total, and no usable remote figure that could raise them.
// It returns the survivors in input order and the number dropped.
func Prefilter(candidates []domain.CandidateRecord, resolver *stats.Resolver) ([]domain.CandidateRecord, int) {
	kept := make([]domain.CandidateRecord, 0, len(candidates))
	for _, c := range candidates {
		if HasAnyReward(c) || hasRemoteFigure(resolver, c.Address) {
			kept = append(kept, c)
		}
	}
	return kept, len(candidates) - len(kept)
}

func hasRemoteFigure(resolver *stats.Resolver, addr domain.Address) bool {
	rec, ok := resolver.Lookup(addr)
	if !ok {
		return false
	}
	_, usable := rec.EffectiveTotal()
	return usable
}
