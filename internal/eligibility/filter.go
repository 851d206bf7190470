// Package eligibility gates reconciled records into the final reward table.
package eligibility

import (
	"airdrop-reconciler/internal/address"
	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/exclusion"
)

// MinBaseTokens is the inclusive minimum base-token total of an eligible record.
const MinBaseTokens = 1.0

// Reason names the predicate that dropped a record.
type Reason string

const (
	ReasonInvalidAddress Reason = "invalid_address"
	ReasonExcluded       Reason = "excluded"
	ReasonBelowThreshold Reason = "below_threshold"
)

// Diagnostics counts filter outcomes. Each dropped record is attributed to the
// first failing predicate in the order validity, exclusion, threshold.
type Diagnostics struct {
	Input          int
	Kept           int
	InvalidAddress int
	Excluded       int
	BelowThreshold int

	// InvalidByKind splits InvalidAddress by what the address looked like.
	InvalidByKind map[address.Kind]int
}

// Dropped returns the number of filtered-out records.
func (d Diagnostics) Dropped() int {
	return d.InvalidAddress + d.Excluded + d.BelowThreshold
}

// Check returns the first predicate r fails, or "" if r is eligible.
func Check(r domain.ReconciledRecord, excluded *exclusion.Set) Reason {
	if !address.IsValid(r.Address.String()) {
		return ReasonInvalidAddress
	}
	if excluded.Contains(r.Address) {
		return ReasonExcluded
	}
	// NaN fails every comparison, so test for the passing range.
	if !(r.BaseTotal >= MinBaseTokens) {
		return ReasonBelowThreshold
	}
	return ""
}

// Filter keeps the records passing every predicate, preserving order.
// Malformed addresses are counted, never raised.
func Filter(records []domain.ReconciledRecord, excluded *exclusion.Set) ([]domain.ReconciledRecord, Diagnostics) {
	d := Diagnostics{
		Input:         len(records),
		InvalidByKind: make(map[address.Kind]int),
	}

	kept := make([]domain.ReconciledRecord, 0, len(records))
	for _, r := range records {
		switch Check(r, excluded) {
		case ReasonInvalidAddress:
			d.InvalidAddress++
			d.InvalidByKind[address.Classify(r.Address.String())]++
		case ReasonExcluded:
			d.Excluded++
		case ReasonBelowThreshold:
			d.BelowThreshold++
		default:
			kept = append(kept, r)
		}
	}

	d.Kept = len(kept)
	return kept, d
}
