// Package aggregate packages the final reward table with its totals.
package aggregate

import (
	"errors"
	"sort"

	"airdrop-reconciler/internal/domain"
)

// ErrEmptyResult is returned when no record survived filtering.
// It is a terminal outcome of a run, not a failure: no output is produced.
var ErrEmptyResult = errors.New("no records survived filtering")

// Aggregate sums every category and the base total over records.
// Totals are computed from the given records only, so callers pass the filtered set.
// Record order is preserved.
func Aggregate(records []domain.ReconciledRecord) (*domain.ResultSet, error) {
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}

	rs := &domain.ResultSet{
		Records: make([]domain.ReconciledRecord, len(records)),
	}
	copy(rs.Records, records)

	for _, r := range records {
		rs.TotalWaifu += r.Waifu
		rs.TotalLlama += r.Llama
		rs.TotalBase += r.BaseTotal
	}
	return rs, nil
}

// SortByTotalDesc orders records by total reward (waifu + llama), descending.
// Ties keep their input order.
func SortByTotalDesc(records []domain.ReconciledRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TotalReward() > records[j].TotalReward()
	})
}

// TotalRow is the synthetic last row of the reward table.
func TotalRow(rs *domain.ResultSet) domain.ReconciledRecord {
	return domain.ReconciledRecord{
		Address:   domain.TotalLabel,
		Waifu:     rs.TotalWaifu,
		Llama:     rs.TotalLlama,
		BaseTotal: rs.TotalBase,
	}
}
