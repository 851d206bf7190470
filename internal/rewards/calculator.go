// Package rewards computes local candidate reward rows from per-address daily
// rewards returned by the stats service.
package rewards

import (
	"fmt"
	"sort"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/statsapi"
)

// Summary holds the calculation counters.
type Summary struct {
	Miners      int
	Undecodable int
	TotalWaifu  float64
	TotalLlama  float64
}

// Calculate sums each miner's daily waifu and llama reward tokens into a
// candidate row. The base total is waifu + llama. Rows are sorted by base
// total descending, ties by address.
func Calculate(stats []statsapi.MinerStats) ([]domain.CandidateRecord, Summary, error) {
	var sum Summary
	out := make([]domain.CandidateRecord, 0, len(stats))

	for _, s := range stats {
		data, err := s.Decode()
		if err != nil {
			sum.Undecodable++
			continue
		}

		c := domain.CandidateRecord{Address: domain.NewAddress(s.Address)}
		for _, day := range data.S2Rewards {
			c.Waifu += day.WaifuRewardTokens
			c.Llama += day.LlamaRewardTokens
		}
		c.BaseTotal = c.Waifu + c.Llama

		sum.TotalWaifu += c.Waifu
		sum.TotalLlama += c.Llama
		out = append(out, c)
	}
	sum.Miners = len(out)

	if len(stats) > 0 && len(out) == 0 {
		return nil, sum, fmt.Errorf("none of %d stats payloads could be decoded", len(stats))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BaseTotal != out[j].BaseTotal {
			return out[i].BaseTotal > out[j].BaseTotal
		}
		return out[i].Address < out[j].Address
	})
	return out, sum, nil
}
