// Package features turns per-miner daily history into binary activity
// vectors: for every day of the season window, whether the miner earned
// llama points and whether it earned waifu points.
package features

import (
	"fmt"
	"sort"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/statsapi"
)

// Window is an inclusive range of YYYY-MM-DD dates.
type Window struct {
	Start string
	End   string
}

// SeasonTwo covers 2024-07-19 through 2025-01-17.
var SeasonTwo = Window{Start: "2024-07-19", End: "2025-01-17"}

// Contains reports whether date falls inside the window. Dates compare as
// strings.
func (w Window) Contains(date string) bool {
	return w.Start <= date && date <= w.End
}

// Validate checks that the window is not inverted.
func (w Window) Validate() error {
	if w.Start == "" || w.End == "" {
		return fmt.Errorf("window needs both a start and an end date")
	}
	if w.Start > w.End {
		return fmt.Errorf("window start %s is after end %s", w.Start, w.End)
	}
	return nil
}

// Day is one dated row of a miner's history.
type Day struct {
	Date  string
	Llama bool
	Waifu bool
}

// Vector is the activity of one miner, ordered by date.
type Vector struct {
	Address domain.Address
	Days    []Day
}

// DaysActive is the number of history rows inside the window, whether or not
// they carried points.
func (v Vector) DaysActive() int {
	return len(v.Days)
}

// Flags returns the flattened vector: llama then waifu for each day, 1 when
// the day carried points.
func (v Vector) Flags() []int {
	out := make([]int, 0, 2*len(v.Days))
	for _, d := range v.Days {
		out = append(out, flag(d.Llama), flag(d.Waifu))
	}
	return out
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Summary holds the build counters.
type Summary struct {
	Miners      int
	Undecodable int
	NoHistory   int
	MaxDays     int
}

// Build extracts one vector per miner. The s2Rewards history is used when
// present, otherwise dailyPoints. Miners with neither are skipped and counted.
func Build(stats []statsapi.MinerStats, w Window) ([]Vector, Summary, error) {
	if err := w.Validate(); err != nil {
		return nil, Summary{}, err
	}

	var sum Summary
	out := make([]Vector, 0, len(stats))
	for _, s := range stats {
		data, err := s.Decode()
		if err != nil {
			sum.Undecodable++
			continue
		}

		var days []Day
		switch {
		case data.S2Rewards != nil:
			days = fromRewards(data.S2Rewards, w)
		case data.DailyPoints != nil:
			days = fromPoints(data.DailyPoints, w)
		default:
			sum.NoHistory++
			continue
		}

		sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
		if len(days) > sum.MaxDays {
			sum.MaxDays = len(days)
		}
		out = append(out, Vector{Address: domain.NewAddress(s.Address), Days: days})
	}
	sum.Miners = len(out)

	if len(stats) > 0 && sum.Undecodable == len(stats) {
		return nil, sum, fmt.Errorf("none of %d stats payloads could be decoded", len(stats))
	}
	return out, sum, nil
}

func fromRewards(rows []statsapi.DailyReward, w Window) []Day {
	days := make([]Day, 0, len(rows))
	for _, r := range rows {
		if !w.Contains(r.DailyDate) {
			continue
		}
		days = append(days, Day{Date: r.DailyDate, Llama: r.LlamaPoints > 0, Waifu: r.WaifuPoints > 0})
	}
	return days
}

func fromPoints(rows []statsapi.DailyPoints, w Window) []Day {
	days := make([]Day, 0, len(rows))
	for _, r := range rows {
		if !w.Contains(r.DailyDate) {
			continue
		}
		days = append(days, Day{Date: r.DailyDate, Llama: positive(r.LlamaPoints), Waifu: positive(r.WaifuPoints)})
	}
	return days
}

// positive treats a missing or unparsable figure as no points.
func positive(n statsapi.LooseNumber) bool {
	v, ok := n.Float()
	return ok && v > 0
}
