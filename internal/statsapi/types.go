package statsapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/stats"
)

// MinerStats is the stats service response for one address.
type MinerStats struct {
	Address string
	Data    json.RawMessage
}

// MinerData is the subset of the stats payload used to compute rewards.
type MinerData struct {
	Hardware      string        `json:"hardware,omitempty"`
	Status        string        `json:"status,omitempty"`
	RevisedTokens *float64      `json:"revisedTokens,omitempty"`
	TotalTokens   *float64      `json:"totalTokens,omitempty"`
	S2Rewards     []DailyReward `json:"s2Rewards,omitempty"`
	DailyPoints   []DailyPoints `json:"dailyPoints,omitempty"`
}

// DailyReward is one day of a miner's season rewards.
type DailyReward struct {
	DailyDate         string  `json:"daily_date"`
	WaifuRewardTokens float64 `json:"waifu_reward_tokens"`
	LlamaRewardTokens float64 `json:"llama_reward_tokens"`
	WaifuPoints       float64 `json:"waifu_points"`
	LlamaPoints       float64 `json:"llama_points"`
}

// DailyPoints is one day of the older points-only history.
type DailyPoints struct {
	DailyDate   string      `json:"daily_date"`
	LlamaPoints LooseNumber `json:"daily_llama_points"`
	WaifuPoints LooseNumber `json:"daily_waifu_points"`
}

// LooseNumber is a figure the service reports either as a JSON number or as
// a string. Decoding never fails; Float reports whether the text is numeric.
type LooseNumber string

// UnmarshalJSON keeps the number text, unquoting strings.
func (n *LooseNumber) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = LooseNumber(s)
		return nil
	}
	*n = LooseNumber(b)
	return nil
}

// Float parses the figure. Missing, null and non-numeric values report false.
func (n LooseNumber) Float() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Decode parses the payload into MinerData.
func (m MinerStats) Decode() (*MinerData, error) {
	var d MinerData
	if len(m.Data) == 0 {
		return &d, nil
	}
	if err := json.Unmarshal(m.Data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// RemoteRecords converts fetched payloads into remote stat records, in order.
// Payloads with unreadable figures become records without figures and are
// reported alongside.
func RemoteRecords(ms []MinerStats) ([]domain.RemoteStatRecord, []stats.FigureError) {
	out := make([]domain.RemoteStatRecord, 0, len(ms))
	var problems []stats.FigureError
	for i, m := range ms {
		rec, ferr := stats.DecodeRecord(m.Address, m.Data)
		if ferr != nil {
			ferr.Index = i
			problems = append(problems, *ferr)
		}
		out = append(out, rec)
	}
	return out, problems
}
