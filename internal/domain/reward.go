package domain

// RewardSource tags which side won the reconciliation for a record.
type RewardSource string

const (
	RewardSourceLocal  RewardSource = "local"
	RewardSourceRemote RewardSource = "remote"
)

// CandidateRecord is one row of the locally computed reward table.
// Never mutated by the pipeline; reconciliation produces a ReconciledRecord.
type CandidateRecord struct {
	Address   Address
	Waifu     float64 // waifu reward tokens
	Llama     float64 // llama reward tokens
	BaseTotal float64 // season base-token total

	// Extra holds pass-through columns of the input table, keyed by header name.
	Extra map[string]string
}

// RemoteStatRecord is the stats service's view of an address.
// Both figures are optional; RevisedTokens takes precedence.
type RemoteStatRecord struct {
	Address       Address  `json:"address"`
	RevisedTokens *float64 `json:"revisedTokens,omitempty"`
	TotalTokens   *float64 `json:"totalTokens,omitempty"`
}

// EffectiveTotal returns the authoritative total of the record.
// ok is false when neither figure is present.
func (r RemoteStatRecord) EffectiveTotal() (total float64, ok bool) {
	if r.RevisedTokens != nil {
		return *r.RevisedTokens, true
	}
	if r.TotalTokens != nil {
		return *r.TotalTokens, true
	}
	return 0, false
}

// ReconciledRecord is the merge result for one candidate.
// Category amounts always come from the local candidate.
type ReconciledRecord struct {
	Address        Address
	Waifu          float64
	Llama          float64
	BaseTotal      float64
	LocalBaseTotal float64 // candidate's base total before reconciliation
	Source         RewardSource
	Extra          map[string]string
}

// TotalReward returns the sum of all reward categories.
func (r ReconciledRecord) TotalReward() float64 {
	return r.Waifu + r.Llama
}
