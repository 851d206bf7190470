package reporting

import (
	"time"

	"airdrop-reconciler/internal/domain"
)

// Report describes one stored reconciliation run.
type Report struct {
	GeneratedAt time.Time
	Run         *domain.RunSummary

	// Sources splits the final rows by the side that won reconciliation.
	Sources []SourceRow

	// TopRecipients holds the largest final base totals, descending.
	TopRecipients []RecipientRow

	// LargestOverrides holds the rows where the remote figure raised the local total most.
	LargestOverrides []OverrideRow

	// SeasonHistory lists every stored run of the season, oldest first.
	SeasonHistory []HistoryRow
}

// SourceRow counts rows and base tokens per reward source.
type SourceRow struct {
	Source    domain.RewardSource
	Rows      int
	BaseTotal float64
}

// RecipientRow is one address of the top recipients table.
type RecipientRow struct {
	Address   domain.Address
	BaseTotal float64
	Source    domain.RewardSource
}

// OverrideRow is a row whose base total was taken from remote stats.
type OverrideRow struct {
	Address     domain.Address
	LocalTotal  float64
	RemoteTotal float64
	Delta       float64
}

// HistoryRow is one run of the season history table.
type HistoryRow struct {
	RunID     string
	StartedAt time.Time
	Status    domain.RunStatus
	Kept      int
	TotalBase float64
	Current   bool
}
