package domain

import "time"

// ResultSet is the final reward table with its aggregate sums.
type ResultSet struct {
	Records    []ReconciledRecord
	TotalWaifu float64
	TotalLlama float64
	TotalBase  float64
}

// RunStatus is the terminal state of a reconciliation run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusEmpty     RunStatus = "empty"
)

// RunSummary describes one reconciliation run.
// Corresponds to reconciliation_runs table in PostgreSQL.
type RunSummary struct {
	RunID       string
	Season      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt time.Time

	CandidatesRead      int
	DuplicateCandidates int // later rows of an already read address
	Prefiltered         int // dropped by the all-zero guard
	RemoteRecords       int
	MalformedRemotes    int // records whose figures could not be parsed
	RemoteOverrides     int
	AmbiguousRemotes    int
	InvalidAddresses int
	Excluded         int
	BelowThreshold   int
	Kept             int

	TotalWaifu float64
	TotalLlama float64
	TotalBase  float64

	OutputPath string
}

// RewardSnapshot is a reconciled row captured for one run.
// Corresponds to reward_snapshots table in ClickHouse.
type RewardSnapshot struct {
	RunID    string
	Season   string
	Position int // row order within the run
	Record   ReconciledRecord
}
