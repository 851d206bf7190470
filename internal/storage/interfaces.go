package storage

import (
	"context"

	"airdrop-reconciler/internal/domain"
)

// RunStore provides access to reconciliation_runs and reconciled_rewards storage.
type RunStore interface {
	// InsertRun adds a run summary. Returns ErrDuplicateKey if run_id exists.
	InsertRun(ctx context.Context, run *domain.RunSummary) error

	// InsertRecords adds the final rows of a run, preserving order.
	// Fails the entire batch if the run already has rows.
	InsertRecords(ctx context.Context, runID string, records []domain.ReconciledRecord) error

	// SaveRun adds a run summary and its rows atomically: either both are
	// stored or neither is. Returns ErrDuplicateKey if run_id exists.
	SaveRun(ctx context.Context, run *domain.RunSummary, records []domain.ReconciledRecord) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetRecords retrieves the rows of a run in their original order.
	GetRecords(ctx context.Context, runID string) ([]domain.ReconciledRecord, error)

	// ListRuns retrieves all runs of a season, ordered by started_at ASC.
	ListRuns(ctx context.Context, season string) ([]*domain.RunSummary, error)
}

// ExclusionStore provides access to exclusion_addresses storage.
type ExclusionStore interface {
	// InsertBulk adds addresses to a named list. Addresses already in the list are ignored.
	InsertBulk(ctx context.Context, list string, addrs []domain.Address) error

	// GetByList retrieves the addresses of a list, sorted ascending.
	GetByList(ctx context.Context, list string) ([]domain.Address, error)
}

// RewardSnapshotStore provides access to reward_snapshots storage.
type RewardSnapshotStore interface {
	// InsertBulk adds the rows of a run. Returns ErrDuplicateKey if the run was already captured.
	InsertBulk(ctx context.Context, snapshots []*domain.RewardSnapshot) error

	// GetByRun retrieves the rows of a run ordered by position.
	GetByRun(ctx context.Context, runID string) ([]*domain.RewardSnapshot, error)

	// GetByAddress retrieves every captured row of an address, ordered by run_id.
	GetByAddress(ctx context.Context, addr domain.Address) ([]*domain.RewardSnapshot, error)
}
