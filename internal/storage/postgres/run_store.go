package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, season, status, started_at, completed_at,
	candidates_read, duplicate_candidates, prefiltered, remote_records, malformed_remotes,
	remote_overrides, ambiguous_remotes,
	invalid_addresses, excluded, below_threshold, kept,
	total_waifu, total_llama, total_base, output_path`

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertRun adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) InsertRun(ctx context.Context, run *domain.RunSummary) (err error) {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("insert_run", start, err) }()

	return insertRun(ctx, s.pool, run)
}

// InsertRecords adds the final rows of a run atomically, preserving order.
// Fails the entire batch if the run already has rows.
func (s *RunStore) InsertRecords(ctx context.Context, runID string, records []domain.ReconciledRecord) (err error) {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("insert_records", start, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertRecords(ctx, tx, runID, records); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SaveRun adds a run summary and its rows in one transaction.
// Nothing is written when any part fails.
func (s *RunStore) SaveRun(ctx context.Context, run *domain.RunSummary, records []domain.ReconciledRecord) (err error) {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("save_run", start, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}
	if err := insertRecords(ctx, tx, run.RunID, records); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertRun(ctx context.Context, q execer, run *domain.RunSummary) error {
	query := `INSERT INTO reconciliation_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := q.Exec(ctx, query,
		run.RunID,
		run.Season,
		string(run.Status),
		run.StartedAt,
		run.CompletedAt,
		run.CandidatesRead,
		run.DuplicateCandidates,
		run.Prefiltered,
		run.RemoteRecords,
		run.MalformedRemotes,
		run.RemoteOverrides,
		run.AmbiguousRemotes,
		run.InvalidAddresses,
		run.Excluded,
		run.BelowThreshold,
		run.Kept,
		run.TotalWaifu,
		run.TotalLlama,
		run.TotalBase,
		run.OutputPath,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, q execer, runID string, records []domain.ReconciledRecord) error {
	query := `
		INSERT INTO reconciled_rewards (
			run_id, position, address, waifu, llama, base_total, local_base_total, source, extra
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for i, r := range records {
		extra, err := json.Marshal(r.Extra)
		if err != nil {
			return fmt.Errorf("encode extra columns of %s: %w", r.Address, err)
		}
		_, err = q.Exec(ctx, query,
			runID,
			i,
			r.Address.String(),
			r.Waifu,
			r.Llama,
			r.BaseTotal,
			r.LocalBaseTotal,
			string(r.Source),
			extra,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert reconciled record: %w", err)
		}
	}
	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM reconciliation_runs WHERE run_id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// GetRecords retrieves the rows of a run in their original order.
func (s *RunStore) GetRecords(ctx context.Context, runID string) ([]domain.ReconciledRecord, error) {
	query := `
		SELECT address, waifu, llama, base_total, local_base_total, source, extra
		FROM reconciled_rewards
		WHERE run_id = $1
		ORDER BY position ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	defer rows.Close()

	var result []domain.ReconciledRecord
	for rows.Next() {
		var r domain.ReconciledRecord
		var addr, source string
		var extra []byte

		if err := rows.Scan(&addr, &r.Waifu, &r.Llama, &r.BaseTotal, &r.LocalBaseTotal, &source, &extra); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Address = domain.Address(addr)
		r.Source = domain.RewardSource(source)
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &r.Extra); err != nil {
				return nil, fmt.Errorf("decode extra columns of %s: %w", addr, err)
			}
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListRuns retrieves all runs of a season, ordered by started_at ASC.
func (s *RunStore) ListRuns(ctx context.Context, season string) ([]*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + `
		FROM reconciliation_runs
		WHERE season = $1
		ORDER BY started_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var result []*domain.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

// scanRun scans a single row into a RunSummary.
func scanRun(row pgx.Row) (*domain.RunSummary, error) {
	var r domain.RunSummary
	var status string

	err := row.Scan(
		&r.RunID,
		&r.Season,
		&status,
		&r.StartedAt,
		&r.CompletedAt,
		&r.CandidatesRead,
		&r.DuplicateCandidates,
		&r.Prefiltered,
		&r.RemoteRecords,
		&r.MalformedRemotes,
		&r.RemoteOverrides,
		&r.AmbiguousRemotes,
		&r.InvalidAddresses,
		&r.Excluded,
		&r.BelowThreshold,
		&r.Kept,
		&r.TotalWaifu,
		&r.TotalLlama,
		&r.TotalBase,
		&r.OutputPath,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RunStatus(status)
	r.StartedAt = r.StartedAt.UTC()
	r.CompletedAt = r.CompletedAt.UTC()
	return &r, nil
}
