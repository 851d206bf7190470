package clickhouse

import (
	"context"
	"fmt"
	"time"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/storage"
)

// RewardSnapshotStore implements storage.RewardSnapshotStore using ClickHouse.
type RewardSnapshotStore struct {
	conn *Conn
}

// NewRewardSnapshotStore creates a new RewardSnapshotStore.
func NewRewardSnapshotStore(conn *Conn) *RewardSnapshotStore {
	return &RewardSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RewardSnapshotStore = (*RewardSnapshotStore)(nil)

const snapshotColumns = `run_id, season, position, address, waifu, llama, base_total, local_base_total, source`

// InsertBulk adds the rows of one or more runs. Fails the entire batch if any
// run was already captured or a (run_id, position) repeats within the batch.
func (s *RewardSnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.RewardSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("insert_snapshots", start, err) }()

	type key struct {
		runID    string
		position int
	}
	seen := make(map[key]struct{}, len(snapshots))
	runs := make(map[string]struct{})
	for _, sn := range snapshots {
		if sn == nil || sn.RunID == "" || sn.Position < 0 {
			return storage.ErrInvalidInput
		}
		k := key{sn.RunID, sn.Position}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[sn.RunID] = struct{}{}
	}

	// Runs are append-only
	for runID := range runs {
		exists, err := s.exists(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO reward_snapshots (`+snapshotColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sn := range snapshots {
		r := sn.Record
		err = batch.Append(
			sn.RunID, sn.Season, uint32(sn.Position), r.Address.String(),
			r.Waifu, r.Llama, r.BaseTotal, r.LocalBaseTotal, string(r.Source),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves the rows of a run ordered by position.
func (s *RewardSnapshotStore) GetByRun(ctx context.Context, runID string) ([]*domain.RewardSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM reward_snapshots FINAL
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByAddress retrieves every captured row of an address, ordered by run_id.
func (s *RewardSnapshotStore) GetByAddress(ctx context.Context, addr domain.Address) ([]*domain.RewardSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM reward_snapshots FINAL
		WHERE address = ?
		ORDER BY run_id ASC, position ASC
	`

	rows, err := s.conn.Query(ctx, query, domain.NewAddress(string(addr)).String())
	if err != nil {
		return nil, fmt.Errorf("query by address: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// exists checks if any row of the run was captured.
func (s *RewardSnapshotStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM reward_snapshots WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSnapshots scans multiple rows.
func scanSnapshots(rows chRows) ([]*domain.RewardSnapshot, error) {
	var result []*domain.RewardSnapshot

	for rows.Next() {
		var sn domain.RewardSnapshot
		var position uint32
		var addr, source string

		err := rows.Scan(
			&sn.RunID, &sn.Season, &position, &addr,
			&sn.Record.Waifu, &sn.Record.Llama, &sn.Record.BaseTotal, &sn.Record.LocalBaseTotal, &source,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		sn.Position = int(position)
		sn.Record.Address = domain.Address(addr)
		sn.Record.Source = domain.RewardSource(source)
		result = append(result, &sn)
	}

	return result, rows.Err()
}
