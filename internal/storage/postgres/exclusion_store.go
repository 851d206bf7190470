package postgres

import (
	"context"
	"fmt"
	"time"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/storage"
)

// ExclusionStore implements storage.ExclusionStore using PostgreSQL.
type ExclusionStore struct {
	pool *Pool
}

// NewExclusionStore creates a new ExclusionStore.
func NewExclusionStore(pool *Pool) *ExclusionStore {
	return &ExclusionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExclusionStore = (*ExclusionStore)(nil)

// InsertBulk adds addresses to a named list atomically. Addresses already in the list are ignored.
func (s *ExclusionStore) InsertBulk(ctx context.Context, list string, addrs []domain.Address) (err error) {
	if list == "" {
		return storage.ErrInvalidInput
	}
	if len(addrs) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("insert_exclusions", start, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO exclusion_addresses (list_name, address)
		VALUES ($1, $2)
		ON CONFLICT (list_name, address) DO NOTHING
	`

	for _, a := range addrs {
		canonical := domain.NewAddress(string(a))
		if canonical == "" {
			continue
		}
		if _, err := tx.Exec(ctx, query, list, canonical.String()); err != nil {
			return fmt.Errorf("insert exclusion address: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByList retrieves the addresses of a list, sorted ascending.
func (s *ExclusionStore) GetByList(ctx context.Context, list string) ([]domain.Address, error) {
	query := `
		SELECT address
		FROM exclusion_addresses
		WHERE list_name = $1
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, list)
	if err != nil {
		return nil, fmt.Errorf("get exclusion list: %w", err)
	}
	defer rows.Close()

	result := []domain.Address{}
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan exclusion address: %w", err)
		}
		result = append(result, domain.Address(addr))
	}
	return result, rows.Err()
}
