package memory

import (
	"context"
	"sort"
	"sync"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/storage"
)

// RewardSnapshotStore is an in-memory implementation of storage.RewardSnapshotStore.
type RewardSnapshotStore struct {
	mu    sync.RWMutex
	byRun map[string][]*domain.RewardSnapshot
}

// NewRewardSnapshotStore creates a new in-memory snapshot store.
func NewRewardSnapshotStore() *RewardSnapshotStore {
	return &RewardSnapshotStore{
		byRun: make(map[string][]*domain.RewardSnapshot),
	}
}

// InsertBulk adds the rows of a run. Returns ErrDuplicateKey if a run was already captured.
func (s *RewardSnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.RewardSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		runID    string
		position int
	}
	seen := make(map[key]struct{}, len(snapshots))
	batch := make(map[string][]*domain.RewardSnapshot)
	for _, snap := range snapshots {
		if snap == nil || snap.RunID == "" || snap.Position < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := s.byRun[snap.RunID]; exists {
			return storage.ErrDuplicateKey
		}
		k := key{snap.RunID, snap.Position}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		snapCopy := *snap
		batch[snap.RunID] = append(batch[snap.RunID], &snapCopy)
	}

	for runID, rows := range batch {
		s.byRun[runID] = rows
	}
	return nil
}

// GetByRun retrieves the rows of a run ordered by position.
func (s *RewardSnapshotStore) GetByRun(_ context.Context, runID string) ([]*domain.RewardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RewardSnapshot
	for _, snap := range s.byRun[runID] {
		snapCopy := *snap
		result = append(result, &snapCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// GetByAddress retrieves every captured row of an address, ordered by run_id.
func (s *RewardSnapshotStore) GetByAddress(_ context.Context, addr domain.Address) ([]*domain.RewardSnapshot, error) {
	addr = domain.NewAddress(string(addr))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RewardSnapshot
	for _, rows := range s.byRun {
		for _, snap := range rows {
			if snap.Record.Address == addr {
				snapCopy := *snap
				result = append(result, &snapCopy)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RunID != result[j].RunID {
			return result[i].RunID < result[j].RunID
		}
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.RewardSnapshotStore = (*RewardSnapshotStore)(nil)
