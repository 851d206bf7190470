package memory

import (
	"context"
	"sort"
	"sync"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/storage"
)

// ExclusionStore is an in-memory implementation of storage.ExclusionStore.
type ExclusionStore struct {
	mu    sync.RWMutex
	lists map[string]map[domain.Address]struct{}
}

// NewExclusionStore creates a new in-memory exclusion store.
func NewExclusionStore() *ExclusionStore {
	return &ExclusionStore{
		lists: make(map[string]map[domain.Address]struct{}),
	}
}

// InsertBulk adds addresses to a named list. Addresses already in the list are ignored.
func (s *ExclusionStore) InsertBulk(_ context.Context, list string, addrs []domain.Address) error {
	if list == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.lists[list]
	if !ok {
		members = make(map[domain.Address]struct{}, len(addrs))
		s.lists[list] = members
	}
	for _, a := range addrs {
		if a == "" {
			continue
		}
		members[domain.NewAddress(string(a))] = struct{}{}
	}
	return nil
}

// GetByList retrieves the addresses of a list, sorted ascending.
func (s *ExclusionStore) GetByList(_ context.Context, list string) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.lists[list]
	result := make([]domain.Address, 0, len(members))
	for a := range members {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ExclusionStore = (*ExclusionStore)(nil)
