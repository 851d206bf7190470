package memory

import (
	"context"
	"sort"
	"sync"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu      sync.RWMutex
	runs    map[string]*domain.RunSummary         // keyed by run_id
	records map[string][]domain.ReconciledRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:    make(map[string]*domain.RunSummary),
		records: make(map[string][]domain.ReconciledRecord),
	}
}

// InsertRun adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) InsertRun(_ context.Context, run *domain.RunSummary) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *run
	s.runs[run.RunID] = &runCopy
	return nil
}

// InsertRecords adds the final rows of a run. Fails if the run already has rows.
func (s *RunStore) InsertRecords(_ context.Context, runID string, records []domain.ReconciledRecord) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[runID]; exists {
		return storage.ErrDuplicateKey
	}

	s.records[runID] = copyRecords(records)
	return nil
}

// SaveRun adds a run summary and its rows atomically.
func (s *RunStore) SaveRun(_ context.Context, run *domain.RunSummary, records []domain.ReconciledRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.records[run.RunID]; exists && len(records) > 0 {
		return storage.ErrDuplicateKey
	}

	runCopy := *run
	s.runs[run.RunID] = &runCopy
	if len(records) > 0 {
		s.records[run.RunID] = copyRecords(records)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetRun(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	runCopy := *run
	return &runCopy, nil
}

// GetRecords retrieves the rows of a run in their original order.
func (s *RunStore) GetRecords(_ context.Context, runID string) ([]domain.ReconciledRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyRecords(s.records[runID]), nil
}

// ListRuns retrieves all runs of a season, ordered by started_at ASC.
func (s *RunStore) ListRuns(_ context.Context, season string) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunSummary
	for _, run := range s.runs {
		if run.Season == season {
			runCopy := *run
			result = append(result, &runCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].RunID < result[j].RunID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	return result, nil
}

func copyRecords(in []domain.ReconciledRecord) []domain.ReconciledRecord {
	if in == nil {
		return nil
	}
	out := make([]domain.ReconciledRecord, len(in))
	copy(out, in)
	return out
}

// Verify interface compliance at compile time.
var _ storage.RunStore = (*RunStore)(nil)
