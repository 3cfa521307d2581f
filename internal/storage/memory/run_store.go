package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/linkrover/internal/checker"
	"github.com/JakeFAU/linkrover/internal/storage"
)

// RunStore provides an in-memory RunStore for development and testing.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]checker.CheckRun
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]checker.CheckRun)}
}

// SaveRun stores a terminal run, replacing any existing row with the same ID.
func (s *RunStore) SaveRun(_ context.Context, run checker.CheckRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Records = append([]checker.LinkRecord(nil), run.Records...)
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (checker.CheckRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return checker.CheckRun{}, storage.ErrRunNotFound
	}
	run.Records = append([]checker.LinkRecord(nil), run.Records...)
	return run, nil
}
