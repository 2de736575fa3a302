package memory

import (
	"context"
	"sync"

	"truth-or-dare-service/internal/domain"
)

// SnapshotStore keeps snapshots for the lifetime of the process only.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.GameState
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.GameState)}
}

func (s *SnapshotStore) Load(_ context.Context, gameID string) (domain.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.snapshots[gameID]
	if !ok {
		return domain.GameState{}, domain.ErrSnapshotNotFound
	}
	return state.Clone(), nil
}

func (s *SnapshotStore) Save(_ context.Context, state domain.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[state.ID] = state.Clone()
	return nil
}

func (s *SnapshotStore) Delete(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, gameID)
	return nil
}
