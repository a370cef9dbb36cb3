package store

import (
	"context"
	"sort"
	"sync"

	"github.com/siot-decada-robotics/rmf-ros2/internal/model"
)

// MemoryStore is an in-memory implementation of AuctionStore for development
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes map[string]model.AuctionOutcome
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		outcomes: make(map[string]model.AuctionOutcome),
	}
}

func (s *MemoryStore) SaveOutcome(ctx context.Context, outcome model.AuctionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[outcome.TaskID] = outcome
	return nil
}

func (s *MemoryStore) GetOutcome(ctx context.Context, taskID string) (model.AuctionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome, ok := s.outcomes[taskID]
	if !ok {
		return model.AuctionOutcome{}, ErrNotFound
	}
	return outcome, nil
}

func (s *MemoryStore) UpdateOutcome(ctx context.Context, outcome model.AuctionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outcomes[outcome.TaskID]; !ok {
		return ErrNotFound
	}

	s.outcomes[outcome.TaskID] = outcome
	return nil
}

func (s *MemoryStore) ListOutcomes(ctx context.Context, state model.AuctionState, limit int) ([]model.AuctionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var outcomes []model.AuctionOutcome
	for _, outcome := range s.outcomes {
		if state == "" || outcome.State == state {
			outcomes = append(outcomes, outcome)
		}
	}

	// Sort by created_at descending
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].CreatedAt.After(outcomes[j].CreatedAt)
	})

	if limit > 0 && len(outcomes) > limit {
		outcomes = outcomes[:limit]
	}

	return outcomes, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
