package entitlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryConsumptionStore is an in-memory ConsumptionStore for tests and
// single-process deployments.
type MemoryConsumptionStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemoryConsumptionStore creates an empty in-memory consumption store.
func NewMemoryConsumptionStore() *MemoryConsumptionStore {
	return &MemoryConsumptionStore{
		sets: make(map[string]map[string]struct{}),
	}
}

func monthKey(userID uuid.UUID, capability Capability, year int, month time.Month) string {
	return fmt.Sprintf("%s:%s:%04d-%02d", userID, capability, year, int(month))
}

func (s *MemoryConsumptionStore) MarkConsumed(_ context.Context, userID uuid.UUID, capability Capability, resourceID string, year int, month time.Month) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := monthKey(userID, capability, year, month)
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	if _, seen := set[resourceID]; seen {
		return false, nil
	}
	set[resourceID] = struct{}{}
	return true, nil
}

func (s *MemoryConsumptionStore) Consumed(_ context.Context, userID uuid.UUID, capability Capability, resourceID string, year int, month time.Month) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[monthKey(userID, capability, year, month)]
	if !ok {
		return false, nil
	}
	_, seen := set[resourceID]
	return seen, nil
}

func (s *MemoryConsumptionStore) Count(_ context.Context, userID uuid.UUID, capability Capability, year int, month time.Month) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sets[monthKey(userID, capability, year, month)]), nil
}
