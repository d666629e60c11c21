package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments. Settle holds the write lock for the whole check-and-set,
// which gives the same exactly-once guarantee the SQL store gets from a
// conditional UPDATE.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]PendingPayment
}

// NewMemoryStore creates an empty in-memory payment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]PendingPayment)}
}

func (s *MemoryStore) Create(_ context.Context, p *PendingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.Reference]; exists {
		return ErrDuplicateRef
	}
	s.payments[p.Reference] = *p
	return nil
}

func (s *MemoryStore) ByReference(_ context.Context, reference string) (*PendingPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[reference]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Settle(_ context.Context, reference, gatewayRef string, at time.Time) (*PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[reference]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	switch p.Status {
	case StatusSettled:
		return nil, ErrAlreadySettled
	case StatusPending:
	default:
		return nil, ErrNotPending
	}

	p.Status = StatusSettled
	p.GatewayReference = gatewayRef
	p.SettledAt = &at
	s.payments[reference] = p
	return &p, nil
}

func (s *MemoryStore) LinkSubscription(_ context.Context, reference string, subscriptionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[reference]
	if !ok {
		return ErrPaymentNotFound
	}
	p.SubscriptionID = &subscriptionID
	s.payments[reference] = p
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[reference]
	if !ok {
		return ErrPaymentNotFound
	}
	if p.Status != StatusPending {
		return ErrNotPending
	}
	p.Status = StatusFailed
	s.payments[reference] = p
	return nil
}

func (s *MemoryStore) PendingOlderThan(_ context.Context, cutoff time.Time) ([]PendingPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []PendingPayment
	for _, p := range s.payments {
		if p.Status == StatusPending && p.CreatedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
