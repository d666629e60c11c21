package referral

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	links   map[uuid.UUID]Link // keyed by referred user
	ledgers map[uuid.UUID]BonusLedger
}

// NewMemoryStore creates an empty in-memory referral store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:   make(map[uuid.UUID]Link),
		ledgers: make(map[uuid.UUID]BonusLedger),
	}
}

func (s *MemoryStore) SaveLink(_ context.Context, link *Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.ReferredID]; exists {
		return ErrAlreadyLinked
	}
	s.links[link.ReferredID] = *link
	return nil
}

func (s *MemoryStore) LinkByReferred(_ context.Context, referredID uuid.UUID) (*Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[referredID]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return &link, nil
}

func (s *MemoryStore) UpdateLink(_ context.Context, link *Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.ReferredID]; !ok {
		return ErrLinkNotFound
	}
	s.links[link.ReferredID] = *link
	return nil
}

func (s *MemoryStore) CountByReferrer(_ context.Context, referrerID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, link := range s.links {
		if link.ReferrerID == referrerID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Ledger(_ context.Context, userID uuid.UUID) (*BonusLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger, ok := s.ledgers[userID]
	if !ok {
		ledger = BonusLedger{UserID: userID}
	}
	return &ledger, nil
}

func (s *MemoryStore) AddAccumulated(_ context.Context, userID uuid.UUID, weeks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.ledgers[userID]
	ledger.UserID = userID
	ledger.Accumulated += weeks
	s.ledgers[userID] = ledger
	return nil
}

func (s *MemoryStore) AddConsumed(_ context.Context, userID uuid.UUID, weeks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.ledgers[userID]
	if ledger.Accumulated-ledger.Consumed < weeks {
		return ErrInsufficientBonus
	}
	ledger.UserID = userID
	ledger.Consumed += weeks
	s.ledgers[userID] = ledger
	return nil
}
