package commission

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	commissions []Commission
	withdrawals map[uuid.UUID]WithdrawalRequest
	configs     map[uuid.UUID]Configuration
}

// NewMemoryStore creates an empty in-memory commission store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		withdrawals: make(map[uuid.UUID]WithdrawalRequest),
		configs:     make(map[uuid.UUID]Configuration),
	}
}

func (s *MemoryStore) SaveCommission(_ context.Context, c *Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commissions = append(s.commissions, *c)
	return nil
}

func (s *MemoryStore) SumCommissions(_ context.Context, partnerID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, c := range s.commissions {
		if c.PartnerID != partnerID {
			continue
		}
		if !since.IsZero() && c.CreatedAt.Before(since) {
			continue
		}
		sum = sum.Add(c.Amount)
	}
	return sum, nil
}

func (s *MemoryStore) CommissionsByPartner(_ context.Context, partnerID uuid.UUID) ([]Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Commission
	for _, c := range s.commissions {
		if c.PartnerID == partnerID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Commission) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SaveWithdrawal(_ context.Context, w *WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawals[w.ID] = *w
	return nil
}

func (s *MemoryStore) WithdrawalByID(_ context.Context, id uuid.UUID) (*WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	return &w, nil
}

func (s *MemoryStore) UpdateWithdrawal(_ context.Context, w *WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.withdrawals[w.ID]; !ok {
		return ErrWithdrawalNotFound
	}
	s.withdrawals[w.ID] = *w
	return nil
}

func (s *MemoryStore) SumWithdrawals(_ context.Context, partnerID uuid.UUID, statuses ...WithdrawalStatus) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, w := range s.withdrawals {
		if w.PartnerID != partnerID {
			continue
		}
		if slices.Contains(statuses, w.Status) {
			sum = sum.Add(w.Amount)
		}
	}
	return sum, nil
}

func (s *MemoryStore) ActiveConfiguration(_ context.Context) (*Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cfg := range s.configs {
		if cfg.Active {
			return &cfg, nil
		}
	}
	return nil, ErrNoActiveConfiguration
}

func (s *MemoryStore) SaveConfiguration(_ context.Context, cfg *Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ID] = *cfg
	return nil
}

func (s *MemoryStore) ActivateConfiguration(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[id]; !ok {
		return ErrConfigurationNotFound
	}
	for cid, cfg := range s.configs {
		cfg.Active = cid == id
		s.configs[cid] = cfg
	}
	return nil
}
