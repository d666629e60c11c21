package subscription

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apprendschap/packkit/pkg/pack"
)

// MemoryStore is an in-memory Store used by tests and single-node setups.
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	subs     map[uuid.UUID]Subscription
	renewals []RenewalRecord
}

// NewMemoryStore returns an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]Subscription)}
}

func (m *MemoryStore) Save(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs[sub.ID] = *sub
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	m.subs[sub.ID] = *sub
	return nil
}

func (m *MemoryStore) ByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (m *MemoryStore) ActiveByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Subscription
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.Active {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b Subscription) int {
		return b.Start.Compare(a.Start)
	})
	return out, nil
}

func (m *MemoryStore) ExpiredCandidates(ctx context.Context, now time.Time) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Subscription
	for _, sub := range m.subs {
		if !sub.Active || sub.End == nil || !sub.End.Before(now) {
			continue
		}
		if sub.Status != StatusActive && sub.Status != StatusTrial {
			continue
		}
		if sub.PackKind == pack.KindFree {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (m *MemoryStore) HadTrial(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subs {
		if sub.UserID == userID && sub.IsTrial {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) AppendRenewal(ctx context.Context, rec *RenewalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.renewals = append(m.renewals, *rec)
	return nil
}

func (m *MemoryStore) RenewalsBySubscription(ctx context.Context, subID uuid.UUID) ([]RenewalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RenewalRecord
	for _, rec := range m.renewals {
		if rec.SubscriptionID == subID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b RenewalRecord) int {
		return b.RenewedAt.Compare(a.RenewedAt)
	})
	return out, nil
}
