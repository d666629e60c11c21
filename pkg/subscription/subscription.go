package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/apprendschap/packkit/pkg/pack"
)

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
	StatusTrial     Status = "trial"
	StatusReplaced  Status = "replaced"
)

// TrialDuration is the fixed length of every free trial, regardless of the
// pack's own duration.
const TrialDuration = 7 * 24 * time.Hour

// Subscription grants a pack's entitlements to a user for a bounded period,
// or indefinitely when End is nil (the free tier).
//
// Status and Active travel together: Active is the coarse on/off switch the
// stores filter on, Status records why. A row with Active=false is never
// resurrected; transitions always write a new row.
type Subscription struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	PackID          uuid.UUID
	PackKind        pack.Kind
	Start           time.Time
	End             *time.Time // nil = unlimited
	AmountPaid      decimal.Decimal
	Status          Status
	Active          bool
	IsTrial         bool
	AutoRenew       bool
	ReferralSourced bool
	RenewedAt       *time.Time
	CreatedAt       time.Time
}

// Unlimited reports whether the subscription has no end date.
func (s *Subscription) Unlimited() bool {
	return s.End == nil
}

// IsValidAt reports whether the subscription grants access at the given time.
// Inactive, suspended, and lapsed subscriptions are invalid; unlimited ones
// are always valid while active.
func (s *Subscription) IsValidAt(at time.Time) bool {
	if !s.Active || s.Status == StatusInactive || s.Status == StatusSuspended {
		return false
	}
	if s.End == nil {
		return true
	}
	return s.End.After(at)
}

// IsValid reports whether the subscription grants access right now.
func (s *Subscription) IsValid() bool {
	return s.IsValidAt(time.Now().UTC())
}

// DaysRemainingAt returns the whole days left at the given time, clamped to
// zero, or nil for unlimited subscriptions.
func (s *Subscription) DaysRemainingAt(at time.Time) *int {
	if s.End == nil {
		return nil
	}
	days := int(s.End.Sub(at).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// DaysRemaining returns the whole days left as of now, or nil for unlimited.
func (s *Subscription) DaysRemaining() *int {
	return s.DaysRemainingAt(time.Now().UTC())
}

// RenewalRecord is an append-only trace of a subscription renewal.
type RenewalRecord struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	RenewedAt      time.Time
	DaysAdded      int
	Amount         decimal.Decimal
}
