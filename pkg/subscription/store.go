package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines subscription persistence. Implementations must make each
// Update an atomic row transition so that batch jobs and live traffic can
// interleave safely.
type Store interface {
	// Save inserts a new subscription.
	Save(ctx context.Context, sub *Subscription) error

	// Update persists changes to an existing subscription.
	// Returns ErrSubscriptionNotFound for unknown IDs.
	Update(ctx context.Context, sub *Subscription) error

	// ByID returns the subscription with the given ID.
	ByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// ActiveByUser returns the user's active subscriptions, most recent
	// start first.
	ActiveByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error)

	// ExpiredCandidates returns active subscriptions in status active or
	// trial whose end precedes now, excluding free-tier packs. The active
	// filter makes repeated sweeps idempotent.
	ExpiredCandidates(ctx context.Context, now time.Time) ([]Subscription, error)

	// HadTrial reports whether the user ever held a trial subscription.
	HadTrial(ctx context.Context, userID uuid.UUID) (bool, error)

	// AppendRenewal records a renewal. Renewal records are append-only.
	AppendRenewal(ctx context.Context, rec *RenewalRecord) error

	// RenewalsBySubscription returns renewal records, newest first.
	RenewalsBySubscription(ctx context.Context, subID uuid.UUID) ([]RenewalRecord, error)
}
