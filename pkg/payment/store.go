package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists pending payments. Settle is the settlement idempotency
// point: it must transition exactly one row from pending to settled per
// reference, atomically, and report ErrAlreadySettled on every later
// attempt.
type Store interface {
	// Create inserts a new payment. References are unique;
	// ErrDuplicateRef on collision.
	Create(ctx context.Context, p *PendingPayment) error

	// ByReference returns the payment with the given gateway reference.
	ByReference(ctx context.Context, reference string) (*PendingPayment, error)

	// Settle atomically transitions the payment from pending to settled,
	// recording the gateway's own reference, and returns the settled
	// record. ErrAlreadySettled when the payment is already settled,
	// ErrNotPending for cancelled or failed ones.
	Settle(ctx context.Context, reference, gatewayRef string, at time.Time) (*PendingPayment, error)

	// LinkSubscription records the subscription a settled payment
	// materialized.
	LinkSubscription(ctx context.Context, reference string, subscriptionID uuid.UUID) error

	// MarkFailed transitions a pending payment to failed.
	MarkFailed(ctx context.Context, reference string) error

	// PendingOlderThan lists payments still pending that were created
	// before the cutoff.
	PendingOlderThan(ctx context.Context, cutoff time.Time) ([]PendingPayment, error)
}
