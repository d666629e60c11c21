package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConsumptionStore tracks which resources a user consumed per capability
// and calendar month. Keys embed year and month, so a new month starts
// from a clean count without any reset job.
type ConsumptionStore interface {
	// MarkConsumed records the resource for the month. Returns true only
	// on the first consumption of that resource in that month.
	MarkConsumed(ctx context.Context, userID uuid.UUID, capability Capability, resourceID string, year int, month time.Month) (bool, error)

	// Consumed reports whether the resource was already consumed this month.
	Consumed(ctx context.Context, userID uuid.UUID, capability Capability, resourceID string, year int, month time.Month) (bool, error)

	// Count returns the number of distinct resources consumed this month.
	Count(ctx context.Context, userID uuid.UUID, capability Capability, year int, month time.Month) (int, error)
}
