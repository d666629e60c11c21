package pack

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Source resolves packs for the rest of the system. Implementations must
// treat the catalog as read-only: packs are managed out of band.
type Source interface {
	// Get returns the active pack with the given ID.
	// Returns ErrPackNotFound when no active pack matches.
	Get(ctx context.Context, id uuid.UUID) (*Pack, error)

	// Free returns the platform's designated free-tier pack.
	// Returns ErrNoFreePack when none is configured.
	Free(ctx context.Context) (*Pack, error)

	// List returns all active packs.
	List(ctx context.Context) ([]Pack, error)
}

// validate ensures a catalog is internally consistent before it is served.
// Misconfigured catalogs fail at load time rather than mid-purchase.
func validate(packs []Pack) error {
	freeSeen := false
	for _, p := range packs {
		if p.ID == uuid.Nil {
			return fmt.Errorf("%w: pack %q has no ID", ErrInvalidPackConfig, p.Name)
		}
		if !p.Kind.Valid() {
			return fmt.Errorf("%w: pack %q has unknown kind %q", ErrInvalidPackConfig, p.Name, p.Kind)
		}
		if p.Price.IsNegative() {
			return fmt.Errorf("%w: pack %q has negative price", ErrInvalidPackConfig, p.Name)
		}
		if p.DiscountPct < 0 || p.DiscountPct > 100 {
			return fmt.Errorf("%w: pack %q has discount %d%% outside 0-100", ErrInvalidPackConfig, p.Name, p.DiscountPct)
		}
		if p.Kind != KindFree && p.DurationDays <= 0 {
			return fmt.Errorf("%w: pack %q has no duration", ErrInvalidPackConfig, p.Name)
		}
		if p.Kind == KindFamily && p.Entitlement.MaxChildren <= 0 {
			return fmt.Errorf("%w: family pack %q allows no children", ErrInvalidPackConfig, p.Name)
		}
		if p.Kind == KindFree && p.Active {
			freeSeen = true
		}
	}
	if !freeSeen {
		return ErrNoFreePack
	}
	return nil
}
