package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apprendschap/packkit/pkg/pack"
	"github.com/apprendschap/packkit/pkg/subscription"
)

// SubscriptionResolver supplies the subscription governing a user.
// *subscription.Service satisfies it.
type SubscriptionResolver interface {
	Current(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
}

// Decision is the outcome of an access check. Limit is zero for unlimited
// or unmetered capabilities; Used is meaningful only for metered ones.
type Decision struct {
	Allowed bool
	Reason  string
	Used    int
	Limit   int
}

// Usage reports one metered capability's consumption for the current
// month. Pct is the share of the quota used, zero for unlimited.
type Usage struct {
	Capability Capability
	Used       int
	Limit      int
	Pct        int
}

// Snapshot summarizes a user's entitlement state for display: the
// governing pack, time left on it, feature flags and per-capability
// usage. DaysRemaining is nil for unlimited subscriptions and for users
// on the free fallback.
type Snapshot struct {
	PackID        uuid.UUID
	PackName      string
	PackKind      pack.Kind
	DaysRemaining *int
	Features      pack.Entitlement
	Usage         []Usage
}

// ContentCatalog checks that a resource exists. Content itself lives in
// a separate system; the guard only needs existence.
type ContentCatalog interface {
	Exists(ctx context.Context, capability Capability, resourceID string) (bool, error)
}

// Guard enforces pack entitlements against recorded consumption.
type Guard struct {
	subs        SubscriptionResolver
	packs       pack.Source
	consumption ConsumptionStore
	catalog     ContentCatalog
	log         *slog.Logger
	now         func() time.Time
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) GuardOption {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// WithContentCatalog makes metered checks reject resources the catalog
// does not know about.
func WithContentCatalog(catalog ContentCatalog) GuardOption {
	return func(g *Guard) { g.catalog = catalog }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard creates an entitlement Guard. Panics on nil dependencies to
// fail fast during initialization.
func NewGuard(subs SubscriptionResolver, packs pack.Source, consumption ConsumptionStore, opts ...GuardOption) *Guard {
	if subs == nil {
		panic("entitlement: SubscriptionResolver is required")
	}
	if packs == nil {
		panic("entitlement: pack.Source is required")
	}
	if consumption == nil {
		panic("entitlement: ConsumptionStore is required")
	}

	g := &Guard{
		subs:        subs,
		packs:       packs,
		consumption: consumption,
		log:         slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ResolveEntitlement returns the entitlement governing the user, with the
// subscription it came from. With no subscription at all it falls back to
// the free pack's entitlement and a nil subscription.
func (g *Guard) ResolveEntitlement(ctx context.Context, userID uuid.UUID) (pack.Entitlement, *subscription.Subscription, error) {
	sub, err := g.subs.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			free, ferr := g.packs.Free(ctx)
			if ferr != nil {
				return pack.Entitlement{}, nil, ferr
			}
			return free.Entitlement, nil, nil
		}
		return pack.Entitlement{}, nil, err
	}

	p, err := g.packs.Get(ctx, sub.PackID)
	if err != nil {
		return pack.Entitlement{}, nil, err
	}
	return p.Entitlement, sub, nil
}

// Check decides whether the user may exercise the capability. For metered
// capabilities resourceID identifies the content; a resource already
// consumed this month is granted regardless of quota.
func (g *Guard) Check(ctx context.Context, userID uuid.UUID, capability Capability, resourceID string) (Decision, error) {
	if !capability.Valid() {
		return Decision{}, ErrUnknownCapability
	}

	sub, err := g.subs.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return Decision{Allowed: false, Reason: "no active subscription"}, nil
		}
		return Decision{}, err
	}

	p, err := g.packs.Get(ctx, sub.PackID)
	if err != nil {
		return Decision{}, err
	}

	if !capability.Metered() {
		if featureEnabled(p.Entitlement, capability) {
			return Decision{Allowed: true}, nil
		}
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("%s is not included in the %s pack", capability, p.Name),
		}, nil
	}

	if resourceID == "" {
		return Decision{}, ErrResourceRequired
	}

	if g.catalog != nil {
		exists, err := g.catalog.Exists(ctx, capability, resourceID)
		if err != nil {
			return Decision{}, err
		}
		if !exists {
			return Decision{
				Allowed: false,
				Reason:  fmt.Sprintf("unknown %s resource %s", capability, resourceID),
			}, nil
		}
	}

	now := g.now()
	year, month := now.Year(), now.Month()

	limit := monthlyCap(p.Entitlement, capability)
	if limit == 0 {
		return Decision{Allowed: true}, nil
	}

	seen, err := g.consumption.Consumed(ctx, userID, capability, resourceID, year, month)
	if err != nil {
		return Decision{}, err
	}
	used, err := g.consumption.Count(ctx, userID, capability, year, month)
	if err != nil {
		return Decision{}, err
	}

	// Replays never count against the quota.
	if seen {
		return Decision{Allowed: true, Used: used, Limit: limit}, nil
	}

	if used >= limit {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("monthly %s quota reached: %d/%d used", capability, used, limit),
			Used:    used,
			Limit:   limit,
		}, nil
	}

	return Decision{Allowed: true, Used: used, Limit: limit}, nil
}

// MarkConsumed records a resource consumption for the current month.
// Idempotent within a month: only the first call counts.
func (g *Guard) MarkConsumed(ctx context.Context, userID uuid.UUID, capability Capability, resourceID string) error {
	if !capability.Metered() {
		return ErrUnknownCapability
	}
	if resourceID == "" {
		return ErrResourceRequired
	}

	now := g.now()
	first, err := g.consumption.MarkConsumed(ctx, userID, capability, resourceID, now.Year(), now.Month())
	if err != nil {
		return err
	}
	if first {
		g.log.DebugContext(ctx, "consumption recorded",
			"user_id", userID, "capability", capability, "resource_id", resourceID)
	}
	return nil
}

// Snapshot reports the user's governing pack and this month's usage for
// every metered capability.
func (g *Guard) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	ent, sub, err := g.ResolveEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	var p *pack.Pack
	if sub != nil {
		p, err = g.packs.Get(ctx, sub.PackID)
	} else {
		p, err = g.packs.Free(ctx)
	}
	if err != nil {
		return nil, err
	}

	now := g.now()
	snap := &Snapshot{
		PackID:   p.ID,
		PackName: p.Name,
		PackKind: p.Kind,
		Features: ent,
	}
	if sub != nil {
		snap.DaysRemaining = sub.DaysRemainingAt(now)
	}
	for _, capability := range []Capability{CapabilityCourse, CapabilityQuiz, CapabilityExam} {
		used, err := g.consumption.Count(ctx, userID, capability, now.Year(), now.Month())
		if err != nil {
			return nil, err
		}
		limit := monthlyCap(ent, capability)
		pct := 0
		if limit > 0 {
			pct = used * 100 / limit
			if pct > 100 {
				pct = 100
			}
		}
		snap.Usage = append(snap.Usage, Usage{
			Capability: capability,
			Used:       used,
			Limit:      limit,
			Pct:        pct,
		})
	}
	return snap, nil
}
