package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/apprendschap/packkit/pkg/pack"
)

// renewalWindowDays is how close to the end date a subscription must be
// before it can be renewed.
const renewalWindowDays = 30

// Service implements the subscription lifecycle over a Store and the pack
// catalog. It performs pure state transitions; payment orchestration lives
// in the payment package.
type Service struct {
	store Store
	packs pack.Source
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a subscription Service. Panics on nil dependencies to
// fail fast during initialization.
func NewService(store Store, packs pack.Source, opts ...Option) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if packs == nil {
		panic("subscription: pack.Source is required")
	}

	s := &Service{
		store: store,
		packs: packs,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams describes a subscription to materialize. Pack is resolved by
// the caller so settlement can reuse the pack it already validated.
type CreateParams struct {
	UserID          uuid.UUID
	Pack            *pack.Pack
	AmountPaid      decimal.Decimal
	IsTrial         bool
	AutoRenew       bool
	ReferralSourced bool
	Unlimited       bool
}

// Create materializes a subscription. End is start + pack duration, a fixed
// seven days for trials, or nil when Unlimited is set. Create performs no
// duplicate checks by itself; callers decide whether a prior subscription
// must be deactivated first.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Subscription, error) {
	now := s.now()

	sub := &Subscription{
		ID:              uuid.New(),
		UserID:          params.UserID,
		PackID:          params.Pack.ID,
		PackKind:        params.Pack.Kind,
		Start:           now,
		AmountPaid:      params.AmountPaid,
		Status:          StatusActive,
		Active:          true,
		IsTrial:         params.IsTrial,
		AutoRenew:       params.AutoRenew,
		ReferralSourced: params.ReferralSourced,
		CreatedAt:       now,
	}

	switch {
	case params.Unlimited:
		sub.End = nil
	case params.IsTrial:
		end := now.Add(TrialDuration)
		sub.End = &end
		sub.Status = StatusTrial
	default:
		end := now.AddDate(0, 0, params.Pack.DurationDays)
		sub.End = &end
	}

	if err := s.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription created",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"pack", params.Pack.Name,
		"trial", sub.IsTrial)

	return sub, nil
}

// StartTrial grants a one-week free trial on a pack that offers one. Each
// user gets a single trial ever, across all packs.
func (s *Service) StartTrial(ctx context.Context, userID, packID uuid.UUID) (*Subscription, error) {
	p, err := s.packs.Get(ctx, packID)
	if err != nil {
		return nil, err
	}
	if !p.TrialWeekOffer {
		return nil, ErrTrialNotOffered
	}

	had, err := s.store.HadTrial(ctx, userID)
	if err != nil {
		return nil, err
	}
	if had {
		return nil, ErrTrialAlreadyUsed
	}

	return s.Create(ctx, CreateParams{
		UserID:     userID,
		Pack:       p,
		AmountPaid: decimal.Zero,
		IsTrial:    true,
	})
}

// GrantDiscovery gives a new user without a referrer a one-week discovery
// trial on the given pack. Skipped when the user already holds any active
// subscription.
func (s *Service) GrantDiscovery(ctx context.Context, userID, packID uuid.UUID) (*Subscription, error) {
	active, err := s.store.ActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, ErrAlreadySubscribed
	}

	p, err := s.packs.Get(ctx, packID)
	if err != nil {
		return nil, err
	}

	return s.Create(ctx, CreateParams{
		UserID:     userID,
		Pack:       p,
		AmountPaid: decimal.Zero,
		IsTrial:    true,
	})
}

// GrantFree creates the unlimited free-tier subscription a user falls back
// to after expiration.
func (s *Service) GrantFree(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	free, err := s.packs.Free(ctx)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, CreateParams{
		UserID:     userID,
		Pack:       free,
		AmountPaid: decimal.Zero,
		Unlimited:  true,
	})
}

// Current resolves the user's governing subscription: the most recent valid
// bounded one, falling back to an unlimited active one (the free tier).
// Returns ErrSubscriptionNotFound when the user has neither.
func (s *Service) Current(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	active, err := s.store.ActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var unlimited *Subscription
	for i := range active {
		sub := &active[i]
		if !sub.IsValidAt(now) {
			continue
		}
		if sub.End != nil {
			return sub, nil
		}
		if unlimited == nil {
			unlimited = sub
		}
	}
	if unlimited != nil {
		return unlimited, nil
	}
	return nil, ErrSubscriptionNotFound
}

// Renew extends a subscription by its pack's duration. Renewal opens when 30
// or fewer days remain; earlier attempts fail with RenewalNotAvailableError
// carrying the exact wait. A RenewalRecord is appended on success.
func (s *Service) Renew(ctx context.Context, id, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrAccessDenied
	}
	if !sub.Active {
		return nil, ErrNotActive
	}
	if sub.End == nil {
		return nil, ErrUnlimitedEnd
	}

	now := s.now()
	remaining := sub.DaysRemainingAt(now)
	if *remaining > renewalWindowDays {
		return nil, &RenewalNotAvailableError{DaysUntilWindow: *remaining - renewalWindowDays}
	}

	p, err := s.packs.Get(ctx, sub.PackID)
	if err != nil {
		return nil, err
	}

	newEnd := sub.End.AddDate(0, 0, p.DurationDays)
	sub.End = &newEnd
	sub.RenewedAt = &now
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	rec := &RenewalRecord{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		RenewedAt:      now,
		DaysAdded:      p.DurationDays,
		Amount:         p.Price,
	}
	if err := s.store.AppendRenewal(ctx, rec); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription renewed",
		"subscription_id", sub.ID, "days_added", p.DurationDays)

	return sub, nil
}

// RenewalHistory lists a subscription's renewal records, newest first.
// Owner-checked.
func (s *Service) RenewalHistory(ctx context.Context, id, userID uuid.UUID) ([]RenewalRecord, error) {
	sub, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrAccessDenied
	}
	return s.store.RenewalsBySubscription(ctx, id)
}

// Suspend pauses a subscription. Owner-checked.
func (s *Service) Suspend(ctx context.Context, id, userID uuid.UUID) error {
	sub, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return ErrAccessDenied
	}

	sub.Status = StatusSuspended
	sub.Active = false
	return s.store.Update(ctx, sub)
}

// Reactivate resumes a suspended subscription. Owner-checked.
func (s *Service) Reactivate(ctx context.Context, id, userID uuid.UUID) error {
	sub, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return ErrAccessDenied
	}

	sub.Status = StatusActive
	sub.Active = true
	return s.store.Update(ctx, sub)
}

// DeactivateReferralSourced marks the user's active referral-sourced
// subscription as replaced, if one exists. A real purchase always
// supersedes a referral trial. Reports whether anything was deactivated.
func (s *Service) DeactivateReferralSourced(ctx context.Context, userID uuid.UUID) (bool, error) {
	active, err := s.store.ActiveByUser(ctx, userID)
	if err != nil {
		return false, err
	}

	replaced := false
	for i := range active {
		sub := &active[i]
		if !sub.ReferralSourced {
			continue
		}
		sub.Active = false
		sub.Status = StatusReplaced
		if err := s.store.Update(ctx, sub); err != nil {
			return replaced, err
		}
		replaced = true
		s.log.InfoContext(ctx, "referral-sourced subscription replaced",
			"subscription_id", sub.ID, "user_id", userID)
	}
	return replaced, nil
}

// ExtendCurrent pushes the user's current subscription end out by d.
// Fails when the user has no active subscription or it is unlimited.
func (s *Service) ExtendCurrent(ctx context.Context, userID uuid.UUID, d time.Duration) (*Subscription, error) {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.End == nil {
		return nil, ErrUnlimitedEnd
	}

	newEnd := sub.End.Add(d)
	sub.End = &newEnd
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}
