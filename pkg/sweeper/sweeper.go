package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apprendschap/packkit/pkg/subscription"
)

// FreeGranter creates the unlimited free-tier subscription a swept user
// falls back to. *subscription.Service satisfies it.
type FreeGranter interface {
	GrantFree(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
}

// ExpirationNotifier tells a user their subscription lapsed. Failures are
// logged, never surfaced.
type ExpirationNotifier interface {
	SubscriptionExpired(ctx context.Context, userID uuid.UUID) error
}

// Report summarizes one expiration sweep.
type Report struct {
	Processed int
	Errors    int
	Details   []string
}

// Sweeper expires lapsed subscriptions and demotes their users to the
// free tier.
type Sweeper struct {
	store    subscription.Store
	grants   FreeGranter
	notifier ExpirationNotifier
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithNotifier wires expiration notifications into the sweep.
func WithNotifier(n ExpirationNotifier) Option {
	return func(s *Sweeper) { s.notifier = n }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Sweeper) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Sweeper. Panics on nil required dependencies to fail fast
// during initialization.
func New(store subscription.Store, grants FreeGranter, opts ...Option) *Sweeper {
	if store == nil {
		panic("sweeper: subscription.Store is required")
	}
	if grants == nil {
		panic("sweeper: FreeGranter is required")
	}

	s := &Sweeper{
		store:  store,
		grants: grants,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep expires every candidate whose end date has passed. Each user is
// handled independently; an error on one never blocks the rest.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	now := s.now()
	candidates, err := s.store.ExpiredCandidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list expired subscriptions: %w", err)
	}

	report := &Report{}
	for i := range candidates {
		sub := &candidates[i]

		sub.Status = subscription.StatusExpired
		sub.Active = false
		if err := s.store.Update(ctx, sub); err != nil {
			report.Errors++
			report.Details = append(report.Details,
				fmt.Sprintf("subscription %s: expire failed: %v", sub.ID, err))
			continue
		}

		if _, err := s.grants.GrantFree(ctx, sub.UserID); err != nil {
			report.Errors++
			report.Details = append(report.Details,
				fmt.Sprintf("subscription %s: free tier grant failed: %v", sub.ID, err))
			continue
		}

		if s.notifier != nil {
			if err := s.notifier.SubscriptionExpired(ctx, sub.UserID); err != nil {
				s.log.ErrorContext(ctx, "expiration notification failed",
					"user_id", sub.UserID, "error", err)
			}
		}

		report.Processed++
		report.Details = append(report.Details,
			fmt.Sprintf("subscription %s expired, user %s moved to free tier", sub.ID, sub.UserID))
	}

	if report.Processed > 0 || report.Errors > 0 {
		s.log.InfoContext(ctx, "expiration sweep finished",
			"processed", report.Processed, "errors", report.Errors)
	}
	return report, nil
}
