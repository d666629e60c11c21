package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/apprendschap/packkit/pkg/pack"
	"github.com/apprendschap/packkit/pkg/subscription"
)

// DefaultGrace is how long a payment may sit pending before the sweep
// settles it without a webhook.
const DefaultGrace = 5 * time.Minute

// SubscriptionWriter is the slice of the subscription service settlement
// needs. *subscription.Service satisfies it.
type SubscriptionWriter interface {
	Create(ctx context.Context, params subscription.CreateParams) (*subscription.Subscription, error)
	DeactivateReferralSourced(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ReferralHook is notified after a successful settlement so the payer's
// referrer can be rewarded. Failures are logged, never surfaced.
type ReferralHook interface {
	GrantReferrerBonus(ctx context.Context, referredID uuid.UUID) error
}

// CommissionHook accrues a partner commission for a settled payment.
// Failures are logged, never surfaced.
type CommissionHook interface {
	Accrue(ctx context.Context, payerID uuid.UUID, reference string, amount decimal.Decimal) error
}

// FamilyResolver lists the active linked children of a guardian account,
// used for family pack fan-out.
type FamilyResolver interface {
	ActiveChildren(ctx context.Context, guardianID uuid.UUID) ([]uuid.UUID, error)
}

// SettlementNotifier tells the user their purchase went through.
// Failures are logged, never surfaced.
type SettlementNotifier interface {
	PaymentSettled(ctx context.Context, userID uuid.UUID, packName string, amount decimal.Decimal, currency string) error
}

// Reconciler drives payments from checkout to settled subscriptions.
type Reconciler struct {
	store    Store
	subs     SubscriptionWriter
	packs    pack.Source
	gateway  Gateway
	referral ReferralHook
	comms    CommissionHook
	family   FamilyResolver
	notifier SettlementNotifier
	grace    time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReferralHook wires referral bonus granting into settlement.
func WithReferralHook(h ReferralHook) ReconcilerOption {
	return func(r *Reconciler) { r.referral = h }
}

// WithCommissionHook wires partner commission accrual into settlement.
func WithCommissionHook(h CommissionHook) ReconcilerOption {
	return func(r *Reconciler) { r.comms = h }
}

// WithFamilyResolver enables family pack fan-out.
func WithFamilyResolver(f FamilyResolver) ReconcilerOption {
	return func(r *Reconciler) { r.family = f }
}

// WithNotifier wires purchase confirmations into settlement.
func WithNotifier(n SettlementNotifier) ReconcilerOption {
	return func(r *Reconciler) { r.notifier = n }
}

// WithGrace overrides the pending sweep grace window.
func WithGrace(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a payment Reconciler. Panics on nil required
// dependencies to fail fast during initialization; hooks are optional.
func NewReconciler(store Store, subs SubscriptionWriter, packs pack.Source, gateway Gateway, opts ...ReconcilerOption) *Reconciler {
	if store == nil {
		panic("payment: Store is required")
	}
	if subs == nil {
		panic("payment: SubscriptionWriter is required")
	}
	if packs == nil {
		panic("payment: pack.Source is required")
	}
	if gateway == nil {
		panic("payment: Gateway is required")
	}

	r := &Reconciler{
		store:   store,
		subs:    subs,
		packs:   packs,
		gateway: gateway,
		grace:   DefaultGrace,
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InitiateParams describes a purchase to open. PayerID is set when
// someone other than the recipient pays, as in guardian-for-child
// purchases; nil means the recipient pays for themselves.
type InitiateParams struct {
	UserID    uuid.UUID
	PayerID   *uuid.UUID
	PackID    uuid.UUID
	AutoRenew bool
}

// Initiate opens a gateway checkout for the pack's effective price and
// records the pending payment. The caller redirects the user to
// CheckoutURL; the gateway webhook settles the payment later.
func (r *Reconciler) Initiate(ctx context.Context, params InitiateParams) (*PendingPayment, error) {
	p, err := r.packs.Get(ctx, params.PackID)
	if err != nil {
		return nil, err
	}

	amount := p.EffectivePrice()
	checkout, err := r.gateway.CreateCheckout(ctx, CheckoutParams{
		Amount:          amount,
		Currency:        p.Currency,
		ClientReference: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	pending := &PendingPayment{
		ID:          uuid.New(),
		Reference:   checkout.Reference,
		UserID:      params.UserID,
		PayerID:     params.PayerID,
		PackID:      p.ID,
		Amount:      amount,
		Currency:    p.Currency,
		Status:      StatusPending,
		CheckoutURL: checkout.CheckoutURL,
		AutoRenew:   params.AutoRenew,
		CreatedAt:   r.now(),
	}
	if err := r.store.Create(ctx, pending); err != nil {
		return nil, err
	}

	r.log.InfoContext(ctx, "payment initiated",
		"reference", pending.Reference,
		"user_id", pending.UserID,
		"pack", p.Name,
		"amount", amount)

	return pending, nil
}

// InitiateForChild opens a checkout paid by a guardian on behalf of a
// child account. The subscription materialized on settlement belongs to
// the child.
func (r *Reconciler) InitiateForChild(ctx context.Context, payerID, childID, packID uuid.UUID, autoRenew bool) (*PendingPayment, error) {
	return r.Initiate(ctx, InitiateParams{
		UserID:    childID,
		PayerID:   &payerID,
		PackID:    packID,
		AutoRenew: autoRenew,
	})
}

// SettlementEvent is the confirmation delivered for a payment. Amount
// and Currency are what the gateway reports, zero when the caller does
// not know them; GatewayRef is the gateway's own transaction identifier.
type SettlementEvent struct {
	Reference  string
	Amount     decimal.Decimal
	Currency   string
	GatewayRef string
}

// Settle confirms a payment and materializes its subscriptions. The store
// transition is the idempotency point: a reference settles exactly once,
// and every later delivery gets ErrAlreadySettled without side effects.
// A reported amount that differs from the recorded one is logged and
// tolerated; the recorded amount is authoritative.
//
// After the recipient's subscription is created, family packs fan out to
// each active linked child of the payer with a zero-amount audit payment;
// one child failing does not roll back siblings. Referral bonus,
// commission accrual and the purchase notification are best-effort.
func (r *Reconciler) Settle(ctx context.Context, event SettlementEvent) (*subscription.Subscription, error) {
	reference := event.Reference
	settled, err := r.store.Settle(ctx, reference, event.GatewayRef, r.now())
	if err != nil {
		return nil, err
	}

	if !event.Amount.IsZero() && !event.Amount.Equal(settled.Amount) {
		r.log.WarnContext(ctx, "settled amount differs from expected",
			"reference", reference,
			"expected", settled.Amount,
			"reported", event.Amount)
	}

	p, err := r.packs.Get(ctx, settled.PackID)
	if err != nil {
		return nil, fmt.Errorf("resolve pack for settled payment %s: %w", reference, err)
	}

	// A real purchase supersedes any referral-sourced trial.
	if _, err := r.subs.DeactivateReferralSourced(ctx, settled.UserID); err != nil {
		return nil, fmt.Errorf("deactivate referral subscription: %w", err)
	}

	sub, err := r.subs.Create(ctx, subscription.CreateParams{
		UserID:     settled.UserID,
		Pack:       p,
		AmountPaid: settled.Amount,
		AutoRenew:  settled.AutoRenew,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription for payment %s: %w", reference, err)
	}

	if err := r.store.LinkSubscription(ctx, reference, sub.ID); err != nil {
		// The payment stays settled-but-unlinked for manual reconciliation.
		r.log.ErrorContext(ctx, "linking settled payment to subscription failed",
			"reference", reference, "subscription_id", sub.ID, "error", err)
	}

	if p.IsFamily() && r.family != nil {
		r.fanOutFamily(ctx, settled, p)
	}

	r.runHooks(ctx, settled, p)

	r.log.InfoContext(ctx, "payment settled",
		"reference", reference,
		"user_id", settled.UserID,
		"subscription_id", sub.ID,
		"amount", settled.Amount)

	return sub, nil
}

// fanOutFamily creates one subscription and one zero-amount audit payment
// per active linked child of the payer. Child failures are logged and
// skipped so one bad child never blocks the rest of the family.
func (r *Reconciler) fanOutFamily(ctx context.Context, settled *PendingPayment, p *pack.Pack) {
	children, err := r.family.ActiveChildren(ctx, settled.Payer())
	if err != nil {
		r.log.ErrorContext(ctx, "family fan-out: listing children failed",
			"reference", settled.Reference, "error", err)
		return
	}

	limit := p.Entitlement.MaxChildren
	for i, childID := range children {
		if limit > 0 && i >= limit {
			r.log.WarnContext(ctx, "family fan-out: child limit reached",
				"reference", settled.Reference, "limit", limit, "children", len(children))
			break
		}

		childSub, err := r.subs.Create(ctx, subscription.CreateParams{
			UserID: childID,
			Pack:   p,
		})
		if err != nil {
			r.log.ErrorContext(ctx, "family fan-out: child subscription failed",
				"reference", settled.Reference, "child_id", childID, "error", err)
			continue
		}

		now := r.now()
		payer := settled.Payer()
		audit := &PendingPayment{
			ID:             uuid.New(),
			Reference:      ChildReference(settled.Reference, childID),
			UserID:         childID,
			PayerID:        &payer,
			PackID:         p.ID,
			Amount:         decimal.Zero,
			Currency:       settled.Currency,
			Status:         StatusSettled,
			SubscriptionID: &childSub.ID,
			CreatedAt:      now,
			SettledAt:      &now,
		}
		if err := r.store.Create(ctx, audit); err != nil {
			r.log.ErrorContext(ctx, "family fan-out: audit payment failed",
				"reference", audit.Reference, "error", err)
		}
	}
}

func (r *Reconciler) runHooks(ctx context.Context, settled *PendingPayment, p *pack.Pack) {
	payer := settled.Payer()
	if r.referral != nil {
		if err := r.referral.GrantReferrerBonus(ctx, payer); err != nil {
			r.log.ErrorContext(ctx, "referral bonus failed",
				"reference", settled.Reference, "error", err)
		}
	}
	if r.comms != nil {
		if err := r.comms.Accrue(ctx, payer, settled.Reference, settled.Amount); err != nil {
			r.log.ErrorContext(ctx, "commission accrual failed",
				"reference", settled.Reference, "error", err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.PaymentSettled(ctx, settled.UserID, p.Name, settled.Amount, settled.Currency); err != nil {
			r.log.ErrorContext(ctx, "settlement notification failed",
				"reference", settled.Reference, "error", err)
		}
	}
}

// MarkFailed closes a pending payment whose gateway confirmation reported
// a terminal failure, keeping it out of the grace sweep.
func (r *Reconciler) MarkFailed(ctx context.Context, reference string) error {
	if err := r.store.MarkFailed(ctx, reference); err != nil {
		return err
	}
	r.log.InfoContext(ctx, "payment marked failed", "reference", reference)
	return nil
}

// SweepReport summarizes one pending payment sweep.
type SweepReport struct {
	Processed int
	Errors    int
	Details   []string
}

// SweepPending settles payments still pending past the grace window,
// using each payment's own recorded amount. This is the fallback for
// confirmations the webhook never delivered.
func (r *Reconciler) SweepPending(ctx context.Context) (*SweepReport, error) {
	cutoff := r.now().Add(-r.grace)
	stale, err := r.store.PendingOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{}
	for _, p := range stale {
		event := SettlementEvent{
			Reference:  p.Reference,
			Amount:     p.Amount,
			Currency:   p.Currency,
			GatewayRef: "AUTO_" + p.Reference,
		}
		if _, err := r.Settle(ctx, event); err != nil {
			report.Errors++
			report.Details = append(report.Details,
				fmt.Sprintf("payment %s: %v", p.Reference, err))
			continue
		}
		report.Processed++
		report.Details = append(report.Details,
			fmt.Sprintf("payment %s settled after grace window", p.Reference))
	}

	if report.Processed > 0 || report.Errors > 0 {
		r.log.InfoContext(ctx, "pending payment sweep finished",
			"processed", report.Processed, "errors", report.Errors)
	}
	return report, nil
}
