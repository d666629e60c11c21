package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/apprendschap/packkit/pkg/referral"
)

// ReferrerResolver finds who referred a payer. referral.Engine satisfies
// it.
type ReferrerResolver interface {
	ReferrerOf(ctx context.Context, referredID uuid.UUID) (uuid.UUID, error)
}

// PartnerDirectory reports whether a user holds the partner role. Roles
// live on user profiles, outside this package.
type PartnerDirectory interface {
	IsPartner(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Engine accrues partner commissions and manages withdrawals.
type Engine struct {
	store    Store
	referrer ReferrerResolver
	partners PartnerDirectory
	log      *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a commission Engine. Panics on nil dependencies to
// fail fast during initialization.
func NewEngine(store Store, referrer ReferrerResolver, partners PartnerDirectory, opts ...Option) *Engine {
	if store == nil {
		panic("commission: Store is required")
	}
	if referrer == nil {
		panic("commission: ReferrerResolver is required")
	}
	if partners == nil {
		panic("commission: PartnerDirectory is required")
	}

	e := &Engine{
		store:    store,
		referrer: referrer,
		partners: partners,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Accrue books a commission for the payer's referrer if that referrer is
// a partner. A no-op when the payer has no referrer, the referrer is not
// a partner, or the amount is not positive, so settlement can call it
// unconditionally.
func (e *Engine) Accrue(ctx context.Context, payerID uuid.UUID, reference string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	partnerID, err := e.referrer.ReferrerOf(ctx, payerID)
	if err != nil {
		if errors.Is(err, referral.ErrLinkNotFound) {
			return nil
		}
		return err
	}

	isPartner, err := e.partners.IsPartner(ctx, partnerID)
	if err != nil {
		return err
	}
	if !isPartner {
		return nil
	}

	cfg, err := e.store.ActiveConfiguration(ctx)
	if err != nil {
		return err
	}

	commission := &Commission{
		ID:        uuid.New(),
		PartnerID: partnerID,
		PayerID:   payerID,
		Reference: reference,
		Base:      amount,
		Pct:       cfg.CommissionPct,
		Amount:    amount.Mul(cfg.CommissionPct).Div(decimal.NewFromInt(100)),
		CreatedAt: e.now(),
	}
	if err := e.store.SaveCommission(ctx, commission); err != nil {
		return fmt.Errorf("save commission: %w", err)
	}

	e.log.InfoContext(ctx, "commission accrued",
		"partner_id", partnerID,
		"payer_id", payerID,
		"reference", reference,
		"amount", commission.Amount)

	return nil
}

// History lists a partner's accrued commissions, newest first.
func (e *Engine) History(ctx context.Context, partnerID uuid.UUID) ([]Commission, error) {
	return e.store.CommissionsByPartner(ctx, partnerID)
}

// PartnerStats reports a partner's totals and what they can withdraw
// right now.
func (e *Engine) PartnerStats(ctx context.Context, partnerID uuid.UUID) (*Stats, error) {
	now := e.now()

	total, err := e.store.SumCommissions(ctx, partnerID, time.Time{})
	if err != nil {
		return nil, err
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	currentMonth, err := e.store.SumCommissions(ctx, partnerID, monthStart)
	if err != nil {
		return nil, err
	}
	trailing, err := e.store.SumCommissions(ctx, partnerID, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	// Approved and processed withdrawals hold the money; pending and
	// rejected ones do not.
	withdrawn, err := e.store.SumWithdrawals(ctx, partnerID, WithdrawalApproved, WithdrawalProcessed)
	if err != nil {
		return nil, err
	}

	cfg, err := e.store.ActiveConfiguration(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Total:        total,
		CurrentMonth: currentMonth,
		Trailing30d:  trailing,
		Available:    total.Sub(withdrawn),
		Eligible:     total.GreaterThanOrEqual(cfg.WithdrawalMinimum),
	}, nil
}

// RequestWithdrawal validates and records a payout request. Nothing is
// deducted until an operator approves it.
func (e *Engine) RequestWithdrawal(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal, method, reference string) (*WithdrawalRequest, error) {
	cfg, err := e.store.ActiveConfiguration(ctx)
	if err != nil {
		return nil, err
	}

	if !cfg.MethodAllowed(method) {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, method)
	}
	if amount.LessThan(cfg.WithdrawalMinimum) {
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, cfg.WithdrawalMinimum)
	}
	if cfg.WithdrawalMultiple.IsPositive() && !amount.Mod(cfg.WithdrawalMultiple).IsZero() {
		return nil, fmt.Errorf("%w: step is %s", ErrNotMultiple, cfg.WithdrawalMultiple)
	}

	stats, err := e.PartnerStats(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(stats.Available) {
		return nil, fmt.Errorf("%w: %s available", ErrExceedsAvailable, stats.Available)
	}

	status := WithdrawalPending
	if cfg.AutoApprove {
		status = WithdrawalApproved
	}

	w := &WithdrawalRequest{
		ID:        uuid.New(),
		PartnerID: partnerID,
		Amount:    amount,
		Method:    method,
		Reference: reference,
		Status:    status,
		CreatedAt: e.now(),
	}
	if err := e.store.SaveWithdrawal(ctx, w); err != nil {
		return nil, fmt.Errorf("save withdrawal request: %w", err)
	}

	e.log.InfoContext(ctx, "withdrawal requested",
		"partner_id", partnerID, "amount", amount, "method", method, "status", status)

	return w, nil
}

// Approve moves a pending request to approved, reserving its amount
// against the partner's balance.
func (e *Engine) Approve(ctx context.Context, id uuid.UUID) error {
	return e.transition(ctx, id, WithdrawalPending, WithdrawalApproved)
}

// Reject moves a pending request to rejected, releasing nothing since
// pending requests hold nothing.
func (e *Engine) Reject(ctx context.Context, id uuid.UUID) error {
	return e.transition(ctx, id, WithdrawalPending, WithdrawalRejected)
}

// MarkProcessed records that an approved request was paid out.
func (e *Engine) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return e.transition(ctx, id, WithdrawalApproved, WithdrawalProcessed)
}

func (e *Engine) transition(ctx context.Context, id uuid.UUID, from, to WithdrawalStatus) error {
	w, err := e.store.WithdrawalByID(ctx, id)
	if err != nil {
		return err
	}
	if w.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.Status, to)
	}

	w.Status = to
	if to == WithdrawalProcessed {
		now := e.now()
		w.ProcessedAt = &now
	}
	return e.store.UpdateWithdrawal(ctx, w)
}

// ActivateConfiguration saves a new program revision and makes it the
// active one.
func (e *Engine) ActivateConfiguration(ctx context.Context, cfg *Configuration) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = e.now()
	}
	if err := e.store.SaveConfiguration(ctx, cfg); err != nil {
		return err
	}
	return e.store.ActivateConfiguration(ctx, cfg.ID)
}
