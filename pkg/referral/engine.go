package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/apprendschap/packkit/pkg/pack"
	"github.com/apprendschap/packkit/pkg/subscription"
)

// SubscriptionAccess is the slice of the subscription service the engine
// needs: creating welcome trials and extending ends with bonus weeks.
// *subscription.Service satisfies it.
type SubscriptionAccess interface {
	Create(ctx context.Context, params subscription.CreateParams) (*subscription.Subscription, error)
	ExtendCurrent(ctx context.Context, userID uuid.UUID, d time.Duration) (*subscription.Subscription, error)
}

// Engine runs the referral program.
type Engine struct {
	store    Store
	codes    CodeDirectory
	subs     SubscriptionAccess
	packs    pack.Source
	shareURL string
	log      *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithShareBaseURL sets the signup URL referral codes are appended to
// when rendering share QR codes.
func WithShareBaseURL(url string) Option {
	return func(e *Engine) {
		if url != "" {
			e.shareURL = url
		}
	}
}

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

// NewEngine creates a referral Engine. Panics on nil dependencies to fail
// fast during initialization.
func NewEngine(store Store, codes CodeDirectory, subs SubscriptionAccess, packs pack.Source, opts ...Option) *Engine {
	if store == nil {
		panic("referral: Store is required")
	}
	if codes == nil {
		panic("referral: CodeDirectory is required")
	}
	if subs == nil {
		panic("referral: SubscriptionAccess is required")
	}
	if packs == nil {
		panic("referral: pack.Source is required")
	}

	e := &Engine{
		store:    store,
		codes:    codes,
		subs:     subs,
		packs:    packs,
		shareURL: "https://apprendschap.com/inscription?parrain=",
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Link binds the referred user to the owner of the code. The bond is
// permanent: a user can never be linked twice or refer themselves.
func (e *Engine) Link(ctx context.Context, referredID uuid.UUID, code string) (*Link, error) {
	referrerID, err := e.codes.UserIDByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrerID == referredID {
		return nil, ErrSelfReferral
	}

	link := &Link{
		ID:         uuid.New(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		Code:       code,
		CreatedAt:  e.now(),
	}
	if err := e.store.SaveLink(ctx, link); err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "referral link created",
		"referrer_id", referrerID, "referred_id", referredID)

	return link, nil
}

// ReferrerOf returns the user who referred the given user.
// ErrLinkNotFound when nobody did.
func (e *Engine) ReferrerOf(ctx context.Context, referredID uuid.UUID) (uuid.UUID, error) {
	link, err := e.store.LinkByReferred(ctx, referredID)
	if err != nil {
		return uuid.Nil, err
	}
	return link.ReferrerID, nil
}

// GrantReferrerBonus credits the referrer one free-week unit for the
// referred user's first settled payment. A no-op when the user was never
// referred or the bonus was already granted, so settlement can call it
// unconditionally.
func (e *Engine) GrantReferrerBonus(ctx context.Context, referredID uuid.UUID) error {
	link, err := e.store.LinkByReferred(ctx, referredID)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return nil
		}
		return err
	}
	if link.ReferrerBonusGranted {
		return nil
	}

	link.ReferrerBonusGranted = true
	if err := e.store.UpdateLink(ctx, link); err != nil {
		return err
	}
	if err := e.store.AddAccumulated(ctx, link.ReferrerID, 1); err != nil {
		return fmt.Errorf("credit referrer ledger: %w", err)
	}

	e.log.InfoContext(ctx, "referrer bonus granted",
		"referrer_id", link.ReferrerID, "referred_id", referredID)

	return nil
}

// GrantReferredWelcome gives the referred user their one-week welcome
// trial on the given pack, tagged referral sourced so a later purchase
// replaces it. Idempotent per link.
func (e *Engine) GrantReferredWelcome(ctx context.Context, referredID, packID uuid.UUID) (*subscription.Subscription, error) {
	link, err := e.store.LinkByReferred(ctx, referredID)
	if err != nil {
		return nil, err
	}
	if link.ReferredBonusGranted {
		return nil, nil
	}

	p, err := e.packs.Get(ctx, packID)
	if err != nil {
		return nil, err
	}

	sub, err := e.subs.Create(ctx, subscription.CreateParams{
		UserID:          referredID,
		Pack:            p,
		IsTrial:         true,
		ReferralSourced: true,
	})
	if err != nil {
		return nil, err
	}

	link.ReferredBonusGranted = true
	if err := e.store.UpdateLink(ctx, link); err != nil {
		return nil, err
	}
	return sub, nil
}

// ConsumeBonus spends bonus weeks to extend the user's current active
// subscription. Fails without mutation when the balance is short or the
// user has no bounded active subscription.
func (e *Engine) ConsumeBonus(ctx context.Context, userID uuid.UUID, weeks int) (*subscription.Subscription, error) {
	if weeks <= 0 {
		return nil, fmt.Errorf("%w: requested %d", ErrInsufficientBonus, weeks)
	}

	ledger, err := e.store.Ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ledger.Available() < weeks {
		return nil, fmt.Errorf("%w: %d available, %d requested",
			ErrInsufficientBonus, ledger.Available(), weeks)
	}

	sub, err := e.subs.ExtendCurrent(ctx, userID, time.Duration(weeks)*BonusWeek)
	if err != nil {
		return nil, err
	}

	if err := e.store.AddConsumed(ctx, userID, weeks); err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "bonus weeks consumed",
		"user_id", userID, "weeks", weeks, "new_end", sub.End)

	return sub, nil
}

// Stats summarizes the user's referral standing.
func (e *Engine) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	count, err := e.store.CountByReferrer(ctx, userID)
	if err != nil {
		return nil, err
	}
	ledger, err := e.store.Ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		ReferredCount:  count,
		WeeksEarned:    ledger.Accumulated,
		WeeksConsumed:  ledger.Consumed,
		WeeksAvailable: ledger.Available(),
	}, nil
}

// ShareCodeQR renders a PNG QR code pointing at the signup page with the
// referral code prefilled.
func (e *Engine) ShareCodeQR(code string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(e.shareURL+code, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode referral qr: %w", err)
	}
	return png, nil
}
