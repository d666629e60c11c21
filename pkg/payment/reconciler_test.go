package payment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apprendschap/packkit/pkg/pack"
	"github.com/apprendschap/packkit/pkg/payment"
	"github.com/apprendschap/packkit/pkg/subscription"
)

type stubGateway struct {
	mu   sync.Mutex
	next int
}

func (g *stubGateway) CreateCheckout(_ context.Context, params payment.CheckoutParams) (*payment.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	ref := fmt.Sprintf("wave-tx-%d", g.next)
	return &payment.Checkout{
		Reference:   ref,
		CheckoutURL: "https://pay.wave.com/c/" + ref,
	}, nil
}

type recordingHooks struct {
	mu        sync.Mutex
	bonuses   []uuid.UUID
	accruals  []decimal.Decimal
	notified  int
	bonusErr  error
	accrueErr error
}

func (h *recordingHooks) GrantReferrerBonus(_ context.Context, referredID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bonusErr != nil {
		return h.bonusErr
	}
	h.bonuses = append(h.bonuses, referredID)
	return nil
}

func (h *recordingHooks) Accrue(_ context.Context, _ uuid.UUID, _ string, amount decimal.Decimal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.accrueErr != nil {
		return h.accrueErr
	}
	h.accruals = append(h.accruals, amount)
	return nil
}

func (h *recordingHooks) PaymentSettled(_ context.Context, _ uuid.UUID, _ string, _ decimal.Decimal, _ string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notified++
	return nil
}

type staticFamily struct {
	children []uuid.UUID
}

func (f *staticFamily) ActiveChildren(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return f.children, nil
}

type fixture struct {
	reconciler *payment.Reconciler
	store      *payment.MemoryStore
	subStore   *subscription.MemoryStore
	hooks      *recordingHooks
	standard   *pack.Pack
	family     *pack.Pack
	promo      *pack.Pack
}

func newFixture(t *testing.T, now time.Time, opts ...payment.ReconcilerOption) *fixture {
	t.Helper()

	free := pack.Pack{ID: uuid.New(), Name: "Découverte", Kind: pack.KindFree, Active: true}
	standard := pack.Pack{
		ID:           uuid.New(),
		Name:         "Standard",
		Kind:         pack.KindStandard,
		Price:        decimal.NewFromInt(3000),
		Currency:     "XOF",
		DurationDays: 30,
		Active:       true,
	}
	family := pack.Pack{
		ID:           uuid.New(),
		Name:         "Famille",
		Kind:         pack.KindFamily,
		Price:        decimal.NewFromInt(10000),
		Currency:     "XOF",
		DurationDays: 30,
		Active:       true,
		Entitlement:  pack.Entitlement{MaxChildren: 4},
	}
	promo := pack.Pack{
		ID:           uuid.New(),
		Name:         "Rentrée",
		Kind:         pack.KindSpecial,
		Price:        decimal.NewFromInt(3000),
		Currency:     "XOF",
		DurationDays: 30,
		DiscountPct:  20,
		Active:       true,
	}

	src, err := pack.NewInMemSource(free, standard, family, promo)
	require.NoError(t, err)

	clock := func() time.Time { return now }
	subStore := subscription.NewMemoryStore()
	subs := subscription.NewService(subStore, src, subscription.WithClock(clock))

	store := payment.NewMemoryStore()
	hooks := &recordingHooks{}

	base := []payment.ReconcilerOption{
		payment.WithClock(clock),
		payment.WithReferralHook(hooks),
		payment.WithCommissionHook(hooks),
		payment.WithNotifier(hooks),
	}
	reconciler := payment.NewReconciler(store, subs, src, &stubGateway{},
		append(base, opts...)...)

	return &fixture{
		reconciler: reconciler,
		store:      store,
		subStore:   subStore,
		hooks:      hooks,
		standard:   &standard,
		family:     &family,
		promo:      &promo,
	}
}

func TestReconcilerInitiate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	userID := uuid.New()

	pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
		UserID: userID,
		PackID: f.standard.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, pending.Status)
	assert.True(t, pending.Amount.Equal(decimal.NewFromInt(3000)))
	assert.NotEmpty(t, pending.CheckoutURL)

	stored, err := f.store.ByReference(ctx, pending.Reference)
	require.NoError(t, err)
	assert.Equal(t, userID, stored.UserID)
}

func TestReconcilerInitiateDiscounted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	userID := uuid.New()

	// 3000 at 20% off charges 2400, and that is what settlement records.
	pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
		UserID: userID,
		PackID: f.promo.ID,
	})
	require.NoError(t, err)
	assert.True(t, pending.Amount.Equal(decimal.NewFromInt(2400)), "got %s", pending.Amount)

	sub, err := f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
	require.NoError(t, err)
	assert.True(t, sub.AmountPaid.Equal(decimal.NewFromInt(2400)))
}

func TestReconcilerSettle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("creates subscription and fires hooks", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		userID := uuid.New()

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: userID,
			PackID: f.standard.ID,
		})
		require.NoError(t, err)

		sub, err := f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
		require.NoError(t, err)
		assert.Equal(t, userID, sub.UserID)
		assert.True(t, sub.AmountPaid.Equal(pending.Amount))
		assert.True(t, sub.IsValidAt(now))

		require.Len(t, f.hooks.bonuses, 1)
		assert.Equal(t, userID, f.hooks.bonuses[0])
		require.Len(t, f.hooks.accruals, 1)
		assert.Equal(t, 1, f.hooks.notified)

		stored, err := f.store.ByReference(ctx, pending.Reference)
		require.NoError(t, err)
		require.NotNil(t, stored.SubscriptionID)
		assert.Equal(t, sub.ID, *stored.SubscriptionID)
	})

	t.Run("tolerates a mismatched reported amount", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		userID := uuid.New()

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: userID,
			PackID: f.standard.ID,
		})
		require.NoError(t, err)

		sub, err := f.reconciler.Settle(ctx, payment.SettlementEvent{
			Reference:  pending.Reference,
			Amount:     decimal.NewFromInt(2999),
			Currency:   "XOF",
			GatewayRef: "wave-gw-1",
		})
		require.NoError(t, err)
		assert.True(t, sub.AmountPaid.Equal(pending.Amount))

		stored, err := f.store.ByReference(ctx, pending.Reference)
		require.NoError(t, err)
		assert.Equal(t, "wave-gw-1", stored.GatewayReference)
	})

	t.Run("second settlement is rejected without side effects", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		userID := uuid.New()

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: userID,
			PackID: f.standard.ID,
		})
		require.NoError(t, err)

		_, err = f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
		require.NoError(t, err)

		_, err = f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
		assert.ErrorIs(t, err, payment.ErrAlreadySettled)

		subs, err := f.subStore.ActiveByUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
		assert.Len(t, f.hooks.accruals, 1)
	})

	t.Run("hook failures never fail the settlement", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		f.hooks.bonusErr = errors.New("referral store down")
		f.hooks.accrueErr = errors.New("commission store down")
		userID := uuid.New()

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: userID,
			PackID: f.standard.ID,
		})
		require.NoError(t, err)

		_, err = f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
		require.NoError(t, err)
	})

	t.Run("replaces a referral-sourced trial", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		userID := uuid.New()

		trial := subscription.Subscription{
			ID:              uuid.New(),
			UserID:          userID,
			PackID:          f.standard.ID,
			PackKind:        pack.KindStandard,
			Start:           now.AddDate(0, 0, -1),
			Status:          subscription.StatusTrial,
			Active:          true,
			IsTrial:         true,
			ReferralSourced: true,
			CreatedAt:       now.AddDate(0, 0, -1),
		}
		end := now.AddDate(0, 0, 6)
		trial.End = &end
		require.NoError(t, f.subStore.Save(ctx, &trial))

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: userID,
			PackID: f.standard.ID,
		})
		require.NoError(t, err)
		_, err = f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
		require.NoError(t, err)

		old, err := f.subStore.ByID(ctx, trial.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusReplaced, old.Status)
		assert.False(t, old.Active)

		active, err := f.subStore.ActiveByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.False(t, active[0].ReferralSourced)
	})
}

func TestReconcilerInitiateForChild(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	payerID := uuid.New()
	childID := uuid.New()

	pending, err := f.reconciler.InitiateForChild(ctx, payerID, childID, f.standard.ID, false)
	require.NoError(t, err)
	assert.Equal(t, childID, pending.UserID)
	require.NotNil(t, pending.PayerID)
	assert.Equal(t, payerID, *pending.PayerID)
	assert.Equal(t, payerID, pending.Payer())

	_, err = f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
	require.NoError(t, err)

	// The subscription belongs to the child, the referral bonus
	// follows the payer.
	childSubs, err := f.subStore.ActiveByUser(ctx, childID)
	require.NoError(t, err)
	require.Len(t, childSubs, 1)

	require.Len(t, f.hooks.bonuses, 1)
	assert.Equal(t, payerID, f.hooks.bonuses[0])
}

func TestReconcilerSettleConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	userID := uuid.New()

	pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
		UserID: userID,
		PackID: f.standard.ID,
	})
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
		}()
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, payment.ErrAlreadySettled)
		}
	}
	assert.Equal(t, 1, won, "exactly one settlement must win")

	subs, err := f.subStore.ActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Len(t, f.hooks.accruals, 1)
}

func TestReconcilerFamilyFanOut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	children := []uuid.UUID{uuid.New(), uuid.New()}
	f := newFixture(t, now, payment.WithFamilyResolver(&staticFamily{children: children}))
	guardianID := uuid.New()

	pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
		UserID: guardianID,
		PackID: f.family.ID,
	})
	require.NoError(t, err)

	_, err = f.reconciler.Settle(ctx, payment.SettlementEvent{Reference: pending.Reference})
	require.NoError(t, err)

	// Guardian pays, both children get free subscriptions.
	guardianSubs, err := f.subStore.ActiveByUser(ctx, guardianID)
	require.NoError(t, err)
	require.Len(t, guardianSubs, 1)
	assert.True(t, guardianSubs[0].AmountPaid.Equal(decimal.NewFromInt(10000)))

	for _, childID := range children {
		childSubs, err := f.subStore.ActiveByUser(ctx, childID)
		require.NoError(t, err)
		require.Len(t, childSubs, 1)
		assert.True(t, childSubs[0].AmountPaid.IsZero())

		audit, err := f.store.ByReference(ctx, payment.ChildReference(pending.Reference, childID))
		require.NoError(t, err)
		assert.Equal(t, payment.StatusSettled, audit.Status)
		assert.True(t, audit.Amount.IsZero())
		assert.NotNil(t, audit.SubscriptionID)
		require.NotNil(t, audit.PayerID)
		assert.Equal(t, guardianID, *audit.PayerID)
	}

	// One payer-level commission accrual, not one per family member.
	assert.Len(t, f.hooks.accruals, 1)
}

func TestReconcilerSweepPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	now := start
	clock := func() time.Time { return now }

	f := newFixture(t, start, payment.WithClock(clock))
	userID := uuid.New()

	pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
		UserID: userID,
		PackID: f.standard.ID,
	})
	require.NoError(t, err)

	// Inside the grace window nothing is touched.
	report, err := f.reconciler.SweepPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)

	now = start.Add(6 * time.Minute)
	report, err = f.reconciler.SweepPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Zero(t, report.Errors)

	settled, err := f.store.ByReference(ctx, pending.Reference)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSettled, settled.Status)

	// A second sweep finds nothing pending.
	report, err = f.reconciler.SweepPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Zero(t, report.Errors)
}
