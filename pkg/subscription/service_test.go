package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apprendschap/packkit/pkg/pack"
	"github.com/apprendschap/packkit/pkg/subscription"
)

func testPacks(t *testing.T) (pack.Source, *pack.Pack, *pack.Pack, *pack.Pack) {
	t.Helper()

	free := pack.Pack{
		ID:     uuid.New(),
		Name:   "Découverte",
		Kind:   pack.KindFree,
		Price:  decimal.Zero,
		Active: true,
	}
	standard := pack.Pack{
		ID:           uuid.New(),
		Name:         "Standard",
		Kind:         pack.KindStandard,
		Price:        decimal.NewFromInt(3000),
		Currency:     "XOF",
		DurationDays: 30,
		Active:       true,
	}
	premium := pack.Pack{
		ID:             uuid.New(),
		Name:           "Premium",
		Kind:           pack.KindPremium,
		Price:          decimal.NewFromInt(5000),
		Currency:       "XOF",
		DurationDays:   30,
		Active:         true,
		TrialWeekOffer: true,
	}

	src, err := pack.NewInMemSource(free, standard, premium)
	require.NoError(t, err)
	return src, &free, &standard, &premium
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src, _, standard, _ := testPacks(t)

	t.Run("paid subscription gets pack duration", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))

		sub, err := svc.Create(ctx, subscription.CreateParams{
			UserID:     uuid.New(),
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)
		require.NotNil(t, sub.End)
		assert.Equal(t, now.AddDate(0, 0, 30), *sub.End)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.True(t, sub.Active)
		assert.True(t, sub.IsValidAt(now))
	})

	t.Run("trial is seven days regardless of pack duration", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))

		sub, err := svc.Create(ctx, subscription.CreateParams{
			UserID:  uuid.New(),
			Pack:    standard,
			IsTrial: true,
		})
		require.NoError(t, err)
		require.NotNil(t, sub.End)
		assert.Equal(t, now.Add(7*24*time.Hour), *sub.End)
		assert.Equal(t, subscription.StatusTrial, sub.Status)
	})

	t.Run("unlimited subscription has nil end", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))

		sub, err := svc.GrantFree(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, sub.End)
		assert.True(t, sub.Unlimited())
		assert.Nil(t, sub.DaysRemainingAt(now))
	})
}

func TestServiceStartTrial(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src, _, standard, premium := testPacks(t)

	t.Run("only once per user", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))
		userID := uuid.New()

		_, err := svc.StartTrial(ctx, userID, premium.ID)
		require.NoError(t, err)

		_, err = svc.StartTrial(ctx, userID, premium.ID)
		assert.ErrorIs(t, err, subscription.ErrTrialAlreadyUsed)
	})

	t.Run("pack without trial offer", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))

		_, err := svc.StartTrial(ctx, uuid.New(), standard.ID)
		assert.ErrorIs(t, err, subscription.ErrTrialNotOffered)
	})
}

func TestServiceGrantDiscovery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src, _, standard, _ := testPacks(t)

	svc := subscription.NewService(subscription.NewMemoryStore(), src,
		subscription.WithClock(fixedClock(now)))
	userID := uuid.New()

	sub, err := svc.GrantDiscovery(ctx, userID, standard.ID)
	require.NoError(t, err)
	assert.True(t, sub.IsTrial)
	assert.Equal(t, now.Add(7*24*time.Hour), *sub.End)

	_, err = svc.GrantDiscovery(ctx, userID, standard.ID)
	assert.ErrorIs(t, err, subscription.ErrAlreadySubscribed)
}

func TestServiceCurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src, _, standard, _ := testPacks(t)

	t.Run("bounded subscription wins over free tier", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))
		userID := uuid.New()

		_, err := svc.GrantFree(ctx, userID)
		require.NoError(t, err)
		paid, err := svc.Create(ctx, subscription.CreateParams{
			UserID:     userID,
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)

		got, err := svc.Current(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, paid.ID, got.ID)
	})

	t.Run("falls back to unlimited free tier", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		svc := subscription.NewService(store, src,
			subscription.WithClock(fixedClock(now)))
		userID := uuid.New()

		free, err := svc.GrantFree(ctx, userID)
		require.NoError(t, err)

		got, err := svc.Current(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, free.ID, got.ID)
	})

	t.Run("no subscription at all", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))

		_, err := svc.Current(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("expired subscription is skipped", func(t *testing.T) {
		t.Parallel()

		clock := now
		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(func() time.Time { return clock }))
		userID := uuid.New()

		_, err := svc.Create(ctx, subscription.CreateParams{
			UserID:     userID,
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)

		clock = now.AddDate(0, 0, 31)
		_, err = svc.Current(ctx, userID)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}

func TestServiceRenew(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src, _, standard, _ := testPacks(t)

	t.Run("too early carries exact wait", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		svc := subscription.NewService(store, src,
			subscription.WithClock(fixedClock(now)))
		userID := uuid.New()

		sub, err := svc.Create(ctx, subscription.CreateParams{
			UserID:     userID,
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)

		// Stretch the end so 45 days remain.
		end := now.AddDate(0, 0, 45)
		sub.End = &end
		require.NoError(t, store.Update(ctx, sub))

		_, err = svc.Renew(ctx, sub.ID, userID)
		var notAvailable *subscription.RenewalNotAvailableError
		require.ErrorAs(t, err, &notAvailable)
		assert.Equal(t, 15, notAvailable.DaysUntilWindow)
	})

	t.Run("within window extends by pack duration", func(t *testing.T) {
		t.Parallel()

		clock := now
		store := subscription.NewMemoryStore()
		svc := subscription.NewService(store, src,
			subscription.WithClock(func() time.Time { return clock }))
		userID := uuid.New()

		sub, err := svc.Create(ctx, subscription.CreateParams{
			UserID:     userID,
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)
		origEnd := *sub.End

		clock = now.AddDate(0, 0, 20)
		renewed, err := svc.Renew(ctx, sub.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, origEnd.AddDate(0, 0, 30), *renewed.End)
		require.NotNil(t, renewed.RenewedAt)

		recs, err := svc.RenewalHistory(ctx, sub.ID, userID)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, 30, recs[0].DaysAdded)
		assert.True(t, recs[0].Amount.Equal(standard.Price))

		_, err = svc.RenewalHistory(ctx, sub.ID, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrAccessDenied)
	})

	t.Run("wrong owner", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))

		sub, err := svc.Create(ctx, subscription.CreateParams{
			UserID:     uuid.New(),
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)

		_, err = svc.Renew(ctx, sub.ID, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrAccessDenied)
	})
}

func TestServiceSuspendReactivate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src, _, standard, _ := testPacks(t)

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, src,
		subscription.WithClock(fixedClock(now)))
	userID := uuid.New()

	sub, err := svc.Create(ctx, subscription.CreateParams{
		UserID:     userID,
		Pack:       standard,
		AmountPaid: standard.Price,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Suspend(ctx, sub.ID, userID))
	got, err := store.ByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusSuspended, got.Status)
	assert.False(t, got.IsValidAt(now))

	require.NoError(t, svc.Reactivate(ctx, sub.ID, userID))
	got, err = store.ByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.IsValidAt(now))

	assert.ErrorIs(t, svc.Suspend(ctx, sub.ID, uuid.New()), subscription.ErrAccessDenied)
}

func TestServiceDeactivateReferralSourced(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src, _, standard, _ := testPacks(t)

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, src,
		subscription.WithClock(fixedClock(now)))
	userID := uuid.New()

	referral, err := svc.Create(ctx, subscription.CreateParams{
		UserID:          userID,
		Pack:            standard,
		IsTrial:         true,
		ReferralSourced: true,
	})
	require.NoError(t, err)

	replaced, err := svc.DeactivateReferralSourced(ctx, userID)
	require.NoError(t, err)
	assert.True(t, replaced)

	got, err := store.ByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusReplaced, got.Status)
	assert.False(t, got.Active)

	replaced, err = svc.DeactivateReferralSourced(ctx, userID)
	require.NoError(t, err)
	assert.False(t, replaced)
}

func TestServiceExtendCurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	src, _, standard, _ := testPacks(t)

	t.Run("pushes end date out", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))
		userID := uuid.New()

		sub, err := svc.Create(ctx, subscription.CreateParams{
			UserID:     userID,
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)
		origEnd := *sub.End

		extended, err := svc.ExtendCurrent(ctx, userID, 7*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, origEnd.Add(7*24*time.Hour), *extended.End)
	})

	t.Run("unlimited subscription cannot be extended", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(subscription.NewMemoryStore(), src,
			subscription.WithClock(fixedClock(now)))
		userID := uuid.New()

		_, err := svc.GrantFree(ctx, userID)
		require.NoError(t, err)

		_, err = svc.ExtendCurrent(ctx, userID, 7*24*time.Hour)
		assert.ErrorIs(t, err, subscription.ErrUnlimitedEnd)
	})
}
