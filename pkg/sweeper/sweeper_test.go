package sweeper_test

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
	"github.com/apprendschap/packkit/pkg/sweeper"
)

func sweepFixture(t *testing.T, clock func() time.Time) (*sweeper.Sweeper, *subscription.MemoryStore, *subscription.Service, *pack.Pack) {
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

	src, err := pack.NewInMemSource(free, standard)
	require.NoError(t, err)

	store := subscription.NewMemoryStore()
	subs := subscription.NewService(store, src, subscription.WithClock(clock))
	sw := sweeper.New(store, subs, sweeper.WithClock(clock))
	return sw, store, subs, &standard
}

func TestSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("expires lapsed subscription and grants free tier", func(t *testing.T) {
		t.Parallel()

		now := start
		clock := func() time.Time { return now }
		sw, store, subs, standard := sweepFixture(t, clock)
		userID := uuid.New()

		sub, err := subs.Create(ctx, subscription.CreateParams{
			UserID:     userID,
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)

		now = start.AddDate(0, 0, 31)
		report, err := sw.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Processed)
		assert.Zero(t, report.Errors)

		old, err := store.ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, old.Status)
		assert.False(t, old.Active)

		active, err := store.ActiveByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, pack.KindFree, active[0].PackKind)
		assert.Nil(t, active[0].End)
		assert.True(t, active[0].AmountPaid.IsZero())
	})

	t.Run("repeated sweeps are idempotent", func(t *testing.T) {
		t.Parallel()

		now := start
		clock := func() time.Time { return now }
		sw, store, subs, standard := sweepFixture(t, clock)
		userID := uuid.New()

		_, err := subs.Create(ctx, subscription.CreateParams{
			UserID:     userID,
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)

		now = start.AddDate(0, 0, 31)
		report, err := sw.Sweep(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Processed)

		report, err = sw.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Processed)
		assert.Zero(t, report.Errors)

		// Still exactly one free-tier subscription.
		active, err := store.ActiveByUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("free tier is never swept", func(t *testing.T) {
		t.Parallel()

		now := start
		clock := func() time.Time { return now }
		sw, _, subs, _ := sweepFixture(t, clock)

		_, err := subs.GrantFree(ctx, uuid.New())
		require.NoError(t, err)

		now = start.AddDate(1, 0, 0)
		report, err := sw.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Processed)
	})

	t.Run("subscription still in term is untouched", func(t *testing.T) {
		t.Parallel()

		now := start
		clock := func() time.Time { return now }
		sw, store, subs, standard := sweepFixture(t, clock)
		userID := uuid.New()

		sub, err := subs.Create(ctx, subscription.CreateParams{
			UserID:     userID,
			Pack:       standard,
			AmountPaid: standard.Price,
		})
		require.NoError(t, err)

		now = start.AddDate(0, 0, 15)
		report, err := sw.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Processed)

		got, err := store.ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.True(t, got.IsValidAt(now))
	})

	t.Run("expired trial is demoted too", func(t *testing.T) {
		t.Parallel()

		now := start
		clock := func() time.Time { return now }
		sw, store, subs, standard := sweepFixture(t, clock)
		userID := uuid.New()

		_, err := subs.Create(ctx, subscription.CreateParams{
			UserID:  userID,
			Pack:    standard,
			IsTrial: true,
		})
		require.NoError(t, err)

		now = start.AddDate(0, 0, 8)
		report, err := sw.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Processed)

		active, err := store.ActiveByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, pack.KindFree, active[0].PackKind)
	})
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sw, _, _, _ := sweepFixture(t, clock)

	runner := sweeper.NewRunner(sw, nil, sweeper.RunnerConfig{
		ExpirationInterval: 10 * time.Millisecond,
		PendingInterval:    10 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := runner.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
