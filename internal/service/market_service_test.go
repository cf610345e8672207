package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictiond/internal/domain"
	"github.com/alanyoungcy/predictiond/internal/engine"
	"github.com/alanyoungcy/predictiond/internal/store/memory"
)

const (
	creator = "creator-wallet"
	alice   = "alice-wallet"
	bob     = "bob-wallet"
)

// fakeClock lets tests move the trusted current time forward.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

type fixture struct {
	svc   *MarketService
	db    *memory.DB
	bus   *memory.SignalBus
	clock *fakeClock
}

func newFixture(t *testing.T, feeBps uint64) *fixture {
	t.Helper()

	db := memory.New()
	bus := memory.NewSignalBus()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewMarketService(Deps{
		Ledger:      engine.New(engine.Config{FeeBps: feeBps}),
		Markets:     db.Markets(),
		Predictions: db.Predictions(),
		Bets:        db.Ledger(),
		Locks:       memory.NewLockManager(),
		Bus:         bus,
		Audit:       db.Audit(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:         clock.now,
	})

	return &fixture{svc: svc, db: db, bus: bus, clock: clock}
}

func (f *fixture) createMarket(t *testing.T, id uint64, liquidity uint64) domain.Market {
	t.Helper()
	m, err := f.svc.CreateMarket(context.Background(), engine.CreateMarketParams{
		MarketID:         id,
		Question:         "Will SOL close above $200 this week?",
		Creator:          creator,
		ResolutionTime:   f.clock.t.Add(24 * time.Hour),
		InitialLiquidity: liquidity,
	})
	require.NoError(t, err)
	return m
}

func TestMarketLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	m := f.createMarket(t, 1, 1_000_000_000)
	require.Equal(t, uint64(500_000_000), m.YesPool)
	require.Equal(t, uint64(500_000_000), m.NoPool)

	_, p, err := f.svc.PlacePrediction(ctx, 1, alice, domain.SideYes, 500_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(250_000_000), p.TokensReceived)

	// Resolution is gated on expiry.
	_, err = f.svc.ResolveMarket(ctx, 1, creator, domain.SideYes)
	require.ErrorIs(t, err, domain.ErrMarketNotExpired)

	f.clock.t = f.clock.t.Add(25 * time.Hour)

	resolved, err := f.svc.ResolveMarket(ctx, 1, creator, domain.SideYes)
	require.NoError(t, err)
	require.True(t, resolved.Resolved)

	claimed, reward, err := f.svc.ClaimReward(ctx, 1, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), reward)
	assert.True(t, claimed.Claimed)
	assert.Equal(t, reward, claimed.Payout)

	// A retried claim is naturally safe.
	_, _, err = f.svc.ClaimReward(ctx, 1, alice)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// Every operation landed in the journal stream.
	msgs, err := f.bus.StreamRead(ctx, domain.EventStream, "0", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 4) // created, placed, resolved, claimed
}

func TestCreateMarketDuplicate(t *testing.T) {
	f := newFixture(t, 0)
	f.createMarket(t, 1, 1_000)

	_, err := f.svc.CreateMarket(context.Background(), engine.CreateMarketParams{
		MarketID:         1,
		Question:         "another question",
		Creator:          creator,
		ResolutionTime:   f.clock.t.Add(time.Hour),
		InitialLiquidity: 1_000,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateMarket)
}

func TestPlacePredictionGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.createMarket(t, 1, 1_000_000)

	_, _, err := f.svc.PlacePrediction(ctx, 99, alice, domain.SideYes, 1_000)
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)

	_, _, err = f.svc.PlacePrediction(ctx, 1, alice, domain.SideYes, 1_000)
	require.NoError(t, err)

	_, _, err = f.svc.PlacePrediction(ctx, 1, alice, domain.SideNo, 1_000)
	assert.ErrorIs(t, err, domain.ErrSideMismatch)

	f.clock.t = f.clock.t.Add(24 * time.Hour)
	_, _, err = f.svc.PlacePrediction(ctx, 1, bob, domain.SideNo, 1_000)
	assert.ErrorIs(t, err, domain.ErrMarketExpired)
}

func TestClaimRewardGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.createMarket(t, 1, 1_000_000)

	_, _, err := f.svc.PlacePrediction(ctx, 1, alice, domain.SideYes, 10_000)
	require.NoError(t, err)
	_, _, err = f.svc.PlacePrediction(ctx, 1, bob, domain.SideNo, 10_000)
	require.NoError(t, err)

	_, _, err = f.svc.ClaimReward(ctx, 1, alice)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)

	f.clock.t = f.clock.t.Add(25 * time.Hour)
	_, err = f.svc.ResolveMarket(ctx, 1, creator, domain.SideYes)
	require.NoError(t, err)

	_, _, err = f.svc.ClaimReward(ctx, 1, bob)
	assert.ErrorIs(t, err, domain.ErrPredictionLost)

	_, _, err = f.svc.ClaimReward(ctx, 1, "stranger-wallet")
	assert.ErrorIs(t, err, domain.ErrNoPrediction)

	_, _, err = f.svc.ClaimReward(ctx, 99, alice)
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestResolveMarketAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.createMarket(t, 1, 1_000_000)
	f.clock.t = f.clock.t.Add(25 * time.Hour)

	_, err := f.svc.ResolveMarket(ctx, 1, alice, domain.SideNo)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.ResolveMarket(ctx, 1, creator, domain.SideNo)
	require.NoError(t, err)

	_, err = f.svc.ResolveMarket(ctx, 1, creator, domain.SideNo)
	assert.ErrorIs(t, err, domain.ErrMarketAlreadyResolved)
}

func TestWithdrawFees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 200) // 2%
	f.createMarket(t, 1, 1_000_000)

	_, _, err := f.svc.PlacePrediction(ctx, 1, alice, domain.SideYes, 100_000)
	require.NoError(t, err)

	m, err := f.svc.GetMarket(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), m.FeeCollected)

	_, err = f.svc.WithdrawFees(ctx, 1, alice, 1_000)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.WithdrawFees(ctx, 1, creator, 3_000)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	m2, err := f.svc.WithdrawFees(ctx, 1, creator, 1_500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), m2.FeeCollected)
}

func TestRewardSplitAcrossWinners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.createMarket(t, 1, 1_000_000)

	_, pa, err := f.svc.PlacePrediction(ctx, 1, alice, domain.SideYes, 200_000)
	require.NoError(t, err)
	_, pb, err := f.svc.PlacePrediction(ctx, 1, bob, domain.SideYes, 200_000)
	require.NoError(t, err)

	f.clock.t = f.clock.t.Add(25 * time.Hour)
	resolved, err := f.svc.ResolveMarket(ctx, 1, creator, domain.SideYes)
	require.NoError(t, err)

	_, rewardA, err := f.svc.ClaimReward(ctx, 1, alice)
	require.NoError(t, err)
	_, rewardB, err := f.svc.ClaimReward(ctx, 1, bob)
	require.NoError(t, err)

	assert.LessOrEqual(t, rewardA+rewardB, resolved.TotalLiquidity,
		"payouts never exceed the liquidity backing them")
	assert.Positive(t, rewardA)
	assert.Positive(t, rewardB)
	_ = pa
	_ = pb
}

func TestListMarketsAndPositions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.createMarket(t, 1, 1_000_000)
	f.clock.t = f.clock.t.Add(time.Minute)
	f.createMarket(t, 2, 2_000_000)

	markets, err := f.svc.ListMarkets(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, uint64(2), markets[0].MarketID, "newest first")

	count, err := f.svc.CountMarkets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, _, err = f.svc.PlacePrediction(ctx, 1, alice, domain.SideYes, 10_000)
	require.NoError(t, err)
	_, _, err = f.svc.PlacePrediction(ctx, 2, alice, domain.SideNo, 10_000)
	require.NoError(t, err)

	positions, err := f.svc.ListPredictorPositions(ctx, alice, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, positions, 2)

	preds, err := f.svc.ListMarketPredictions(ctx, 1, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, alice, preds[0].Predictor)
}
