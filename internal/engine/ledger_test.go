package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

var (
	t0     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry = t0.Add(24 * time.Hour)
)

const (
	creator = "creator-wallet"
	alice   = "alice-wallet"
	bob     = "bob-wallet"
)

func newMarket(t *testing.T, l *Ledger, initialLiquidity uint64) domain.Market {
	t.Helper()
	m, err := l.CreateMarket(CreateMarketParams{
		MarketID:         1,
		Question:         "Will SOL close above $200 this week?",
		Creator:          creator,
		ResolutionTime:   expiry,
		InitialLiquidity: initialLiquidity,
	}, t0)
	require.NoError(t, err)
	return m
}

func requireInvariant(t *testing.T, m domain.Market) {
	t.Helper()
	require.Equal(t, m.TotalLiquidity, m.YesPool+m.NoPool,
		"yesPool + noPool must equal totalLiquidity")
}

func TestCreateMarket(t *testing.T) {
	l := New(Config{})

	t.Run("valid", func(t *testing.T) {
		m := newMarket(t, l, 1_000_000_000)
		assert.Equal(t, uint64(500_000_000), m.YesPool)
		assert.Equal(t, uint64(500_000_000), m.NoPool)
		assert.Equal(t, uint64(1_000_000_000), m.TotalLiquidity)
		assert.False(t, m.Resolved)
		assert.Nil(t, m.Outcome)
		assert.Zero(t, m.FeeCollected)
		requireInvariant(t, m)
	})

	t.Run("odd liquidity remainder goes to the yes pool", func(t *testing.T) {
		m := newMarket(t, l, 1_000_000_001)
		assert.Equal(t, uint64(500_000_001), m.YesPool)
		assert.Equal(t, uint64(500_000_000), m.NoPool)
		requireInvariant(t, m)
	})

	t.Run("guards", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(*CreateMarketParams)
			wantErr error
		}{
			{"empty question", func(p *CreateMarketParams) { p.Question = "" }, domain.ErrInvalidQuestion},
			{"question too long", func(p *CreateMarketParams) {
				p.Question = string(make([]byte, domain.MaxQuestionLen+1))
			}, domain.ErrInvalidQuestion},
			{"resolution time in the past", func(p *CreateMarketParams) {
				p.ResolutionTime = t0.Add(-time.Second)
			}, domain.ErrInvalidResolutionTime},
			{"resolution time equal to now", func(p *CreateMarketParams) {
				p.ResolutionTime = t0
			}, domain.ErrInvalidResolutionTime},
			{"zero liquidity", func(p *CreateMarketParams) { p.InitialLiquidity = 0 }, domain.ErrInvalidAmount},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				p := CreateMarketParams{
					MarketID:         7,
					Question:         "q",
					Creator:          creator,
					ResolutionTime:   expiry,
					InitialLiquidity: 100,
				}
				tt.mutate(&p)
				_, err := l.CreateMarket(p, t0)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})
}

func TestPlacePrediction(t *testing.T) {
	l := New(Config{})

	t.Run("first bet prices against the pre-deposit pool", func(t *testing.T) {
		m := newMarket(t, l, 1_000_000_000)

		m2, p, err := l.PlacePrediction(m, nil, alice, domain.SideYes, 500_000_000, t0.Add(time.Hour))
		require.NoError(t, err)

		assert.Equal(t, uint64(250_000_000), p.TokensReceived)
		assert.Equal(t, uint64(500_000_000), p.AmountDeposited)
		assert.Equal(t, domain.SideYes, p.Side)
		assert.False(t, p.Claimed)

		assert.Equal(t, uint64(1_000_000_000), m2.YesPool)
		assert.Equal(t, uint64(500_000_000), m2.NoPool)
		assert.Equal(t, uint64(1_500_000_000), m2.TotalLiquidity)
		requireInvariant(t, m2)
	})

	t.Run("top-up on the same side accumulates", func(t *testing.T) {
		m := newMarket(t, l, 1_000_000_000)

		m, p, err := l.PlacePrediction(m, nil, alice, domain.SideNo, 100_000, t0.Add(time.Hour))
		require.NoError(t, err)

		m2, p2, err := l.PlacePrediction(m, &p, alice, domain.SideNo, 200_000, t0.Add(2*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, uint64(300_000), p2.AmountDeposited)
		assert.Greater(t, p2.TokensReceived, p.TokensReceived)
		requireInvariant(t, m2)
	})

	t.Run("opposite side is rejected", func(t *testing.T) {
		m := newMarket(t, l, 1_000_000_000)

		m, p, err := l.PlacePrediction(m, nil, alice, domain.SideYes, 100_000, t0.Add(time.Hour))
		require.NoError(t, err)

		_, _, err = l.PlacePrediction(m, &p, alice, domain.SideNo, 100_000, t0.Add(2*time.Hour))
		assert.ErrorIs(t, err, domain.ErrSideMismatch)
	})

	t.Run("guards", func(t *testing.T) {
		m := newMarket(t, l, 1_000_000_000)

		_, _, err := l.PlacePrediction(m, nil, alice, domain.SideYes, 0, t0.Add(time.Hour))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, _, err = l.PlacePrediction(m, nil, alice, domain.SideYes, 100, expiry)
		assert.ErrorIs(t, err, domain.ErrMarketExpired, "bet at the resolution instant")

		_, _, err = l.PlacePrediction(m, nil, alice, domain.SideYes, 100, expiry.Add(time.Hour))
		assert.ErrorIs(t, err, domain.ErrMarketExpired)

		resolved, err := l.ResolveMarket(m, creator, domain.SideYes, expiry)
		require.NoError(t, err)
		_, _, err = l.PlacePrediction(resolved, nil, alice, domain.SideYes, 100, expiry.Add(time.Hour))
		assert.ErrorIs(t, err, domain.ErrMarketAlreadyResolved)
	})

	t.Run("deposit rounding to zero issuance is rejected", func(t *testing.T) {
		m := newMarket(t, l, 1_000_000_000)

		_, _, err := l.PlacePrediction(m, nil, alice, domain.SideYes, 1, t0.Add(time.Hour))
		assert.ErrorIs(t, err, domain.ErrInsufficientOutput)
	})

	t.Run("invariant holds across a bet sequence", func(t *testing.T) {
		m := newMarket(t, l, 1_000_000_001)

		bets := []struct {
			who    string
			side   domain.Side
			amount uint64
		}{
			{alice, domain.SideYes, 123_456_789},
			{bob, domain.SideNo, 987_654_321},
			{alice, domain.SideYes, 55_555},
			{bob, domain.SideNo, 1_000_000_000},
		}

		positions := map[string]*domain.Prediction{}
		for i, b := range bets {
			var err error
			var p domain.Prediction
			m, p, err = l.PlacePrediction(m, positions[b.who], b.who, b.side, b.amount, t0.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			positions[b.who] = &p
			requireInvariant(t, m)
		}
	})
}

func TestResolveMarket(t *testing.T) {
	l := New(Config{})
	m := newMarket(t, l, 1_000_000_000)

	t.Run("only the creator may resolve", func(t *testing.T) {
		_, err := l.ResolveMarket(m, alice, domain.SideYes, expiry)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		_, err = l.ResolveMarket(m, alice, domain.SideNo, expiry)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, "unauthorized regardless of outcome value")
	})

	t.Run("not before the resolution time", func(t *testing.T) {
		_, err := l.ResolveMarket(m, creator, domain.SideYes, expiry.Add(-time.Second))
		assert.ErrorIs(t, err, domain.ErrMarketNotExpired)
	})

	t.Run("resolves exactly once", func(t *testing.T) {
		resolved, err := l.ResolveMarket(m, creator, domain.SideYes, expiry)
		require.NoError(t, err)
		require.True(t, resolved.Resolved)
		require.NotNil(t, resolved.Outcome)
		assert.Equal(t, domain.SideYes, *resolved.Outcome)

		_, err = l.ResolveMarket(resolved, creator, domain.SideNo, expiry.Add(time.Hour))
		assert.ErrorIs(t, err, domain.ErrMarketAlreadyResolved)
	})
}

// TestClaimReward walks the full reference scenario: 1e9 initial liquidity,
// a 5e8 YES bet issuing 2.5e8 tokens, resolution to YES, and a claim paying
// out the entire 1.5e9 liquidity to the sole winner.
func TestClaimReward(t *testing.T) {
	l := New(Config{})

	m := newMarket(t, l, 1_000_000_000)
	m, p, err := l.PlacePrediction(m, nil, alice, domain.SideYes, 500_000_000, t0.Add(time.Hour))
	require.NoError(t, err)

	t.Run("before resolution", func(t *testing.T) {
		_, _, err := l.ClaimReward(m, p, p.TokensReceived, expiry)
		assert.ErrorIs(t, err, domain.ErrMarketNotResolved)
	})

	m, err = l.ResolveMarket(m, creator, domain.SideYes, expiry)
	require.NoError(t, err)

	t.Run("winner claims the full liquidity", func(t *testing.T) {
		claimed, reward, err := l.ClaimReward(m, p, p.TokensReceived, expiry)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_500_000_000), reward)
		assert.True(t, claimed.Claimed)
		assert.Equal(t, reward, claimed.Payout)

		_, _, err = l.ClaimReward(m, claimed, claimed.TokensReceived, expiry)
		assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	})

	t.Run("losing side cannot claim", func(t *testing.T) {
		lost := domain.Prediction{
			MarketID:       m.MarketID,
			Predictor:      bob,
			Side:           domain.SideNo,
			TokensReceived: 42,
		}
		_, _, err := l.ClaimReward(m, lost, p.TokensReceived, expiry)
		assert.ErrorIs(t, err, domain.ErrPredictionLost)
	})
}

func TestClaimRewardSplitsProportionally(t *testing.T) {
	l := New(Config{})

	m := newMarket(t, l, 1_000_000_000)
	m, pa, err := l.PlacePrediction(m, nil, alice, domain.SideYes, 300_000_000, t0.Add(time.Hour))
	require.NoError(t, err)
	m, pb, err := l.PlacePrediction(m, nil, bob, domain.SideYes, 300_000_000, t0.Add(2*time.Hour))
	require.NoError(t, err)

	m, err = l.ResolveMarket(m, creator, domain.SideYes, expiry)
	require.NoError(t, err)

	winning := pa.TokensReceived + pb.TokensReceived

	_, rewardA, err := l.ClaimReward(m, pa, winning, expiry)
	require.NoError(t, err)
	_, rewardB, err := l.ClaimReward(m, pb, winning, expiry)
	require.NoError(t, err)

	// Issuance scales with pool depth, so Bob's identical deposit against
	// the deeper post-Alice pool minted more tokens and earns the larger
	// share. Floor rounding may leave dust behind, but the payouts can
	// never exceed the liquidity backing them.
	assert.Greater(t, rewardB, rewardA)
	assert.LessOrEqual(t, rewardA+rewardB, m.TotalLiquidity)
}

func TestWithdrawFees(t *testing.T) {
	l := New(Config{FeeBps: 100}) // 1%

	m := newMarket(t, l, 1_000_000_000)
	m, _, err := l.PlacePrediction(m, nil, alice, domain.SideYes, 10_000, t0.Add(time.Hour))
	require.NoError(t, err)

	require.Equal(t, uint64(100), m.FeeCollected)
	// The pool invariant is maintained over net (post-fee) deposits.
	requireInvariant(t, m)

	t.Run("only the creator may withdraw", func(t *testing.T) {
		_, err := l.WithdrawFees(m, alice, 50, expiry)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("cannot overdraw", func(t *testing.T) {
		_, err := l.WithdrawFees(m, creator, 101, expiry)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = l.WithdrawFees(m, creator, 0, expiry)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("withdraw decrements the balance", func(t *testing.T) {
		m2, err := l.WithdrawFees(m, creator, 60, expiry)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), m2.FeeCollected)

		m3, err := l.WithdrawFees(m2, creator, 40, expiry)
		require.NoError(t, err)
		assert.Zero(t, m3.FeeCollected)
	})
}

func TestFeeAccrualKeepsInvariantOverNetDeposits(t *testing.T) {
	l := New(Config{FeeBps: 250}) // 2.5%

	m := newMarket(t, l, 1_000_000)
	m, p, err := l.PlacePrediction(m, nil, alice, domain.SideYes, 100_000, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, uint64(2_500), m.FeeCollected)
	assert.Equal(t, uint64(100_000), p.AmountDeposited, "gross deposit is recorded on the position")
	assert.Equal(t, uint64(1_097_500), m.TotalLiquidity)
	requireInvariant(t, m)
}
