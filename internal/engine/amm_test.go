package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

func TestTokensOut(t *testing.T) {
	tests := []struct {
		name    string
		deposit uint64
		pool    uint64
		want    uint64
		wantErr error
	}{
		{
			name:    "reference scenario",
			deposit: 500_000_000,
			pool:    500_000_000,
			want:    250_000_000,
		},
		{
			name:    "small deposit into deep pool",
			deposit: 1_000,
			pool:    1_000_000_000,
			want:    999, // floor(1000 * 1e9 / (1e9 + 1000))
		},
		{
			name:    "first deposit into empty pool",
			deposit: 42,
			pool:    0,
			want:    42,
		},
		{
			name:    "deposit of one rounds to zero",
			deposit: 1,
			pool:    1_000_000_000,
			want:    0,
		},
		{
			name:    "zero deposit",
			deposit: 0,
			pool:    100,
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "denominator overflow",
			deposit: math.MaxUint64,
			pool:    math.MaxUint64,
			wantErr: domain.ErrArithmetic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TokensOut(tt.deposit, tt.pool)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokensOutNeverExceedsPool(t *testing.T) {
	deposits := []uint64{1, 2, 999, 1_000_000, math.MaxUint64 / 2}
	pools := []uint64{1, 2, 1_000, 500_000_000, math.MaxUint64 / 2}

	for _, d := range deposits {
		for _, p := range pools {
			out, err := TokensOut(d, p)
			require.NoError(t, err)
			assert.LessOrEqual(t, out, p, "deposit=%d pool=%d", d, p)
			assert.Less(t, out, d+1, "issuance must not exceed the deposit either")
		}
	}
}

func TestTokensOutMonotonicInDeposit(t *testing.T) {
	const pool = 500_000_000

	var prev uint64
	for _, d := range []uint64{10, 100, 1_000, 1_000_000, 500_000_000, 5_000_000_000} {
		out, err := TokensOut(d, pool)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out, prev, "deposit=%d", d)
		prev = out
	}
}

func TestRewardShare(t *testing.T) {
	tests := []struct {
		name           string
		tokens         uint64
		winningTokens  uint64
		totalLiquidity uint64
		want           uint64
		wantErr        error
	}{
		{
			name:           "sole winner takes the full liquidity",
			tokens:         250_000_000,
			winningTokens:  250_000_000,
			totalLiquidity: 1_500_000_000,
			want:           1_500_000_000,
		},
		{
			name:           "half of the winning tokens",
			tokens:         100,
			winningTokens:  200,
			totalLiquidity: 1_000,
			want:           500,
		},
		{
			name:           "floor rounding",
			tokens:         1,
			winningTokens:  3,
			totalLiquidity: 100,
			want:           33,
		},
		{
			name:           "nobody on the winning side",
			tokens:         0,
			winningTokens:  0,
			totalLiquidity: 1_000,
			want:           0,
		},
		{
			name:           "tokens exceeding the winning total is inconsistent state",
			tokens:         201,
			winningTokens:  200,
			totalLiquidity: 1_000,
			wantErr:        domain.ErrArithmetic,
		},
		{
			name: "wide intermediate product",
			// tokens * totalLiquidity overflows 64 bits but the quotient fits.
			tokens:         1 << 40,
			winningTokens:  1 << 41,
			totalLiquidity: 1 << 50,
			want:           1 << 49,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RewardShare(tt.tokens, tt.winningTokens, tt.totalLiquidity)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMulDiv(t *testing.T) {
	got, err := mulDiv(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)

	_, err = mulDiv(math.MaxUint64, 2, 1)
	assert.ErrorIs(t, err, domain.ErrArithmetic, "quotient wider than 64 bits")

	_, err = mulDiv(1, 1, 0)
	assert.ErrorIs(t, err, domain.ErrArithmetic, "division by zero")
}
