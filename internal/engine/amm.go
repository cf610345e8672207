package engine

import "github.com/alanyoungcy/predictiond/internal/domain"

// TokensOut prices position issuance with the constant-product formula:
//
//	tokensOut = floor(deposit * pool / (pool + deposit))
//
// The result is strictly less than both operands for a non-empty pool, so
// issuance can never exceed the counter-liquidity backing it. The bound is
// still enforced explicitly rather than assumed from the formula.
//
// A zero pool only occurs on the first deposit into an empty pool; in that
// degenerate case issuance equals the deposit.
func TokensOut(deposit, pool uint64) (uint64, error) {
	if deposit == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if pool == 0 {
		return deposit, nil
	}

	denom, err := checkedAdd(pool, deposit)
	if err != nil {
		return 0, err
	}
	out, err := mulDiv(deposit, pool, denom)
	if err != nil {
		return 0, err
	}
	if out > pool {
		return 0, domain.ErrArithmetic
	}
	return out, nil
}

// RewardShare computes a winning predictor's payout:
//
//	reward = floor(tokens * totalLiquidity / winningTokens)
//
// where winningTokens is the sum of TokensReceived across every prediction on
// the winning side. When winningTokens is zero nobody bet on the winning side
// and no payout is possible; the market retains its liquidity.
func RewardShare(tokens, winningTokens, totalLiquidity uint64) (uint64, error) {
	if winningTokens == 0 {
		return 0, nil
	}
	if tokens > winningTokens {
		// tokens is a summand of winningTokens; anything else means the
		// caller passed inconsistent state.
		return 0, domain.ErrArithmetic
	}
	return mulDiv(tokens, totalLiquidity, winningTokens)
}
