// Package engine implements the prediction-market ledger core: constant-
// product AMM pricing, the market lifecycle state machine, and the
// authorization and payout rules. Every operation is a pure state-transition
// function over record snapshots -- the engine performs no I/O, holds no
// mutable state, and takes the current time from its caller. Atomicity and
// per-market serialization are the host's responsibility (see
// internal/service).
package engine

import (
	"time"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

// feeDenominator is the basis-point scale for the deposit fee.
const feeDenominator = 10_000

// Config holds ledger parameters.
type Config struct {
	// FeeBps is the fee skimmed from every deposit, in basis points.
	// Must be below 10_000. Zero disables fee accrual.
	FeeBps uint64
}

// Ledger evaluates ledger operations. It is stateless and safe for
// concurrent use.
type Ledger struct {
	feeBps uint64
}

// New creates a Ledger from the given config. An out-of-range fee rate is
// clamped to zero rather than silently taking the whole deposit.
func New(cfg Config) *Ledger {
	feeBps := cfg.FeeBps
	if feeBps >= feeDenominator {
		feeBps = 0
	}
	return &Ledger{feeBps: feeBps}
}

// CreateMarketParams are the caller-supplied inputs to CreateMarket.
type CreateMarketParams struct {
	MarketID         uint64
	Question         string
	Creator          string
	ResolutionTime   time.Time
	InitialLiquidity uint64
}

// CreateMarket validates the parameters and returns the initial Market
// record. The initial liquidity is split evenly between the two pools, with
// an odd remainder assigned to the YES pool so that
// YesPool + NoPool == TotalLiquidity holds from the start.
//
// Duplicate market IDs are detected by the store on insert, not here.
func (l *Ledger) CreateMarket(p CreateMarketParams, now time.Time) (domain.Market, error) {
	if len(p.Question) == 0 || len(p.Question) > domain.MaxQuestionLen {
		return domain.Market{}, domain.ErrInvalidQuestion
	}
	if !p.ResolutionTime.After(now) {
		return domain.Market{}, domain.ErrInvalidResolutionTime
	}
	if p.InitialLiquidity == 0 {
		return domain.Market{}, domain.ErrInvalidAmount
	}

	half := p.InitialLiquidity / 2
	return domain.Market{
		MarketID:       p.MarketID,
		Question:       p.Question,
		Creator:        p.Creator,
		CreatedAt:      now,
		ResolutionTime: p.ResolutionTime,
		YesPool:        p.InitialLiquidity - half,
		NoPool:         half,
		TotalLiquidity: p.InitialLiquidity,
		Resolved:       false,
		Outcome:        nil,
		FeeCollected:   0,
		UpdatedAt:      now,
	}, nil
}

// PlacePrediction applies a bet to the market and to the predictor's
// Prediction record, creating the record on a first bet (prev == nil) and
// accumulating onto it on a top-up. A predictor is locked to the side of
// their first bet; betting the opposite side fails with ErrSideMismatch.
//
// Issuance is priced against the chosen side's pool before the deposit is
// credited. The fee (if configured) is skimmed off the deposit first, so the
// pool invariant is maintained over net deposits.
func (l *Ledger) PlacePrediction(
	m domain.Market,
	prev *domain.Prediction,
	predictor string,
	side domain.Side,
	amount uint64,
	now time.Time,
) (domain.Market, domain.Prediction, error) {
	if m.Resolved {
		return domain.Market{}, domain.Prediction{}, domain.ErrMarketAlreadyResolved
	}
	if m.Expired(now) {
		return domain.Market{}, domain.Prediction{}, domain.ErrMarketExpired
	}
	if amount == 0 {
		return domain.Market{}, domain.Prediction{}, domain.ErrInvalidAmount
	}
	if !side.Valid() {
		return domain.Market{}, domain.Prediction{}, domain.ErrSideMismatch
	}
	if prev != nil && prev.Side != side {
		return domain.Market{}, domain.Prediction{}, domain.ErrSideMismatch
	}

	fee, err := mulDiv(amount, l.feeBps, feeDenominator)
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}
	net := amount - fee // fee < amount because feeBps < feeDenominator

	tokens, err := TokensOut(net, m.Pool(side))
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}
	if tokens == 0 {
		// Floor rounding ate the whole issuance; rejecting keeps every
		// accepted deposit backed by a positive position.
		return domain.Market{}, domain.Prediction{}, domain.ErrInsufficientOutput
	}

	pool, err := checkedAdd(m.Pool(side), net)
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}
	total, err := checkedAdd(m.TotalLiquidity, net)
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}
	collected, err := checkedAdd(m.FeeCollected, fee)
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}

	p := domain.Prediction{
		MarketID:  m.MarketID,
		Predictor: predictor,
		Side:      side,
		CreatedAt: now,
	}
	if prev != nil {
		p = *prev
	}
	p.AmountDeposited, err = checkedAdd(p.AmountDeposited, amount)
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}
	p.TokensReceived, err = checkedAdd(p.TokensReceived, tokens)
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}
	p.UpdatedAt = now

	m.SetPool(side, pool)
	m.TotalLiquidity = total
	m.FeeCollected = collected
	m.UpdatedAt = now

	return m, p, nil
}

// ResolveMarket fixes the market's outcome. Only the creator may resolve,
// only after the resolution time has passed, and only once; the transition
// is irreversible.
func (l *Ledger) ResolveMarket(m domain.Market, caller string, outcome domain.Side, now time.Time) (domain.Market, error) {
	if caller != m.Creator {
		return domain.Market{}, domain.ErrUnauthorized
	}
	if m.Resolved {
		return domain.Market{}, domain.ErrMarketAlreadyResolved
	}
	if !m.Expired(now) {
		return domain.Market{}, domain.ErrMarketNotExpired
	}
	if !outcome.Valid() {
		return domain.Market{}, domain.ErrSideMismatch
	}

	m.Resolved = true
	out := outcome
	m.Outcome = &out
	m.UpdatedAt = now
	return m, nil
}

// ClaimReward locks in a winning predictor's payout exactly once and returns
// the updated Prediction together with the payout amount. winningTokens is
// the sum of TokensReceived across all predictions on the winning side.
// Transferring the payout is the external treasury's job; the engine's
// responsibility ends at computing the authoritative figure.
func (l *Ledger) ClaimReward(m domain.Market, p domain.Prediction, winningTokens uint64, now time.Time) (domain.Prediction, uint64, error) {
	if !m.Resolved || m.Outcome == nil {
		return domain.Prediction{}, 0, domain.ErrMarketNotResolved
	}
	if p.Claimed {
		return domain.Prediction{}, 0, domain.ErrAlreadyClaimed
	}
	if p.Side != *m.Outcome {
		return domain.Prediction{}, 0, domain.ErrPredictionLost
	}

	reward, err := RewardShare(p.TokensReceived, winningTokens, m.TotalLiquidity)
	if err != nil {
		return domain.Prediction{}, 0, err
	}

	p.Claimed = true
	p.Payout = reward
	p.UpdatedAt = now
	return p, reward, nil
}

// WithdrawFees decrements the market's accrued fee balance. Only the creator
// may withdraw, and never more than what has been collected.
func (l *Ledger) WithdrawFees(m domain.Market, caller string, amount uint64, now time.Time) (domain.Market, error) {
	if caller != m.Creator {
		return domain.Market{}, domain.ErrUnauthorized
	}
	if amount == 0 || amount > m.FeeCollected {
		return domain.Market{}, domain.ErrInvalidAmount
	}

	collected, err := checkedSub(m.FeeCollected, amount)
	if err != nil {
		return domain.Market{}, err
	}
	m.FeeCollected = collected
	m.UpdatedAt = now
	return m, nil
}
