package domain

import "time"

// Prediction is a single predictor's cumulative position on one market.
// There is at most one Prediction per (market, predictor) pair; a predictor
// is locked to the side chosen on their first bet.
type Prediction struct {
	MarketID        uint64    `json:"market_id"`
	Predictor       string    `json:"predictor"`
	Side            Side      `json:"side"`
	AmountDeposited uint64    `json:"amount_deposited"`
	TokensReceived  uint64    `json:"tokens_received"`
	Claimed         bool      `json:"claimed"`
	Payout          uint64    `json:"payout"` // amount locked in at claim time, 0 until claimed
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
