package domain

import "time"

// Pub/sub channels carrying ledger events, one per operation kind.
const (
	ChannelMarketCreated     = "ch:market:created"
	ChannelPredictionPlaced  = "ch:prediction:placed"
	ChannelMarketResolved    = "ch:market:resolved"
	ChannelRewardClaimed     = "ch:reward:claimed"
	ChannelFeesWithdrawn     = "ch:fees:withdrawn"

	// EventStream is the durable Redis stream journaling every event.
	EventStream = "ledger:events"
)

// MarketCreatedEvent is emitted after a market is created.
type MarketCreatedEvent struct {
	MarketID       uint64    `json:"market_id"`
	Creator        string    `json:"creator"`
	Question       string    `json:"question"`
	ResolutionTime time.Time `json:"resolution_time"`
	CreatedAt      time.Time `json:"created_at"`
}

// PredictionPlacedEvent is emitted after a bet is applied to the ledger.
type PredictionPlacedEvent struct {
	MarketID       uint64    `json:"market_id"`
	Predictor      string    `json:"predictor"`
	Side           Side      `json:"side"`
	Amount         uint64    `json:"amount"`
	TokensReceived uint64    `json:"tokens_received"`
	PlacedAt       time.Time `json:"placed_at"`
}

// MarketResolvedEvent is emitted when a market's outcome is fixed.
type MarketResolvedEvent struct {
	MarketID   uint64    `json:"market_id"`
	Outcome    Side      `json:"outcome"`
	YesPool    uint64    `json:"yes_pool"`
	NoPool     uint64    `json:"no_pool"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// RewardClaimedEvent is emitted after a winning claim locks in its payout.
// The payout transfer itself is executed by the external treasury.
type RewardClaimedEvent struct {
	MarketID  uint64    `json:"market_id"`
	Claimer   string    `json:"claimer"`
	Reward    uint64    `json:"reward"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// FeesWithdrawnEvent is emitted after a creator withdraws accrued fees.
type FeesWithdrawnEvent struct {
	MarketID    uint64    `json:"market_id"`
	Creator     string    `json:"creator"`
	Amount      uint64    `json:"amount"`
	WithdrawnAt time.Time `json:"withdrawn_at"`
}
