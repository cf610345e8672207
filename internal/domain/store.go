package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists Market records keyed by market ID.
type MarketStore interface {
	// Create inserts a new market and returns ErrAlreadyExists when the
	// market ID is already taken.
	Create(ctx context.Context, m Market) error
	Update(ctx context.Context, m Market) error
	Get(ctx context.Context, marketID uint64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	ListResolvedBefore(ctx context.Context, before time.Time) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// PredictionStore persists Prediction records keyed by (market, predictor).
type PredictionStore interface {
	Get(ctx context.Context, marketID uint64, predictor string) (Prediction, error)
	Upsert(ctx context.Context, p Prediction) error
	ListByMarket(ctx context.Context, marketID uint64, opts ListOpts) ([]Prediction, error)
	ListByPredictor(ctx context.Context, predictor string, opts ListOpts) ([]Prediction, error)
	// SumTokens returns the total TokensReceived across all predictions on
	// the given side of a market.
	SumTokens(ctx context.Context, marketID uint64, side Side) (uint64, error)
	// MarkClaimed flips the claimed flag and records the payout. The write
	// is conditional on claimed still being false; ErrAlreadyClaimed is
	// returned otherwise.
	MarkClaimed(ctx context.Context, marketID uint64, predictor string, payout uint64) error
}

// BetWriter persists the two record mutations of a bet as one atomic write.
// Partial application (pool updated but prediction not, or vice versa) must
// never be observable.
type BetWriter interface {
	SaveBet(ctx context.Context, m Market, p Prediction) error
}

// MarketCache is a read-through cache for Market records.
type MarketCache interface {
	Get(ctx context.Context, marketID uint64) (Market, error)
	Set(ctx context.Context, m Market) error
	Invalidate(ctx context.Context, marketID uint64) error
}

// LockManager provides per-key mutual exclusion across processes. The
// service layer acquires a market's lock before every ledger mutation so
// operations on the same market are serialized.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter enforces per-key request limits; the HTTP middleware keys it
// by client IP.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// StreamMessage is a single entry read from a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus publishes ledger events to interested subscribers and appends
// them to a durable journal stream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
