// Package service orchestrates ledger operations: it provides the per-market
// mutual exclusion, record loading, atomic persistence, cache maintenance,
// event publishing, and audit logging around the pure transitions in
// internal/engine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/predictiond/internal/domain"
	"github.com/alanyoungcy/predictiond/internal/engine"
)

// lockTTL bounds how long a crashed process can keep a market locked.
const lockTTL = 10 * time.Second

// Deps bundles the dependencies of a MarketService. Cache, Bus, and Audit
// are optional; a nil value disables the corresponding side effect.
type Deps struct {
	Ledger      *engine.Ledger
	Markets     domain.MarketStore
	Predictions domain.PredictionStore
	Bets        domain.BetWriter
	Locks       domain.LockManager
	Cache       domain.MarketCache
	Bus         domain.SignalBus
	Audit       domain.AuditStore
	Logger      *slog.Logger

	// Now supplies the trusted current time; defaults to time.Now.
	Now func() time.Time
}

// MarketService exposes every ledger operation plus the read paths. All
// mutations on one market are serialized through the lock manager, so each
// operation observes and produces consistent record state.
type MarketService struct {
	ledger      *engine.Ledger
	markets     domain.MarketStore
	predictions domain.PredictionStore
	bets        domain.BetWriter
	locks       domain.LockManager
	cache       domain.MarketCache
	bus         domain.SignalBus
	audit       domain.AuditStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewMarketService creates a MarketService from its dependencies.
func NewMarketService(d Deps) *MarketService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &MarketService{
		ledger:      d.Ledger,
		markets:     d.Markets,
		predictions: d.Predictions,
		bets:        d.Bets,
		locks:       d.Locks,
		cache:       d.Cache,
		bus:         d.Bus,
		audit:       d.Audit,
		logger:      d.Logger,
		now:         now,
	}
}

func marketLockKey(marketID uint64) string {
	return fmt.Sprintf("market:%d", marketID)
}

// CreateMarket validates and persists a new market. Market ID uniqueness is
// enforced by the store insert, surfaced as ErrDuplicateMarket.
func (s *MarketService) CreateMarket(ctx context.Context, params engine.CreateMarketParams) (domain.Market, error) {
	m, err := s.ledger.CreateMarket(params, s.now().UTC())
	if err != nil {
		return domain.Market{}, err
	}

	if err := s.markets.Create(ctx, m); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.Market{}, domain.ErrDuplicateMarket
		}
		return domain.Market{}, fmt.Errorf("market_service: create market %d: %w", m.MarketID, err)
	}

	s.cacheSet(ctx, m)
	s.publish(ctx, domain.ChannelMarketCreated, domain.MarketCreatedEvent{
		MarketID:       m.MarketID,
		Creator:        m.Creator,
		Question:       m.Question,
		ResolutionTime: m.ResolutionTime,
		CreatedAt:      m.CreatedAt,
	})
	s.auditLog(ctx, "market_created", map[string]any{
		"market_id": m.MarketID,
		"creator":   m.Creator,
	})

	s.logger.InfoContext(ctx, "market_service: market created",
		slog.Uint64("market_id", m.MarketID),
		slog.String("creator", m.Creator),
		slog.Uint64("initial_liquidity", m.TotalLiquidity),
	)
	return m, nil
}

// PlacePrediction applies a bet. The market's lock is held across the load,
// the engine transition, and the atomic write, so concurrent bets on one
// market serialize and partial application is never observable.
func (s *MarketService) PlacePrediction(ctx context.Context, marketID uint64, predictor string, side domain.Side, amount uint64) (domain.Market, domain.Prediction, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return domain.Market{}, domain.Prediction{}, fmt.Errorf("market_service: lock market %d: %w", marketID, err)
	}
	defer unlock()

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}

	var prev *domain.Prediction
	if existing, err := s.predictions.Get(ctx, marketID, predictor); err == nil {
		prev = &existing
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Market{}, domain.Prediction{}, fmt.Errorf("market_service: get prediction: %w", err)
	}

	updated, pred, err := s.ledger.PlacePrediction(m, prev, predictor, side, amount, s.now().UTC())
	if err != nil {
		return domain.Market{}, domain.Prediction{}, err
	}

	if err := s.bets.SaveBet(ctx, updated, pred); err != nil {
		return domain.Market{}, domain.Prediction{}, fmt.Errorf("market_service: save bet: %w", err)
	}

	s.cacheSet(ctx, updated)
	s.publish(ctx, domain.ChannelPredictionPlaced, domain.PredictionPlacedEvent{
		MarketID:       marketID,
		Predictor:      predictor,
		Side:           side,
		Amount:         amount,
		TokensReceived: pred.TokensReceived,
		PlacedAt:       pred.UpdatedAt,
	})
	s.auditLog(ctx, "prediction_placed", map[string]any{
		"market_id": marketID,
		"predictor": predictor,
		"side":      string(side),
		"amount":    amount,
	})

	return updated, pred, nil
}

// ResolveMarket fixes a market's outcome, creator-only and irreversible.
func (s *MarketService) ResolveMarket(ctx context.Context, marketID uint64, caller string, outcome domain.Side) (domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: lock market %d: %w", marketID, err)
	}
	defer unlock()

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}

	updated, err := s.ledger.ResolveMarket(m, caller, outcome, s.now().UTC())
	if err != nil {
		return domain.Market{}, err
	}

	if err := s.markets.Update(ctx, updated); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: update market %d: %w", marketID, err)
	}

	s.cacheSet(ctx, updated)
	s.publish(ctx, domain.ChannelMarketResolved, domain.MarketResolvedEvent{
		MarketID:   marketID,
		Outcome:    outcome,
		YesPool:    updated.YesPool,
		NoPool:     updated.NoPool,
		ResolvedAt: updated.UpdatedAt,
	})
	s.auditLog(ctx, "market_resolved", map[string]any{
		"market_id": marketID,
		"outcome":   string(outcome),
	})

	s.logger.InfoContext(ctx, "market_service: market resolved",
		slog.Uint64("market_id", marketID),
		slog.String("outcome", string(outcome)),
	)
	return updated, nil
}

// ClaimReward locks in a winner's payout exactly once and returns the
// authoritative amount for the external treasury to transfer. The store
// re-enforces claim exclusivity with a conditional write under the same
// market lock.
func (s *MarketService) ClaimReward(ctx context.Context, marketID uint64, predictor string) (domain.Prediction, uint64, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return domain.Prediction{}, 0, fmt.Errorf("market_service: lock market %d: %w", marketID, err)
	}
	defer unlock()

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return domain.Prediction{}, 0, err
	}

	p, err := s.predictions.Get(ctx, marketID, predictor)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Prediction{}, 0, domain.ErrNoPrediction
		}
		return domain.Prediction{}, 0, fmt.Errorf("market_service: get prediction: %w", err)
	}

	var winningTokens uint64
	if m.Resolved && m.Outcome != nil {
		winningTokens, err = s.predictions.SumTokens(ctx, marketID, *m.Outcome)
		if err != nil {
			return domain.Prediction{}, 0, fmt.Errorf("market_service: sum winning tokens: %w", err)
		}
	}

	claimed, reward, err := s.ledger.ClaimReward(m, p, winningTokens, s.now().UTC())
	if err != nil {
		return domain.Prediction{}, 0, err
	}

	if err := s.predictions.MarkClaimed(ctx, marketID, predictor, reward); err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			return domain.Prediction{}, 0, domain.ErrAlreadyClaimed
		}
		return domain.Prediction{}, 0, fmt.Errorf("market_service: mark claimed: %w", err)
	}

	s.publish(ctx, domain.ChannelRewardClaimed, domain.RewardClaimedEvent{
		MarketID:  marketID,
		Claimer:   predictor,
		Reward:    reward,
		ClaimedAt: claimed.UpdatedAt,
	})
	s.auditLog(ctx, "reward_claimed", map[string]any{
		"market_id": marketID,
		"claimer":   predictor,
		"reward":    reward,
	})

	s.logger.InfoContext(ctx, "market_service: reward claimed",
		slog.Uint64("market_id", marketID),
		slog.String("claimer", predictor),
		slog.Uint64("reward", reward),
	)
	return claimed, reward, nil
}

// WithdrawFees decrements the market's accrued fee balance, creator-only.
// The withdrawn amount is reported to the external treasury via the event.
func (s *MarketService) WithdrawFees(ctx context.Context, marketID uint64, caller string, amount uint64) (domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: lock market %d: %w", marketID, err)
	}
	defer unlock()

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}

	updated, err := s.ledger.WithdrawFees(m, caller, amount, s.now().UTC())
	if err != nil {
		return domain.Market{}, err
	}

	if err := s.markets.Update(ctx, updated); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: update market %d: %w", marketID, err)
	}

	s.cacheSet(ctx, updated)
	s.publish(ctx, domain.ChannelFeesWithdrawn, domain.FeesWithdrawnEvent{
		MarketID:    marketID,
		Creator:     caller,
		Amount:      amount,
		WithdrawnAt: updated.UpdatedAt,
	})
	s.auditLog(ctx, "fees_withdrawn", map[string]any{
		"market_id": marketID,
		"creator":   caller,
		"amount":    amount,
	})

	return updated, nil
}

// GetMarket retrieves a market, checking the cache first and falling back to
// the store on a miss.
func (s *MarketService) GetMarket(ctx context.Context, marketID uint64) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, marketID); err == nil {
			return m, nil
		}
	}

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	s.cacheSet(ctx, m)
	return m, nil
}

// ListMarkets returns markets directly from the store.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list markets: %w", err)
	}
	return markets, nil
}

// CountMarkets returns the total number of markets.
func (s *MarketService) CountMarkets(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count markets: %w", err)
	}
	return count, nil
}

// GetPrediction returns one predictor's position on a market.
func (s *MarketService) GetPrediction(ctx context.Context, marketID uint64, predictor string) (domain.Prediction, error) {
	p, err := s.predictions.Get(ctx, marketID, predictor)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Prediction{}, domain.ErrNoPrediction
		}
		return domain.Prediction{}, fmt.Errorf("market_service: get prediction: %w", err)
	}
	return p, nil
}

// ListMarketPredictions returns all positions on a market.
func (s *MarketService) ListMarketPredictions(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error) {
	preds, err := s.predictions.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list predictions for market %d: %w", marketID, err)
	}
	return preds, nil
}

// ListPredictorPositions returns all of one predictor's positions.
func (s *MarketService) ListPredictorPositions(ctx context.Context, predictor string, opts domain.ListOpts) ([]domain.Prediction, error) {
	preds, err := s.predictions.ListByPredictor(ctx, predictor, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list positions for %s: %w", predictor, err)
	}
	return preds, nil
}

// loadMarket reads a market from the store, mapping the store's not-found
// error onto the ledger error set.
func (s *MarketService) loadMarket(ctx context.Context, marketID uint64) (domain.Market, error) {
	m, err := s.markets.Get(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, domain.ErrMarketNotFound
		}
		return domain.Market{}, fmt.Errorf("market_service: get market %d: %w", marketID, err)
	}
	return m, nil
}

// cacheSet back-fills the cache; cache failures are logged, never fatal.
func (s *MarketService) cacheSet(ctx context.Context, m domain.Market) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.Uint64("market_id", m.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// publish fans an event out on its pub/sub channel and appends it to the
// durable journal stream. Publish failures are logged, never fatal: the
// ledger write has already committed.
func (s *MarketService) publish(ctx context.Context, channel string, event any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WarnContext(ctx, "market_service: marshal event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.EventStream, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: journal append failed",
			slog.String("error", err.Error()),
		)
	}
}

// auditLog records the operation in the audit store; failures are logged,
// never fatal.
func (s *MarketService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
