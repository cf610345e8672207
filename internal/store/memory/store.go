// Package memory implements the domain store interfaces with in-process
// maps. It backs the standalone mode and the service-layer tests; the
// production path uses internal/store/postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

type predictionKey struct {
	marketID  uint64
	predictor string
}

// DB is the shared backing state for the per-entity memory stores. A single
// mutex guards every map, which makes multi-record writes trivially atomic.
type DB struct {
	mu          sync.RWMutex
	markets     map[uint64]domain.Market
	predictions map[predictionKey]domain.Prediction
	audit       []domain.AuditEntry
}

// New creates an empty DB.
func New() *DB {
	return &DB{
		markets:     make(map[uint64]domain.Market),
		predictions: make(map[predictionKey]domain.Prediction),
	}
}

// Markets returns the MarketStore view of the DB.
func (db *DB) Markets() *MarketStore { return &MarketStore{db: db} }

// Predictions returns the PredictionStore view of the DB.
func (db *DB) Predictions() *PredictionStore { return &PredictionStore{db: db} }

// Ledger returns the BetWriter view of the DB.
func (db *DB) Ledger() *LedgerStore { return &LedgerStore{db: db} }

// Audit returns the AuditStore view of the DB.
func (db *DB) Audit() *AuditStore { return &AuditStore{db: db} }

// MarketStore implements domain.MarketStore over a DB.
type MarketStore struct {
	db *DB
}

// Create inserts a new market; ErrAlreadyExists when the ID is taken.
func (s *MarketStore) Create(_ context.Context, m domain.Market) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.markets[m.MarketID]; ok {
		return domain.ErrAlreadyExists
	}
	s.db.markets[m.MarketID] = m
	return nil
}

// Update overwrites an existing market record.
func (s *MarketStore) Update(_ context.Context, m domain.Market) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.markets[m.MarketID]; !ok {
		return domain.ErrNotFound
	}
	s.db.markets[m.MarketID] = m
	return nil
}

// Get retrieves a market by ID.
func (s *MarketStore) Get(_ context.Context, marketID uint64) (domain.Market, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	m, ok := s.db.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

// List returns markets ordered by creation time descending.
func (s *MarketStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	markets := make([]domain.Market, 0, len(s.db.markets))
	for _, m := range s.db.markets {
		if opts.Since != nil && m.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && m.CreatedAt.After(*opts.Until) {
			continue
		}
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt.After(markets[j].CreatedAt)
	})

	return paginate(markets, opts), nil
}

// ListResolvedBefore returns resolved markets whose resolution time is
// before the cutoff.
func (s *MarketStore) ListResolvedBefore(_ context.Context, before time.Time) ([]domain.Market, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var markets []domain.Market
	for _, m := range s.db.markets {
		if m.Resolved && m.ResolutionTime.Before(before) {
			markets = append(markets, m)
		}
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].MarketID < markets[j].MarketID
	})
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(_ context.Context) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return int64(len(s.db.markets)), nil
}

// PredictionStore implements domain.PredictionStore over a DB.
type PredictionStore struct {
	db *DB
}

// Get retrieves the prediction for a (market, predictor) pair.
func (s *PredictionStore) Get(_ context.Context, marketID uint64, predictor string) (domain.Prediction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	p, ok := s.db.predictions[predictionKey{marketID, predictor}]
	if !ok {
		return domain.Prediction{}, domain.ErrNotFound
	}
	return p, nil
}

// Upsert inserts or overwrites a prediction record.
func (s *PredictionStore) Upsert(_ context.Context, p domain.Prediction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.predictions[predictionKey{p.MarketID, p.Predictor}] = p
	return nil
}

// ListByMarket returns all predictions on a market.
func (s *PredictionStore) ListByMarket(_ context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var preds []domain.Prediction
	for k, p := range s.db.predictions {
		if k.marketID == marketID {
			preds = append(preds, p)
		}
	}
	sort.Slice(preds, func(i, j int) bool {
		return preds[i].Predictor < preds[j].Predictor
	})
	return paginate(preds, opts), nil
}

// ListByPredictor returns all of one predictor's positions.
func (s *PredictionStore) ListByPredictor(_ context.Context, predictor string, opts domain.ListOpts) ([]domain.Prediction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var preds []domain.Prediction
	for k, p := range s.db.predictions {
		if k.predictor == predictor {
			preds = append(preds, p)
		}
	}
	sort.Slice(preds, func(i, j int) bool {
		return preds[i].MarketID < preds[j].MarketID
	})
	return paginate(preds, opts), nil
}

// SumTokens totals TokensReceived across one side of a market.
func (s *PredictionStore) SumTokens(_ context.Context, marketID uint64, side domain.Side) (uint64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var sum uint64
	for k, p := range s.db.predictions {
		if k.marketID == marketID && p.Side == side {
			sum += p.TokensReceived
		}
	}
	return sum, nil
}

// MarkClaimed flips the claimed flag, conditional on it still being false.
func (s *PredictionStore) MarkClaimed(_ context.Context, marketID uint64, predictor string, payout uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := predictionKey{marketID, predictor}
	p, ok := s.db.predictions[key]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Claimed {
		return domain.ErrAlreadyClaimed
	}
	p.Claimed = true
	p.Payout = payout
	p.UpdatedAt = time.Now().UTC()
	s.db.predictions[key] = p
	return nil
}

// LedgerStore implements domain.BetWriter over a DB.
type LedgerStore struct {
	db *DB
}

// SaveBet persists a bet's market and prediction mutations atomically.
func (s *LedgerStore) SaveBet(_ context.Context, m domain.Market, p domain.Prediction) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.markets[m.MarketID]; !ok {
		return domain.ErrNotFound
	}
	s.db.markets[m.MarketID] = m
	s.db.predictions[predictionKey{p.MarketID, p.Predictor}] = p
	return nil
}

// AuditStore implements domain.AuditStore over a DB.
type AuditStore struct {
	db *DB
}

// Log appends an audit entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.audit = append(s.db.audit, domain.AuditEntry{
		ID:        int64(len(s.db.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns audit entries, newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	entries := make([]domain.AuditEntry, len(s.db.audit))
	copy(entries, s.db.audit)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID > entries[j].ID
	})
	return paginate(entries, opts), nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface checks.
var (
	_ domain.MarketStore     = (*MarketStore)(nil)
	_ domain.PredictionStore = (*PredictionStore)(nil)
	_ domain.BetWriter       = (*LedgerStore)(nil)
	_ domain.AuditStore      = (*AuditStore)(nil)
)
