package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

// LedgerStore implements domain.BetWriter using PostgreSQL. A bet mutates a
// market row and a prediction row; both writes commit in one transaction so
// partial application is never observable.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// SaveBet persists a bet's market and prediction mutations atomically.
func (s *LedgerStore) SaveBet(ctx context.Context, m domain.Market, p domain.Prediction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin bet tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateMarket = `
		UPDATE markets SET
			yes_pool        = $2,
			no_pool         = $3,
			total_liquidity = $4,
			fee_collected   = $5,
			updated_at      = $6
		WHERE market_id = $1`

	tag, err := tx.Exec(ctx, updateMarket,
		int64(m.MarketID), int64(m.YesPool), int64(m.NoPool),
		int64(m.TotalLiquidity), int64(m.FeeCollected), m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: bet update market %d: %w", m.MarketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx, upsertPredictionQuery, predictionArgs(p)...); err != nil {
		return fmt.Errorf("postgres: bet upsert prediction %d/%s: %w", p.MarketID, p.Predictor, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit bet tx: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BetWriter = (*LedgerStore)(nil)
