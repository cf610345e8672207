package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a new PredictionStore backed by the given
// connection pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

const predictionCols = `market_id, predictor, side, amount_deposited,
	tokens_received, claimed, payout, created_at, updated_at`

const upsertPredictionQuery = `
	INSERT INTO predictions (
		market_id, predictor, side, amount_deposited,
		tokens_received, claimed, payout, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8, $9
	)
	ON CONFLICT (market_id, predictor) DO UPDATE SET
		side             = EXCLUDED.side,
		amount_deposited = EXCLUDED.amount_deposited,
		tokens_received  = EXCLUDED.tokens_received,
		claimed          = EXCLUDED.claimed,
		payout           = EXCLUDED.payout,
		updated_at       = EXCLUDED.updated_at`

// Get retrieves the prediction for a (market, predictor) pair.
func (s *PredictionStore) Get(ctx context.Context, marketID uint64, predictor string) (domain.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+predictionCols+` FROM predictions
		 WHERE market_id = $1 AND predictor = $2`, int64(marketID), predictor)
	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prediction{}, domain.ErrNotFound
		}
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction %d/%s: %w", marketID, predictor, err)
	}
	return p, nil
}

// Upsert inserts or overwrites a prediction row.
func (s *PredictionStore) Upsert(ctx context.Context, p domain.Prediction) error {
	_, err := s.pool.Exec(ctx, upsertPredictionQuery, predictionArgs(p)...)
	if err != nil {
		return fmt.Errorf("postgres: upsert prediction %d/%s: %w", p.MarketID, p.Predictor, err)
	}
	return nil
}

// ListByMarket returns all predictions on a market ordered by predictor.
func (s *PredictionStore) ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionCols + ` FROM predictions
		WHERE market_id = $1 ORDER BY predictor`
	args := []any{int64(marketID)}
	query, args = applyPaging(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list predictions for market %d: %w", marketID, err)
	}
	defer rows.Close()

	preds, err := collectPredictions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list predictions for market %d: %w", marketID, err)
	}
	return preds, nil
}

// ListByPredictor returns all of one predictor's positions ordered by market.
func (s *PredictionStore) ListByPredictor(ctx context.Context, predictor string, opts domain.ListOpts) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionCols + ` FROM predictions
		WHERE predictor = $1 ORDER BY market_id`
	args := []any{predictor}
	query, args = applyPaging(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for %s: %w", predictor, err)
	}
	defer rows.Close()

	preds, err := collectPredictions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for %s: %w", predictor, err)
	}
	return preds, nil
}

// SumTokens totals tokens_received across one side of a market.
func (s *PredictionStore) SumTokens(ctx context.Context, marketID uint64, side domain.Side) (uint64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(tokens_received), 0) FROM predictions
		 WHERE market_id = $1 AND side = $2`, int64(marketID), string(side)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum tokens for market %d: %w", marketID, err)
	}
	return uint64(sum), nil
}

// MarkClaimed flips the claimed flag and records the payout. The write is
// conditional on claimed still being false, so a concurrent or repeated claim
// observes domain.ErrAlreadyClaimed.
func (s *PredictionStore) MarkClaimed(ctx context.Context, marketID uint64, predictor string, payout uint64) error {
	const query = `
		UPDATE predictions SET
			claimed    = TRUE,
			payout     = $3,
			updated_at = NOW()
		WHERE market_id = $1 AND predictor = $2 AND claimed = FALSE`

	tag, err := s.pool.Exec(ctx, query, int64(marketID), predictor, int64(payout))
	if err != nil {
		return fmt.Errorf("postgres: mark claimed %d/%s: %w", marketID, predictor, err)
	}
	if tag.RowsAffected() == 0 {
		// Row missing or already claimed; distinguish the two.
		var claimed bool
		err := s.pool.QueryRow(ctx,
			`SELECT claimed FROM predictions WHERE market_id = $1 AND predictor = $2`,
			int64(marketID), predictor).Scan(&claimed)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: mark claimed %d/%s: %w", marketID, predictor, err)
		}
		return domain.ErrAlreadyClaimed
	}
	return nil
}

func predictionArgs(p domain.Prediction) []any {
	return []any{
		int64(p.MarketID), p.Predictor, string(p.Side), int64(p.AmountDeposited),
		int64(p.TokensReceived), p.Claimed, int64(p.Payout), p.CreatedAt, p.UpdatedAt,
	}
}

// scanPrediction scans a single prediction row into a domain.Prediction.
func scanPrediction(row pgx.Row) (domain.Prediction, error) {
	var (
		p                              domain.Prediction
		marketID, amount, tokens, paid int64
		side                           string
	)
	err := row.Scan(
		&marketID, &p.Predictor, &side, &amount,
		&tokens, &p.Claimed, &paid, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Prediction{}, err
	}
	p.MarketID = uint64(marketID)
	p.Side = domain.Side(side)
	p.AmountDeposited = uint64(amount)
	p.TokensReceived = uint64(tokens)
	p.Payout = uint64(paid)
	return p, nil
}

func collectPredictions(rows pgx.Rows) ([]domain.Prediction, error) {
	var preds []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		preds = append(preds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return preds, nil
}

// applyPaging appends LIMIT/OFFSET clauses for positive opts values.
func applyPaging(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

// Compile-time interface check.
var _ domain.PredictionStore = (*PredictionStore)(nil)
