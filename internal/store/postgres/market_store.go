package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `market_id, question, creator, created_at, resolution_time,
	yes_pool, no_pool, total_liquidity, resolved, outcome,
	fee_collected, updated_at`

// Create inserts a new market row. A primary-key conflict is surfaced as
// domain.ErrAlreadyExists.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			market_id, question, creator, created_at, resolution_time,
			yes_pool, no_pool, total_liquidity, resolved, outcome,
			fee_collected, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12
		)`

	_, err := s.pool.Exec(ctx, query,
		int64(m.MarketID), m.Question, m.Creator, m.CreatedAt, m.ResolutionTime,
		int64(m.YesPool), int64(m.NoPool), int64(m.TotalLiquidity),
		m.Resolved, outcomeParam(m.Outcome),
		int64(m.FeeCollected), m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create market %d: %w", m.MarketID, err)
	}
	return nil
}

// Update overwrites an existing market row.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			question        = $2,
			creator         = $3,
			resolution_time = $4,
			yes_pool        = $5,
			no_pool         = $6,
			total_liquidity = $7,
			resolved        = $8,
			outcome         = $9,
			fee_collected   = $10,
			updated_at      = $11
		WHERE market_id = $1`

	tag, err := s.pool.Exec(ctx, query,
		int64(m.MarketID), m.Question, m.Creator, m.ResolutionTime,
		int64(m.YesPool), int64(m.NoPool), int64(m.TotalLiquidity),
		m.Resolved, outcomeParam(m.Outcome),
		int64(m.FeeCollected), m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %d: %w", m.MarketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves a market by its primary key.
func (s *MarketStore) Get(ctx context.Context, marketID uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE market_id = $1`, int64(marketID))
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", marketID, err)
	}
	return m, nil
}

// List returns markets ordered by creation time descending, with pagination
// and optional time filtering.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	markets, err := collectMarkets(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	return markets, nil
}

// ListResolvedBefore returns resolved markets whose resolution time is before
// the cutoff, ordered by market ID.
func (s *MarketStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE resolved = TRUE AND resolution_time < $1
		 ORDER BY market_id`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	defer rows.Close()

	markets, err := collectMarkets(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// outcomeParam converts the nullable outcome for binding.
func outcomeParam(outcome *domain.Side) *string {
	if outcome == nil {
		return nil
	}
	s := string(*outcome)
	return &s
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                             domain.Market
		marketID, yes, no, total, fee int64
		outcome                       *string
	)
	err := row.Scan(
		&marketID, &m.Question, &m.Creator, &m.CreatedAt, &m.ResolutionTime,
		&yes, &no, &total, &m.Resolved, &outcome,
		&fee, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.MarketID = uint64(marketID)
	m.YesPool = uint64(yes)
	m.NoPool = uint64(no)
	m.TotalLiquidity = uint64(total)
	m.FeeCollected = uint64(fee)
	if outcome != nil {
		side := domain.Side(*outcome)
		m.Outcome = &side
	}
	return m, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return markets, nil
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
