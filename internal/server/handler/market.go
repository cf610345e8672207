package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/predictiond/internal/domain"
	"github.com/alanyoungcy/predictiond/internal/engine"
	"github.com/alanyoungcy/predictiond/internal/server/middleware"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, params engine.CreateMarketParams) (domain.Market, error)
	GetMarket(ctx context.Context, marketID uint64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	CountMarkets(ctx context.Context) (int64, error)
	ResolveMarket(ctx context.Context, marketID uint64, caller string, outcome domain.Side) (domain.Market, error)
	WithdrawFees(ctx context.Context, marketID uint64, caller string, amount uint64) (domain.Market, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// createMarketRequest is the body for market creation. The creator comes from
// the authenticated caller identity, never from the body.
type createMarketRequest struct {
	MarketID         uint64    `json:"market_id"`
	Question         string    `json:"question"`
	ResolutionTime   time.Time `json:"resolution_time"`
	InitialLiquidity uint64    `json:"initial_liquidity"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerIdentity(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), engine.CreateMarketParams{
		MarketID:         req.MarketID,
		Question:         req.Question,
		Creator:          caller,
		ResolutionTime:   req.ResolutionTime,
		InitialLiquidity: req.InitialLiquidity,
	})
	if err != nil {
		if status := ledgerStatus(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: create market failed",
				slog.Uint64("market_id", req.MarketID),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to create market")
			return
		}
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination, newest first.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.markets.CountMarkets(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		if status := ledgerStatus(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get market failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to get market")
			return
		}
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// resolveMarketRequest is the body for market resolution.
type resolveMarketRequest struct {
	Outcome string `json:"outcome"`
}

// ResolveMarket fixes a market's outcome. Creator-only.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerIdentity(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	id, err := pathMarketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req resolveMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := domain.ParseSide(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, "outcome must be yes or no")
		return
	}

	market, err := h.markets.ResolveMarket(r.Context(), id, caller, outcome)
	if err != nil {
		if status := ledgerStatus(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: resolve market failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to resolve market")
			return
		}
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// withdrawFeesRequest is the body for a fee withdrawal.
type withdrawFeesRequest struct {
	Amount uint64 `json:"amount"`
}

// WithdrawFees debits the market's accrued fee balance. Creator-only.
// POST /api/markets/{id}/fees/withdraw
func (h *MarketHandler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerIdentity(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	id, err := pathMarketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req withdrawFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.WithdrawFees(r.Context(), id, caller, req.Amount)
	if err != nil {
		if status := ledgerStatus(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: withdraw fees failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to withdraw fees")
			return
		}
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}
