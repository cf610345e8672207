package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/predictiond/internal/domain"
	"github.com/alanyoungcy/predictiond/internal/server/middleware"
)

// PredictionService defines the methods that the prediction handler requires
// from the service layer.
type PredictionService interface {
	PlacePrediction(ctx context.Context, marketID uint64, predictor string, side domain.Side, amount uint64) (domain.Market, domain.Prediction, error)
	ClaimReward(ctx context.Context, marketID uint64, predictor string) (domain.Prediction, uint64, error)
	GetPrediction(ctx context.Context, marketID uint64, predictor string) (domain.Prediction, error)
	ListMarketPredictions(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error)
	ListPredictorPositions(ctx context.Context, predictor string, opts domain.ListOpts) ([]domain.Prediction, error)
}

// PredictionHandler serves prediction-related HTTP endpoints.
type PredictionHandler struct {
	predictions PredictionService
	logger      *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler with the given service and
// logger.
func NewPredictionHandler(predictions PredictionService, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictions: predictions,
		logger:      logger,
	}
}

// placePredictionRequest is the body for placing a bet. The predictor comes
// from the authenticated caller identity.
type placePredictionRequest struct {
	Side   string `json:"side"`
	Amount uint64 `json:"amount"`
}

// placePredictionResponse returns both updated records so the client sees its
// position and the new pool state in one round trip.
type placePredictionResponse struct {
	Market     domain.Market     `json:"market"`
	Prediction domain.Prediction `json:"prediction"`
}

// PlacePrediction applies a bet on one side of a market.
// POST /api/markets/{id}/predictions
func (h *PredictionHandler) PlacePrediction(w http.ResponseWriter, r *http.Request) {
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

	var req placePredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "side must be yes or no")
		return
	}

	market, pred, err := h.predictions.PlacePrediction(r.Context(), id, caller, side, req.Amount)
	if err != nil {
		if status := ledgerStatus(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: place prediction failed",
				slog.Uint64("market_id", id),
				slog.String("predictor", caller),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to place prediction")
			return
		}
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placePredictionResponse{
		Market:     market,
		Prediction: pred,
	})
}

// claimRewardResponse reports the locked-in payout.
type claimRewardResponse struct {
	Prediction domain.Prediction `json:"prediction"`
	Reward     uint64            `json:"reward"`
}

// ClaimReward locks in the caller's payout on a resolved market.
// POST /api/markets/{id}/claim
func (h *PredictionHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
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

	pred, reward, err := h.predictions.ClaimReward(r.Context(), id, caller)
	if err != nil {
		if status := ledgerStatus(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: claim reward failed",
				slog.Uint64("market_id", id),
				slog.String("predictor", caller),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to claim reward")
			return
		}
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimRewardResponse{
		Prediction: pred,
		Reward:     reward,
	})
}

// GetPrediction returns one predictor's position on a market.
// GET /api/markets/{id}/predictions/{predictor}
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	predictor := r.PathValue("predictor")
	if predictor == "" {
		writeError(w, http.StatusBadRequest, "missing predictor")
		return
	}

	pred, err := h.predictions.GetPrediction(r.Context(), id, predictor)
	if err != nil {
		if status := ledgerStatus(err); status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get prediction failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, status, "failed to get prediction")
			return
		}
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pred)
}

// ListMarketPredictions returns all positions on a market.
// GET /api/markets/{id}/predictions
func (h *PredictionHandler) ListMarketPredictions(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	preds, err := h.predictions.ListMarketPredictions(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list predictions failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds})
}

// ListPositions returns all of one predictor's positions across markets.
// GET /api/predictors/{predictor}/positions
func (h *PredictionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	predictor := r.PathValue("predictor")
	if predictor == "" {
		writeError(w, http.StatusBadRequest, "missing predictor")
		return
	}

	positions, err := h.predictions.ListPredictorPositions(r.Context(), predictor, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("predictor", predictor),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}
