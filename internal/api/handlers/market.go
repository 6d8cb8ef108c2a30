package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-committee/internal/s3_store"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// defaultRollingWindow is used when ?window= is absent
const defaultRollingWindow = 20

// MarketStore reads persisted market rows
type MarketStore interface {
	GetMarketDaily(ctx context.Context, date string) (*s3_store.MarketDaily, error)
	GetFlowDaily(ctx context.Context, date string) (*s3_store.FlowDaily, error)
	RollingSum(ctx context.Context, column string, window int) (float64, error)
}

// MarketHandler serves stored market and flow history
type MarketHandler struct {
	store  MarketStore
	logger *logger.Logger
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(store MarketStore, log *logger.Logger) *MarketHandler {
	return &MarketHandler{
		store:  store,
		logger: log,
	}
}

// GetMarket returns the market and flow rows of a date. A missing flow row is null.
// GET /api/market/{date}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := mux.Vars(r)["date"]
	if !validDate(date) {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	market, err := h.store.GetMarketDaily(ctx, date)
	if errors.Is(err, s3_store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no market data for "+date)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("date", date).Error("Failed to get market row")
		respondError(w, http.StatusInternalServerError, "failed to get market data")
		return
	}

	flow, err := h.store.GetFlowDaily(ctx, date)
	if err != nil && !errors.Is(err, s3_store.ErrNotFound) {
		h.logger.WithError(err).WithField("date", date).Error("Failed to get flow row")
		respondError(w, http.StatusInternalServerError, "failed to get flow data")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"market": market,
		"flow":   flow,
	})
}

// GetRolling returns a rolling sum over stored flow rows
// GET /api/rolling/{column}?window=20
func (h *MarketHandler) GetRolling(w http.ResponseWriter, r *http.Request) {
	column := mux.Vars(r)["column"]
	window := queryInt(r, "window", defaultRollingWindow)

	sum, err := h.store.RollingSum(r.Context(), column, window)
	switch {
	case errors.Is(err, s3_store.ErrUnknownColumn):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, s3_store.ErrInsufficientHistory):
		// not enough history is a valid answer: null, never zero
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"column": column,
			"window": window,
			"sum":    nil,
			"reason": err.Error(),
		})
		return
	case err != nil:
		h.logger.WithError(err).WithField("column", column).Error("Failed to compute rolling sum")
		respondError(w, http.StatusInternalServerError, "failed to compute rolling sum")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"column": column,
		"window": window,
		"sum":    sum,
	})
}
