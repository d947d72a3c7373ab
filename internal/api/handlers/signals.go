package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/wonny/miyagi/internal/store"
	"github.com/wonny/miyagi/pkg/logger"
)

// SignalsHandler serves the read-only API: signals, trades and raw
// webhook events for debugging a decision after the fact.
type SignalsHandler struct {
	signals *store.SignalRepository
	trades  *store.TradeRepository
	events  *store.EventRepository
	logger  *logger.Logger
}

func NewSignalsHandler(signals *store.SignalRepository, trades *store.TradeRepository, events *store.EventRepository, log *logger.Logger) *SignalsHandler {
	return &SignalsHandler{
		signals: signals,
		trades:  trades,
		events:  events,
		logger:  log,
	}
}

const defaultListLimit = 50

func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		return defaultListLimit
	}
	return n
}

// ListSignals handles GET /api/signals
func (h *SignalsHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := h.signals.List(r.Context(), listLimit(r))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list signals")
		respondError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"signals": signals,
	})
}

// GetSignal handles GET /api/signals/{id}
func (h *SignalsHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	signal, err := h.signals.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		h.logger.WithError(err).WithField("signal_id", id).Error("Failed to load signal")
		respondError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"signal": signal,
	})
}

// ListTrades handles GET /api/trades
func (h *SignalsHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.List(r.Context(), listLimit(r))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list trades")
		respondError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"trades": trades,
	})
}

// GetWebhookEvent handles GET /api/webhooks/{id}
//
// Debug view: returns the stored raw payload plus normalization and
// processing status for a single inbound event.
func (h *SignalsHandler) GetWebhookEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	event, err := h.events.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		h.logger.WithError(err).WithField("event_id", id).Error("Failed to load webhook event")
		respondError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"event": event,
	})
}
