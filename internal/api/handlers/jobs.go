package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/miyagi/internal/pipeline"
	"github.com/wonny/miyagi/internal/queue"
	"github.com/wonny/miyagi/internal/trading"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/logger"
)

// JobsHandler receives asynchronous job callbacks: webhook processing
// and the periodic PnL revaluation.
// ⭐ SSOT: 작업 콜백 처리는 이 핸들러에서만
type JobsHandler struct {
	processor  *pipeline.Processor
	pnl        *trading.PnlMarker
	dispatch   config.DispatchConfig
	cronSecret string
	logger     *logger.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(
	processor *pipeline.Processor,
	pnl *trading.PnlMarker,
	cfg *config.Config,
	log *logger.Logger,
) *JobsHandler {
	return &JobsHandler{
		processor:  processor,
		pnl:        pnl,
		dispatch:   cfg.Dispatch,
		cronSecret: cfg.CronSecret,
		logger:     log,
	}
}

// ProcessWebhook handles POST /jobs/process
func (h *JobsHandler) ProcessWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(rawBody) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	// Verify the dispatch signature when signing keys are configured;
	// local/dev runs without keys skip verification.
	ok, reason := queue.VerifySignature(rawBody, r.Header.Get("X-Dispatch-Signature"),
		h.dispatch.SigningKey, h.dispatch.NextSigningKey)
	if !ok && reason != "missing_signing_keys" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rawBody, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if body.ID == "" {
		respondError(w, http.StatusBadRequest, "missing_id")
		return
	}

	out, err := h.processor.Process(ctx, body.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		h.logger.WithFields(map[string]interface{}{
			"event_id": body.ID,
			"error":    err.Error(),
		}).Error("Webhook processing failed")
		respondError(w, http.StatusInternalServerError, "processing_failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"webhookId":    out.WebhookID,
		"signalId":     out.SignalID,
		"decision":     out.Decision,
		"optionPicked": out.OptionPicked,
		"tradeId":      out.TradeID,
	})
}

// UpdatePnl handles POST /jobs/update-pnl
func (h *JobsHandler) UpdatePnl(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret != "" && r.Header.Get("X-Cron-Secret") != h.cronSecret {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	updated, err := h.pnl.MarkToMarket(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("PnL update failed")
		respondError(w, http.StatusInternalServerError, "pnl_update_failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "updated": updated})
}
