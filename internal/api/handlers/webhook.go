package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/internal/webhook"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/logger"
)

// WebhookHandler ingests TradingView alert webhooks.
// Store-first: the raw payload is persisted before anything can fail,
// processing happens asynchronously via the dispatcher.
// ⭐ SSOT: 웹훅 수신은 이 핸들러에서만
type WebhookHandler struct {
	events     contracts.EventRepository
	dispatcher contracts.Dispatcher
	limiter    Limiter
	guard      webhook.GuardConfig
	logger     *logger.Logger
}

// NewWebhookHandler creates a new webhook ingestion handler
func NewWebhookHandler(
	events contracts.EventRepository,
	dispatcher contracts.Dispatcher,
	limiter Limiter,
	cfg *config.Config,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		events:     events,
		dispatcher: dispatcher,
		limiter:    limiter,
		guard: webhook.GuardConfig{
			Secret:        cfg.Webhook.Secret,
			AllowUnsigned: cfg.Webhook.AllowUnsigned,
		},
		logger: log,
	}
}

// Receive handles POST /webhooks/tradingview
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ip := clientIP(r)
	if h.limiter != nil && !h.limiter.Allow(ctx, ip) {
		respondError(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(rawBody) == 0 || !json.Valid(rawBody) {
		respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	v := webhook.Verify(h.guard, rawBody,
		r.Header.Get("X-Webhook-Token"), r.Header.Get("X-Signature"))
	if !v.OK {
		respondError(w, http.StatusUnauthorized, v.Reason)
		return
	}

	idempotencyKey := providedIdempotencyKey(rawBody)
	if idempotencyKey == "" {
		idempotencyKey = webhook.DeriveIdempotencyKey(rawBody)
	}

	event := &contracts.InboundEvent{
		IdempotencyKey: idempotencyKey,
		SignatureOK:    v.SignatureOK,
		IP:             ip,
		UserAgent:      r.UserAgent(),
		Payload:        rawBody,
		Status:         contracts.EventReceived,
	}

	id, deduped, err := h.events.Create(ctx, event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to store webhook event")
		respondError(w, http.StatusInternalServerError, "store_failed")
		return
	}
	if deduped {
		respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "deduped": true, "id": id})
		return
	}

	// The stored event survives dispatch failure; a replay recovers it
	if !h.dispatcher.Configured() {
		h.events.UpdateStatus(ctx, id, contracts.EventError,
			"missing dispatch base URL for job callback")
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"ok": true, "id": id, "queued": false, "error": "missing_base_url",
		})
		return
	}

	if err := h.dispatcher.Enqueue(ctx, id); err != nil {
		h.logger.WithError(err).Error("Failed to enqueue webhook job")
		h.events.UpdateStatus(ctx, id, contracts.EventError, err.Error())
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"ok": true, "id": id, "queued": false, "error": "enqueue_failed",
		})
		return
	}
	h.events.UpdateStatus(ctx, id, contracts.EventQueued, "")

	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": id})
}

// clientIP takes the first X-Forwarded-For hop, falling back to the peer
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// providedIdempotencyKey honors a payload-supplied idempotency_key
func providedIdempotencyKey(rawBody []byte) string {
	var probe struct {
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := json.Unmarshal(rawBody, &probe); err != nil {
		return ""
	}
	return probe.IdempotencyKey
}
