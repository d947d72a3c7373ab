package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/miyagi/internal/webhook"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/logger"
)

func newTestJobsHandler(cfg *config.Config) *JobsHandler {
	return NewJobsHandler(nil, nil, cfg, logger.New(cfg))
}

func TestProcessWebhook_BadSignature(t *testing.T) {
	cfg := handlerConfig("", true)
	cfg.Dispatch.SigningKey = "job-signing-key"
	h := newTestJobsHandler(cfg)

	body := []byte(`{"id":"evt-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs/process", bytes.NewReader(body))
	req.Header.Set("X-Dispatch-Signature", webhook.SignHmacSHA256(body, "wrong-key"))
	rec := httptest.NewRecorder()

	h.ProcessWebhook(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, rec)["error"])
}

func TestProcessWebhook_RotatedSigningKeyStillRejectsUnknown(t *testing.T) {
	cfg := handlerConfig("", true)
	cfg.Dispatch.SigningKey = "new-key"
	cfg.Dispatch.NextSigningKey = "old-key"
	h := newTestJobsHandler(cfg)

	body := []byte(`{"id":"evt-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs/process", bytes.NewReader(body))
	req.Header.Set("X-Dispatch-Signature", webhook.SignHmacSHA256(body, "neither-key"))
	rec := httptest.NewRecorder()

	h.ProcessWebhook(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProcessWebhook_MissingID(t *testing.T) {
	cfg := handlerConfig("", true)
	h := newTestJobsHandler(cfg)

	req := httptest.NewRequest(http.MethodPost, "/jobs/process", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	h.ProcessWebhook(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_id", decodeBody(t, rec)["error"])
}

func TestProcessWebhook_EmptyBody(t *testing.T) {
	cfg := handlerConfig("", true)
	h := newTestJobsHandler(cfg)

	req := httptest.NewRequest(http.MethodPost, "/jobs/process", bytes.NewReader(nil))
	rec := httptest.NewRecorder()

	h.ProcessWebhook(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeBody(t, rec)["error"])
}

func TestUpdatePnl_WrongCronSecret(t *testing.T) {
	cfg := handlerConfig("", true)
	cfg.CronSecret = "cron-secret"
	h := newTestJobsHandler(cfg)

	req := httptest.NewRequest(http.MethodPost, "/jobs/update-pnl", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	rec := httptest.NewRecorder()

	h.UpdatePnl(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, rec)["error"])
}
