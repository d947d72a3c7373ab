package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/miyagi/internal/pipeline"
	"github.com/wonny/miyagi/internal/webhook"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/httputil"
	"github.com/wonny/miyagi/pkg/logger"
)

// jobPath is the processing callback each dispatched job lands on
const jobPath = "/jobs/process"

// HTTPDispatcher implements contracts.Dispatcher by POSTing the event id
// back to this service's job endpoint through an external queue-style
// callback. Delivery is at-least-once; the processor is idempotent.
// ⭐ SSOT: HTTP 작업 디스패치는 여기서만
type HTTPDispatcher struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.DispatchConfig
}

// NewHTTPDispatcher creates an HTTP callback dispatcher
func NewHTTPDispatcher(cfg config.DispatchConfig, httpClient *httputil.Client, log *logger.Logger) *HTTPDispatcher {
	return &HTTPDispatcher{
		httpClient: httpClient,
		logger:     log,
		cfg:        cfg,
	}
}

// Configured reports whether a callback base URL is set
func (d *HTTPDispatcher) Configured() bool {
	return d.cfg.BaseURL != ""
}

// Enqueue posts `{"id":...}` to the job endpoint with a bearer token and
// a body HMAC so the receiving side can authenticate the callback.
func (d *HTTPDispatcher) Enqueue(ctx context.Context, eventID string) error {
	if !d.Configured() {
		return fmt.Errorf("dispatch base URL not configured")
	}

	body, err := json.Marshal(map[string]string{"id": eventID})
	if err != nil {
		return fmt.Errorf("marshal job body: %w", err)
	}

	url := d.cfg.BaseURL + jobPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create job request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	}
	if d.cfg.SigningKey != "" {
		req.Header.Set("X-Dispatch-Signature", webhook.SignHmacSHA256(body, d.cfg.SigningKey))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch job status %d", resp.StatusCode)
	}

	d.logger.WithFields(map[string]interface{}{
		"event_id": eventID,
		"url":      url,
	}).Debug("Job dispatched")
	return nil
}

// VerifySignature checks a dispatched job's body HMAC. Both the current
// and next signing keys are accepted so keys can rotate without dropping
// in-flight jobs. Unconfigured keys skip verification for local runs.
func VerifySignature(rawBody []byte, signatureHex, currentKey, nextKey string) (ok bool, reason string) {
	if currentKey == "" && nextKey == "" {
		return false, "missing_signing_keys"
	}
	if currentKey != "" && webhook.VerifyHmacSHA256(rawBody, signatureHex, currentKey) {
		return true, ""
	}
	if nextKey != "" && webhook.VerifyHmacSHA256(rawBody, signatureHex, nextKey) {
		return true, ""
	}
	return false, "bad_signature"
}

// inlineTimeout bounds how long a loopback job may run
const inlineTimeout = 60 * time.Second

// InlineDispatcher runs the processor in-process on a goroutine.
// Single-node deployments get the same job semantics without an
// external queue; the request path stays store-first and returns fast.
type InlineDispatcher struct {
	processor *pipeline.Processor
	logger    *logger.Logger
}

// NewInlineDispatcher creates a loopback dispatcher
func NewInlineDispatcher(processor *pipeline.Processor, log *logger.Logger) *InlineDispatcher {
	return &InlineDispatcher{processor: processor, logger: log}
}

func (d *InlineDispatcher) Configured() bool { return true }

// Enqueue schedules processing on a background goroutine and returns
// immediately; failures are logged, replays recover them.
func (d *InlineDispatcher) Enqueue(ctx context.Context, eventID string) error {
	go func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), inlineTimeout)
		defer cancel()

		out, err := d.processor.Process(jobCtx, eventID)
		if err != nil {
			d.logger.WithFields(map[string]interface{}{
				"event_id": eventID,
				"error":    err.Error(),
			}).Error("Inline job failed")
			return
		}
		d.logger.WithFields(map[string]interface{}{
			"event_id": eventID,
			"signal":   out.SignalID,
			"decision": out.Decision,
		}).Info("Inline job completed")
	}()
	return nil
}
