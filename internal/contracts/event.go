package contracts

import (
	"encoding/json"
	"time"
)

// EventStatus represents the lifecycle state of an inbound webhook event
type EventStatus string

const (
	EventReceived   EventStatus = "RECEIVED"
	EventQueued     EventStatus = "QUEUED"
	EventNormalized EventStatus = "NORMALIZED"
	EventProcessed  EventStatus = "PROCESSED"
	EventError      EventStatus = "ERROR"
)

// InboundEvent is the raw webhook alert as stored at ingestion time.
// Store-first: the payload is persisted before any decisioning happens.
type InboundEvent struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	SignatureOK    bool            `json:"signature_ok"`
	IP             string          `json:"ip"`
	UserAgent      string          `json:"user_agent"`
	Payload        json.RawMessage `json:"payload"`
	Status         EventStatus     `json:"status"`
	Error          string          `json:"error,omitempty"`

	// Normalized columns, filled by the processing job for indexing/search
	Source     string   `json:"source,omitempty"`
	Version    string   `json:"version,omitempty"`
	StrategyID string   `json:"strategy_id,omitempty"`
	Event      string   `json:"event,omitempty"`
	Side       string   `json:"side,omitempty"`
	Symbol     string   `json:"symbol,omitempty"`
	Timeframe  string   `json:"timeframe,omitempty"`
	TimestampMs *int64  `json:"timestamp_ms,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizedAlert is the canonical projection of a webhook payload.
// All fields are optional; empty string / nil means absent.
type NormalizedAlert struct {
	Source        string   `json:"source,omitempty"`
	Version       string   `json:"version,omitempty"`
	StrategyID    string   `json:"strategy_id,omitempty"`
	Event         string   `json:"event,omitempty"`
	Side          string   `json:"side,omitempty"`
	Symbol        string   `json:"symbol,omitempty"`
	Timeframe     string   `json:"timeframe,omitempty"`
	TimestampMs   *int64   `json:"timestamp_ms,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	BreakoutLevel *float64 `json:"breakout_level,omitempty"`
}
