package contracts

import (
	"encoding/json"
	"time"
)

// Decision is the terminal outcome of the decision pipeline for one alert
type Decision string

const (
	DecisionTrade  Decision = "TRADE"
	DecisionWatch  Decision = "WATCH"
	DecisionSkip   Decision = "SKIP"
	DecisionCancel Decision = "CANCEL"
)

// Signal is the decision record created once per inbound event.
// Immutable once a Trade exists against it, except for attaching the
// option pick or downgrading TRADE to WATCH when no contract is viable.
type Signal struct {
	ID         string   `json:"id"`
	WebhookID  string   `json:"webhook_id"`
	StrategyID string   `json:"strategy_id"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Timeframe  string   `json:"timeframe"`
	Event      string   `json:"event"`
	BaseScore  float64  `json:"base_score"`
	FinalScore float64  `json:"final_score"`
	Decision   Decision `json:"decision"`

	// DecisionWhy is the ordered, comma-joined reason trail. Persisted
	// verbatim; must be reproducible byte-for-byte for the same inputs.
	DecisionWhy string `json:"decision_why"`

	// Scarcity gate audit (nil when Top-N was not evaluated)
	ScannerRank      *int `json:"scanner_rank,omitempty"`
	ScannerTotal     *int `json:"scanner_total,omitempty"`
	ScannerWindowSec *int `json:"scanner_window_sec,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Free-form snapshots for audit
	Enrichment json.RawMessage `json:"enrichment,omitempty"`
	OptionPick json.RawMessage `json:"option_pick,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Candidate is the ephemeral unit compared during Top-N ranking.
// A projection of a Signal (or of the signal currently being decided);
// never persisted as its own entity.
type Candidate struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	FinalScore float64 `json:"final_score"`
	Ts         int64   `json:"ts"`
}
