package contracts

import (
	"encoding/json"
	"time"
)

// TradeMode distinguishes simulated from real executions
type TradeMode string

const (
	ModePaper TradeMode = "PAPER"
	ModeLive  TradeMode = "LIVE"
)

// TradeStatus represents the lifecycle state of a trade
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// Trade is one executed (or simulated) position against a Signal
type Trade struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	SignalID     string          `json:"signal_id"`
	Mode         TradeMode       `json:"mode"`
	Symbol       string          `json:"symbol"`
	OptionSymbol string          `json:"option_symbol"`
	Side         string          `json:"side"` // BUY_CALL or BUY_PUT
	Qty          int             `json:"qty"`
	EntryPrice   *float64        `json:"entry_price,omitempty"`
	ExitPrice    *float64        `json:"exit_price,omitempty"`
	Status       TradeStatus     `json:"status"`
	PnlUSD       *float64        `json:"pnl_usd,omitempty"`
	AuditLog     json.RawMessage `json:"audit_log,omitempty"`
	OpenedAt     time.Time       `json:"opened_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
}

// Order is a broker order record attached to a trade
type Order struct {
	ID         string          `json:"id"`
	TradeID    string          `json:"trade_id"`
	Broker     string          `json:"broker"` // "paper" or "tradier"
	Status     string          `json:"status"` // FILLED, SUBMITTED, ...
	Type       string          `json:"type"`   // MARKET, LIMIT
	Qty        int             `json:"qty"`
	LimitPrice *float64        `json:"limit_price,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Fill is an execution fill attached to a trade
type Fill struct {
	ID        string          `json:"id"`
	TradeID   string          `json:"trade_id"`
	Qty       int             `json:"qty"`
	Price     float64         `json:"price"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PnlSnapshot is a periodic mark-to-market record for an open trade
type PnlSnapshot struct {
	ID        string          `json:"id"`
	TradeID   string          `json:"trade_id"`
	MarkPrice float64         `json:"mark_price"`
	PnlUSD    float64         `json:"pnl_usd"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
