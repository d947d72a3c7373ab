package contracts

import (
	"context"
	"encoding/json"
	"time"
)

// ============================================================
// Repositories
// ⭐ SSOT: 저장소 인터페이스는 여기서만 정의
// ============================================================

// EventRepository persists inbound webhook events.
// Create must honor the idempotency key as a natural unique constraint:
// a duplicate returns the existing record's id with deduped=true.
type EventRepository interface {
	Create(ctx context.Context, event *InboundEvent) (id string, deduped bool, err error)
	GetByID(ctx context.Context, id string) (*InboundEvent, error)
	UpdateStatus(ctx context.Context, id string, status EventStatus, errMsg string) error
	UpdateNormalized(ctx context.Context, id string, n *NormalizedAlert) error
}

// SignalRepository persists decision records
type SignalRepository interface {
	Create(ctx context.Context, signal *Signal) error
	GetByID(ctx context.Context, id string) (*Signal, error)
	GetByWebhookID(ctx context.Context, webhookID string) (*Signal, error)
	List(ctx context.Context, limit int) ([]Signal, error)

	// RecentCandidates returns Top-N candidates for signals of the same
	// strategy and timeframe created at or after since.
	RecentCandidates(ctx context.Context, strategyID, timeframe string, since time.Time) ([]Candidate, error)

	AttachOptionPick(ctx context.Context, id string, pick json.RawMessage) error

	// Downgrade updates the decision and appends appendWhy to the reason trail
	Downgrade(ctx context.Context, id string, decision Decision, appendWhy string) error
}

// TradeRepository persists trades with their orders, fills and PnL snapshots
type TradeRepository interface {
	CreateTrade(ctx context.Context, trade *Trade, order *Order, fill *Fill) error
	GetByID(ctx context.Context, id string) (*Trade, error)
	List(ctx context.Context, limit int) ([]Trade, error)
	ListOpen(ctx context.Context, limit int) ([]Trade, error)
	CountOpenedSince(ctx context.Context, accountID string, since time.Time) (int, error)
	CountOpen(ctx context.Context, accountID string) (int, error)
	AppendPnl(ctx context.Context, tradeID string, markPrice, pnlUSD float64, raw json.RawMessage) error
}

// StrategyConfigRepository resolves per-strategy operating parameters.
// Implementations return defaults when no row exists.
type StrategyConfigRepository interface {
	Get(ctx context.Context, accountID, strategyID string) (*StrategyConfig, error)
}

// ============================================================
// Capabilities
// ============================================================

// AccountResolver resolves the trading account for an alert.
// Single-tenant today (configured owner email); the interface exists so
// per-alert tenant routing can be added without touching the pipeline.
type AccountResolver interface {
	Resolve(ctx context.Context) (accountID string, err error)
}

// SizingStrategy decides the contract quantity for a trade
type SizingStrategy interface {
	Quantity(ctx context.Context, signal *Signal, contract *OptionContract) int
}

// ============================================================
// External collaborators
// ============================================================

// QuoteProvider looks up point-in-time quotes
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// BarProvider looks up OHLCV series by symbol and interval
type BarProvider interface {
	GetBars(ctx context.Context, symbol, interval string) ([]Bar, error)
}

// OptionsProvider looks up option expirations and chains
type OptionsProvider interface {
	GetExpirations(ctx context.Context, symbol string) ([]string, error)
	GetChain(ctx context.Context, symbol, expiration string) ([]OptionContract, error)
}

// Broker places orders with the brokerage
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error)
}

// Dispatcher enqueues asynchronous processing of a stored event
type Dispatcher interface {
	// Configured reports whether dispatch can actually deliver jobs
	Configured() bool
	Enqueue(ctx context.Context, eventID string) error
}
