package trading

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/internal/options"
	"github.com/wonny/miyagi/pkg/logger"
)

// Recorder turns a TRADE decision into a persisted trade, either
// simulated (paper fill at mid) or routed to the brokerage.
// ⭐ SSOT: 거래 기록은 여기서만
type Recorder struct {
	trades contracts.TradeRepository
	broker contracts.Broker
	sizing contracts.SizingStrategy
	logger *logger.Logger
}

// NewRecorder creates a new trade recorder
func NewRecorder(trades contracts.TradeRepository, broker contracts.Broker, sizing contracts.SizingStrategy, log *logger.Logger) *Recorder {
	return &Recorder{
		trades: trades,
		broker: broker,
		sizing: sizing,
		logger: log,
	}
}

// AuditContext is the decision context frozen into the trade's audit log
type AuditContext struct {
	Decision contracts.Decision       `json:"decision"`
	Reasons  string                   `json:"reasons"`
	Config   *contracts.StrategyConfig `json:"config"`
	Ranked   []options.RankedContract `json:"ranked,omitempty"`
	Quote    *contracts.Quote         `json:"quote,omitempty"`
}

// Record persists a trade for a TRADE-decided signal in the strategy's
// configured mode. Live mode places the broker order first; a broker
// error propagates and no trade row is written.
func (r *Recorder) Record(ctx context.Context, accountID string, signal *contracts.Signal, contract *contracts.OptionContract, mode contracts.TradeMode, audit AuditContext) (*contracts.Trade, error) {
	qty := r.sizing.Quantity(ctx, signal, contract)

	// Keep at most the top contracts in the audit snapshot
	if len(audit.Ranked) > 10 {
		audit.Ranked = audit.Ranked[:10]
	}
	auditLog, err := json.Marshal(audit)
	if err != nil {
		return nil, fmt.Errorf("marshal audit log: %w", err)
	}

	if mode == contracts.ModeLive {
		return r.recordLive(ctx, accountID, signal, contract, qty, auditLog)
	}
	return r.recordPaper(ctx, accountID, signal, contract, qty, auditLog)
}

// recordPaper simulates an immediate fill at the contract's mid price
func (r *Recorder) recordPaper(ctx context.Context, accountID string, signal *contracts.Signal, contract *contracts.OptionContract, qty int, auditLog json.RawMessage) (*contracts.Trade, error) {
	mid := contract.Mid()

	trade := &contracts.Trade{
		AccountID:    accountID,
		SignalID:     signal.ID,
		Mode:         contracts.ModePaper,
		Symbol:       signal.Symbol,
		OptionSymbol: contract.Symbol,
		Side:         tradeSide(contract.Type),
		Qty:          qty,
		EntryPrice:   &mid,
		Status:       contracts.TradeOpen,
		AuditLog:     auditLog,
		OpenedAt:     time.Now(),
	}

	orderRaw, _ := json.Marshal(map[string]interface{}{"fill": "mid", "midPrice": mid})
	order := &contracts.Order{
		Broker: "paper",
		Status: "FILLED",
		Type:   "MARKET",
		Qty:    qty,
		Raw:    orderRaw,
	}
	fill := &contracts.Fill{
		Qty:   qty,
		Price: mid,
	}

	if err := r.trades.CreateTrade(ctx, trade, order, fill); err != nil {
		return nil, fmt.Errorf("record paper trade: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"trade_id":      trade.ID,
		"signal_id":     signal.ID,
		"option_symbol": contract.Symbol,
		"entry":         mid,
	}).Info("Paper trade recorded")

	return trade, nil
}

// recordLive places the broker order before touching the database
func (r *Recorder) recordLive(ctx context.Context, accountID string, signal *contracts.Signal, contract *contracts.OptionContract, qty int, auditLog json.RawMessage) (*contracts.Trade, error) {
	resp, err := r.broker.PlaceOrder(ctx, contracts.OrderRequest{
		AccountID:    accountID,
		Symbol:       signal.Symbol,
		OptionSymbol: contract.Symbol,
		Side:         "buy_to_open",
		Quantity:     qty,
		Type:         "market",
		Duration:     "day",
		Tag:          "miyagi:" + signal.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("place live order: %w", err)
	}

	trade := &contracts.Trade{
		AccountID:    accountID,
		SignalID:     signal.ID,
		Mode:         contracts.ModeLive,
		Symbol:       signal.Symbol,
		OptionSymbol: contract.Symbol,
		Side:         tradeSide(contract.Type),
		Qty:          qty,
		Status:       contracts.TradeOpen,
		AuditLog:     auditLog,
		OpenedAt:     time.Now(),
	}
	order := &contracts.Order{
		Broker: "tradier",
		Status: "SUBMITTED",
		Type:   "MARKET",
		Qty:    qty,
		Raw:    resp,
	}

	if err := r.trades.CreateTrade(ctx, trade, order, nil); err != nil {
		return nil, fmt.Errorf("record live trade: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"trade_id":      trade.ID,
		"signal_id":     signal.ID,
		"option_symbol": contract.Symbol,
	}).Info("Live trade submitted")

	return trade, nil
}

func tradeSide(optionType string) string {
	if optionType == "put" {
		return "BUY_PUT"
	}
	return "BUY_CALL"
}
