package trading

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/pkg/logger"
)

const contractMultiplier = 100

// PnlMarker marks open trades to market using live option quotes.
// ⭐ SSOT: 미실현 손익 계산은 여기서만
type PnlMarker struct {
	trades contracts.TradeRepository
	quotes contracts.QuoteProvider
	logger *logger.Logger
}

// NewPnlMarker creates a new mark-to-market runner
func NewPnlMarker(trades contracts.TradeRepository, quotes contracts.QuoteProvider, log *logger.Logger) *PnlMarker {
	return &PnlMarker{
		trades: trades,
		quotes: quotes,
		logger: log,
	}
}

// MarkToMarket snapshots unrealized PnL for every open trade.
// Per-trade failures are logged and skipped so one bad quote does not
// starve the rest of the book; returns the number of trades marked.
func (m *PnlMarker) MarkToMarket(ctx context.Context) (int, error) {
	open, err := m.trades.ListOpen(ctx, 250)
	if err != nil {
		return 0, fmt.Errorf("list open trades: %w", err)
	}

	marked := 0
	for _, trade := range open {
		if err := m.markOne(ctx, &trade); err != nil {
			m.logger.WithFields(map[string]interface{}{
				"trade_id": trade.ID,
				"error":    err.Error(),
			}).Warn("Mark-to-market failed for trade")
			continue
		}
		marked++
	}

	m.logger.WithFields(map[string]interface{}{
		"open":   len(open),
		"marked": marked,
	}).Info("Mark-to-market pass completed")

	return marked, nil
}

func (m *PnlMarker) markOne(ctx context.Context, trade *contracts.Trade) error {
	if trade.EntryPrice == nil {
		return fmt.Errorf("trade %s has no entry price", trade.ID)
	}

	quote, err := m.quotes.GetQuote(ctx, trade.OptionSymbol)
	if err != nil {
		return fmt.Errorf("quote %s: %w", trade.OptionSymbol, err)
	}

	mark, ok := markPrice(quote)
	if !ok {
		return fmt.Errorf("no usable price for %s", trade.OptionSymbol)
	}

	pnl := (mark - *trade.EntryPrice) * float64(trade.Qty) * contractMultiplier

	raw, _ := json.Marshal(quote)
	return m.trades.AppendPnl(ctx, trade.ID, mark, pnl, raw)
}

// markPrice picks the best available price: last, then mid, then one side
func markPrice(q *contracts.Quote) (float64, bool) {
	if q.Last != nil && *q.Last > 0 {
		return *q.Last, true
	}
	if q.Bid != nil && q.Ask != nil && *q.Bid > 0 && *q.Ask > 0 {
		return (*q.Bid + *q.Ask) / 2, true
	}
	if q.Bid != nil && *q.Bid > 0 {
		return *q.Bid, true
	}
	if q.Ask != nil && *q.Ask > 0 {
		return *q.Ask, true
	}
	return 0, false
}
