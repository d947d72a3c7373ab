package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/miyagi/internal/contracts"
)

// TradeRepository implements contracts.TradeRepository
// ⭐ SSOT: 거래 저장소는 여기서만
type TradeRepository struct {
	pool *pgxpool.Pool
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(pool *pgxpool.Pool) *TradeRepository {
	return &TradeRepository{pool: pool}
}

// CreateTrade inserts a trade with its order and optional fill as one
// transaction, so a trade never exists without its execution record.
func (r *TradeRepository) CreateTrade(ctx context.Context, trade *contracts.Trade, order *contracts.Order, fill *contracts.Fill) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trades (id, account_id, signal_id, mode, symbol, option_symbol, side,
		                    qty, entry_price, status, audit_log, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`
	_, err = tx.Exec(ctx, query,
		trade.ID, trade.AccountID, trade.SignalID, trade.Mode, trade.Symbol,
		trade.OptionSymbol, trade.Side, trade.Qty, trade.EntryPrice, trade.Status,
		trade.AuditLog,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	if order != nil {
		if order.ID == "" {
			order.ID = uuid.NewString()
		}
		order.TradeID = trade.ID

		query = `
			INSERT INTO orders (id, trade_id, broker, status, type, qty, limit_price, raw)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err = tx.Exec(ctx, query,
			order.ID, order.TradeID, order.Broker, order.Status, order.Type,
			order.Qty, order.LimitPrice, order.Raw,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
	}

	if fill != nil {
		if fill.ID == "" {
			fill.ID = uuid.NewString()
		}
		fill.TradeID = trade.ID

		query = `
			INSERT INTO fills (id, trade_id, qty, price, raw)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err = tx.Exec(ctx, query, fill.ID, fill.TradeID, fill.Qty, fill.Price, fill.Raw)
		if err != nil {
			return fmt.Errorf("insert fill: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit trade transaction: %w", err)
	}
	return nil
}

const tradeColumns = `
	id, account_id, signal_id, mode, symbol, option_symbol, side,
	qty, entry_price, exit_price, status, pnl_usd, audit_log, opened_at, closed_at
`

func scanTrade(row interface{ Scan(dest ...any) error }) (*contracts.Trade, error) {
	var t contracts.Trade
	err := row.Scan(
		&t.ID, &t.AccountID, &t.SignalID, &t.Mode, &t.Symbol, &t.OptionSymbol, &t.Side,
		&t.Qty, &t.EntryPrice, &t.ExitPrice, &t.Status, &t.PnlUSD, &t.AuditLog,
		&t.OpenedAt, &t.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID retrieves a trade by id
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*contracts.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	t, err := scanTrade(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	return t, nil
}

// List retrieves recent trades, newest first
func (r *TradeRepository) List(ctx context.Context, limit int) ([]contracts.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY opened_at DESC LIMIT $1`
	return r.queryTrades(ctx, query, limit)
}

// ListOpen retrieves open trades, oldest first, for mark-to-market
func (r *TradeRepository) ListOpen(ctx context.Context, limit int) ([]contracts.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE status = 'OPEN' ORDER BY opened_at ASC LIMIT $1`
	return r.queryTrades(ctx, query, limit)
}

func (r *TradeRepository) queryTrades(ctx context.Context, query string, args ...any) ([]contracts.Trade, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []contracts.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

// CountOpenedSince counts trades opened for an account at or after since
func (r *TradeRepository) CountOpenedSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE account_id = $1 AND opened_at >= $2`

	var n int
	if err := r.pool.QueryRow(ctx, query, accountID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trades since: %w", err)
	}
	return n, nil
}

// CountOpen counts currently open trades for an account
func (r *TradeRepository) CountOpen(ctx context.Context, accountID string) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE account_id = $1 AND status = 'OPEN'`

	var n int
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return n, nil
}

// AppendPnl records a mark-to-market snapshot and refreshes the trade's
// unrealized PnL column.
func (r *TradeRepository) AppendPnl(ctx context.Context, tradeID string, markPrice, pnlUSD float64, raw json.RawMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO pnl_snapshots (id, trade_id, mark_price, pnl_usd, raw)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, query, uuid.NewString(), tradeID, markPrice, pnlUSD, raw); err != nil {
		return fmt.Errorf("insert pnl snapshot: %w", err)
	}

	query = `UPDATE trades SET pnl_usd = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, query, tradeID, pnlUSD); err != nil {
		return fmt.Errorf("update trade pnl: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit pnl transaction: %w", err)
	}
	return nil
}
