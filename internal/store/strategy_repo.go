package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/miyagi/internal/contracts"
)

// StrategyConfigRepository implements contracts.StrategyConfigRepository
// ⭐ SSOT: 전략 설정 조회는 여기서만
type StrategyConfigRepository struct {
	pool *pgxpool.Pool
}

// NewStrategyConfigRepository creates a new strategy config repository
func NewStrategyConfigRepository(pool *pgxpool.Pool) *StrategyConfigRepository {
	return &StrategyConfigRepository{pool: pool}
}

// Get resolves the operating config for a strategy. A missing row is not
// an error: the built-in defaults apply, so a brand-new strategy id works
// out of the box in paper mode.
func (r *StrategyConfigRepository) Get(ctx context.Context, accountID, strategyID string) (*contracts.StrategyConfig, error) {
	query := `
		SELECT strategy_id, enabled, mode,
		       trade_threshold, watch_threshold, decay_per_minute, auto_cancel_mins, top_n,
		       max_trades_per_day, max_concurrent, max_daily_loss_usd, risk_per_trade_usd,
		       min_oi, min_volume, max_spread_pct, min_option_price,
		       delta_min, delta_max, min_dte, max_dte,
		       timezone, rth_start, rth_end, lunch_start, lunch_end,
		       allow_outside_rth, allow_lunch
		FROM strategy_configs
		WHERE account_id = $1 AND strategy_id = $2
	`

	var c contracts.StrategyConfig
	err := r.pool.QueryRow(ctx, query, accountID, strategyID).Scan(
		&c.StrategyID, &c.Enabled, &c.Mode,
		&c.TradeThreshold, &c.WatchThreshold, &c.DecayPerMinute, &c.AutoCancelMins, &c.TopN,
		&c.MaxTradesPerDay, &c.MaxConcurrent, &c.MaxDailyLossUSD, &c.RiskPerTradeUSD,
		&c.MinOI, &c.MinVolume, &c.MaxSpreadPct, &c.MinOptionPrice,
		&c.DeltaMin, &c.DeltaMax, &c.MinDTE, &c.MaxDTE,
		&c.Timezone, &c.RTHStart, &c.RTHEnd, &c.LunchStart, &c.LunchEnd,
		&c.AllowOutsideRTH, &c.AllowLunch,
	)
	if err == pgx.ErrNoRows {
		defaults := contracts.DefaultStrategyConfig(strategyID)
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get strategy config %s: %w", strategyID, err)
	}
	return &c, nil
}
