package trading

import (
	"context"
	"time"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/pkg/logger"
)

// Risk block reasons, persisted into the decision trail
const (
	ReasonMissingAccount  = "missing_owner_account"
	ReasonMaxTradesPerDay = "max_trades_per_day"
	ReasonMaxConcurrent   = "max_concurrent"
)

// RiskChecker enforces account-level exposure caps before decisioning.
// ⭐ SSOT: 리스크 한도 검사는 여기서만
type RiskChecker struct {
	trades contracts.TradeRepository
	logger *logger.Logger
}

// NewRiskChecker creates a new risk checker
func NewRiskChecker(trades contracts.TradeRepository, log *logger.Logger) *RiskChecker {
	return &RiskChecker{
		trades: trades,
		logger: log,
	}
}

// Result reports whether trading is allowed
type Result struct {
	Allowed bool
	Reason  string
}

// Check verifies the daily and concurrency caps for an account. An empty
// account id blocks trading but does not fail the pipeline: alerts still
// get scored and recorded.
func (r *RiskChecker) Check(ctx context.Context, accountID string, cfg *contracts.StrategyConfig, now time.Time) (Result, error) {
	if accountID == "" {
		return Result{Allowed: false, Reason: ReasonMissingAccount}, nil
	}

	loc, locErr := time.LoadLocation(cfg.Timezone)
	if locErr != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	opened, err := r.trades.CountOpenedSince(ctx, accountID, midnight)
	if err != nil {
		return Result{}, err
	}
	if opened >= cfg.MaxTradesPerDay {
		return Result{Allowed: false, Reason: ReasonMaxTradesPerDay}, nil
	}

	open, err := r.trades.CountOpen(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	if open >= cfg.MaxConcurrent {
		return Result{Allowed: false, Reason: ReasonMaxConcurrent}, nil
	}

	return Result{Allowed: true}, nil
}
