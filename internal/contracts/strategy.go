package contracts

// StrategyConfig holds per-strategy operating parameters.
// Read-only input to the pipeline; owned by configuration management.
type StrategyConfig struct {
	StrategyID string    `json:"strategy_id"`
	Enabled    bool      `json:"enabled"`
	Mode       TradeMode `json:"mode"`

	// Decisioning
	TradeThreshold float64 `json:"trade_threshold"`
	WatchThreshold float64 `json:"watch_threshold"`
	DecayPerMinute float64 `json:"decay_per_minute"`
	AutoCancelMins int     `json:"auto_cancel_mins"`
	TopN           int     `json:"top_n"` // <= 0 disables the cap

	// Risk caps
	MaxTradesPerDay int     `json:"max_trades_per_day"`
	MaxConcurrent   int     `json:"max_concurrent"`
	MaxDailyLossUSD float64 `json:"max_daily_loss_usd"`
	RiskPerTradeUSD float64 `json:"risk_per_trade_usd"`

	// Contract selection
	MinOI          int     `json:"min_oi"`
	MinVolume      int     `json:"min_volume"`
	MaxSpreadPct   float64 `json:"max_spread_pct"`
	MinOptionPrice float64 `json:"min_option_price"`
	DeltaMin       float64 `json:"delta_min"`
	DeltaMax       float64 `json:"delta_max"`
	MinDTE         int     `json:"min_dte"`
	MaxDTE         int     `json:"max_dte"`

	// Session gating
	Timezone        string `json:"timezone"`
	RTHStart        string `json:"rth_start"` // HH:MM
	RTHEnd          string `json:"rth_end"`
	LunchStart      string `json:"lunch_start"`
	LunchEnd        string `json:"lunch_end"`
	AllowOutsideRTH bool   `json:"allow_outside_rth"`
	AllowLunch      bool   `json:"allow_lunch"`
}

// DefaultStrategyConfig returns the operating defaults applied when no
// config row exists for a strategy.
func DefaultStrategyConfig(strategyID string) StrategyConfig {
	return StrategyConfig{
		StrategyID: strategyID,
		Enabled:    true,
		Mode:       ModePaper,

		TradeThreshold: 75,
		WatchThreshold: 60,
		DecayPerMinute: 0.6,
		AutoCancelMins: 30,
		TopN:           1,

		MaxTradesPerDay: 5,
		MaxConcurrent:   2,

		MinOI:          500,
		MinVolume:      100,
		MaxSpreadPct:   0.2,
		MinOptionPrice: 0.3,
		DeltaMin:       0.35,
		DeltaMax:       0.5,
		MinDTE:         0,
		MaxDTE:         7,

		Timezone:        "America/New_York",
		RTHStart:        "09:30",
		RTHEnd:          "16:00",
		LunchStart:      "12:00",
		LunchEnd:        "13:30",
		AllowOutsideRTH: false,
		AllowLunch:      true,
	}
}
