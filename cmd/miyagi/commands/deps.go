package commands

import (
	"fmt"

	"github.com/wonny/miyagi/internal/api/handlers"
	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/internal/market"
	"github.com/wonny/miyagi/internal/pipeline"
	"github.com/wonny/miyagi/internal/queue"
	"github.com/wonny/miyagi/internal/store"
	"github.com/wonny/miyagi/internal/trading"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/database"
	"github.com/wonny/miyagi/pkg/httputil"
	"github.com/wonny/miyagi/pkg/logger"
	"github.com/wonny/miyagi/pkg/redis"
)

// appRuntime wires configuration, storage, market clients and the
// processing pipeline shared by the api, scheduler and process commands.
// ⭐ SSOT: 의존성 조립은 여기서만
type appRuntime struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB
	rdb *redis.Client

	httpClient *httputil.Client

	events  *store.EventRepository
	signals *store.SignalRepository
	trades  *store.TradeRepository

	tradier   *market.TradierClient
	processor *pipeline.Processor
	pnl       *trading.PnlMarker
}

// newAppRuntime loads config and connects every component
func newAppRuntime() (*appRuntime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	httpClient := httputil.New(cfg, log)

	// Repositories
	events := store.NewEventRepository(db.Pool)
	signals := store.NewSignalRepository(db.Pool)
	trades := store.NewTradeRepository(db.Pool)
	configs := store.NewStrategyConfigRepository(db.Pool)
	accounts := store.NewAccountResolver(db.Pool, cfg.OwnerEmail)

	// External market clients
	rateLimiter := redis.NewRateLimiter(rdb, "miyagi")
	cache := redis.NewCache(rdb, "miyagi")

	tradier := market.NewTradierClient(cfg.Tradier, rateLimiter, log)
	twelveData := market.NewTwelveDataClient(cfg.TwelveData, httpClient, log)

	// Pipeline
	enricher := market.NewEnricher(tradier, twelveData, cache, log)
	risk := trading.NewRiskChecker(trades, log)
	recorder := trading.NewRecorder(trades, tradier, trading.NewFixedSizing(cfg.OrderQty), log)

	processor := pipeline.NewProcessor(events, signals, configs, accounts,
		enricher, risk, recorder, tradier, log)
	pnl := trading.NewPnlMarker(trades, tradier, log)

	return &appRuntime{
		cfg:        cfg,
		log:        log,
		db:         db,
		rdb:        rdb,
		httpClient: httpClient,
		events:     events,
		signals:    signals,
		trades:     trades,
		tradier:    tradier,
		processor:  processor,
		pnl:        pnl,
	}, nil
}

// Close releases the database and redis connections
func (a *appRuntime) Close() {
	a.rdb.Close()
	a.db.Close()
}

// newDispatcher builds the configured dispatch transport.
// "http" posts signed job callbacks; anything else processes inline.
func (a *appRuntime) newDispatcher() contracts.Dispatcher {
	if a.cfg.Dispatch.Mode == "http" {
		return queue.NewHTTPDispatcher(a.cfg.Dispatch, a.httpClient, a.log)
	}
	return queue.NewInlineDispatcher(a.processor, a.log)
}

// newIngestLimiter builds the per-IP ingestion rate limiter, falling back
// to an in-process token bucket when Redis is disabled.
func (a *appRuntime) newIngestLimiter() handlers.Limiter {
	if a.rdb.Enabled() {
		base := redis.WebhookRateLimit
		base.Limit = a.cfg.Webhook.RateLimit
		base.Window = a.cfg.Webhook.RateWindow
		return handlers.NewRedisLimiter(redis.NewRateLimiter(a.rdb, "miyagi"), base)
	}
	return handlers.NewLocalLimiter(a.cfg.Webhook.RateLimit, a.cfg.Webhook.RateWindow)
}
