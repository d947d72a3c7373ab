package market

import (
	"context"
	"strings"
	"time"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/pkg/logger"
	"github.com/wonny/miyagi/pkg/redis"
)

const (
	intervalLTF = "5min"
	intervalHTF = "1h"
)

// Snapshot is the market context gathered for one alert.
// Every field may be absent: enrichment degrades, it never fails.
type Snapshot struct {
	Quote *contracts.Quote `json:"quote,omitempty"`

	// LTFBars are chronological, oldest first. Providers return
	// newest-first; the enricher reverses before handing them out.
	LTFBars []contracts.Bar `json:"ltf_bars,omitempty"`

	// HTFAligned is nil when fewer than two hourly bars are available
	HTFAligned *bool `json:"htf_aligned,omitempty"`
}

// Enricher gathers quotes and bars through a read-through cache so a
// burst of alerts on the same symbol hits the providers once.
// ⭐ SSOT: 시장 데이터 수집은 여기서만
type Enricher struct {
	quotes contracts.QuoteProvider
	bars   contracts.BarProvider
	cache  *redis.Cache // nil disables caching
	logger *logger.Logger
}

// NewEnricher creates a new market data enricher
func NewEnricher(quotes contracts.QuoteProvider, bars contracts.BarProvider, cache *redis.Cache, log *logger.Logger) *Enricher {
	return &Enricher{
		quotes: quotes,
		bars:   bars,
		cache:  cache,
		logger: log,
	}
}

// Enrich gathers the quote, intraday bars and higher-timeframe trend
// alignment for a symbol. Provider failures leave the corresponding
// field empty; downstream scoring treats missing data as neutral.
func (e *Enricher) Enrich(ctx context.Context, symbol, side string) *Snapshot {
	snap := &Snapshot{}

	quote, err := e.getQuote(ctx, symbol)
	if err != nil {
		e.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		}).Warn("Quote enrichment failed")
	} else {
		snap.Quote = quote
	}

	ltf, err := e.getBars(ctx, symbol, intervalLTF, redis.TTLBarsLTF)
	if err != nil {
		e.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		}).Warn("Intraday bars enrichment failed")
	} else {
		snap.LTFBars = reverseBars(ltf)
	}

	htf, err := e.getBars(ctx, symbol, intervalHTF, redis.TTLBarsHTF)
	if err != nil {
		e.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		}).Warn("Hourly bars enrichment failed")
	} else {
		snap.HTFAligned = htfAlignment(htf, side)
	}

	return snap
}

func (e *Enricher) getQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	if e.cache == nil {
		return e.quotes.GetQuote(ctx, symbol)
	}

	var quote contracts.Quote
	err := e.cache.GetOrSet(ctx, redis.QuoteKey(symbol), &quote, redis.TTLQuote, func() (interface{}, error) {
		return e.quotes.GetQuote(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// getBars returns bars in provider order (newest first)
func (e *Enricher) getBars(ctx context.Context, symbol, interval string, ttl time.Duration) ([]contracts.Bar, error) {
	if e.cache == nil {
		return e.bars.GetBars(ctx, symbol, interval)
	}

	var bars []contracts.Bar
	err := e.cache.GetOrSet(ctx, redis.BarsKey(symbol, interval), &bars, ttl, func() (interface{}, error) {
		return e.bars.GetBars(ctx, symbol, interval)
	})
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// htfAlignment compares the two newest hourly closes against the trade
// direction. Returns nil when the series is too short to judge.
func htfAlignment(newestFirst []contracts.Bar, side string) *bool {
	if len(newestFirst) < 2 {
		return nil
	}

	trendUp := newestFirst[0].Close >= newestFirst[1].Close
	aligned := trendUp
	if isShort(side) {
		aligned = !trendUp
	}
	return &aligned
}

func isShort(side string) bool {
	switch strings.ToLower(side) {
	case "sell", "short", "put":
		return true
	}
	return false
}

// reverseBars flips a newest-first series into chronological order
func reverseBars(newestFirst []contracts.Bar) []contracts.Bar {
	out := make([]contracts.Bar, len(newestFirst))
	for i, b := range newestFirst {
		out[len(newestFirst)-1-i] = b
	}
	return out
}
