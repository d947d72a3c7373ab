package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/internal/market"
	"github.com/wonny/miyagi/internal/trading"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/logger"
)

// ---- fakes ----

type fakeEventRepo struct {
	events map[string]*contracts.InboundEvent
}

func (f *fakeEventRepo) Create(ctx context.Context, e *contracts.InboundEvent) (string, bool, error) {
	f.events[e.ID] = e
	return e.ID, false, nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*contracts.InboundEvent, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, errors.New("event not found")
	}
	copied := *e
	return &copied, nil
}

func (f *fakeEventRepo) UpdateStatus(ctx context.Context, id string, status contracts.EventStatus, errMsg string) error {
	f.events[id].Status = status
	f.events[id].Error = errMsg
	return nil
}

func (f *fakeEventRepo) UpdateNormalized(ctx context.Context, id string, n *contracts.NormalizedAlert) error {
	f.events[id].Status = contracts.EventNormalized
	f.events[id].Symbol = n.Symbol
	return nil
}

type fakeSignalRepo struct {
	signals    []contracts.Signal
	recent     []contracts.Candidate
	downgrades []string
	picks      map[string]json.RawMessage
}

func (f *fakeSignalRepo) Create(ctx context.Context, s *contracts.Signal) error {
	if s.ID == "" {
		s.ID = fmt.Sprintf("sig-%d", len(f.signals)+1)
	}
	f.signals = append(f.signals, *s)
	return nil
}

func (f *fakeSignalRepo) GetByID(ctx context.Context, id string) (*contracts.Signal, error) {
	for i := range f.signals {
		if f.signals[i].ID == id {
			return &f.signals[i], nil
		}
	}
	return nil, errors.New("signal not found")
}

func (f *fakeSignalRepo) GetByWebhookID(ctx context.Context, webhookID string) (*contracts.Signal, error) {
	for i := range f.signals {
		if f.signals[i].WebhookID == webhookID {
			return &f.signals[i], nil
		}
	}
	return nil, errors.New("signal not found")
}

func (f *fakeSignalRepo) List(ctx context.Context, limit int) ([]contracts.Signal, error) {
	return f.signals, nil
}

func (f *fakeSignalRepo) RecentCandidates(ctx context.Context, strategyID, timeframe string, since time.Time) ([]contracts.Candidate, error) {
	return f.recent, nil
}

func (f *fakeSignalRepo) AttachOptionPick(ctx context.Context, id string, pick json.RawMessage) error {
	if f.picks == nil {
		f.picks = map[string]json.RawMessage{}
	}
	f.picks[id] = pick
	return nil
}

func (f *fakeSignalRepo) Downgrade(ctx context.Context, id string, decision contracts.Decision, appendWhy string) error {
	for i := range f.signals {
		if f.signals[i].ID == id {
			f.signals[i].Decision = decision
			f.signals[i].DecisionWhy += ", " + appendWhy
		}
	}
	f.downgrades = append(f.downgrades, appendWhy)
	return nil
}

type fakeConfigRepo struct{ cfg *contracts.StrategyConfig }

func (f *fakeConfigRepo) Get(ctx context.Context, accountID, strategyID string) (*contracts.StrategyConfig, error) {
	if f.cfg != nil {
		return f.cfg, nil
	}
	cfg := contracts.DefaultStrategyConfig(strategyID)
	return &cfg, nil
}

type fakeAccounts struct {
	id  string
	err error
}

func (f *fakeAccounts) Resolve(ctx context.Context) (string, error) { return f.id, f.err }

type fakeQuotes struct{ quote *contracts.Quote }

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	if f.quote == nil {
		return nil, errors.New("no quote")
	}
	return f.quote, nil
}

type fakeBars struct{ bySeries map[string][]contracts.Bar }

func (f *fakeBars) GetBars(ctx context.Context, symbol, interval string) ([]contracts.Bar, error) {
	return f.bySeries[interval], nil
}

type fakeOptionsProvider struct {
	expirations []string
	chain       []contracts.OptionContract
	err         error
}

func (f *fakeOptionsProvider) GetExpirations(ctx context.Context, symbol string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.expirations, nil
}

func (f *fakeOptionsProvider) GetChain(ctx context.Context, symbol, expiration string) ([]contracts.OptionContract, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chain, nil
}

type fakeTradeRepo struct {
	trades      []contracts.Trade
	openedToday int
	openCount   int
}

func (f *fakeTradeRepo) CreateTrade(ctx context.Context, t *contracts.Trade, o *contracts.Order, fl *contracts.Fill) error {
	if t.ID == "" {
		t.ID = fmt.Sprintf("trade-%d", len(f.trades)+1)
	}
	f.trades = append(f.trades, *t)
	return nil
}
func (f *fakeTradeRepo) GetByID(ctx context.Context, id string) (*contracts.Trade, error) {
	return nil, errors.New("not found")
}
func (f *fakeTradeRepo) List(ctx context.Context, limit int) ([]contracts.Trade, error) {
	return f.trades, nil
}
func (f *fakeTradeRepo) ListOpen(ctx context.Context, limit int) ([]contracts.Trade, error) {
	return f.trades, nil
}
func (f *fakeTradeRepo) CountOpenedSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	return f.openedToday, nil
}
func (f *fakeTradeRepo) CountOpen(ctx context.Context, accountID string) (int, error) {
	return f.openCount, nil
}
func (f *fakeTradeRepo) AppendPnl(ctx context.Context, tradeID string, markPrice, pnlUSD float64, raw json.RawMessage) error {
	return nil
}

type fakeBroker struct{}

func (f *fakeBroker) PlaceOrder(ctx context.Context, req contracts.OrderRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"order":{"id":1}}`), nil
}

// ---- fixtures ----

// midSessionClock is a Monday 11:00 America/New_York, mid RTH session
var midSessionClock = time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "json"})
}

func ip(v int) *int         { return &v }
func fp(v float64) *float64 { return &v }

// zigzagBars rises on net while alternating gains and losses, keeping
// RSI inside the favorable band for longs.
func zigzagBars(n int, volume float64) []contracts.Bar {
	bars := make([]contracts.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			price += 1.0
		} else {
			price -= 0.5
		}
		bars[i] = contracts.Bar{Time: int64(i), Close: price, Volume: volume}
	}
	return bars
}

// newestFirst converts chronological bars into provider order
func newestFirst(bars []contracts.Bar) []contracts.Bar {
	out := make([]contracts.Bar, len(bars))
	for i, b := range bars {
		out[len(bars)-1-i] = b
	}
	return out
}

type fixture struct {
	proc    *Processor
	events  *fakeEventRepo
	signals *fakeSignalRepo
	trades  *fakeTradeRepo
	chains  *fakeOptionsProvider
}

func newFixture(t *testing.T, payload string, eventStatus contracts.EventStatus) *fixture {
	t.Helper()

	events := &fakeEventRepo{events: map[string]*contracts.InboundEvent{
		"evt-1": {
			ID:      "evt-1",
			Payload: json.RawMessage(payload),
			Status:  eventStatus,
		},
	}}
	signals := &fakeSignalRepo{}
	trades := &fakeTradeRepo{}
	chains := &fakeOptionsProvider{
		expirations: []string{"2026-01-05", "2026-01-06"},
		chain: []contracts.OptionContract{
			{Symbol: "SPY260105C00640000", Type: "call", Bid: 1.00, Ask: 1.05,
				OpenInt: ip(2000), Volume: ip(500), Delta: fp(0.42)},
			{Symbol: "SPY260105P00640000", Type: "put", Bid: 1.00, Ask: 1.05,
				OpenInt: ip(2000), Volume: ip(500), Delta: fp(-0.42)},
		},
	}

	log := testLogger()
	enricher := market.NewEnricher(
		&fakeQuotes{quote: &contracts.Quote{Symbol: "SPY", Last: fp(640.0)}},
		&fakeBars{bySeries: map[string][]contracts.Bar{
			"5min": newestFirst(zigzagBars(60, 1000)),
			"1h":   newestFirst([]contracts.Bar{{Close: 630}, {Close: 640}}),
		}},
		nil, log,
	)
	risk := trading.NewRiskChecker(trades, log)
	recorder := trading.NewRecorder(trades, &fakeBroker{}, trading.NewFixedSizing(1), log)

	proc := NewProcessor(events, signals, &fakeConfigRepo{}, &fakeAccounts{id: "acct-1"},
		enricher, risk, recorder, chains, log).
		WithClock(func() time.Time { return midSessionClock })

	return &fixture{proc: proc, events: events, signals: signals, trades: trades, chains: chains}
}

func freshPayload(confidence float64) string {
	return fmt.Sprintf(
		`{"strategy_id":"orb-15m","symbol":"SPY","side":"long","timeframe":"5m","event":"entry","confidence":%g,"timestamp_ms":%d}`,
		confidence, midSessionClock.UnixMilli())
}

// ---- tests ----

func TestProcess_FreshAlertTradesOnPaper(t *testing.T) {
	fx := newFixture(t, freshPayload(82), contracts.EventReceived)

	out, err := fx.proc.Process(context.Background(), "evt-1")
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionTrade, out.Decision)
	assert.True(t, out.OptionPicked)
	assert.NotEmpty(t, out.TradeID)

	require.Len(t, fx.signals.signals, 1)
	sig := fx.signals.signals[0]
	assert.Equal(t, contracts.DecisionTrade, sig.Decision)
	assert.Contains(t, sig.DecisionWhy, "meets_trade_threshold")
	assert.Contains(t, sig.DecisionWhy, "LTF_NO_LEVEL_GIVEN")
	assert.Contains(t, sig.DecisionWhy, "TOPN_RANK_1_OF_1")
	require.NotNil(t, sig.ScannerRank)
	assert.Equal(t, 1, *sig.ScannerRank)
	require.NotNil(t, sig.ScannerWindowSec)
	assert.Equal(t, 600, *sig.ScannerWindowSec)

	require.Len(t, fx.trades.trades, 1)
	assert.Equal(t, contracts.ModePaper, fx.trades.trades[0].Mode)
	assert.Equal(t, "SPY260105C00640000", fx.trades.trades[0].OptionSymbol)

	assert.Equal(t, contracts.EventProcessed, fx.events.events["evt-1"].Status)
	assert.Contains(t, string(fx.signals.picks[sig.ID]), "rankedTop5")
}

func TestProcess_ReplayReturnsExistingOutcome(t *testing.T) {
	fx := newFixture(t, freshPayload(82), contracts.EventProcessed)
	fx.signals.signals = []contracts.Signal{{
		ID: "sig-existing", WebhookID: "evt-1", Decision: contracts.DecisionTrade,
	}}

	out, err := fx.proc.Process(context.Background(), "evt-1")
	require.NoError(t, err)

	assert.Equal(t, "sig-existing", out.SignalID)
	assert.Equal(t, contracts.DecisionTrade, out.Decision)
	require.Len(t, fx.signals.signals, 1) // no new signal
	assert.Empty(t, fx.trades.trades)
}

func TestProcess_OutsideRTHShortCircuitsToSkip(t *testing.T) {
	fx := newFixture(t, freshPayload(82), contracts.EventReceived)
	// Monday 08:00 America/New_York, before the opening bell
	fx.proc.WithClock(func() time.Time { return time.Date(2026, 1, 5, 13, 0, 0, 0, time.UTC) })

	out, err := fx.proc.Process(context.Background(), "evt-1")
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionSkip, out.Decision)
	require.Len(t, fx.signals.signals, 1)
	sig := fx.signals.signals[0]
	assert.Equal(t, "SESSION_OUTSIDE_RTH", sig.DecisionWhy)
	assert.Equal(t, 0.0, sig.FinalScore)
	assert.Equal(t, 82.0, sig.BaseScore)
	assert.Empty(t, fx.trades.trades)
	assert.Equal(t, contracts.EventProcessed, fx.events.events["evt-1"].Status)
}

func TestProcess_StaleAlertCancels(t *testing.T) {
	stale := fmt.Sprintf(
		`{"strategy_id":"orb-15m","symbol":"SPY","side":"long","timeframe":"5m","event":"entry","confidence":82,"timestamp_ms":%d}`,
		midSessionClock.Add(-45*time.Minute).UnixMilli())
	fx := newFixture(t, stale, contracts.EventReceived)

	out, err := fx.proc.Process(context.Background(), "evt-1")
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionCancel, out.Decision)
	require.Len(t, fx.signals.signals, 1)
	assert.Contains(t, fx.signals.signals[0].DecisionWhy, "auto_cancel_expired")
	assert.Empty(t, fx.trades.trades)
}

func TestProcess_NoViableContractDowngradesToWatch(t *testing.T) {
	fx := newFixture(t, freshPayload(82), contracts.EventReceived)
	fx.chains.chain = []contracts.OptionContract{
		{Symbol: "ILLIQUID", Type: "call", Bid: 1.00, Ask: 1.05,
			OpenInt: ip(10), Volume: ip(5), Delta: fp(0.42)},
	}

	out, err := fx.proc.Process(context.Background(), "evt-1")
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionWatch, out.Decision)
	assert.False(t, out.OptionPicked)
	assert.Empty(t, out.TradeID)
	require.Len(t, fx.signals.downgrades, 1)
	assert.Equal(t, "NO_VIABLE_CONTRACT", fx.signals.downgrades[0])
	assert.Empty(t, fx.trades.trades)
	assert.Equal(t, contracts.EventProcessed, fx.events.events["evt-1"].Status)
}

func TestProcess_ChainErrorCapturedNotFatal(t *testing.T) {
	fx := newFixture(t, freshPayload(82), contracts.EventReceived)
	fx.chains.err = errors.New("tradier down")

	out, err := fx.proc.Process(context.Background(), "evt-1")
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionTrade, out.Decision)
	assert.Empty(t, out.TradeID)
	sig := fx.signals.signals[0]
	assert.Contains(t, string(fx.signals.picks[sig.ID]), "tradier down")
	assert.Equal(t, contracts.EventProcessed, fx.events.events["evt-1"].Status)
}

func TestProcess_RiskCapBlocksWithReason(t *testing.T) {
	fx := newFixture(t, freshPayload(82), contracts.EventReceived)
	fx.trades.openedToday = 5

	out, err := fx.proc.Process(context.Background(), "evt-1")
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionSkip, out.Decision)
	assert.Contains(t, fx.signals.signals[0].DecisionWhy, "risk_blocked:max_trades_per_day")
	assert.Empty(t, fx.trades.trades)
}

func TestProcess_FailedBreakoutForcesSkip(t *testing.T) {
	payload := fmt.Sprintf(
		`{"strategy_id":"orb-15m","symbol":"SPY","side":"long","timeframe":"5m","event":"entry","confidence":82,"timestamp_ms":%d,"breakout_level":9999}`,
		midSessionClock.UnixMilli())
	fx := newFixture(t, payload, contracts.EventReceived)

	// Elevated volume on the newest bar without clearing the level
	chrono := zigzagBars(60, 1000)
	chrono[len(chrono)-1].Volume = 5000
	fx.proc = NewProcessor(fx.events, fx.signals, &fakeConfigRepo{}, &fakeAccounts{id: "acct-1"},
		market.NewEnricher(
			&fakeQuotes{quote: &contracts.Quote{Symbol: "SPY"}},
			&fakeBars{bySeries: map[string][]contracts.Bar{
				"5min": newestFirst(chrono),
				"1h":   newestFirst([]contracts.Bar{{Close: 630}, {Close: 640}}),
			}},
			nil, testLogger(),
		),
		trading.NewRiskChecker(fx.trades, testLogger()),
		trading.NewRecorder(fx.trades, &fakeBroker{}, trading.NewFixedSizing(1), testLogger()),
		fx.chains, testLogger()).
		WithClock(func() time.Time { return midSessionClock })

	out, err := fx.proc.Process(context.Background(), "evt-1")
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionSkip, out.Decision)
	sig := fx.signals.signals[0]
	assert.True(t, len(sig.DecisionWhy) > 0)
	assert.Contains(t, sig.DecisionWhy, "FAILED_BREAKOUT")
	assert.Equal(t, 0.0, sig.FinalScore)
	assert.Empty(t, fx.trades.trades)
}
