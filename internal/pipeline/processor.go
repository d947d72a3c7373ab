package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/internal/decision"
	"github.com/wonny/miyagi/internal/market"
	"github.com/wonny/miyagi/internal/options"
	"github.com/wonny/miyagi/internal/trading"
	"github.com/wonny/miyagi/internal/webhook"
	"github.com/wonny/miyagi/pkg/logger"
)

// Outcome is the result of processing one stored webhook event
type Outcome struct {
	WebhookID    string             `json:"webhook_id"`
	SignalID     string             `json:"signal_id"`
	Decision     contracts.Decision `json:"decision"`
	OptionPicked bool               `json:"option_picked"`
	TradeID      string             `json:"trade_id,omitempty"`
}

// Processor runs the full alert-to-decision pipeline for one event.
// Safe under at-least-once delivery: a replay of an already processed
// event returns the existing outcome without side effects.
// ⭐ SSOT: 파이프라인 오케스트레이션은 여기서만
type Processor struct {
	events   contracts.EventRepository
	signals  contracts.SignalRepository
	configs  contracts.StrategyConfigRepository
	accounts contracts.AccountResolver
	enricher *market.Enricher
	risk     *trading.RiskChecker
	recorder *trading.Recorder
	chains   contracts.OptionsProvider // nil when brokerage is not configured
	logger   *logger.Logger
	now      func() time.Time
}

// NewProcessor creates a new pipeline processor
func NewProcessor(
	events contracts.EventRepository,
	signals contracts.SignalRepository,
	configs contracts.StrategyConfigRepository,
	accounts contracts.AccountResolver,
	enricher *market.Enricher,
	risk *trading.RiskChecker,
	recorder *trading.Recorder,
	chains contracts.OptionsProvider,
	log *logger.Logger,
) *Processor {
	return &Processor{
		events:   events,
		signals:  signals,
		configs:  configs,
		accounts: accounts,
		enricher: enricher,
		risk:     risk,
		recorder: recorder,
		chains:   chains,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the processor's clock
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Process runs normalization, enrichment, gating, scoring, ranking,
// contract selection and trade recording for a stored event.
func (p *Processor) Process(ctx context.Context, eventID string) (*Outcome, error) {
	ev, err := p.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}

	// Replay of an already processed event returns the recorded outcome
	if ev.Status == contracts.EventProcessed {
		if sig, err := p.signals.GetByWebhookID(ctx, ev.ID); err == nil {
			return &Outcome{
				WebhookID:    ev.ID,
				SignalID:     sig.ID,
				Decision:     sig.Decision,
				OptionPicked: pickedContract(sig.OptionPick),
			}, nil
		}
	}

	alert := webhook.Normalize(ev.Payload)
	if err := p.events.UpdateNormalized(ctx, ev.ID, alert); err != nil {
		return nil, fmt.Errorf("persist normalized columns: %w", err)
	}

	now := p.now()
	nowMs := now.UnixMilli()

	symbol := orUnknown(alert.Symbol)
	side := orUnknown(alert.Side)
	strategyID := alert.StrategyID
	if strategyID == "" {
		strategyID = "default"
	}
	timeframe := orUnknown(alert.Timeframe)
	event := orUnknown(alert.Event)

	timestampMs := nowMs
	if alert.TimestampMs != nil {
		timestampMs = *alert.TimestampMs
	}

	// Single-tenant account resolution; missing account blocks trading
	// downstream, never the pipeline itself.
	accountID, err := p.accounts.Resolve(ctx)
	if err != nil {
		accountID = ""
	}

	cfg, err := p.configs.Get(ctx, accountID, strategyID)
	if err != nil {
		return nil, fmt.Errorf("resolve strategy config: %w", err)
	}

	snap := p.enricher.Enrich(ctx, symbol, side)

	gate, err := decision.EvaluateSession(nowMs, decision.SessionConfig{
		Timezone:        cfg.Timezone,
		RTHStart:        cfg.RTHStart,
		RTHEnd:          cfg.RTHEnd,
		LunchStart:      cfg.LunchStart,
		LunchEnd:        cfg.LunchEnd,
		AllowOutsideRTH: cfg.AllowOutsideRTH,
		AllowLunch:      cfg.AllowLunch,
	})
	if err != nil {
		p.events.UpdateStatus(ctx, ev.ID, contracts.EventError, err.Error())
		return nil, fmt.Errorf("session gate: %w", err)
	}
	if !gate.Allowed {
		return p.recordShortCircuit(ctx, ev, alert, snap, strategyID,
			"SESSION_"+string(gate.BlockReason))
	}

	riskRes, err := p.risk.Check(ctx, accountID, cfg, now)
	if err != nil {
		return nil, fmt.Errorf("risk check: %w", err)
	}

	ltfSide := "LONG"
	if strings.ToUpper(alert.Side) == "SHORT" {
		ltfSide = "SHORT"
	}
	ltf := decision.ScoreLTF(decision.LTFInput{
		Bars:          snap.LTFBars,
		Side:          ltfSide,
		BreakoutLevel: alert.BreakoutLevel,
	})

	// A failed breakout bypasses the engine entirely
	if ltf.FailedBreakout {
		why := append([]string{"FAILED_BREAKOUT"}, ltf.Why...)
		return p.recordShortCircuit(ctx, ev, alert, snap, strategyID,
			strings.Join(why, ", "))
	}

	engineOut := decision.Decide(decision.EngineInput{
		NowMs:       nowMs,
		TimestampMs: timestampMs,
		Confidence:  alert.Confidence,
		Config: decision.EngineConfig{
			TradeThreshold: cfg.TradeThreshold,
			WatchThreshold: cfg.WatchThreshold,
			DecayPerMinute: cfg.DecayPerMinute,
			AutoCancelMins: cfg.AutoCancelMins,
		},
		Enrichment: decision.Enrichment{
			HTFAligned:        snap.HTFAligned,
			LTFQualityScore:   ltf.Score,
			TimeGateScore:     decision.TimeScore(gate.Session),
			VolExpansionScore: 50, // neutral until a dedicated expansion feed exists
		},
		Risk: decision.RiskResult{Allowed: riskRes.Allowed, Reason: riskRes.Reason},
	})

	// Scarcity gate: a TRADE must out-rank its 10-minute cohort
	finalDecision := engineOut.Decision
	var topN *decision.TopNResult
	if finalDecision == contracts.DecisionTrade {
		currentID := "candidate:" + ev.ID
		since := time.UnixMilli(nowMs - decision.TopNWindowSec*1000)

		recent, err := p.signals.RecentCandidates(ctx, strategyID, timeframe, since)
		if err != nil {
			return nil, fmt.Errorf("load ranking window: %w", err)
		}
		candidates := append(recent, contracts.Candidate{
			ID:         currentID,
			Symbol:     symbol,
			FinalScore: engineOut.FinalScore,
			Ts:         nowMs,
		})

		res := decision.RankCandidates(candidates, currentID, cfg.TopN)
		topN = &res
		if !res.Allowed {
			finalDecision = contracts.DecisionWatch
		}
	}

	whys := append([]string{}, engineOut.Reasons...)
	whys = append(whys, ltf.Why...)
	if topN != nil {
		whys = append(whys, fmt.Sprintf("TOPN_RANK_%d_OF_%d", topN.Rank, topN.Total))
	}

	confidence := 50.0
	if alert.Confidence != nil {
		confidence = *alert.Confidence
	}

	signal := &contracts.Signal{
		WebhookID:  ev.ID,
		StrategyID: strategyID,
		Symbol:     symbol,
		Side:       side,
		Timeframe:  timeframe,
		Event:      event,
		BaseScore:  confidence,
		FinalScore: engineOut.FinalScore,
		Decision:   finalDecision,
		DecisionWhy: strings.Join(whys, ", "),
		Enrichment: enrichmentSnapshot(alert, snap, gate.Session, cfg, &ltf),
	}
	if topN != nil {
		windowSec := decision.TopNWindowSec
		signal.ScannerRank = &topN.Rank
		signal.ScannerTotal = &topN.Total
		signal.ScannerWindowSec = &windowSec
	}
	if engineOut.ExpiresAtMs > 0 {
		expiresAt := time.UnixMilli(engineOut.ExpiresAtMs)
		signal.ExpiresAt = &expiresAt
	}

	if err := p.signals.Create(ctx, signal); err != nil {
		return nil, fmt.Errorf("create signal: %w", err)
	}

	outcome := &Outcome{WebhookID: ev.ID, SignalID: signal.ID, Decision: finalDecision}

	if finalDecision == contracts.DecisionTrade && p.chains != nil && accountID != "" {
		outcome = p.executeTrade(ctx, outcome, signal, snap, cfg, engineOut, accountID, ltfSide)
	}

	if err := p.events.UpdateStatus(ctx, ev.ID, contracts.EventProcessed, ""); err != nil {
		return nil, fmt.Errorf("mark event processed: %w", err)
	}
	return outcome, nil
}

// executeTrade selects a contract and records the trade. Selection and
// execution failures are captured into the signal's option-pick snapshot
// so the job itself never fails here.
func (p *Processor) executeTrade(
	ctx context.Context,
	outcome *Outcome,
	signal *contracts.Signal,
	snap *market.Snapshot,
	cfg *contracts.StrategyConfig,
	engineOut decision.EngineOutput,
	accountID, ltfSide string,
) *Outcome {
	expirations, err := p.chains.GetExpirations(ctx, signal.Symbol)
	if err != nil {
		p.captureSelectionError(ctx, signal.ID, err)
		return outcome
	}
	if len(expirations) == 0 {
		return outcome
	}
	expIdx := cfg.MinDTE
	if expIdx >= len(expirations) {
		expIdx = 0
	}
	expiration := expirations[expIdx]

	chain, err := p.chains.GetChain(ctx, signal.Symbol, expiration)
	if err != nil {
		p.captureSelectionError(ctx, signal.ID, err)
		return outcome
	}

	wantType := "call"
	if ltfSide == "SHORT" {
		wantType = "put"
	}
	filtered := make([]contracts.OptionContract, 0, len(chain))
	for _, c := range chain {
		if c.Type == wantType {
			filtered = append(filtered, c)
		}
	}

	best, ranked := options.PickBest(filtered, options.Constraints{
		MinOI:          cfg.MinOI,
		MinVolume:      cfg.MinVolume,
		MaxSpreadPct:   cfg.MaxSpreadPct,
		MinOptionPrice: cfg.MinOptionPrice,
		DeltaMin:       cfg.DeltaMin,
		DeltaMax:       cfg.DeltaMax,
	})

	rankedTop := ranked
	if len(rankedTop) > 5 {
		rankedTop = rankedTop[:5]
	}
	pick, _ := json.Marshal(map[string]interface{}{"best": best, "rankedTop5": rankedTop})
	if err := p.signals.AttachOptionPick(ctx, signal.ID, pick); err != nil {
		p.logger.WithError(err).Warn("Failed to attach option pick")
	}

	if best == nil {
		if err := p.signals.Downgrade(ctx, signal.ID, contracts.DecisionWatch, "NO_VIABLE_CONTRACT"); err != nil {
			p.logger.WithError(err).Warn("Failed to downgrade signal")
		}
		outcome.Decision = contracts.DecisionWatch
		return outcome
	}
	outcome.OptionPicked = true

	trade, err := p.recorder.Record(ctx, accountID, signal, best, cfg.Mode, trading.AuditContext{
		Decision: outcome.Decision,
		Reasons:  strings.Join(engineOut.Reasons, ", "),
		Config:   cfg,
		Ranked:   ranked,
		Quote:    snap.Quote,
	})
	if err != nil {
		p.captureSelectionError(ctx, signal.ID, err)
		return outcome
	}

	outcome.TradeID = trade.ID
	return outcome
}

// recordShortCircuit persists a zero-score SKIP signal for alerts blocked
// before the engine (session gate, failed breakout).
func (p *Processor) recordShortCircuit(
	ctx context.Context,
	ev *contracts.InboundEvent,
	alert *contracts.NormalizedAlert,
	snap *market.Snapshot,
	strategyID, why string,
) (*Outcome, error) {
	confidence := 50.0
	if alert.Confidence != nil {
		confidence = *alert.Confidence
	}

	signal := &contracts.Signal{
		WebhookID:   ev.ID,
		StrategyID:  strategyID,
		Symbol:      orUnknown(alert.Symbol),
		Side:        orUnknown(alert.Side),
		Timeframe:   orUnknown(alert.Timeframe),
		Event:       orUnknown(alert.Event),
		BaseScore:   confidence,
		FinalScore:  0,
		Decision:    contracts.DecisionSkip,
		DecisionWhy: why,
		Enrichment:  enrichmentSnapshot(alert, snap, "", nil, nil),
	}
	if err := p.signals.Create(ctx, signal); err != nil {
		return nil, fmt.Errorf("create signal: %w", err)
	}
	if err := p.events.UpdateStatus(ctx, ev.ID, contracts.EventProcessed, ""); err != nil {
		return nil, fmt.Errorf("mark event processed: %w", err)
	}
	return &Outcome{WebhookID: ev.ID, SignalID: signal.ID, Decision: contracts.DecisionSkip}, nil
}

func (p *Processor) captureSelectionError(ctx context.Context, signalID string, cause error) {
	p.logger.WithError(cause).Warn("Contract selection failed")
	pick, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if err := p.signals.AttachOptionPick(ctx, signalID, pick); err != nil {
		p.logger.WithError(err).Warn("Failed to attach selection error")
	}
}

// enrichmentSnapshot freezes the market context onto the signal for audit
func enrichmentSnapshot(
	alert *contracts.NormalizedAlert,
	snap *market.Snapshot,
	session decision.Session,
	cfg *contracts.StrategyConfig,
	ltf *decision.LTFResult,
) json.RawMessage {
	payload := map[string]interface{}{
		"normalized":   alert,
		"ltfBarsCount": len(snap.LTFBars),
	}
	if snap.Quote != nil {
		payload["quote"] = snap.Quote
	}
	if snap.HTFAligned != nil {
		payload["htfAligned"] = *snap.HTFAligned
	}
	if session != "" {
		payload["session"] = session
	}
	if cfg != nil {
		payload["sessionCfg"] = map[string]interface{}{
			"timezone":        cfg.Timezone,
			"rthStart":        cfg.RTHStart,
			"rthEnd":          cfg.RTHEnd,
			"lunchStart":      cfg.LunchStart,
			"lunchEnd":        cfg.LunchEnd,
			"allowOutsideRTH": cfg.AllowOutsideRTH,
			"allowLunch":      cfg.AllowLunch,
		}
	}
	if ltf != nil {
		payload["ltf"] = map[string]interface{}{
			"score":          ltf.Score,
			"why":            ltf.Why,
			"failedBreakout": ltf.FailedBreakout,
		}
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// pickedContract reports whether a stored option pick snapshot contains a
// selected contract (selection errors and empty picks do not).
func pickedContract(pick json.RawMessage) bool {
	if len(pick) == 0 {
		return false
	}
	var probe struct {
		Best json.RawMessage `json:"best"`
	}
	if err := json.Unmarshal(pick, &probe); err != nil {
		return false
	}
	return len(probe.Best) > 0 && string(probe.Best) != "null"
}
