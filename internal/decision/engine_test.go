package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/miyagi/internal/contracts"
)

func f64(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func baseInput() EngineInput {
	return EngineInput{
		NowMs:       1_756_700_000_000,
		TimestampMs: 1_756_700_000_000,
		Confidence:  f64(90),
		Config: EngineConfig{
			TradeThreshold: 75,
			WatchThreshold: 60,
			DecayPerMinute: 0.6,
			AutoCancelMins: 30,
		},
		Enrichment: Enrichment{
			HTFAligned:        boolPtr(true),
			LTFQualityScore:   80,
			TimeGateScore:     80,
			VolExpansionScore: 50,
		},
		Risk: RiskResult{Allowed: true},
	}
}

func TestDecide_FreshHighConfidenceTrades(t *testing.T) {
	out := Decide(baseInput())

	// 0.35*90 + 0.10*80 + 0.25*80 + 0.25*80 + 0.05*50 = 82
	assert.Equal(t, contracts.DecisionTrade, out.Decision)
	assert.InDelta(t, 82.0, out.FinalScore, 1e-9)
	assert.Equal(t, 90.0, out.BaseScore)
	assert.Contains(t, out.Reasons, "meets_trade_threshold")
	assert.Equal(t, []string{
		"SCORES:web=90.0,time=80.0,htf=80.0,ltf=80.0,vol=50.0",
		"meets_trade_threshold",
	}, out.Reasons)
}

func TestDecide_DecayDropsStaleAlert(t *testing.T) {
	in := baseInput()
	in.Config.AutoCancelMins = 240 // keep auto-cancel out of the way
	in.TimestampMs = in.NowMs - 120*60_000

	out := Decide(in)

	// 82 - 0.6*120 = 10
	assert.InDelta(t, 10.0, out.FinalScore, 1e-9)
	assert.Equal(t, contracts.DecisionSkip, out.Decision)
	assert.Contains(t, out.Reasons, "confidence_decay_minutes:120.0")
	assert.Contains(t, out.Reasons, "below_thresholds")
}

func TestDecide_DecayMonotonic(t *testing.T) {
	prev := 1000.0
	for _, minutes := range []int64{0, 1, 5, 10, 30} {
		in := baseInput()
		in.Config.AutoCancelMins = 60
		in.TimestampMs = in.NowMs - minutes*60_000

		out := Decide(in)
		assert.Less(t, out.FinalScore, prev, "finalScore must strictly decrease as the alert ages")
		prev = out.FinalScore
	}
}

func TestDecide_AutoCancelExpired(t *testing.T) {
	in := baseInput()
	in.TimestampMs = in.NowMs - 31*60_000 // past the 30 min horizon

	out := Decide(in)

	assert.Equal(t, contracts.DecisionCancel, out.Decision)
	assert.Contains(t, out.Reasons, "auto_cancel_expired")
	assert.Equal(t, in.TimestampMs+30*60_000, out.ExpiresAtMs)
}

func TestDecide_RiskBlocked(t *testing.T) {
	in := baseInput()
	in.Risk = RiskResult{Allowed: false, Reason: "max_trades_per_day"}

	out := Decide(in)

	assert.Equal(t, contracts.DecisionSkip, out.Decision)
	assert.Contains(t, out.Reasons, "risk_blocked:max_trades_per_day")

	in.Risk.Reason = ""
	out = Decide(in)
	assert.Contains(t, out.Reasons, "risk_blocked:unknown")
}

func TestDecide_FailedBreakoutForcesSkip(t *testing.T) {
	in := baseInput()
	in.Enrichment.FailedBreakout = true

	out := Decide(in)

	assert.Equal(t, contracts.DecisionSkip, out.Decision)
	assert.Equal(t, 0.0, out.FinalScore)
	assert.Equal(t, []string{"failed_breakout_protection"}, out.Reasons)
}

func TestDecide_WatchBand(t *testing.T) {
	in := baseInput()
	in.Confidence = f64(50)
	in.Enrichment.HTFAligned = nil // neutral 50

	out := Decide(in)

	// 0.35*50 + 0.10*80 + 0.25*50 + 0.25*80 + 0.05*50 = 60.5
	assert.Equal(t, contracts.DecisionWatch, out.Decision)
	assert.InDelta(t, 60.5, out.FinalScore, 1e-9)
	assert.Contains(t, out.Reasons, "meets_watch_threshold")
}

func TestDecide_MissingConfidenceDefaultsNeutral(t *testing.T) {
	in := baseInput()
	in.Confidence = nil

	out := Decide(in)
	assert.Equal(t, 50.0, out.BaseScore)
}

func TestDecide_OpposedHTFScoresLow(t *testing.T) {
	in := baseInput()
	in.Enrichment.HTFAligned = boolPtr(false)

	out := Decide(in)
	assert.Contains(t, out.Reasons[0], "htf=20.0")
}

func TestDecide_ReasonsByteIdenticalAcrossRuns(t *testing.T) {
	in := baseInput()
	in.Config.AutoCancelMins = 240
	in.TimestampMs = in.NowMs - 17*60_000

	first := Decide(in)
	for i := 0; i < 10; i++ {
		again := Decide(in)
		assert.Equal(t, first.Reasons, again.Reasons)
		assert.Equal(t, first.FinalScore, again.FinalScore)
		assert.Equal(t, first.Decision, again.Decision)
	}
}
