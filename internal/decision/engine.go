package decision

import (
	"fmt"

	"github.com/wonny/miyagi/internal/contracts"
)

// EngineConfig holds the decisioning thresholds for one strategy
type EngineConfig struct {
	TradeThreshold float64
	WatchThreshold float64
	DecayPerMinute float64
	AutoCancelMins int
}

// Enrichment carries the five normalized 0-100 sub-scores feeding the
// weighted sum, plus the failed-breakout flag from the LTF scorer.
type Enrichment struct {
	HTFAligned        *bool // nil = unknown/neutral
	LTFQualityScore   float64
	TimeGateScore     float64
	VolExpansionScore float64
	FailedBreakout    bool
}

// RiskResult is the upstream risk-check outcome
type RiskResult struct {
	Allowed bool
	Reason  string
}

// EngineInput is everything Decide needs. Pure data: given identical
// inputs the output (including the reason trail) is byte-identical.
type EngineInput struct {
	NowMs       int64
	TimestampMs int64
	Confidence  *float64 // 0-100, nil defaults to 50
	Config      EngineConfig
	Enrichment  Enrichment
	Risk        RiskResult
}

// EngineOutput is the terminal decision with its audit trail
type EngineOutput struct {
	Decision   contracts.Decision
	BaseScore  float64
	FinalScore float64
	Reasons    []string
	ExpiresAtMs int64 // 0 when not applicable
}

// Decide combines the sub-scores into a time-decayed final score and maps
// it onto TRADE/WATCH/SKIP/CANCEL. Each branch is terminal and appends a
// structured reason; the trail is persisted verbatim for audit.
// ⭐ SSOT: 매매 판단 로직은 여기서만
func Decide(in EngineInput) EngineOutput {
	reasons := []string{}

	minutesOld := float64(in.NowMs-in.TimestampMs) / 60000
	if minutesOld < 0 {
		minutesOld = 0
	}

	sWebhook := clamp(valueOr(in.Confidence, 50), 0, 100)
	sTime := clamp(in.Enrichment.TimeGateScore, 0, 100)
	sHTF := 50.0
	if in.Enrichment.HTFAligned != nil {
		if *in.Enrichment.HTFAligned {
			sHTF = 80
		} else {
			sHTF = 20
		}
	}
	sLTF := clamp(in.Enrichment.LTFQualityScore, 0, 100)
	sVol := clamp(in.Enrichment.VolExpansionScore, 0, 100)

	if in.Enrichment.FailedBreakout {
		reasons = append(reasons, "failed_breakout_protection")
		return EngineOutput{Decision: contracts.DecisionSkip, BaseScore: sWebhook, FinalScore: 0, Reasons: reasons}
	}

	// Webhook confidence dominates; session quality is gated hard upstream
	// so it only carries a small weight here.
	rawScore := 0.35*sWebhook + 0.10*sTime + 0.25*sHTF + 0.25*sLTF + 0.05*sVol
	finalScore := rawScore - in.Config.DecayPerMinute*minutesOld

	reasons = append(reasons, fmt.Sprintf(
		"SCORES:web=%.1f,time=%.1f,htf=%.1f,ltf=%.1f,vol=%.1f",
		sWebhook, sTime, sHTF, sLTF, sVol,
	))

	if minutesOld > 0 {
		reasons = append(reasons, fmt.Sprintf("confidence_decay_minutes:%.1f", minutesOld))
	}

	expiresAtMs := in.TimestampMs + int64(in.Config.AutoCancelMins)*60_000
	if in.NowMs > expiresAtMs {
		reasons = append(reasons, "auto_cancel_expired")
		return EngineOutput{Decision: contracts.DecisionCancel, BaseScore: sWebhook, FinalScore: finalScore, Reasons: reasons, ExpiresAtMs: expiresAtMs}
	}

	if !in.Risk.Allowed {
		reason := in.Risk.Reason
		if reason == "" {
			reason = "unknown"
		}
		reasons = append(reasons, "risk_blocked:"+reason)
		return EngineOutput{Decision: contracts.DecisionSkip, BaseScore: sWebhook, FinalScore: finalScore, Reasons: reasons, ExpiresAtMs: expiresAtMs}
	}

	if finalScore >= in.Config.TradeThreshold {
		reasons = append(reasons, "meets_trade_threshold")
		return EngineOutput{Decision: contracts.DecisionTrade, BaseScore: sWebhook, FinalScore: finalScore, Reasons: reasons, ExpiresAtMs: expiresAtMs}
	}
	if finalScore >= in.Config.WatchThreshold {
		reasons = append(reasons, "meets_watch_threshold")
		return EngineOutput{Decision: contracts.DecisionWatch, BaseScore: sWebhook, FinalScore: finalScore, Reasons: reasons, ExpiresAtMs: expiresAtMs}
	}

	reasons = append(reasons, "below_thresholds")
	return EngineOutput{Decision: contracts.DecisionSkip, BaseScore: sWebhook, FinalScore: finalScore, Reasons: reasons, ExpiresAtMs: expiresAtMs}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
