package decision

import (
	"github.com/wonny/miyagi/internal/contracts"
)

// Reason tags emitted by the LTF scorer
const (
	LTFInsufficientBars  = "LTF_INSUFFICIENT_BARS"
	LTFBreakoutConfirmed = "LTF_BREAKOUT_CONFIRMED"
	LTFFailedBreakout    = "LTF_FAILED_BREAKOUT"
	LTFWeakConfirmation  = "LTF_WEAK_CONFIRMATION"
	LTFNoLevelGiven      = "LTF_NO_LEVEL_GIVEN"
	LTFVolSpike          = "LTF_VOL_SPIKE"
	LTFVolThin           = "LTF_VOL_THIN"
)

// LTFInput is the lower-timeframe scoring request. Bars must be in
// chronological order, oldest first.
type LTFInput struct {
	Bars          []contracts.Bar
	Side          string // LONG or SHORT
	BreakoutLevel *float64
}

// LTFResult carries the entry-timing quality score with its diagnostics
type LTFResult struct {
	Score          float64
	Why            []string
	FailedBreakout bool
}

// ScoreLTF computes trend/momentum/breakout quality from recent bars.
// Fewer than 30 bars yields a neutral 50, never an error. Points:
// trend max 35 (EMA9 vs EMA21), momentum max 35 (RSI14 band), breakout
// max 30 (close beyond level on elevated volume); clamped to [0,100].
// A close that fails to clear the level on elevated volume sets
// FailedBreakout, which forces the final decision to SKIP upstream.
func ScoreLTF(in LTFInput) LTFResult {
	why := []string{}

	if len(in.Bars) < 30 {
		return LTFResult{Score: 50, Why: []string{LTFInsufficientBars}}
	}

	closes := make([]float64, len(in.Bars))
	vols := make([]float64, len(in.Bars))
	for i, b := range in.Bars {
		closes[i] = b.Close
		vols[i] = b.Volume
	}

	ema9 := ema(tail(closes, 50), 9)
	ema21 := ema(tail(closes, 50), 21)
	r := rsi(tail(closes, 60), 14)

	volNow := vols[len(vols)-1]
	volAvg := sma(vols, 20)

	var trendPts float64
	if in.Side == "LONG" {
		trendPts = 10
		if ema9 > ema21 {
			trendPts = 35
		}
	} else {
		trendPts = 10
		if ema9 < ema21 {
			trendPts = 35
		}
	}

	var rsiPts float64
	if in.Side == "LONG" {
		switch {
		case r >= 45 && r <= 70:
			rsiPts = 35
		case r > 70:
			rsiPts = 20
		default:
			rsiPts = 10
		}
	} else {
		switch {
		case r >= 30 && r <= 55:
			rsiPts = 35
		case r < 30:
			rsiPts = 20
		default:
			rsiPts = 10
		}
	}

	boPts := 20.0
	failedBreakout := false

	if in.BreakoutLevel != nil {
		last := in.Bars[len(in.Bars)-1]
		closesBeyond := last.Close > *in.BreakoutLevel
		if in.Side != "LONG" {
			closesBeyond = last.Close < *in.BreakoutLevel
		}
		volOK := volNow >= volAvg*1.1

		switch {
		case closesBeyond && volOK:
			boPts = 30
			why = append(why, LTFBreakoutConfirmed)
		case !closesBeyond && volOK:
			boPts = 10
			failedBreakout = true
			why = append(why, LTFFailedBreakout)
		default:
			boPts = 15
			why = append(why, LTFWeakConfirmation)
		}
	} else {
		why = append(why, LTFNoLevelGiven)
	}

	// Volume-expansion diagnostics (not scored)
	if volNow >= volAvg*1.3 {
		why = append(why, LTFVolSpike)
	}
	if volNow < volAvg*0.7 {
		why = append(why, LTFVolThin)
	}

	score := trendPts + rsiPts + boPts
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return LTFResult{Score: score, Why: why, FailedBreakout: failedBreakout}
}

// tail returns the last n values (all of them when shorter)
func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// ema computes an exponential moving average seeded from the first value
func ema(values []float64, length int) float64 {
	if len(values) == 0 {
		return 0
	}

	k := 2.0 / (float64(length) + 1.0)
	e := values[0]
	for i := 1; i < len(values); i++ {
		e = values[i]*k + e*(1-k)
	}
	return e
}

// sma averages the last length values, or all values when shorter
func sma(values []float64, length int) float64 {
	if len(values) < length {
		var sum float64
		for _, v := range values {
			sum += v
		}
		n := len(values)
		if n == 0 {
			n = 1
		}
		return sum / float64(n)
	}

	var sum float64
	for _, v := range values[len(values)-length:] {
		sum += v
	}
	return sum / float64(length)
}

// rsi computes a summed-gain/loss RSI over the trailing period
func rsi(closes []float64, length int) float64 {
	if len(closes) < length+1 {
		return 50
	}

	var gains, losses float64
	for i := len(closes) - length; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}

	rs := 999.0
	if losses != 0 {
		rs = gains / losses
	}
	return 100 - 100/(1+rs)
}
