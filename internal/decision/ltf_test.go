package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/miyagi/internal/contracts"
)

// makeBars builds n chronological bars ending at lastClose, with closes
// stepping by step per bar and constant volume.
func makeBars(n int, lastClose, step, volume float64) []contracts.Bar {
	bars := make([]contracts.Bar, n)
	for i := 0; i < n; i++ {
		c := lastClose - float64(n-1-i)*step
		bars[i] = contracts.Bar{
			Time:   int64(i) * 60_000,
			Open:   c - step/2,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: volume,
		}
	}
	return bars
}

func TestScoreLTF_InsufficientBars(t *testing.T) {
	res := ScoreLTF(LTFInput{Bars: makeBars(29, 100, 0.1, 1000), Side: "LONG"})

	assert.Equal(t, 50.0, res.Score)
	assert.Equal(t, []string{LTFInsufficientBars}, res.Why)
	assert.False(t, res.FailedBreakout)
}

func TestScoreLTF_UptrendFavorsLong(t *testing.T) {
	bars := makeBars(60, 110, 0.5, 1000) // steady uptrend

	long := ScoreLTF(LTFInput{Bars: bars, Side: "LONG"})
	short := ScoreLTF(LTFInput{Bars: bars, Side: "SHORT"})

	assert.Greater(t, long.Score, short.Score)
	assert.Contains(t, long.Why, LTFNoLevelGiven)
}

func TestScoreLTF_BreakoutConfirmed(t *testing.T) {
	bars := makeBars(60, 110, 0.5, 1000)
	bars[len(bars)-1].Volume = 1200 // >= 1.1x the 20-bar average
	level := 109.0

	res := ScoreLTF(LTFInput{Bars: bars, Side: "LONG", BreakoutLevel: &level})

	assert.Contains(t, res.Why, LTFBreakoutConfirmed)
	assert.False(t, res.FailedBreakout)
}

func TestScoreLTF_FailedBreakout(t *testing.T) {
	bars := makeBars(60, 110, 0.5, 1000)
	bars[len(bars)-1].Volume = 1200
	level := 115.0 // close does not clear the level despite elevated volume

	res := ScoreLTF(LTFInput{Bars: bars, Side: "LONG", BreakoutLevel: &level})

	assert.True(t, res.FailedBreakout)
	assert.Contains(t, res.Why, LTFFailedBreakout)
}

func TestScoreLTF_WeakConfirmation(t *testing.T) {
	bars := makeBars(60, 110, 0.5, 1000) // volume flat, not elevated
	level := 109.0

	res := ScoreLTF(LTFInput{Bars: bars, Side: "LONG", BreakoutLevel: &level})

	assert.Contains(t, res.Why, LTFWeakConfirmation)
	assert.False(t, res.FailedBreakout)
}

func TestScoreLTF_VolumeDiagnostics(t *testing.T) {
	spike := makeBars(60, 110, 0.5, 1000)
	spike[len(spike)-1].Volume = 1400
	res := ScoreLTF(LTFInput{Bars: spike, Side: "LONG"})
	assert.Contains(t, res.Why, LTFVolSpike)

	thin := makeBars(60, 110, 0.5, 1000)
	thin[len(thin)-1].Volume = 500
	res = ScoreLTF(LTFInput{Bars: thin, Side: "LONG"})
	assert.Contains(t, res.Why, LTFVolThin)
}

func TestScoreLTF_Deterministic(t *testing.T) {
	bars := makeBars(60, 110, 0.5, 1000)
	level := 109.0
	in := LTFInput{Bars: bars, Side: "LONG", BreakoutLevel: &level}

	first := ScoreLTF(in)
	for i := 0; i < 5; i++ {
		again := ScoreLTF(in)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.Why, again.Why)
	}
}

func TestScoreLTF_ScoreWithinBounds(t *testing.T) {
	res := ScoreLTF(LTFInput{Bars: makeBars(60, 110, 0.5, 1000), Side: "LONG"})
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 100.0)
}
