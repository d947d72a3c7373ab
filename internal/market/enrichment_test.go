package market

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/logger"
)

type fakeQuotes struct {
	quote *contracts.Quote
	err   error
}

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	return f.quote, f.err
}

type fakeBars struct {
	bySeries map[string][]contracts.Bar
	err      error
}

func (f *fakeBars) GetBars(ctx context.Context, symbol, interval string) ([]contracts.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bySeries[interval], nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "json"})
}

func newestFirst(closes ...float64) []contracts.Bar {
	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.Bar{Time: int64(1000 - i), Close: c}
	}
	return bars
}

func TestEnrich_ReversesIntradayBarsToChronological(t *testing.T) {
	bars := &fakeBars{bySeries: map[string][]contracts.Bar{
		"5min": newestFirst(103, 102, 101),
		"1h":   newestFirst(110, 100),
	}}
	e := NewEnricher(&fakeQuotes{quote: &contracts.Quote{Symbol: "SPY"}}, bars, nil, testLogger())

	snap := e.Enrich(context.Background(), "SPY", "buy")

	require.Len(t, snap.LTFBars, 3)
	assert.Equal(t, 101.0, snap.LTFBars[0].Close)
	assert.Equal(t, 103.0, snap.LTFBars[2].Close)
}

func TestEnrich_HTFAlignment(t *testing.T) {
	tests := []struct {
		name    string
		closes  []float64 // newest first
		side    string
		want    *bool
	}{
		{"uptrend long aligned", []float64{110, 100}, "buy", boolPtr(true)},
		{"uptrend short misaligned", []float64{110, 100}, "sell", boolPtr(false)},
		{"downtrend short aligned", []float64{100, 110}, "short", boolPtr(true)},
		{"flat counts as uptrend", []float64{100, 100}, "buy", boolPtr(true)},
		{"single bar unknown", []float64{100}, "buy", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := &fakeBars{bySeries: map[string][]contracts.Bar{
				"1h": newestFirst(tt.closes...),
			}}
			e := NewEnricher(&fakeQuotes{}, bars, nil, testLogger())

			snap := e.Enrich(context.Background(), "SPY", tt.side)

			if tt.want == nil {
				assert.Nil(t, snap.HTFAligned)
			} else {
				require.NotNil(t, snap.HTFAligned)
				assert.Equal(t, *tt.want, *snap.HTFAligned)
			}
		})
	}
}

func TestEnrich_ProviderFailuresDegradeToEmpty(t *testing.T) {
	e := NewEnricher(
		&fakeQuotes{err: errors.New("quote api down")},
		&fakeBars{err: errors.New("bars api down")},
		nil, testLogger(),
	)

	snap := e.Enrich(context.Background(), "SPY", "buy")

	assert.Nil(t, snap.Quote)
	assert.Empty(t, snap.LTFBars)
	assert.Nil(t, snap.HTFAligned)
}

func boolPtr(v bool) *bool { return &v }
