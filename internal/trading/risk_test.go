package trading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/miyagi/internal/contracts"
)

func defaultCfg() *contracts.StrategyConfig {
	cfg := contracts.DefaultStrategyConfig("orb-15m")
	return &cfg
}

func TestCheck_AllowsWithinLimits(t *testing.T) {
	rc := NewRiskChecker(&mockTradeRepo{openedToday: 2, openCount: 1}, testLogger())

	res, err := rc.Check(context.Background(), "acct-1", defaultCfg(), time.Now())
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheck_MissingAccountBlocks(t *testing.T) {
	rc := NewRiskChecker(&mockTradeRepo{}, testLogger())

	res, err := rc.Check(context.Background(), "", defaultCfg(), time.Now())
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonMissingAccount, res.Reason)
}

func TestCheck_DailyCapBlocks(t *testing.T) {
	rc := NewRiskChecker(&mockTradeRepo{openedToday: 5}, testLogger())

	res, err := rc.Check(context.Background(), "acct-1", defaultCfg(), time.Now())
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonMaxTradesPerDay, res.Reason)
}

func TestCheck_ConcurrencyCapBlocks(t *testing.T) {
	rc := NewRiskChecker(&mockTradeRepo{openCount: 2}, testLogger())

	res, err := rc.Check(context.Background(), "acct-1", defaultCfg(), time.Now())
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonMaxConcurrent, res.Reason)
}
