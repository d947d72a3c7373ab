package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nyCfg() SessionConfig {
	return SessionConfig{
		Timezone:        "America/New_York",
		RTHStart:        "09:30",
		RTHEnd:          "16:00",
		LunchStart:      "12:00",
		LunchEnd:        "13:30",
		AllowOutsideRTH: false,
		AllowLunch:      true,
	}
}

func nyMillis(t *testing.T, hour, minute int) int64 {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, 8, 31, hour, minute, 0, 0, loc).UnixMilli()
}

func TestEvaluateSession_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		hour    int
		minute  int
		session Session
	}{
		{"29 min after open", 9, 59, SessionOpen},
		{"exactly 30 min after open", 10, 0, SessionOpen},
		{"31 min after open", 10, 1, SessionMid},
		{"59 min before close", 15, 1, SessionPower},
		{"exactly 60 min before close", 15, 0, SessionPower},
		{"lunch window", 12, 30, SessionLunch},
		{"mid afternoon", 14, 0, SessionMid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, err := EvaluateSession(nyMillis(t, tt.hour, tt.minute), nyCfg())
			require.NoError(t, err)
			assert.True(t, gate.Allowed)
			assert.Equal(t, tt.session, gate.Session)
		})
	}
}

func TestEvaluateSession_OutsideRTH(t *testing.T) {
	gate, err := EvaluateSession(nyMillis(t, 8, 0), nyCfg())
	require.NoError(t, err)
	assert.False(t, gate.Allowed)
	assert.Equal(t, BlockOutsideRTH, gate.BlockReason)

	gate, err = EvaluateSession(nyMillis(t, 16, 1), nyCfg())
	require.NoError(t, err)
	assert.False(t, gate.Allowed)
	assert.Equal(t, BlockOutsideRTH, gate.BlockReason)

	// Allowed when configured
	cfg := nyCfg()
	cfg.AllowOutsideRTH = true
	gate, err = EvaluateSession(nyMillis(t, 8, 0), cfg)
	require.NoError(t, err)
	assert.True(t, gate.Allowed)
}

func TestEvaluateSession_LunchBlocked(t *testing.T) {
	cfg := nyCfg()
	cfg.AllowLunch = false

	gate, err := EvaluateSession(nyMillis(t, 12, 45), cfg)
	require.NoError(t, err)
	assert.False(t, gate.Allowed)
	assert.Equal(t, BlockLunchBlocked, gate.BlockReason)
}

func TestEvaluateSession_InvalidConfig(t *testing.T) {
	cfg := nyCfg()
	cfg.Timezone = "Mars/Olympus"
	_, err := EvaluateSession(nyMillis(t, 10, 0), cfg)
	assert.Error(t, err)

	cfg = nyCfg()
	cfg.RTHStart = "nine-thirty"
	_, err = EvaluateSession(nyMillis(t, 10, 0), cfg)
	assert.Error(t, err)
}

func TestTimeScore(t *testing.T) {
	assert.Equal(t, 80.0, TimeScore(SessionOpen))
	assert.Equal(t, 75.0, TimeScore(SessionPower))
	assert.Equal(t, 55.0, TimeScore(SessionMid))
	assert.Equal(t, 30.0, TimeScore(SessionLunch))
}
