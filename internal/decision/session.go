package decision

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session is a trading-session label within regular trading hours
type Session string

const (
	SessionOpen  Session = "OPEN"
	SessionMid   Session = "MID"
	SessionLunch Session = "LUNCH"
	SessionPower Session = "POWER"
)

// BlockReason is a hard-block outcome of the session gate
type BlockReason string

const (
	BlockOutsideRTH   BlockReason = "OUTSIDE_RTH"
	BlockLunchBlocked BlockReason = "LUNCH_BLOCKED"
)

// SessionConfig holds the per-strategy session gating parameters
type SessionConfig struct {
	Timezone        string
	RTHStart        string // HH:MM
	RTHEnd          string
	LunchStart      string
	LunchEnd        string
	AllowOutsideRTH bool
	AllowLunch      bool
}

// SessionGate is the result of the hard session gate
type SessionGate struct {
	Allowed     bool
	Session     Session
	BlockReason BlockReason
}

// EvaluateSession classifies the current wall-clock time against the
// strategy's trading-session windows. Evaluated before scoring: a blocked
// alert short-circuits to SKIP and never reaches the scorer.
// ⭐ SSOT: 세션 게이트 판정은 여기서만
func EvaluateSession(nowMs int64, cfg SessionConfig) (SessionGate, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return SessionGate{}, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	now := time.UnixMilli(nowMs).In(loc)

	rthStart, err := atTime(now, cfg.RTHStart)
	if err != nil {
		return SessionGate{}, err
	}
	rthEnd, err := atTime(now, cfg.RTHEnd)
	if err != nil {
		return SessionGate{}, err
	}
	lunchStart, err := atTime(now, cfg.LunchStart)
	if err != nil {
		return SessionGate{}, err
	}
	lunchEnd, err := atTime(now, cfg.LunchEnd)
	if err != nil {
		return SessionGate{}, err
	}

	inRTH := !now.Before(rthStart) && !now.After(rthEnd)
	if !inRTH && !cfg.AllowOutsideRTH {
		return SessionGate{BlockReason: BlockOutsideRTH}, nil
	}

	inLunch := !now.Before(lunchStart) && !now.After(lunchEnd)
	if inLunch && !cfg.AllowLunch {
		return SessionGate{BlockReason: BlockLunchBlocked}, nil
	}

	minutesFromOpen := now.Sub(rthStart).Minutes()
	minutesToClose := rthEnd.Sub(now).Minutes()

	switch {
	case minutesFromOpen <= 30:
		return SessionGate{Allowed: true, Session: SessionOpen}, nil
	case minutesToClose <= 60:
		return SessionGate{Allowed: true, Session: SessionPower}, nil
	case inLunch:
		return SessionGate{Allowed: true, Session: SessionLunch}, nil
	default:
		return SessionGate{Allowed: true, Session: SessionMid}, nil
	}
}

// TimeScore maps a session label to its fixed time-quality score
func TimeScore(session Session) float64 {
	switch session {
	case SessionOpen:
		return 80
	case SessionPower:
		return 75
	case SessionLunch:
		return 30
	default:
		return 55
	}
}

// atTime returns day-of anchor time for an HH:MM string in now's location
func atTime(now time.Time, hhmm string) (time.Time, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid HH:MM value %q", hhmm)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid HH:MM value %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid HH:MM value %q", hhmm)
	}

	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), nil
}
