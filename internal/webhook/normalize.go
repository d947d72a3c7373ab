package webhook

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/wonny/miyagi/internal/contracts"
)

// Normalize maps a heterogeneous TradingView alert payload into the
// canonical schema. Best-effort: the raw JSON stays on the event record,
// this only extracts common fields for indexing and decisioning.
// ⭐ SSOT: 페이로드 정규화는 여기서만
func Normalize(payload json.RawMessage) *contracts.NormalizedAlert {
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		fields = nil
	}

	n := &contracts.NormalizedAlert{
		Version:    pickString(fields, "version"),
		StrategyID: pickString(fields, "strategy_id", "strategyId"),
		Event:      pickString(fields, "event", "signal", "type"),
		Side:       pickString(fields, "side", "direction"),
		Symbol:     pickString(fields, "symbol", "ticker"),
		Timeframe:  pickString(fields, "timeframe", "tf"),

		Confidence:    pickNumber(fields, "confidence_score", "confidence", "score"),
		TimestampMs:   pickIntMs(fields, "timestamp_ms", "timestampMs", "timestamp"),
		BreakoutLevel: pickNumber(fields, "breakout_level", "breakoutLevel", "key_level", "keyLevel", "level"),
	}

	n.Source = pickString(fields, "source")
	if n.Source == "" {
		n.Source = "tradingview"
	}

	return n
}

// pickString returns the first well-typed, non-empty string among keys,
// trimmed. Empty strings are treated as absent.
func pickString(fields map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// pickNumber returns the first finite numeric value among keys
func pickNumber(fields map[string]interface{}, keys ...string) *float64 {
	for _, key := range keys {
		if f, ok := fields[key].(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
			v := f
			return &v
		}
	}
	return nil
}

// pickIntMs returns the first numeric or numeric-string value among keys,
// truncated to integer milliseconds.
func pickIntMs(fields map[string]interface{}, keys ...string) *int64 {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case float64:
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				ms := int64(math.Trunc(v))
				return &ms
			}
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
					ms := int64(math.Trunc(f))
					return &ms
				}
			}
		}
	}
	return nil
}

// IdempotencyKeyFromPayload returns the client-supplied idempotency key,
// or empty when absent.
func IdempotencyKeyFromPayload(payload json.RawMessage) string {
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	if key, ok := fields["idempotency_key"].(string); ok {
		return key
	}
	return ""
}
