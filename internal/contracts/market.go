package contracts

import "encoding/json"

// Quote is a point-in-time price snapshot for an underlying or option symbol
type Quote struct {
	Symbol string          `json:"symbol"`
	Bid    *float64        `json:"bid,omitempty"`
	Ask    *float64        `json:"ask,omitempty"`
	Last   *float64        `json:"last,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// Bar is one OHLCV candle. Time is epoch milliseconds.
type Bar struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// OptionContract is one option chain entry
type OptionContract struct {
	Symbol     string   `json:"symbol"`
	Strike     float64  `json:"strike"`
	Expiration string   `json:"expiration"` // YYYY-MM-DD
	Type       string   `json:"type"`       // "call" or "put"
	Bid        float64  `json:"bid"`
	Ask        float64  `json:"ask"`
	Volume     *int     `json:"volume,omitempty"`
	OpenInt    *int     `json:"open_interest,omitempty"`
	Delta      *float64 `json:"delta,omitempty"`
	IV         *float64 `json:"iv,omitempty"`
}

// Mid returns the contract's mid price
func (c OptionContract) Mid() float64 {
	return (c.Bid + c.Ask) / 2
}

// OrderRequest is a broker order placement request
type OrderRequest struct {
	AccountID    string
	Symbol       string // underlying
	OptionSymbol string
	Side         string // buy_to_open, sell_to_close, ...
	Quantity     int
	Type         string // market, limit
	Duration     string // day, gtc
	Price        *float64
	Tag          string
}
