package trading

import (
	"context"

	"github.com/wonny/miyagi/internal/contracts"
)

// FixedSizing implements contracts.SizingStrategy with a constant
// contract quantity. Notional-based sizing can replace this without
// touching the recorder.
type FixedSizing struct {
	Qty int
}

// NewFixedSizing creates a fixed-quantity sizing strategy
func NewFixedSizing(qty int) *FixedSizing {
	if qty <= 0 {
		qty = 1
	}
	return &FixedSizing{Qty: qty}
}

func (s *FixedSizing) Quantity(ctx context.Context, signal *contracts.Signal, contract *contracts.OptionContract) int {
	return s.Qty
}
