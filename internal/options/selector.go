package options

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/miyagi/internal/contracts"
)

// Constraints are the liquidity and pricing bounds for contract selection
type Constraints struct {
	MinOI          int
	MinVolume      int
	MaxSpreadPct   float64
	MinOptionPrice float64
	DeltaMin       float64
	DeltaMax       float64
}

// RankedContract is one scored survivor of the constraint filter
type RankedContract struct {
	Contract contracts.OptionContract `json:"contract"`
	Score    float64                  `json:"score"`
	Why      string                   `json:"why"`
}

// PickBest filters the chain against the constraints and ranks survivors.
// Returns nil best when nothing passes; the caller downgrades the decision
// to WATCH with NO_VIABLE_CONTRACT rather than failing.
// ⭐ SSOT: 옵션 계약 선택 로직은 여기서만
func PickBest(chain []contracts.OptionContract, cfg Constraints) (best *contracts.OptionContract, ranked []RankedContract) {
	targetDelta := (cfg.DeltaMin + cfg.DeltaMax) / 2

	ranked = make([]RankedContract, 0, len(chain))
	for _, c := range chain {
		if !viable(c, cfg) {
			continue
		}

		mid := c.Mid()
		spreadPct := (c.Ask - c.Bid) / c.Ask

		// Missing delta defaults to the target (zero penalty). A documented
		// approximation: thin-data contracts are not penalized for it.
		delta := targetDelta
		if c.Delta != nil {
			delta = *c.Delta
		}
		deltaPenalty := math.Abs(delta - targetDelta)

		oi := intOr(c.OpenInt, 0)
		vol := intOr(c.Volume, 0)

		score := 100 - 120*deltaPenalty - 80*spreadPct +
			0.01*float64(oi) + 0.02*float64(vol) + 5*math.Log(1+mid)

		ranked = append(ranked, RankedContract{
			Contract: c,
			Score:    score,
			Why: fmt.Sprintf("delta=%.2f spreadPct=%.2f oi=%d vol=%d mid=%.2f",
				delta, spreadPct, oi, vol, mid),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) == 0 {
		return nil, ranked
	}

	top := ranked[0].Contract
	return &top, ranked
}

// viable applies the hard constraint filter
func viable(c contracts.OptionContract, cfg Constraints) bool {
	if c.Bid <= 0 || c.Ask <= 0 {
		return false
	}
	if c.Mid() < cfg.MinOptionPrice {
		return false
	}

	spreadPct := 1.0
	if c.Ask > 0 {
		spreadPct = (c.Ask - c.Bid) / c.Ask
	}
	if spreadPct > cfg.MaxSpreadPct {
		return false
	}

	if intOr(c.OpenInt, 0) < cfg.MinOI {
		return false
	}
	if intOr(c.Volume, 0) < cfg.MinVolume {
		return false
	}

	return true
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
