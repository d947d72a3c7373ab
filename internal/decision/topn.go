package decision

import (
	"sort"
	"strings"

	"github.com/wonny/miyagi/internal/contracts"
)

// TopNWindowSec is the lookback window for the scarcity gate
const TopNWindowSec = 600

// TopNResult is the scarcity-gate outcome for the current candidate
type TopNResult struct {
	Allowed bool
	Rank    int
	Total   int
}

// RankCandidates ranks the current candidate against all candidates in the
// lookback window (the caller includes the current one). Sorting is by
// finalScore descending with a tie-break on (symbol, id) lexicographic
// ascending, which guarantees a total order even when scores tie exactly —
// ranking runs concurrently for alerts arriving within milliseconds of each
// other, so ties must resolve identically on every instance.
// topN <= 0 disables the cap.
func RankCandidates(candidates []contracts.Candidate, currentID string, topN int) TopNResult {
	if topN <= 0 {
		return TopNResult{Allowed: true, Rank: 1, Total: 1}
	}

	sorted := make([]contracts.Candidate, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FinalScore != sorted[j].FinalScore {
			return sorted[i].FinalScore > sorted[j].FinalScore
		}
		return strings.Compare(tieKey(sorted[i]), tieKey(sorted[j])) < 0
	})

	rank := len(candidates)
	for i, c := range sorted {
		if c.ID == currentID {
			rank = i + 1
			break
		}
	}

	return TopNResult{
		Allowed: rank <= topN,
		Rank:    rank,
		Total:   len(candidates),
	}
}

func tieKey(c contracts.Candidate) string {
	return c.Symbol + ":" + c.ID
}
