package routers

import (
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// LowestLatencyStrategy picks the highest-tier candidate with the lowest
// EMA latency. Candidates without samples yet rank last among measured
// ones so new providers still get traffic once the measured set is
// excluded; ties break by ascending priority.
type LowestLatencyStrategy struct{}

// NewLowestLatencyStrategy creates a lowest-latency strategy.
func NewLowestLatencyStrategy() *LowestLatencyStrategy {
	return &LowestLatencyStrategy{}
}

// Name returns the strategy identifier.
func (s *LowestLatencyStrategy) Name() string { return StrategyLowestLatency }

// Select returns the top-tier candidate with the lowest EMA latency.
func (s *LowestLatencyStrategy) Select(candidates []router.Candidate, reqCtx *router.Context) (*router.Candidate, error) {
	top := router.TopTier(candidates)
	if len(top) == 0 {
		return nil, ErrNoCandidates
	}

	best := &top[0]
	for i := 1; i < len(top); i++ {
		if latencyLess(&top[i], best) {
			best = &top[i]
		}
	}
	return best, nil
}

func latencyLess(a, b *router.Candidate) bool {
	// Unmeasured candidates sort after measured ones.
	am, bm := a.LatencyMS > 0, b.LatencyMS > 0
	switch {
	case am && !bm:
		return true
	case !am && bm:
		return false
	case am && bm && a.LatencyMS != b.LatencyMS:
		return a.LatencyMS < b.LatencyMS
	default:
		return a.Priority < b.Priority
	}
}
