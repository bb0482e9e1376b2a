package routers

import (
	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/router"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

// scoreEpsilon is the equality band for availability scores; candidates
// within it are treated as tied and fall back to priority order.
const scoreEpsilon = 0.001

// LeastUsedStrategy picks the highest-tier candidate with the most
// remaining quota headroom. The availability score of a candidate is the
// minimum remaining/limit ratio across every configured metric and
// window, so a single near-exhausted window caps the score. Candidates
// without any configured limits score 1.
type LeastUsedStrategy struct{}

// NewLeastUsedStrategy creates a least-used strategy.
func NewLeastUsedStrategy() *LeastUsedStrategy {
	return &LeastUsedStrategy{}
}

// Name returns the strategy identifier.
func (s *LeastUsedStrategy) Name() string { return StrategyLeastUsed }

// Select returns the top-tier candidate with the highest availability
// score, breaking near-ties by ascending priority.
func (s *LeastUsedStrategy) Select(candidates []router.Candidate, reqCtx *router.Context) (*router.Candidate, error) {
	top := router.TopTier(candidates)
	if len(top) == 0 {
		return nil, ErrNoCandidates
	}

	best := &top[0]
	bestScore := AvailabilityScore(top[0])
	for i := 1; i < len(top); i++ {
		score := AvailabilityScore(top[i])
		switch {
		case score > bestScore+scoreEpsilon:
			best = &top[i]
			bestScore = score
		case score >= bestScore-scoreEpsilon && top[i].Priority < best.Priority:
			best = &top[i]
			if score > bestScore {
				bestScore = score
			}
		}
	}
	return best, nil
}

// AvailabilityScore computes the candidate's remaining-quota ratio in
// [0, 1]: the minimum of remaining/limit over all configured
// metric-window pairs, or 1 when no limits are configured.
func AvailabilityScore(c router.Candidate) float64 {
	score := 1.0

	consider := func(remaining, limit *int64) {
		if limit == nil || *limit <= 0 || remaining == nil {
			return
		}
		ratio := float64(*remaining) / float64(*limit)
		if ratio < score {
			score = ratio
		}
	}

	for _, kind := range window.Kinds {
		quota := c.Quota.Window(kind)
		reqLimit, tokLimit := limitsForWindow(c.Record.Limits, kind)
		consider(quota.RequestsRemaining, reqLimit)
		consider(quota.TokensRemaining, tokLimit)
	}
	return score
}

func limitsForWindow(limits provider.RateLimits, kind window.Kind) (requests, tokens *int64) {
	switch kind {
	case window.Minute:
		return limits.RequestsPerMinute, limits.TokensPerMinute
	case window.Hour:
		return limits.RequestsPerHour, limits.TokensPerHour
	case window.Day:
		return limits.RequestsPerDay, limits.TokensPerDay
	default:
		return nil, nil
	}
}
