// Package routers provides the built-in routing strategies. Every
// strategy receives a tier-sorted candidate list and restricts itself to
// the highest-tier group; tier remains the first-order discriminator.
package routers

import (
	"errors"

	"github.com/blueberrycongee/llmroute/pkg/router"
)

// ErrNoCandidates is returned when a strategy receives an empty list.
var ErrNoCandidates = errors.New("no candidates to select from")

// PriorityStrategy picks the highest-tier candidate with the lowest
// configured provider priority. Stable on ties: the first candidate in
// input order wins.
type PriorityStrategy struct{}

// NewPriorityStrategy creates a priority strategy.
func NewPriorityStrategy() *PriorityStrategy {
	return &PriorityStrategy{}
}

// Name returns the strategy identifier.
func (s *PriorityStrategy) Name() string { return StrategyPriority }

// Select returns the lowest-priority-number candidate in the top tier.
func (s *PriorityStrategy) Select(candidates []router.Candidate, reqCtx *router.Context) (*router.Candidate, error) {
	top := router.TopTier(candidates)
	if len(top) == 0 {
		return nil, ErrNoCandidates
	}

	best := &top[0]
	for i := 1; i < len(top); i++ {
		if top[i].Priority < best.Priority {
			best = &top[i]
		}
	}
	return best, nil
}
