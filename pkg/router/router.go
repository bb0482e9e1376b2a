// Package router defines the strategy contract of the candidate-selection
// pipeline: the ephemeral per-request Candidate, the selection context,
// and the Strategy interface implemented by the routers package.
package router

import (
	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/ratelimit"
)

// Candidate is a routable (provider, model record) pair assembled for a
// single request. It carries the quota snapshot and the optional latency
// signal the strategies rank on. Candidates are owned by the request
// that built them.
type Candidate struct {
	Provider *provider.Provider
	Record   provider.ModelRecord

	// Tier is the quality tier of the candidate's canonical model.
	Tier int

	// Quota is the budget snapshot taken during selection.
	Quota ratelimit.QuotaStatus

	// Priority is the configured provider priority; lower wins.
	Priority int

	// LatencyMS is the EMA latency signal; 0 means no samples yet.
	LatencyMS float64

	// FreeCredits marks providers running on free-tier credits.
	FreeCredits bool
}

// Context carries the per-request routing state into selection.
type Context struct {
	// Model is the caller-requested model token, pre-resolution.
	Model string

	// Excluded providers are dropped before cooldown and quota filters.
	Excluded map[provider.Kind]bool

	// RetryCount is the driver's current retry counter.
	RetryCount int

	// EstimatedTokens is the token estimate for the pending request.
	EstimatedTokens int64
}

// Excludes reports whether the provider kind is excluded.
func (c *Context) Excludes(kind provider.Kind) bool {
	if c == nil || c.Excluded == nil {
		return false
	}
	return c.Excluded[kind]
}

// Strategy picks one candidate from a tier-sorted shortlist. The input
// is sorted by tier descending; implementations must confine themselves
// to the highest-tier prefix and never cross tiers.
type Strategy interface {
	// Name returns the strategy identifier used in configuration.
	Name() string

	// Select returns the chosen candidate or an error when the list is
	// empty or the strategy cannot decide.
	Select(candidates []Candidate, reqCtx *Context) (*Candidate, error)
}

// TopTier returns the highest-tier prefix of a tier-sorted candidate
// list. Shared by strategy implementations.
func TopTier(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	top := candidates[0].Tier
	end := 1
	for end < len(candidates) && candidates[end].Tier == top {
		end++
	}
	return candidates[:end]
}
