// Package ratelimit implements the per-(provider, model) usage bookkeeper.
// It records usage into tumbling aligned windows, answers quota questions,
// and manages cooldown markers. All state lives in the injected Store;
// the tracker holds no local mirror.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/store"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

// DefaultCooldown is applied by MarkRateLimited when the upstream gave
// no Retry-After.
const DefaultCooldown = 60 * time.Second

// Tracker is the rate-limit bookkeeper. Safe for concurrent use.
type Tracker struct {
	store           store.Store
	clock           window.Clock
	defaultCooldown time.Duration
	logger          *slog.Logger
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithClock injects a clock.
func WithClock(clock window.Clock) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// WithDefaultCooldown overrides the cooldown applied when a rate-limit
// signal carries no reset time.
func WithDefaultCooldown(d time.Duration) Option {
	return func(t *Tracker) {
		t.defaultCooldown = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker creates a tracker over the given store.
func NewTracker(st store.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:           st,
		clock:           window.RealClock{},
		defaultCooldown: DefaultCooldown,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordUsage adds one request and the given token count to all three
// windows. The three writes run in parallel; a failed write does not
// stop the others, but every failure is reported to the caller.
func (t *Tracker) RecordUsage(ctx context.Context, prov, model string, tokens int64) error {
	return t.addUsage(ctx, prov, model, 1, tokens)
}

// ReconcileUsage corrects the token accounting of an already-recorded
// request by the given delta, without touching the request count. Used
// after a stream ends when the provider's usage block differs from the
// pre-stream estimate.
func (t *Tracker) ReconcileUsage(ctx context.Context, prov, model string, tokenDelta int64) error {
	if tokenDelta == 0 {
		return nil
	}
	return t.addUsage(ctx, prov, model, 0, tokenDelta)
}

func (t *Tracker) addUsage(ctx context.Context, prov, model string, requests, tokens int64) error {
	now := t.clock.Now()

	var wg sync.WaitGroup
	errs := make([]error, len(window.Kinds))
	for i, kind := range window.Kinds {
		wg.Add(1)
		go func(i int, kind window.Kind) {
			defer wg.Done()
			key := window.UsageKey(prov, model, kind)
			_, err := t.store.IncrementUsage(ctx, key, requests, tokens, window.Start(kind, now), kind.Duration())
			if err != nil {
				t.logger.Warn("usage write failed",
					"provider", prov, "model", model, "window", string(kind), "error", err)
				errs[i] = err
			}
		}(i, kind)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// GetQuotaStatus computes the remaining budget for each window under the
// given limits, plus any active cooldown. Metrics without a configured
// limit report nil remaining.
func (t *Tracker) GetQuotaStatus(ctx context.Context, prov, model string, limits provider.RateLimits) (QuotaStatus, error) {
	now := t.clock.Now()
	var status QuotaStatus

	for _, kind := range window.Kinds {
		quota, err := t.windowQuota(ctx, prov, model, limits, kind, now)
		if err != nil {
			return QuotaStatus{}, err
		}
		switch kind {
		case window.Minute:
			status.Minute = quota
		case window.Hour:
			status.Hour = quota
		case window.Day:
			status.Day = quota
		}
	}

	cooldown, err := t.store.GetCooldown(ctx, prov, model)
	if err != nil {
		return QuotaStatus{}, err
	}
	if cooldown != nil {
		until := cooldown.ExpiresAt
		status.CooldownUntil = &until
	}

	return status, nil
}

// CanMakeRequest reports whether a request with the given token estimate
// may proceed. It is false when the pair is in cooldown, when any
// configured request window has nothing remaining, or when a configured
// token window cannot cover the estimate (token windows are only checked
// for a positive estimate).
func (t *Tracker) CanMakeRequest(ctx context.Context, prov, model string, limits provider.RateLimits, estimatedTokens int64) (bool, error) {
	status, err := t.GetQuotaStatus(ctx, prov, model, limits)
	if err != nil {
		return false, err
	}

	if status.CooldownUntil != nil {
		return false, nil
	}

	for _, kind := range window.Kinds {
		quota := status.Window(kind)
		if quota.RequestsRemaining != nil && *quota.RequestsRemaining <= 0 {
			return false, nil
		}
		if estimatedTokens > 0 && quota.TokensRemaining != nil && *quota.TokensRemaining < estimatedTokens {
			return false, nil
		}
	}

	return true, nil
}

// MarkRateLimited places the pair in cooldown. When resetAt is nil the
// configured default cooldown applies.
func (t *Tracker) MarkRateLimited(ctx context.Context, prov, model string, resetAt *time.Time) error {
	expiresAt := t.clock.Now().Add(t.defaultCooldown)
	if resetAt != nil {
		expiresAt = *resetAt
	}

	return t.store.SetCooldown(ctx, store.CooldownRecord{
		Provider:  prov,
		Model:     model,
		ExpiresAt: expiresAt,
	})
}

// IsInCooldown reports whether the pair currently has an active cooldown.
func (t *Tracker) IsInCooldown(ctx context.Context, prov, model string) (bool, error) {
	rec, err := t.store.GetCooldown(ctx, prov, model)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// CooldownUntil returns the cooldown expiry for the pair, or nil if none.
func (t *Tracker) CooldownUntil(ctx context.Context, prov, model string) (*time.Time, error) {
	rec, err := t.store.GetCooldown(ctx, prov, model)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	until := rec.ExpiresAt
	return &until, nil
}

// ClearCooldown removes any cooldown for the pair.
func (t *Tracker) ClearCooldown(ctx context.Context, prov, model string) error {
	return t.store.RemoveCooldown(ctx, prov, model)
}

// UpdateLatency folds an observed latency sample into the pair's EMA.
func (t *Tracker) UpdateLatency(ctx context.Context, prov, model string, sampleMS float64) error {
	_, err := t.store.UpdateLatency(ctx, prov, model, sampleMS)
	return err
}

// LatencyMS returns the pair's EMA latency, or 0 when no samples exist.
func (t *Tracker) LatencyMS(ctx context.Context, prov, model string) (float64, error) {
	rec, err := t.store.GetLatency(ctx, prov, model)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.AvgMS, nil
}

func (t *Tracker) windowQuota(ctx context.Context, prov, model string, limits provider.RateLimits, kind window.Kind, now time.Time) (WindowQuota, error) {
	reqLimit, tokLimit := windowLimits(limits, kind)
	if reqLimit == nil && tokLimit == nil {
		return WindowQuota{}, nil
	}

	rec, err := t.store.GetUsage(ctx, window.UsageKey(prov, model, kind))
	if err != nil {
		return WindowQuota{}, err
	}

	var usedRequests, usedTokens int64
	ws := window.Start(kind, now)
	if rec != nil && rec.WindowStart.Equal(ws) {
		usedRequests = rec.Requests
		usedTokens = rec.Tokens
	}

	quota := WindowQuota{}
	if reqLimit != nil {
		remaining := max(0, *reqLimit-usedRequests)
		quota.RequestsRemaining = &remaining
	}
	if tokLimit != nil {
		remaining := max(0, *tokLimit-usedTokens)
		quota.TokensRemaining = &remaining
	}
	resetAt := window.End(kind, now)
	quota.ResetAt = &resetAt

	return quota, nil
}
