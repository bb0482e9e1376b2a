package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/store/memstore"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

const (
	testProvider = "groq"
	testModel    = "llama-3.3-70b"
)

func newTestTracker(t *testing.T) (*Tracker, *window.FakeClock) {
	t.Helper()

	clock := window.NewFakeClock(time.Date(2025, 6, 15, 13, 42, 10, 0, time.UTC))
	st := memstore.New(memstore.WithClock(clock))
	t.Cleanup(func() { _ = st.Close() })
	return NewTracker(st, WithClock(clock)), clock
}

func TestRecordUsage_CountsMatchCallsWithinWindow(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	tokensPerCall := []int64{120, 80, 300}
	for _, tokens := range tokensPerCall {
		require.NoError(t, tracker.RecordUsage(ctx, testProvider, testModel, tokens))
	}

	limits := provider.RateLimits{
		RequestsPerMinute: provider.Int64(30),
		TokensPerMinute:   provider.Int64(6000),
	}
	status, err := tracker.GetQuotaStatus(ctx, testProvider, testModel, limits)
	require.NoError(t, err)

	require.NotNil(t, status.Minute.RequestsRemaining)
	assert.EqualValues(t, 30-3, *status.Minute.RequestsRemaining)
	require.NotNil(t, status.Minute.TokensRemaining)
	assert.EqualValues(t, 6000-500, *status.Minute.TokensRemaining)
}

func TestGetQuotaStatus_ZeroUsageAfterWindowBoundary(t *testing.T) {
	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, tracker.RecordUsage(ctx, testProvider, testModel, 100))
	}

	clock.Advance(time.Minute)

	limits := provider.RateLimits{RequestsPerMinute: provider.Int64(30)}
	status, err := tracker.GetQuotaStatus(ctx, testProvider, testModel, limits)
	require.NoError(t, err)

	require.NotNil(t, status.Minute.RequestsRemaining)
	assert.EqualValues(t, 30, *status.Minute.RequestsRemaining)

	// The hour window has not rolled over, so it still sees the usage.
	hourLimits := provider.RateLimits{RequestsPerHour: provider.Int64(100)}
	status, err = tracker.GetQuotaStatus(ctx, testProvider, testModel, hourLimits)
	require.NoError(t, err)
	require.NotNil(t, status.Hour.RequestsRemaining)
	assert.EqualValues(t, 95, *status.Hour.RequestsRemaining)
}

func TestGetQuotaStatus_UnconfiguredMetricsAreNil(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	status, err := tracker.GetQuotaStatus(ctx, testProvider, testModel, provider.RateLimits{})
	require.NoError(t, err)

	assert.Nil(t, status.Minute.RequestsRemaining)
	assert.Nil(t, status.Minute.TokensRemaining)
	assert.Nil(t, status.Day.TokensRemaining)
	assert.Nil(t, status.CooldownUntil)
}

func TestGetQuotaStatus_ResetTimeIsWindowEnd(t *testing.T) {
	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	limits := provider.RateLimits{RequestsPerMinute: provider.Int64(10)}
	status, err := tracker.GetQuotaStatus(ctx, testProvider, testModel, limits)
	require.NoError(t, err)

	require.NotNil(t, status.Minute.ResetAt)
	assert.True(t, status.Minute.ResetAt.Equal(window.End(window.Minute, clock.Now())))
}

func TestMarkRateLimited_DefaultCooldown(t *testing.T) {
	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.MarkRateLimited(ctx, testProvider, testModel, nil))

	inCooldown, err := tracker.IsInCooldown(ctx, testProvider, testModel)
	require.NoError(t, err)
	assert.True(t, inCooldown)

	until, err := tracker.CooldownUntil(ctx, testProvider, testModel)
	require.NoError(t, err)
	require.NotNil(t, until)
	assert.True(t, until.Equal(clock.Now().Add(DefaultCooldown)))

	clock.Advance(DefaultCooldown + time.Second)
	inCooldown, err = tracker.IsInCooldown(ctx, testProvider, testModel)
	require.NoError(t, err)
	assert.False(t, inCooldown)
}

func TestMarkRateLimited_ExplicitResetAt(t *testing.T) {
	tracker, clock := newTestTracker(t)
	ctx := context.Background()

	resetAt := clock.Now().Add(30 * time.Second)
	require.NoError(t, tracker.MarkRateLimited(ctx, testProvider, testModel, &resetAt))

	until, err := tracker.CooldownUntil(ctx, testProvider, testModel)
	require.NoError(t, err)
	require.NotNil(t, until)
	assert.True(t, until.Equal(resetAt))

	clock.Advance(31 * time.Second)
	inCooldown, err := tracker.IsInCooldown(ctx, testProvider, testModel)
	require.NoError(t, err)
	assert.False(t, inCooldown)
}

func TestClearCooldown(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.MarkRateLimited(ctx, testProvider, testModel, nil))
	require.NoError(t, tracker.ClearCooldown(ctx, testProvider, testModel))

	inCooldown, err := tracker.IsInCooldown(ctx, testProvider, testModel)
	require.NoError(t, err)
	assert.False(t, inCooldown)
}

func TestCanMakeRequest(t *testing.T) {
	limits := provider.RateLimits{
		RequestsPerMinute: provider.Int64(2),
		TokensPerMinute:   provider.Int64(1000),
	}

	t.Run("allows under quota", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		ctx := context.Background()

		ok, err := tracker.CanMakeRequest(ctx, testProvider, testModel, limits, 500)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("refuses in cooldown", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		ctx := context.Background()

		require.NoError(t, tracker.MarkRateLimited(ctx, testProvider, testModel, nil))
		ok, err := tracker.CanMakeRequest(ctx, testProvider, testModel, limits, 0)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("refuses when request window exhausted", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		ctx := context.Background()

		require.NoError(t, tracker.RecordUsage(ctx, testProvider, testModel, 10))
		require.NoError(t, tracker.RecordUsage(ctx, testProvider, testModel, 10))

		ok, err := tracker.CanMakeRequest(ctx, testProvider, testModel, limits, 0)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("refuses when token window cannot cover estimate", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		ctx := context.Background()

		require.NoError(t, tracker.RecordUsage(ctx, testProvider, testModel, 900))

		ok, err := tracker.CanMakeRequest(ctx, testProvider, testModel, limits, 200)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("token window ignored for zero estimate", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		ctx := context.Background()

		require.NoError(t, tracker.RecordUsage(ctx, testProvider, testModel, 1000))

		ok, err := tracker.CanMakeRequest(ctx, testProvider, testModel, limits, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no limits means always allowed", func(t *testing.T) {
		tracker, _ := newTestTracker(t)
		ctx := context.Background()

		ok, err := tracker.CanMakeRequest(ctx, testProvider, testModel, provider.RateLimits{}, 1<<20)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCooldowns_IndependentPerModel(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.MarkRateLimited(ctx, testProvider, testModel, nil))

	inCooldown, err := tracker.IsInCooldown(ctx, testProvider, "qwen-3-32b")
	require.NoError(t, err)
	assert.False(t, inCooldown)
}

func TestUpdateLatency_SignalReadBack(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.UpdateLatency(ctx, testProvider, testModel, 250))

	ms, err := tracker.LatencyMS(ctx, testProvider, testModel)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, ms, 0.0001)

	ms, err = tracker.LatencyMS(ctx, testProvider, "qwen-3-32b")
	require.NoError(t, err)
	assert.Zero(t, ms)
}
