package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/llmroute/pkg/store"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

var base = time.Date(2025, 6, 15, 13, 42, 10, 0, time.UTC)

func TestIncrementUsage_AccumulatesWithinWindow(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	ws := window.Start(window.Minute, base)
	key := window.UsageKey("groq", "llama-3.3-70b", window.Minute)

	rec, err := s.IncrementUsage(ctx, key, 1, 120, ws, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.Requests)
	assert.EqualValues(t, 120, rec.Tokens)

	rec, err = s.IncrementUsage(ctx, key, 1, 80, ws, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.Requests)
	assert.EqualValues(t, 200, rec.Tokens)
}

func TestIncrementUsage_ResetsOnNewWindowStart(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	key := window.UsageKey("groq", "llama-3.3-70b", window.Minute)
	first := window.Start(window.Minute, base)
	next := first.Add(time.Minute)

	_, err := s.IncrementUsage(ctx, key, 5, 500, first, time.Minute)
	require.NoError(t, err)

	rec, err := s.IncrementUsage(ctx, key, 1, 40, next, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.Requests)
	assert.EqualValues(t, 40, rec.Tokens)
	assert.True(t, rec.WindowStart.Equal(next))
}

func TestIncrementUsage_ConcurrentCallersOnOneKey(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	key := window.UsageKey("groq", "llama-3.3-70b", window.Hour)
	ws := window.Start(window.Hour, base)

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := s.IncrementUsage(ctx, key, 1, 10, ws, time.Hour)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.GetUsage(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.EqualValues(t, goroutines, rec.Requests)
	assert.EqualValues(t, goroutines*10, rec.Tokens)
}

func TestCooldown_ExpiredIsAbsentAndPruned(t *testing.T) {
	clock := window.NewFakeClock(base)
	s := New(WithClock(clock))
	defer s.Close()
	ctx := context.Background()

	err := s.SetCooldown(ctx, store.CooldownRecord{
		Provider:  "groq",
		Model:     "llama-3.3-70b",
		ExpiresAt: base.Add(30 * time.Second),
	})
	require.NoError(t, err)

	rec, err := s.GetCooldown(ctx, "groq", "llama-3.3-70b")
	require.NoError(t, err)
	require.NotNil(t, rec)

	clock.Advance(31 * time.Second)
	rec, err = s.GetCooldown(ctx, "groq", "llama-3.3-70b")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRemoveCooldown(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SetCooldown(ctx, store.CooldownRecord{
		Provider:  "groq",
		Model:     "llama-3.3-70b",
		ExpiresAt: time.Now().Add(time.Minute),
	}))
	require.NoError(t, s.RemoveCooldown(ctx, "groq", "llama-3.3-70b"))

	rec, err := s.GetCooldown(ctx, "groq", "llama-3.3-70b")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdateLatency_EMA(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	rec, err := s.UpdateLatency(ctx, "groq", "llama-3.3-70b", 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rec.AvgMS)
	assert.Equal(t, 1, rec.Samples)

	rec, err = s.UpdateLatency(ctx, "groq", "llama-3.3-70b", 200)
	require.NoError(t, err)
	// 100*0.8 + 200*0.2
	assert.InDelta(t, 120.0, rec.AvgMS, 0.0001)
	assert.Equal(t, 2, rec.Samples)
}

func TestClearAndClose(t *testing.T) {
	s := New()
	ctx := context.Background()

	key := window.UsageKey("groq", "llama-3.3-70b", window.Day)
	_, err := s.IncrementUsage(ctx, key, 1, 1, window.Start(window.Day, base), 24*time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	rec, err := s.GetUsage(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, s.Close())
	_, err = s.GetUsage(ctx, key)
	assert.ErrorIs(t, err, store.ErrClosed)
}
