// Package store defines the persistence interface for routing state:
// usage counters, cooldown markers, and latency history. The tracker is
// agnostic to the backend; an in-memory implementation lives in memstore
// and a Redis implementation in redisstore.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// EMA parameters for latency records. The first sample initializes the
// average; later samples decay the old value by EMADecay.
const (
	EMADecay      = 0.8
	MaxEMASamples = 100
)

// UsageRecord holds request and token counts for one aligned window.
// WindowStart identifies the window; a record whose WindowStart differs
// from the current aligned start counts as zero usage.
type UsageRecord struct {
	Requests    int64     `json:"requests"`
	Tokens      int64     `json:"tokens"`
	WindowStart time.Time `json:"window_start"`
}

// CooldownRecord forbids routing to a (provider, model) pair until ExpiresAt.
// A record with ExpiresAt in the past is equivalent to absence.
type CooldownRecord struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LatencyRecord holds the EMA latency signal for a (provider, model) pair.
type LatencyRecord struct {
	AvgMS     float64   `json:"avg_ms"`
	Samples   int       `json:"samples"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists routing state. Implementations must make IncrementUsage
// atomic per key under concurrent callers; reads may race with writes.
type Store interface {
	// GetUsage returns the current record for key, or nil if absent or expired.
	GetUsage(ctx context.Context, key string) (*UsageRecord, error)

	// SetUsage overwrites the record for key with the given TTL.
	SetUsage(ctx context.Context, key string, rec UsageRecord, ttl time.Duration) error

	// IncrementUsage adds the deltas to the record for key. If the stored
	// record's window start differs from windowStart, the previous record
	// is discarded and counting starts fresh from the deltas. Returns the
	// resulting record. Atomic per key.
	IncrementUsage(ctx context.Context, key string, deltaRequests, deltaTokens int64, windowStart time.Time, ttl time.Duration) (*UsageRecord, error)

	// GetCooldown returns the active cooldown for the pair, or nil if none.
	// Expired cooldowns are treated as absent.
	GetCooldown(ctx context.Context, provider, model string) (*CooldownRecord, error)

	// SetCooldown overwrites the cooldown; the TTL is derived from
	// ExpiresAt minus the current time.
	SetCooldown(ctx context.Context, rec CooldownRecord) error

	// RemoveCooldown deletes the cooldown for the pair.
	RemoveCooldown(ctx context.Context, provider, model string) error

	// GetLatency returns the latency record for the pair, or nil if none.
	GetLatency(ctx context.Context, provider, model string) (*LatencyRecord, error)

	// UpdateLatency folds a new sample into the EMA and returns the result.
	UpdateLatency(ctx context.Context, provider, model string, sampleMS float64) (*LatencyRecord, error)

	// Clear removes all state.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// FoldLatency applies one EMA step to a latency record. Shared by
// implementations so the decay behavior stays identical across backends.
func FoldLatency(prev *LatencyRecord, sampleMS float64, now time.Time) LatencyRecord {
	if prev == nil || prev.Samples == 0 {
		return LatencyRecord{AvgMS: sampleMS, Samples: 1, UpdatedAt: now}
	}
	next := LatencyRecord{
		AvgMS:     prev.AvgMS*EMADecay + sampleMS*(1-EMADecay),
		Samples:   prev.Samples + 1,
		UpdatedAt: now,
	}
	if next.Samples > MaxEMASamples {
		next.Samples = MaxEMASamples
	}
	return next
}
