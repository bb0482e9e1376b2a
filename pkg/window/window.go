// Package window provides aligned time-window arithmetic for rate-limit
// accounting. Windows are tumbling: each window starts at a wall-clock
// boundary (floor of the Unix epoch divided by the window length), so a
// day window always begins at 00:00:00 UTC.
package window

import (
	"fmt"
	"time"
)

// Kind identifies one of the three supported window lengths.
type Kind string

const (
	// Minute is a 60 second window.
	Minute Kind = "minute"

	// Hour is a 3600 second window.
	Hour Kind = "hour"

	// Day is an 86400 second window starting at 00:00:00 UTC.
	Day Kind = "day"
)

// Kinds lists all window kinds in ascending length order.
var Kinds = []Kind{Minute, Hour, Day}

// Duration returns the length of the window.
func (k Kind) Duration() time.Duration {
	switch k {
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Start returns the aligned start of the window containing now.
func Start(k Kind, now time.Time) time.Time {
	length := int64(k.Duration() / time.Second)
	aligned := now.Unix() / length * length
	return time.Unix(aligned, 0).UTC()
}

// End returns the aligned end of the window containing now.
func End(k Kind, now time.Time) time.Time {
	return Start(k, now).Add(k.Duration())
}

// UntilReset returns the time remaining until the window containing now rolls over.
func UntilReset(k Kind, now time.Time) time.Duration {
	return End(k, now).Sub(now)
}

// UsageKey builds the store key for a (provider, model, window) usage record.
func UsageKey(provider, model string, k Kind) string {
	return fmt.Sprintf("usage/%s/%s/%s", provider, model, k)
}

// CooldownKey builds the store key for a (provider, model) cooldown record.
func CooldownKey(provider, model string) string {
	return fmt.Sprintf("cooldown/%s/%s", provider, model)
}

// LatencyKey builds the store key for a (provider, model) latency record.
func LatencyKey(provider, model string) string {
	return fmt.Sprintf("latency/%s/%s", provider, model)
}
