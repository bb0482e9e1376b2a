package ratelimit

import (
	"time"

	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

// WindowQuota is the remaining budget for one window. Remaining values
// are nil when the corresponding limit is not configured.
type WindowQuota struct {
	RequestsRemaining *int64
	TokensRemaining   *int64
	ResetAt           *time.Time
}

// QuotaStatus is a point-in-time snapshot of the budget for one
// (provider, model) pair across all three windows.
type QuotaStatus struct {
	Minute        WindowQuota
	Hour          WindowQuota
	Day           WindowQuota
	CooldownUntil *time.Time
}

// Window returns the quota snapshot for the given window kind.
func (q QuotaStatus) Window(k window.Kind) WindowQuota {
	switch k {
	case window.Hour:
		return q.Hour
	case window.Day:
		return q.Day
	default:
		return q.Minute
	}
}

// windowLimits extracts the (requests, tokens) caps for one window kind.
func windowLimits(limits provider.RateLimits, k window.Kind) (requests, tokens *int64) {
	switch k {
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
