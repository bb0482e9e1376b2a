package provider

// RateLimits holds the optional caps a provider enforces for one model.
// A nil field means no limit is enforced for that metric and window.
type RateLimits struct {
	RequestsPerMinute *int64 `yaml:"requests_per_minute" json:"requests_per_minute,omitempty"`
	RequestsPerHour   *int64 `yaml:"requests_per_hour" json:"requests_per_hour,omitempty"`
	RequestsPerDay    *int64 `yaml:"requests_per_day" json:"requests_per_day,omitempty"`
	TokensPerMinute   *int64 `yaml:"tokens_per_minute" json:"tokens_per_minute,omitempty"`
	TokensPerHour     *int64 `yaml:"tokens_per_hour" json:"tokens_per_hour,omitempty"`
	TokensPerDay      *int64 `yaml:"tokens_per_day" json:"tokens_per_day,omitempty"`
}

// IsZero reports whether no limit is configured at all.
func (l RateLimits) IsZero() bool {
	return l.RequestsPerMinute == nil && l.RequestsPerHour == nil && l.RequestsPerDay == nil &&
		l.TokensPerMinute == nil && l.TokensPerHour == nil && l.TokensPerDay == nil
}

// Merge overlays the set fields of override onto base, field-wise.
func Merge(base, override RateLimits) RateLimits {
	merged := base
	if override.RequestsPerMinute != nil {
		merged.RequestsPerMinute = override.RequestsPerMinute
	}
	if override.RequestsPerHour != nil {
		merged.RequestsPerHour = override.RequestsPerHour
	}
	if override.RequestsPerDay != nil {
		merged.RequestsPerDay = override.RequestsPerDay
	}
	if override.TokensPerMinute != nil {
		merged.TokensPerMinute = override.TokensPerMinute
	}
	if override.TokensPerHour != nil {
		merged.TokensPerHour = override.TokensPerHour
	}
	if override.TokensPerDay != nil {
		merged.TokensPerDay = override.TokensPerDay
	}
	return merged
}

// Int64 returns a pointer to v. Convenience for building limit literals.
func Int64(v int64) *int64 { return &v }
