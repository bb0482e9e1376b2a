// Package errors defines the typed error taxonomy for the routing core.
// Interior components return these as values; they are never used for
// control flow beyond classification in the execution driver.
package errors

import (
	"fmt"
	"time"
)

// ConfigurationError reports an invalid router or catalog configuration.
// It is fatal at construction time.
type ConfigurationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s", e.Message)
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ModelNotFound reports that a resolved model name matches no provider.
type ModelNotFound struct {
	Model string
}

// Error implements the error interface.
func (e *ModelNotFound) Error() string {
	return fmt.Sprintf("model not found: %s", e.Model)
}

// RateLimited is the internal rate-limit signal raised when an upstream
// answers 429. ResetAt is nil when the response carried no Retry-After.
type RateLimited struct {
	Provider string
	Model    string
	ResetAt  *time.Time
}

// Error implements the error interface.
func (e *RateLimited) Error() string {
	if e.ResetAt != nil {
		return fmt.Sprintf("rate limited by %s for %s until %s", e.Provider, e.Model, e.ResetAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("rate limited by %s for %s", e.Provider, e.Model)
}

// ProviderError reports a non-429 HTTP or transport failure from an upstream.
type ProviderError struct {
	Provider string
	Status   int
	Raw      string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("provider %s error (status=%d): %s", e.Provider, e.Status, e.Raw)
	}
	return fmt.Sprintf("provider %s error (status=%d)", e.Provider, e.Status)
}

// Timeout reports a per-call deadline hit. The driver treats it like any
// other provider failure: backoff, then failover.
type Timeout struct {
	Provider  string
	TimeoutMS int64
}

// Error implements the error interface.
func (e *Timeout) Error() string {
	return fmt.Sprintf("provider %s timed out after %dms", e.Provider, e.TimeoutMS)
}

// AttemptedPair identifies one (provider, model) pair the driver tried.
type AttemptedPair struct {
	Provider string
	Model    string
}

// AllProvidersExhausted is the terminal driver error raised when every
// candidate has been excluded or the retry budget is spent.
type AllProvidersExhausted struct {
	Model         string
	Attempted     []AttemptedPair
	EarliestReset *time.Time
}

// Error implements the error interface.
func (e *AllProvidersExhausted) Error() string {
	providers := make([]string, 0, len(e.Attempted))
	for _, a := range e.Attempted {
		providers = append(providers, a.Provider)
	}
	if e.EarliestReset != nil {
		return fmt.Sprintf("all providers exhausted for %s (attempted %v, earliest reset %s)",
			e.Model, providers, e.EarliestReset.Format(time.RFC3339))
	}
	return fmt.Sprintf("all providers exhausted for %s (attempted %v)", e.Model, providers)
}
