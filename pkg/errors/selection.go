package errors

import "fmt"

// SelectionReason tags the failure mode of the candidate-selection pipeline.
type SelectionReason string

const (
	// ReasonNoMatchingProviders means the catalog produced an empty raw set.
	ReasonNoMatchingProviders SelectionReason = "no_matching_providers"

	// ReasonNoAvailableCandidates means every candidate was filtered out
	// by exclusions, cooldowns, or quota.
	ReasonNoAvailableCandidates SelectionReason = "no_available_candidates"

	// ReasonStrategyError means the strategy itself failed.
	ReasonStrategyError SelectionReason = "strategy_error"

	// ReasonProviderNotFound means a named provider is not configured.
	ReasonProviderNotFound SelectionReason = "provider_not_found"
)

// SelectionError is the tagged error returned by candidate selection.
// The driver maps it to ModelNotFound or AllProvidersExhausted.
type SelectionError struct {
	Reason   SelectionReason
	Model    string
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	switch e.Reason {
	case ReasonNoMatchingProviders:
		return fmt.Sprintf("selection: no matching providers for model %s", e.Model)
	case ReasonNoAvailableCandidates:
		return fmt.Sprintf("selection: no available candidates for model %s", e.Model)
	case ReasonProviderNotFound:
		return fmt.Sprintf("selection: provider not found: %s", e.Provider)
	case ReasonStrategyError:
		return fmt.Sprintf("selection: strategy failed: %v", e.Err)
	default:
		return fmt.Sprintf("selection: %s", e.Reason)
	}
}

// Unwrap exposes the inner error for errors.Is/As chains.
func (e *SelectionError) Unwrap() error { return e.Err }

// NewNoMatchingProviders creates a SelectionError for an empty catalog result.
func NewNoMatchingProviders(model string) *SelectionError {
	return &SelectionError{Reason: ReasonNoMatchingProviders, Model: model}
}

// NewNoAvailableCandidates creates a SelectionError for a fully filtered list.
func NewNoAvailableCandidates(model string) *SelectionError {
	return &SelectionError{Reason: ReasonNoAvailableCandidates, Model: model}
}

// NewStrategyError wraps a strategy failure.
func NewStrategyError(err error) *SelectionError {
	return &SelectionError{Reason: ReasonStrategyError, Err: err}
}

// NewProviderNotFound creates a SelectionError for an unknown provider name.
func NewProviderNotFound(name string) *SelectionError {
	return &SelectionError{Reason: ReasonProviderNotFound, Provider: name}
}
