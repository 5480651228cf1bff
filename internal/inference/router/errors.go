package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/circuit"
)

type UnknownProviderError struct {
	Provider string
	Valid    []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown AI provider %q (valid providers: %s)", e.Provider, strings.Join(e.Valid, ", "))
}

type ProviderNotConfiguredError struct {
	Provider string
}

func (e *ProviderNotConfiguredError) Error() string {
	return fmt.Sprintf("AI provider %q is not configured: missing credentials", e.Provider)
}

type InvalidModelError struct {
	Provider string
	Model    string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("model %q is not valid for AI provider %q", e.Model, e.Provider)
}

// ServiceUnavailableError is returned while the provider's circuit rejects calls.
type ServiceUnavailableError struct {
	Provider string
	State    circuit.State
	Fallback string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("AI provider %q temporarily unavailable (circuit %s)", e.Provider, e.State)
}

// IsConfigurationError reports errors that no retry can fix.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var unknown *UnknownProviderError
	var notConfigured *ProviderNotConfiguredError
	var invalid *InvalidModelError
	return errors.As(err, &unknown) || errors.As(err, &notConfigured) || errors.As(err, &invalid)
}

func IsServiceUnavailable(err error) bool {
	var unavailable *ServiceUnavailableError
	return errors.As(err, &unavailable)
}

// IsRetryable treats availability and unclassified vendor errors as transient.
func IsRetryable(err error) bool {
	return err != nil && !IsConfigurationError(err)
}

// Kind is a short label for logs and message metadata.
func Kind(err error) string {
	var unknown *UnknownProviderError
	var notConfigured *ProviderNotConfiguredError
	var invalid *InvalidModelError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unknown):
		return "unknown_provider"
	case errors.As(err, &notConfigured):
		return "provider_not_configured"
	case errors.As(err, &invalid):
		return "invalid_model"
	case IsServiceUnavailable(err):
		return "service_unavailable"
	default:
		return "provider_error"
	}
}
