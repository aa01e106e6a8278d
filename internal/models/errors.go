package models

import (
	"errors"
	"fmt"
)

// ProviderError is a per-city fetch or parse failure. The orchestrator logs it and
// moves on to the next city.
type ProviderError struct {
	City    string
	Code    int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("provider error for %s: %s: %v", e.City, e.Message, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("API Error for %s: %s (cod %d)", e.City, e.Message, e.Code)
	default:
		return fmt.Sprintf("API Error for %s: %s", e.City, e.Message)
	}
}

// Unwrap returns the underlying transport or decode error, if any.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the failure came from the transport rather than
// from the provider rejecting the request.
func (e *ProviderError) IsTransient() bool {
	return e.Err != nil || e.Code >= 500 || e.Code == 429
}

// IsTransient reports whether err, or an error it wraps, says a later retry may
// succeed. Errors that do not say are treated as permanent.
func IsTransient(err error) bool {
	var t interface{ IsTransient() bool }
	if errors.As(err, &t) {
		return t.IsTransient()
	}
	return false
}
