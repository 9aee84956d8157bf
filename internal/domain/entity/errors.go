package entity

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by a provider adapter when it has no endpoint
// for the requested capability (e.g. historical prices on DEXScreener).
// The resolution engine treats it as a permanent failure for that call and
// moves on to the next provider without retrying.
var ErrUnsupported = errors.New("operation not supported by provider")

// ProviderError wraps a failed provider call with enough classification for
// the resolution engine's retry decision. Timeouts, 5xx responses and rate
// limits are retryable; other 4xx responses are not.
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err represents a transient provider failure.
// Unclassified errors (network-level faults) are considered transient.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrUnsupported) {
		return false
	}
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Retryable
	}
	return true
}
