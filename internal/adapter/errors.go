package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the platform has no record for the request
	ErrNotFound = errors.New("not found")

	// ErrInvalidAddress indicates the address format is invalid
	ErrInvalidAddress = errors.New("invalid address format")

	// ErrProviderUnavailable indicates the platform answered with a server error
	ErrProviderUnavailable = errors.New("data provider unavailable")

	// ErrProviderRateLimit indicates the provider rate limit was exceeded
	ErrProviderRateLimit = errors.New("provider rate limit exceeded")

	// ErrProviderTimeout indicates the provider request timed out
	ErrProviderTimeout = errors.New("provider request timeout")

	// ErrBadResponse indicates a response body that could not be decoded
	ErrBadResponse = errors.New("malformed provider response")
)

// AdapterError wraps errors with the operation that produced them
type AdapterError struct {
	Op       string // Operation that failed (e.g. "listBalances")
	Attempts int
	Err      error
	Details  map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("coin api error [%s]: %v (details: %+v)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("coin api error [%s]: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(op string, attempts int, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Op:       op,
		Attempts: attempts,
		Err:      err,
		Details:  details,
	}
}
