// Package errors defines the categorized error taxonomy surfaced by the analytics engine.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/creator-analytics/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed caller input (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents identities that cannot be resolved
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryUpstream represents failures of an external collaborator
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategorySystem represents internal errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// Error codes returned to callers
const (
	CodeNotFound         = "NOT_FOUND"
	CodeNoWalletAddress  = "NO_WALLET_ADDRESS"
	CodeUpstreamFetch    = "UPSTREAM_FETCH_ERROR"
	CodeUpstreamTimeout  = "PROVIDER_TIMEOUT"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	CodeInternal         = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire representation
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewNotFoundError is returned when an identifier does not resolve to a profile
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewNoWalletAddressError is returned when a profile exists but has no usable primary wallet
func NewNoWalletAddressError(identifier string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNoWalletAddress,
		Message:    fmt.Sprintf("profile has no wallet address: %s", identifier),
		Details: map[string]interface{}{
			"identifier": identifier,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewUpstreamFetchError wraps a failed call to an external collaborator.
// A context deadline in the cause is reported as a timeout.
func NewUpstreamFetchError(operation string, cause error) *CategorizedError {
	if stderrors.Is(cause, context.DeadlineExceeded) {
		return &CategorizedError{
			Category:   CategoryUpstream,
			StatusCode: http.StatusGatewayTimeout,
			Code:       CodeUpstreamTimeout,
			Message:    fmt.Sprintf("upstream timeout during %s", operation),
			Cause:      cause,
			Details: map[string]interface{}{
				"operation": operation,
			},
		}
	}
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       CodeUpstreamFetch,
		Message:    fmt.Sprintf("upstream fetch failed during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimit,
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	c := &CategorizedError{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	}
	switch err.Code {
	case CodeInvalidParameter:
		c.Category, c.StatusCode = CategoryValidation, http.StatusBadRequest
	case CodeNotFound, CodeNoWalletAddress:
		c.Category, c.StatusCode = CategoryNotFound, http.StatusNotFound
	case CodeRateLimit:
		c.Category, c.StatusCode = CategoryRateLimit, http.StatusTooManyRequests
	case CodeUpstreamFetch:
		c.Category, c.StatusCode = CategoryUpstream, http.StatusBadGateway
	default:
		c.Category, c.StatusCode = CategorySystem, http.StatusInternalServerError
	}
	return c
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether err resolves to a not-found class error
func IsNotFound(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryNotFound
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 500
}
