package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/creator-analytics/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found passes through",
			err:        NewNotFoundError("profile", "alice"),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeNotFound,
		},
		{
			name:       "wrapped categorized error is unwrapped",
			err:        fmt.Errorf("resolve: %w", NewNoWalletAddressError("alice")),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeNoWalletAddress,
		},
		{
			name:       "upstream error maps to bad gateway",
			err:        NewUpstreamFetchError("listBalances", fmt.Errorf("connection reset")),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeUpstreamFetch,
		},
		{
			name:       "upstream deadline maps to gateway timeout",
			err:        NewUpstreamFetchError("getAssetDetail", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   CodeUpstreamTimeout,
		},
		{
			name:       "service error is categorized by code",
			err:        &types.ServiceError{Code: CodeInvalidParameter, Message: "bad mode"},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidParameter,
		},
		{
			name:       "plain error becomes internal",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.err)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, GetHTTPStatusCode(tt.err))
		})
	}
}

func TestCategorize_Nil(t *testing.T) {
	assert.Nil(t, Categorize(nil))
	assert.False(t, IsUserError(nil))
	assert.False(t, IsSystemError(nil))
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, IsNotFound(NewNoWalletAddressError("bob")))
	assert.True(t, IsUserError(NewInvalidParameterError("limit", "must be positive")))
	assert.True(t, IsSystemError(NewUpstreamFetchError("resolveProfile", fmt.Errorf("503"))))
	assert.False(t, IsNotFound(NewInternalError("x", nil)))
}

func TestCategorizedError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	err := NewUpstreamFetchError("listBalances", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "socket closed")
	assert.Equal(t, CodeUpstreamFetch, err.ToServiceError().Code)
}
