package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/creator-analytics/internal/errors"
	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondServiceError maps err onto the error envelope. Server-side
// failures are logged with their cause; internal details are not exposed.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)

	if catErr.StatusCode >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithFields(map[string]interface{}{
			"code":   catErr.Code,
			"status": catErr.StatusCode,
		}).WithError(err).Error("Request failed")
	}

	message := catErr.Message
	if catErr.Code == apperrors.CodeInternal {
		message = "An internal error occurred"
	}
	if retryAfter, ok := catErr.Details["retryAfter"].(int); ok {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	respondError(w, catErr.StatusCode, catErr.Code, message, catErr.Details)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
