package api

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/creator-analytics/internal/errors"
	"github.com/creator-analytics/internal/service"
	"github.com/creator-analytics/internal/types"
	"github.com/gorilla/mux"
)

// MaxLimit caps the number of created assets a caller may ask for
const MaxLimit = 100

// StatsResponse is the body of GET /api/stats
type StatsResponse struct {
	Engine   service.EngineStats `json:"engine"`
	Upstream interface{}         `json:"upstream,omitempty"`
}

// handleGetAnalytics handles GET /api/creators/{identifier}/analytics
func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	input, err := parseAnalyticsInput(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := s.analytics.GetCreatorAnalytics(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// parseAnalyticsInput reads the path identifier and query options.
// An explicit mode takes precedence over the fetchAll/initialLoadOnly flags.
func parseAnalyticsInput(r *http.Request) (*service.AnalyticsInput, error) {
	identifier := strings.TrimSpace(mux.Vars(r)["identifier"])
	if identifier == "" {
		return nil, apperrors.NewInvalidParameterError("identifier", "identifier is required")
	}

	query := r.URL.Query()
	input := &service.AnalyticsInput{Identifier: identifier}

	if raw := query.Get("mode"); raw != "" {
		mode, ok := types.ParseMode(raw)
		if !ok {
			return nil, apperrors.NewInvalidParameterError("mode", "mode must be one of initial, standard, full")
		}
		input.Mode = mode
	} else {
		fetchAll, err := parseBoolParam(query.Get("fetchAll"), "fetchAll")
		if err != nil {
			return nil, err
		}
		initialOnly, err := parseBoolParam(query.Get("initialLoadOnly"), "initialLoadOnly")
		if err != nil {
			return nil, err
		}
		input.Mode = types.ModeFromFlags(fetchAll, initialOnly)
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return nil, apperrors.NewInvalidParameterError("limit", "limit must be an integer between 1 and "+strconv.Itoa(MaxLimit))
		}
		input.Limit = limit
	}

	skipCache, err := parseBoolParam(query.Get("skipCache"), "skipCache")
	if err != nil {
		return nil, err
	}
	input.SkipCache = skipCache

	return input, nil
}

func parseBoolParam(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewInvalidParameterError(name, name+" must be true or false")
	}
	return v, nil
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Engine: s.analytics.Stats()}
	if s.upstream != nil {
		resp.Upstream = s.upstream.Stats()
	}
	respondJSON(w, http.StatusOK, resp)
}
