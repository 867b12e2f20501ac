// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/creator-analytics/internal/adapter"
	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/service"
	"github.com/creator-analytics/internal/types"
	"github.com/gorilla/mux"
)

// AnalyticsServiceInterface defines the engine operations exposed over HTTP
type AnalyticsServiceInterface interface {
	GetCreatorAnalytics(ctx context.Context, input *service.AnalyticsInput) (*types.AggregatedResult, error)
	Stats() service.EngineStats
}

// UpstreamStatsProvider reports the health of the upstream client
type UpstreamStatsProvider interface {
	Stats() adapter.ClientStats
}

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	analytics  AnalyticsServiceInterface
	upstream   UpstreamStatsProvider
	checks     map[string]HealthCheck
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond float64 // Per client
	Burst             int
	MaxClients        int
	// TrustProxyHeaders keys clients on X-Client-ID / X-Forwarded-For.
	// Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
}

// NewServer creates a new API server instance. upstream and checks may be nil.
func NewServer(
	config *ServerConfig,
	analytics AnalyticsServiceInterface,
	upstream UpstreamStatsProvider,
	checks map[string]HealthCheck,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		analytics: analytics,
		upstream:  upstream,
		checks:    checks,
		config:    config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(
		s.config.RequestsPerSecond,
		s.config.Burst,
		s.config.MaxClients,
		s.config.TrustProxyHeaders,
	)

	// Order matters: the request logger must exist before anything logs
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/creators/{identifier}/analytics", s.handleGetAnalytics).Methods("GET", "OPTIONS")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth reports healthy only when every dependency check passes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      "creator-analytics",
		"dependencies": deps,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
