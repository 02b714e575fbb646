// Package api provides the HTTP API of the air quality series service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/api/handler"
	"github.com/breatheroute/airseries/internal/api/middleware"
	"github.com/breatheroute/airseries/internal/api/response"
	"github.com/breatheroute/airseries/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	// Series builds the series served by GET /v1/series. Required.
	Series handler.SeriesBuilder

	// Registry backs GET /v1/ops/status.
	Registry *resilience.Registry

	// ReadinessChecks back GET /v1/ops/ready.
	ReadinessChecks []handler.ReadinessCheck

	// CORSAllowedOrigins enables CORS for browser clients. Empty disables it.
	CORSAllowedOrigins []string

	// SeriesRateLimit overrides middleware.SeriesRateLimit.
	SeriesRateLimit *middleware.RateLimitConfig

	// RequireTLS rejects plain HTTP reported by the load balancer.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", "traceparent"},
			ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(response.MethodNotAllowed)

	seriesLimit := middleware.SeriesRateLimit
	if cfg.SeriesRateLimit != nil {
		seriesLimit = *cfg.SeriesRateLimit
	}

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.ReadinessChecks,
	})
	seriesHandler := handler.NewSeriesHandler(cfg.Series, cfg.Logger)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public, polled by the platform)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).Get("/status", opsHandler.SystemStatus)
		})

		// Series fans out to every provider - strict rate limiting
		r.With(middleware.RateLimitByIP(seriesLimit)).Get("/series", seriesHandler.GetSeries)
	})

	return r
}
