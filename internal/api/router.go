// Package api provides the HTTP API of the lap comparison service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/handler"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/middleware"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/models"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/response"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/auth"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/provider/resilience"
)

// SessionCache is the session cache as seen by the ops and admin endpoints.
type SessionCache interface {
	handler.CacheReporter
	handler.Invalidator
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Comparer handler.Comparer
	Sessions SessionCache
	Store    handler.Pinger
	Registry *resilience.Registry
	Tokens   *auth.TokenService

	CORSOrigins []string
	RequireTLS  bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "beyond-the-apex-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewMethodNotAllowed(middleware.GetRequestID(r.Context()), r.Method+" is not supported here"))
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Store:     cfg.Store,
		Cache:     cfg.Sessions,
		Registry:  cfg.Registry,
	})
	analyzeHandler := handler.NewAnalyzeHandler(cfg.Comparer, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.Sessions, cfg.Logger)

	adminAuth := middleware.AdminAuth(cfg.Tokens, auth.ScopeCacheAdmin)
	analyzeRateLimit := middleware.RateLimitByIP(middleware.AnalyzeRateLimit)

	// Unversioned path kept for existing dashboard clients.
	r.With(analyzeRateLimit).Get("/analyze", analyzeHandler.Analyze)

	r.Route("/v1", func(r chi.Router) {
		r.With(analyzeRateLimit).Get("/analyze", analyzeHandler.Analyze)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(adminAuth).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth)
			r.Use(middleware.RateLimitBySubject(middleware.AdminRateLimit))
			r.Use(middleware.RequireJSON)

			r.Post("/cache/invalidate", adminHandler.InvalidateCache)
		})
	})

	return r
}
