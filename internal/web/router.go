package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/znz-systems/leadbridge/internal/auth"
	"github.com/znz-systems/leadbridge/internal/ratelimit"
	"github.com/znz-systems/leadbridge/internal/web/handlers"
	"github.com/znz-systems/leadbridge/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	NotificationHandler *handlers.NotificationHandler
	HealthHandler       *handlers.HealthHandler
	TokenVerifier       *auth.TokenVerifier
	Limiter             *ratelimit.Limiter
	// MetricsHandler defaults to the Prometheus default registry.
	MetricsHandler http.Handler
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Handle("/metrics", metricsHandler)

	// Notification intake API (CORS, rate limited, optional bearer token)
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS)
		if deps.Limiter != nil {
			r.Use(middleware.RateLimit(deps.Limiter))
		}
		r.Use(middleware.RequireToken(deps.TokenVerifier))

		// Answered by the CORS middleware.
		r.Options("/api/v1/notifications", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Post("/api/v1/notifications", deps.NotificationHandler.HandleReceive)
	})

	return r
}
