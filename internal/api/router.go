package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pluginmanifest/registry/internal/middleware"
	"github.com/pluginmanifest/registry/internal/registry"
	"github.com/pluginmanifest/registry/internal/sync"
)

// Config holds API router configuration
type Config struct {
	Registry      *registry.Registry
	SyncManager   *sync.Manager
	WebhookSecret string
	// MaxBodyBytes caps POST bodies on the validation endpoints
	MaxBodyBytes int64
	// FailFast is the default of ?failFast on manifest validation
	FailFast bool
	Logger   *slog.Logger
}

// NewRouter creates a new HTTP router with all API routes
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(exposeRequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	handlers := NewHandlers(cfg.Registry, cfg.FailFast, cfg.Logger)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	if cfg.SyncManager != nil {
		handlers.sync = cfg.SyncManager
		webhookHandler := sync.NewWebhookHandler(
			cfg.WebhookSecret,
			cfg.SyncManager,
			cfg.Registry.Source().Branch(),
			cfg.Logger,
		)
		r.Post("/webhooks/github", webhookHandler.ServeHTTP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.Get("/ping", handlers.Ping)
		r.Get("/version", handlers.Version)

		r.Get("/plugins", handlers.ListPlugins)
		r.Get("/plugins/{pluginID}", handlers.GetPlugin)
		r.Get("/plugins/{pluginID}/dependencies", handlers.GetDependencies)
		r.Get("/search", handlers.Search)
		r.Get("/audit", handlers.Audit)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
			r.Post("/manifests/validate", handlers.ValidateManifest)
			r.Post("/ranges/check", handlers.CheckRange)
		})
	})

	return r
}

// exposeRequestID echoes the request id so outer middleware and clients can
// read it from the response headers
func exposeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(chimiddleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
