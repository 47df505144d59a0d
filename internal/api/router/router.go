// Package router provides HTTP routing configuration using Chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/ocspreq/internal/api/handler"
	"github.com/remiblancher/ocspreq/internal/api/middleware"
	"github.com/remiblancher/ocspreq/internal/api/service"
)

// Config holds router configuration.
type Config struct {
	// Services lists the enabled route groups: "api", "ocsp" or "all".
	Services []string
	Version  string

	// RequestService decodes requests for both route groups.
	RequestService *service.RequestService

	// Ready contributes extra readiness checks; may be nil.
	Ready func() map[string]bool
}

// HasService checks if a service is enabled.
func (c *Config) HasService(name string) bool {
	for _, s := range c.Services {
		if s == "all" || s == name {
			return true
		}
	}
	return false
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS)

	// Health endpoints (always enabled)
	healthHandler := handler.NewHealthHandler(cfg.Version, cfg.Services, cfg.Ready)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	requestHandler := handler.NewRequestHandler(cfg.RequestService)

	// JSON API
	if cfg.HasService("api") {
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/requests/decode", requestHandler.DecodeJSON)
		})
	}

	// RFC 6960 Appendix A transport
	if cfg.HasService("ocsp") {
		r.Post("/ocsp", requestHandler.DecodePost)
		r.Post("/ocsp/", requestHandler.DecodePost)
		r.Get("/ocsp/*", requestHandler.DecodeGet)
	}

	return r
}
