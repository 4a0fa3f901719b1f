// Package api exposes the job scheduler over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the HTTP-layer settings.
type RouterConfig struct {
	CORSOrigins  []string
	RateLimitRPS int
}

// NewRouter wires the handler routes behind the middleware chain. ctx bounds
// the background work of the rate limiter.
func NewRouter(ctx context.Context, h *Handler, verifier Verifier, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(Auth(verifier))

			r.With(RateLimit(ctx, cfg.RateLimitRPS)).Post("/jobs", h.CreateJob)
			r.Get("/jobs", h.ListJobs)
			r.Get("/stats", h.Stats)

			r.Route("/jobs/{id}", func(r chi.Router) {
				r.Get("/", h.GetJob)
				r.Patch("/", h.UpdateJob)
				r.Delete("/", h.DeleteJob)
				r.Get("/wait", h.WaitEstimate)
				r.Get("/events", h.StreamEvents)
				r.Get("/history", h.JobHistory)
			})
		})
	})

	return r
}

