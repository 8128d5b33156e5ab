package websites

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers website routes. domainLimiter guards the routes
// that reach the DNS/TLS provider on every call.
func (h *Handler) RegisterRoutes(r chi.Router, domainLimiter func(http.Handler) http.Handler) {
	r.Route("/v1/websites", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/domain", h.DomainStatus)

		r.Group(func(r chi.Router) {
			r.Use(domainLimiter)
			r.Post("/", h.Create)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/domain/reconcile", h.ReconcileDomain)
		})
	})
}
