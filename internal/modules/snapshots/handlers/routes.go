package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", h.HandleListSnapshots)
		r.Post("/", h.HandleIngest)
		r.Post("/sync", h.HandleSync)
		r.Get("/runs", h.HandleListRuns)
	})
}
