package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers chart routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/charts", func(r chi.Router) {
		r.Get("/equity-curve", h.HandleGetEquityCurve)
		r.Get("/cash-curve", h.HandleGetCashCurve)
		r.Get("/holdings-curve", h.HandleGetHoldingsCurve)
		r.Get("/trade-markers", h.HandleGetTradeMarkers)
		r.Get("/stats", h.HandleGetStats)
	})
}
