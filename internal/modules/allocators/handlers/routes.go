package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the strategy catalog and allocator routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/strategies", h.HandleListStrategies)

	r.Route("/allocators", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleDelete)
			r.Post("/predict", h.HandlePredict)
			r.Get("/min-observations", h.HandleMinObservations)
		})
	})
}
