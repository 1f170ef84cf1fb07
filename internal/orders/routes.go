package orders

import "github.com/go-chi/chi/v5"

// MountRoutes registers service order endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/items", h.addItem)
		r.Patch("/items/{itemID}", h.updateItem)
		r.Delete("/items/{itemID}", h.removeItem)
		r.Put("/discount", h.setDiscount)
		r.Post("/transitions", h.transition)
		r.Put("/mechanic", h.assignMechanic)
		r.Get("/history", h.history)
		for _, mount := range h.extensions {
			mount(r)
		}
	})
}

// Extend registers extra routes under /{id} owned by other modules.
func (h *Handler) Extend(mount func(r chi.Router)) {
	h.extensions = append(h.extensions, mount)
}
