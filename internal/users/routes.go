package users

import (
	"github.com/go-chi/chi/v5"

	"github.com/solarlink-crm/solarlink/internal/access"
)

// MountRoutes attaches user administration routes.
func (h *Handler) MountRoutes(r chi.Router, mw access.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.Require(access.ActionManageUsers))
		r.Post("/users", h.Register)
		r.Get("/users", h.List)
		r.Post("/users/{id}/approve", h.Approve)
		r.Post("/users/{id}/block", h.Block)
		r.Post("/users/{id}/role", h.AssignRole)
	})
	// Any authenticated user, PENDING included, may finish their profile.
	r.Post("/profile", h.CompleteProfile)
}
