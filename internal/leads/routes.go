package leads

import (
	"github.com/go-chi/chi/v5"

	"github.com/solarlink-crm/solarlink/internal/access"
)

// MountRoutes attaches the lead pipeline routes.
func (h *Handler) MountRoutes(r chi.Router, mw access.Middleware) {
	r.With(mw.Require(access.ActionCreateLead)).Post("/leads", h.Create)
	r.With(mw.Require(access.ActionEditLead)).Get("/leads", h.List)
	r.With(mw.Require(access.ActionEditLead)).Get("/leads/{leadID}", h.Get)
	r.With(mw.Require(access.ActionEditLead)).Put("/leads/{leadID}", h.Update)
	r.With(mw.Require(access.ActionConvertLead)).Post("/leads/{leadID}/convert", h.Convert)
}
