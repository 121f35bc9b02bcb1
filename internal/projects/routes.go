package projects

import (
	"github.com/go-chi/chi/v5"

	"github.com/solarlink-crm/solarlink/internal/access"
)

// MountRoutes attaches the project lifecycle routes. Coarse role gates live
// here; ownership and transition checks are the engine's job.
func (h *Handler) MountRoutes(r chi.Router, mw access.Middleware) {
	r.With(mw.Require(access.ActionCreateProject)).Post("/projects", h.Create)
	r.With(mw.Require(access.ActionViewProjects)).Get("/projects", h.List)
	r.With(mw.Require(access.ActionViewProjects)).Get("/projects/{projectID}", h.Get)
	r.With(mw.Require(access.ActionViewTimeline)).Get("/projects/{projectID}/timeline", h.Timeline)

	r.With(mw.Require(access.ActionForwardProject)).Post("/projects/{projectID}/forward", h.Forward)
	r.With(mw.Require(access.ActionApproveProject)).Post("/projects/{projectID}/approve", h.Approve)
	r.With(mw.Require(access.ActionRejectProject)).Post("/projects/{projectID}/reject", h.Reject)
	r.With(mw.Require(access.ActionAssignOps)).Post("/projects/{projectID}/assign-ops", h.AssignOps)
	r.With(mw.Require(access.ActionUpdateWorkStatus)).Post("/projects/{projectID}/work-status", h.UpdateWorkStatus)
	r.With(mw.Require(access.ActionAdminOverride)).Post("/projects/{projectID}/override", h.Override)
}
