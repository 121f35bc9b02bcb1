package ledger

import (
	"github.com/go-chi/chi/v5"

	"github.com/solarlink-crm/solarlink/internal/access"
)

// MountRoutes attaches the payment ledger routes under the project tree.
func (h *Handler) MountRoutes(r chi.Router, mw access.Middleware) {
	r.With(mw.Require(access.ActionRecordPayment)).Post("/projects/{projectID}/payments", h.Record)
	r.With(mw.Require(access.ActionViewProjects)).Get("/projects/{projectID}/payments", h.List)
	r.With(mw.Require(access.ActionViewCommercials)).Get("/projects/{projectID}/settlement", h.Settlement)
	r.With(mw.Require(access.ActionVerifyPayment)).Post("/payments/{paymentID}/verify", h.Verify)
	r.With(mw.Require(access.ActionViewProjects)).Get("/payments/{paymentID}/proof", h.Proof)
}
