package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/auth"
	"github.com/solarlink-crm/solarlink/internal/leads"
	"github.com/solarlink-crm/solarlink/internal/ledger"
	"github.com/solarlink-crm/solarlink/internal/observability"
	"github.com/solarlink-crm/solarlink/internal/projects"
	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	LeadsHandler    *leads.Handler
	ProjectsHandler *projects.Handler
	LedgerHandler   *ledger.Handler

	AccessMiddleware access.Middleware
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with SolarLink defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		// Self-service signup lands in PENDING until an admin approves.
		r.Post("/register", params.UsersHandler.Register)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.AccessMiddleware.Authenticated)
		params.UsersHandler.MountRoutes(r, params.AccessMiddleware)
		params.LeadsHandler.MountRoutes(r, params.AccessMiddleware)
		params.ProjectsHandler.MountRoutes(r, params.AccessMiddleware)
		params.LedgerHandler.MountRoutes(r, params.AccessMiddleware)
	})

	return r
}
