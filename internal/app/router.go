package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/agency-portal/agency-portal/internal/agencies"
	"github.com/agency-portal/agency-portal/internal/agents"
	"github.com/agency-portal/agency-portal/internal/auth"
	"github.com/agency-portal/agency-portal/internal/leads"
	"github.com/agency-portal/agency-portal/internal/observability"
	"github.com/agency-portal/agency-portal/internal/platform/httpx"
	"github.com/agency-portal/agency-portal/internal/session"
	"github.com/agency-portal/agency-portal/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *session.Manager
	SessionStore   *session.Store
	CSRFManager    *session.CSRFManager
	AuthHandler    *auth.Handler
	AgencyHandler  *agencies.Handler
	AgentHandler   *agents.Handler
	LeadHandler    *leads.Handler
	UserHandler    *users.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		SessionStore:   params.SessionStore,
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

	// Redirect target for unauthorized navigation in the frontend.
	r.Get("/access-denied", func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusForbidden, "Access Denied", "you do not have permission to access this resource")
	})

	r.Route("/auth", func(r chi.Router) {
		// OTP mail-outs are abusable; throttle harder than the global limit.
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/agencies", params.AgencyHandler.MountRoutes)
		r.Route("/agents", params.AgentHandler.MountRoutes)
		r.Route("/leads", params.LeadHandler.MountRoutes)
		r.Route("/users", params.UserHandler.MountRoutes)
	})

	return r
}
