// Package users serves the user-management screen. Admins see the whole
// portal user base; an agency owner sees only the agents of their agency.
// Agent sub-accounts share the agency role but are denied by the
// user-management gate.
package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agency-portal/agency-portal/internal/platform/httpx"
	"github.com/agency-portal/agency-portal/internal/rbac"
	"github.com/agency-portal/agency-portal/internal/session"
	"github.com/agency-portal/agency-portal/internal/upstream"
)

// Gateway is the subset of the upstream client used for user management.
type Gateway interface {
	ListUsers(ctx context.Context, token string) (*upstream.Envelope, error)
	AgentsByAgencyID(ctx context.Context, token, agencyID string) (*upstream.Envelope, error)
}

// Handler manages user-management endpoints.
type Handler struct {
	logger  *slog.Logger
	gateway Gateway
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, gateway Gateway, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, gateway: gateway, rbac: mw}
}

// MountRoutes registers user-management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermUserManagement))
		r.Get("/", h.list)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := rbac.IdentityFromContext(r.Context())
	token := session.FromContext(r.Context()).Token()

	var (
		env *upstream.Envelope
		err error
	)
	if rbac.IsAdminOrHigher(id.Role) {
		env, err = h.gateway.ListUsers(r.Context(), token)
	} else {
		// An agency owner manages its own agents only.
		env, err = h.gateway.AgentsByAgencyID(r.Context(), token, id.AgencyID)
	}
	if err != nil {
		h.logger.Warn("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, env)
}
