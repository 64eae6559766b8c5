// Package agents proxies agent CRUD calls to the upstream API. Agents are
// the sub-accounts of an agency, so every operation is scoped by data
// ownership: admins reach any agency, an agency owner only its own.
package agents

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agency-portal/agency-portal/internal/platform/httpx"
	"github.com/agency-portal/agency-portal/internal/rbac"
	"github.com/agency-portal/agency-portal/internal/session"
	"github.com/agency-portal/agency-portal/internal/upstream"
)

// Gateway is the subset of the upstream client used for agents.
type Gateway interface {
	AgentsByAgencyID(ctx context.Context, token, agencyID string) (*upstream.Envelope, error)
	CreateAgent(ctx context.Context, token string, in upstream.CreateAgentInput) (*upstream.Envelope, error)
}

// Handler manages agent endpoints.
type Handler struct {
	logger    *slog.Logger
	gateway   Gateway
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, gateway Gateway, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, gateway: gateway, rbac: mw, validator: validator.New()}
}

// MountRoutes registers agent routes. Listing only needs an authenticated
// identity because the handler applies ownership scoping itself; creation
// goes through the user-management gate, which admits agency owners but not
// agent sub-accounts.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAgency))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermUserManagement))
		r.Post("/", h.create)
	})
}

type createAgentForm struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	AgencyID  string `json:"agencyID" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := rbac.IdentityFromContext(r.Context())
	agencyID := r.URL.Query().Get("agencyID")
	if rbac.IsAgencyRole(id.Role) {
		// Agency accounts always list their own agency, whatever the query
		// says.
		agencyID = id.AgencyID
	}
	if agencyID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "agencyID is required")
		return
	}
	if !rbac.CanAccessData(*id, "", agencyID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have access to this agency")
		return
	}

	env, err := h.gateway.AgentsByAgencyID(r.Context(), session.FromContext(r.Context()).Token(), agencyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, env)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form createAgentForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	id := rbac.IdentityFromContext(r.Context())
	if !rbac.CanAccessData(*id, "", form.AgencyID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "agents can only be created under your own agency")
		return
	}

	env, err := h.gateway.CreateAgent(r.Context(), session.FromContext(r.Context()).Token(), upstream.CreateAgentInput{
		Email:     form.Email,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		AgencyID:  form.AgencyID,
	})
	if err != nil {
		h.logger.Warn("create agent", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, env)
}
