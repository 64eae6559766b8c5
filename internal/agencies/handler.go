// Package agencies proxies agency CRUD calls to the upstream API. Listing
// and creation are admin operations; the portal adds authorization and
// validation but owns no agency data itself.
package agencies

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

// Gateway is the subset of the upstream client used for agencies.
type Gateway interface {
	ListAgencies(ctx context.Context, token string) (*upstream.Envelope, error)
	AgencyByID(ctx context.Context, token, agencyID string) (*upstream.Agency, error)
	CreateAgency(ctx context.Context, token string, in upstream.CreateAgencyInput) (*upstream.Envelope, error)
}

// Handler manages agency endpoints.
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

// MountRoutes registers agency routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermViewAllData))
		r.Get("/", h.list)
		r.Get("/{agencyID}", h.get)
		r.Post("/", h.create)
	})
}

type createAgencyForm struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Tel          string `json:"tel" validate:"required"`
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName" validate:"required"`
	AgencyTypeID int    `json:"agencyTypeID" validate:"required,oneof=1 2"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	env, err := h.gateway.ListAgencies(r.Context(), session.FromContext(r.Context()).Token())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, env)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	agencyID := chi.URLParam(r, "agencyID")
	agency, err := h.gateway.AgencyByID(r.Context(), session.FromContext(r.Context()).Token(), agencyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": agency})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form createAgencyForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	env, err := h.gateway.CreateAgency(r.Context(), session.FromContext(r.Context()).Token(), upstream.CreateAgencyInput{
		Name:         form.Name,
		Email:        form.Email,
		Tel:          form.Tel,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		AgencyTypeID: form.AgencyTypeID,
	})
	if err != nil {
		h.logger.Warn("create agency", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, env)
}
