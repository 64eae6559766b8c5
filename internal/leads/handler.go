// Package leads proxies lead capture and the project catalog the lead form
// depends on.
package leads

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

// Gateway is the subset of the upstream client used for leads.
type Gateway interface {
	ListProjects(ctx context.Context, token string) (*upstream.Envelope, error)
	SaveLead(ctx context.Context, token string, lead upstream.Lead) (*upstream.Envelope, error)
}

// Handler manages lead endpoints.
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

// MountRoutes registers lead routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermLeads))
		r.Get("/projects", h.projects)
		r.Post("/", h.save)
	})
}

type leadForm struct {
	ProjectID        int    `json:"projectID" validate:"required"`
	ContactChannelID int    `json:"contactChannelID" validate:"required"`
	ContactTypeID    int    `json:"contactTypeID" validate:"required"`
	FirstName        string `json:"firstName" validate:"required"`
	LastName         string `json:"lastName" validate:"required"`
	Tel              string `json:"tel" validate:"required"`
	Email            string `json:"email" validate:"omitempty,email"`
	Ref              string `json:"ref"`
	UTMSource        string `json:"utmSource"`
	UTMCampaign      string `json:"utmCampaign"`
	UTMMedium        string `json:"utmMedium"`
	UTMTerm          string `json:"utmTerm"`
	UTMContent       string `json:"utmContent"`
	PriceInterest    string `json:"priceInterest"`
	PurchasePurpose  string `json:"purchasePurpose"`
	PersonalAccept   bool   `json:"personalAccept"`
	ContactAccept    bool   `json:"contactAccept"`
}

func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	env, err := h.gateway.ListProjects(r.Context(), session.FromContext(r.Context()).Token())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, env)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var form leadForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	id := rbac.IdentityFromContext(r.Context())
	lead := upstream.Lead{
		ProjectID:          form.ProjectID,
		ContactChannelID:   form.ContactChannelID,
		ContactTypeID:      form.ContactTypeID,
		FirstName:          form.FirstName,
		LastName:           form.LastName,
		Tel:                form.Tel,
		Email:              form.Email,
		Ref:                form.Ref,
		UTMSource:          form.UTMSource,
		UTMCampaign:        form.UTMCampaign,
		UTMMedium:          form.UTMMedium,
		UTMTerm:            form.UTMTerm,
		UTMContent:         form.UTMContent,
		PriceInterest:      form.PriceInterest,
		PurchasePurpose:    form.PurchasePurpose,
		FlagPersonalAccept: form.PersonalAccept,
		FlagContactAccept:  form.ContactAccept,
	}
	if lead.Ref == "" && rbac.IsAgencyRole(id.Role) {
		// Leads captured by an agency account are attributed to it.
		lead.Ref = id.AgencyID
	}

	env, err := h.gateway.SaveLead(r.Context(), session.FromContext(r.Context()).Token(), lead)
	if err != nil {
		h.logger.Warn("save lead", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, env)
}
