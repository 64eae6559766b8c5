package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agency-portal/agency-portal/internal/observability"
	"github.com/agency-portal/agency-portal/internal/platform/httpx"
	"github.com/agency-portal/agency-portal/internal/rbac"
	"github.com/agency-portal/agency-portal/internal/session"
	"github.com/agency-portal/agency-portal/internal/upstream"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	store     *session.Store
	csrf      *session.CSRFManager
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, store *session.Store, csrf *session.CSRFManager, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		store:     store,
		csrf:      csrf,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/otp/request", h.requestOTP)
	r.Post("/otp/submit", h.submitOTP)
	r.Post("/sso", h.loginSSO)
	r.Post("/refresh", h.refresh)
	r.Post("/logout", h.logout)
	r.Get("/me", h.me)
}

type otpRequestForm struct {
	Email string `json:"email" validate:"required,email"`
}

type otpSubmitForm struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,min=4,max=10"`
}

type ssoForm struct {
	Token string `json:"token"`
}

type identityResponse struct {
	User        *rbac.Identity    `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
	Views       []rbac.View       `json:"views"`
	CSRFToken   string            `json:"csrf_token,omitempty"`
}

func (h *Handler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var form otpRequestForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a valid email address is required")
		return
	}
	if err := h.service.RequestOTP(r.Context(), form.Email); err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "one-time password sent",
	})
}

func (h *Handler) submitOTP(w http.ResponseWriter, r *http.Request) {
	var form otpSubmitForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and otp are required")
		return
	}

	id, token, err := h.service.LoginWithOTP(r.Context(), form.Email, form.OTP)
	h.metrics.RecordLogin(string(rbac.AuthMethodEmail), err == nil)
	if err != nil {
		// Failed login leaves any prior session untouched.
		h.respondAuthError(w, r, err)
		return
	}
	h.establish(w, r, id, token)
}

func (h *Handler) loginSSO(w http.ResponseWriter, r *http.Request) {
	var form ssoForm
	// The body is optional; the token may arrive in the Authorization header.
	_ = httpx.DecodeJSON(r, &form)
	token := strings.TrimSpace(form.Token)
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a bearer token is required")
		return
	}

	id, err := h.service.LoginWithSSO(r.Context(), token)
	h.metrics.RecordLogin(string(rbac.AuthMethodMicrosoft), err == nil)
	if err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	h.establish(w, r, id, token)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil || sess.Identity() == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	id, err := h.store.Refresh(r.Context(), sess)
	if err != nil {
		if errors.Is(err, session.ErrRevoked) || errors.Is(err, session.ErrNotAuthenticated) {
			httpx.Problem(w, http.StatusUnauthorized, "Session Revoked", "please sign in again")
			return
		}
		// Transient upstream failure: the previous identity remains valid.
		if h.logger != nil {
			h.logger.Warn("refresh deferred", slog.Any("error", err))
		}
	}
	h.respondIdentity(w, sess, id)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess != nil {
		h.store.Logout(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil || sess.Identity() == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	// The persisted identity is only a cached value; re-validate it against
	// the upstream before answering. The role may have changed since the
	// last check.
	id, err := h.store.Refresh(r.Context(), sess)
	if err != nil {
		if errors.Is(err, session.ErrRevoked) || errors.Is(err, session.ErrNotAuthenticated) {
			httpx.Problem(w, http.StatusUnauthorized, "Session Revoked", "please sign in again")
			return
		}
		// Transient upstream failure: the previous identity remains valid.
		if h.logger != nil {
			h.logger.Warn("refresh deferred", slog.Any("error", err))
		}
	}
	h.respondIdentity(w, sess, id)
}

// establish installs the identity into the session and responds with the
// derived capability sets the frontend uses for conditional rendering.
func (h *Handler) establish(w http.ResponseWriter, r *http.Request, id rbac.Identity, token string) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.store.Login(sess, id, token)
	h.respondIdentity(w, sess, &id)
}

func (h *Handler) respondIdentity(w http.ResponseWriter, sess *session.Session, id *rbac.Identity) {
	if id == nil {
		id = sess.Identity()
	}
	if id == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	csrfToken := ""
	if h.csrf != nil && sess != nil {
		csrfToken, _ = h.csrf.EnsureToken(sess)
	}
	httpx.JSON(w, http.StatusOK, identityResponse{
		User:        id,
		Permissions: rbac.PermissionsFor(id.Role),
		Views:       rbac.ViewsFor(id.Role),
		CSRFToken:   csrfToken,
	})
}

func (h *Handler) respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case rbac.IsNormalizationFailure(err):
		if h.logger != nil {
			h.logger.Warn("login rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusUnauthorized, "Login Rejected", "account role is not recognised")
	case errors.Is(err, upstream.ErrUnauthorized), errors.Is(err, upstream.ErrRejected):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "credentials were not accepted")
	case errors.Is(err, upstream.ErrUnavailable):
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", "the agency service is unavailable")
	default:
		if h.logger != nil {
			h.logger.Error("auth failure", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
