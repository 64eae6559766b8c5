package rbac

import (
	"log/slog"
	"net/http"

	"github.com/agency-portal/agency-portal/internal/platform/httpx"
)

// Middleware wires access-decision helpers into the HTTP layer. Decisions
// are evaluated against the identity published into the request context by
// the session middleware; a missing identity yields 401, a denial 403.
type Middleware struct {
	Logger *slog.Logger
}

// RequirePermission admits requests whose identity holds at least one of the
// given permissions, applying the agency-subtype override where relevant.
func (m Middleware) RequirePermission(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			for _, p := range perms {
				if HasPermissionWithSubtype(id.Role, p, id.Subtype) {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.deny(w, r, id)
		})
	}
}

// RequireView admits requests whose identity may navigate to the given view.
func (m Middleware) RequireView(view View) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !CanAccessViewWithSubtype(id.Role, view, id.Subtype) {
				m.deny(w, r, id)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits requests whose identity is at least as privileged as
// required.
func (m Middleware) RequireRole(required Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !id.Role.AtLeast(required) {
				m.deny(w, r, id)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, id *Identity) {
	if m.Logger != nil {
		m.Logger.Warn("access denied",
			slog.String("path", r.URL.Path),
			slog.String("role", id.Role.String()),
		)
	}
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to access this resource")
}
