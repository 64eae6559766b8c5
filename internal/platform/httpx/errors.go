package httpx

import (
	"errors"
	"net/http"

	"github.com/agency-portal/agency-portal/internal/upstream"
)

// Sentinel errors shared across handler packages.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain and upstream errors to HTTP problem responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, upstream.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "credentials were not accepted")
	case errors.Is(err, upstream.ErrRejected):
		Problem(w, http.StatusBadRequest, "Upstream Rejected", err.Error())
	case errors.Is(err, upstream.ErrUnavailable):
		Problem(w, http.StatusBadGateway, "Upstream Error", "the agency service is unavailable")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
