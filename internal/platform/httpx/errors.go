package httpx

import (
	"errors"
	"net/http"

	"github.com/solarlink-crm/solarlink/internal/shared"
)

// RespondError maps the core error taxonomy to HTTP responses using RFC7807.
// Unauthorized means the role lacks permission; InvalidTransition covers both
// unreachable status changes and stale-state conflicts, hence 409.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusForbidden, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
