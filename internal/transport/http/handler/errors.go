package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gram-sevak/internal/domain"
)

// httpError maps a service error to a status and JSON error body.
// Client errors carry their own message; everything else is logged and
// answered with fallback so infrastructure details never reach the caller.
func httpError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNoCodeFound),
		errors.Is(err, domain.ErrCodeExpired),
		errors.Is(err, domain.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDispatchFailed):
		writeError(w, http.StatusInternalServerError, fallback)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
