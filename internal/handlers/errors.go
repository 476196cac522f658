package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/gescon/internal/httpx"
	"github.com/diewo77/gescon/internal/logger"
	"github.com/diewo77/gescon/internal/services"
	"github.com/go-chi/chi/v5"
)

// writeServiceError maps the engine's error taxonomy onto HTTP statuses.
// Unknown errors are logged and surfaced as a generic failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *services.ValidationError
	var nf *services.NotFoundError
	var ce *services.ConflictError
	switch {
	case errors.Is(err, services.ErrNoRemainingBalance):
		httpx.JSONError(w, http.StatusBadRequest, "no_remaining_balance", nil)
	case errors.As(err, &ve):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", ve.Violations)
	case errors.As(err, &nf):
		httpx.JSONError(w, http.StatusNotFound, nf.Error(), nil)
	case errors.As(err, &ce):
		httpx.JSONError(w, http.StatusConflict, ce.Code, nil)
	default:
		logger.L.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// idParam reads the {id} route parameter.
func idParam(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseDate accepts RFC3339 timestamps or plain dates.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseOptionalDate returns nil for absent input and false only on malformed
// input.
func parseOptionalDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, ok := parseDate(s)
	if !ok {
		return nil, false
	}
	return &t, true
}
