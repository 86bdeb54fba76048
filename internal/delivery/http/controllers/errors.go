package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	h "merchpos/internal/delivery/http/helpers"
	"merchpos/internal/domain"
)

// isUUID accepts only the canonical 8-4-4-4-12 form; uuid.Validate alone also
// takes the braced, urn and undashed spellings.
func isUUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}

// pathID reads a UUID path value and writes a 400 when it is missing or malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing "+name)
		return "", false
	}
	if !isUUID(id) {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid "+name+": must be a UUID")
		return "", false
	}
	return id, true
}

// writeServiceError maps a service error onto the response envelope.
// Errors with no mapping are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, notFoundMsg)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRole):
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrEmailDomainNotAllowed):
		h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, err.Error())
	case errors.Is(err, domain.ErrDuplicateEmail), errors.Is(err, domain.ErrDuplicateSKU), errors.Is(err, domain.ErrNotPending):
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrLocked):
		h.WriteJSONError(w, http.StatusLocked, h.ErrCodeLocked, err.Error())
	case errors.Is(err, domain.ErrFileTooLarge):
		h.WriteJSONError(w, http.StatusRequestEntityTooLarge, h.ErrCodeTooLarge, err.Error())
	case errors.Is(err, domain.ErrUnsupportedMedia):
		h.WriteJSONError(w, http.StatusUnsupportedMediaType, h.ErrCodeUnsupported, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, "internal server error")
	}
}
