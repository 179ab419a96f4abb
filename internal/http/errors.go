package http

import (
	"errors"
	"net/http"
	"strings"

	"finboard/internal/api"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/session"
	"finboard/internal/storage"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrEmptyCategory,
	core.ErrEmptyAccount,
	core.ErrMissingDate,
	core.ErrMissingInterval,
	core.ErrInvalidInterval,
	core.ErrEmptyName,
	core.ErrInvalidAccountType,
	core.ErrNegativeBalance,
}

// isAPI reports whether r targets the JSON endpoints.
func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail maps err to a response in the format the caller expects: JSON for
// /api routes and an error fragment plus notification otherwise. An
// expired or rejected API token ends the session.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.reqLogger(r)

	if errors.Is(err, api.ErrSessionExpired) || errors.Is(err, api.ErrUnauthorized) {
		s.appMetrics.expired.Add(1)
		logger.WarnContext(r.Context(), "API token rejected, ending session",
			log.NewFields().WithError(err, log.ErrorTypeAuth).ToSlice()...)
		if sess := currentSession(r); sess != nil {
			_ = s.sessions.Delete(r.Context(), sess.ID)
		}
		session.ClearCookie(w, s.cookieSecure)
		s.redirectToSignIn(w, r)
		return
	}

	if errors.Is(err, session.ErrNotFound) {
		logger.InfoContext(r.Context(), "Session ended during request")
		session.ClearCookie(w, s.cookieSecure)
		s.redirectToSignIn(w, r)
		return
	}

	status, msg, errType := classify(err)
	fields := log.NewFields().WithError(err, errType).ToSlice()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields...)
	}

	if isAPI(r) {
		writeJSONError(w, status, msg)
		return
	}
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

func classify(err error) (status int, msg, errType string) {
	switch {
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound, "Not found", log.ErrorTypeNotFound
	case errors.Is(err, storage.ErrViewNotFound):
		return http.StatusNotFound, "Saved view not found", log.ErrorTypeNotFound
	case errors.Is(err, storage.ErrInvalidView):
		return http.StatusBadRequest, err.Error(), log.ErrorTypeValidation
	case errors.Is(err, ErrBadParam):
		return http.StatusBadRequest, err.Error(), log.ErrorTypeValidation
	case errors.Is(err, services.ErrEmptySelection):
		return http.StatusUnprocessableEntity, "No transactions selected", log.ErrorTypeValidation
	case isValidation(err):
		return http.StatusUnprocessableEntity, "Invalid data: " + err.Error(), log.ErrorTypeValidation
	case errors.Is(err, services.ErrNoExporter), errors.Is(err, services.ErrNoViewStore):
		return http.StatusServiceUnavailable, err.Error(), log.ErrorTypeConfiguration
	case errors.Is(err, errTemplatesNotLoaded):
		return http.StatusInternalServerError, "Error rendering page", log.ErrorTypeConfiguration
	default:
		return http.StatusBadGateway, "The finance service is unavailable. Please try again.", log.ErrorTypeNetwork
	}
}
