// Package respond writes JSON bodies and maps domain errors onto HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// Error codes returned in the "error" field.
const (
	CodeClinicNotFound     = "clinic_not_found"
	CodeClinicBlocked      = "clinic_access_blocked"
	CodeUnavailable        = "service_unavailable"
	CodeMissingTenant      = "missing_tenant_context"
	CodeNotAClinic         = "not_a_clinic"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeLimitExceeded      = "limit_exceeded"
	CodeValidation         = "validation_failed"
	CodeInvalidSubdomain   = "invalid_subdomain"
	CodeInvalidTransition  = "invalid_transition"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidCredentials = "invalid_credentials"
	CodeBadRequest         = "bad_request"
	CodeInternal           = "internal_error"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// Error writes an error body.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: code, Message: message})
}

// Classify maps err to a status and error code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return http.StatusNotFound, CodeClinicNotFound
	case domain.IsAccessBlocked(err):
		return http.StatusForbidden, CodeClinicBlocked
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, domain.ErrMissingTenantContext):
		return http.StatusInternalServerError, CodeMissingTenant
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrLimitExceeded):
		return http.StatusConflict, CodeLimitExceeded
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, domain.ErrInvalidSubdomain):
		return http.StatusBadRequest, CodeInvalidSubdomain
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, CodeInvalidTransition
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeInvalidCredentials
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Err classifies err and writes it. Server-side failures are logged and
// their details are not exposed.
func Err(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := Classify(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "code", code)
		message = http.StatusText(status)
	}
	Error(w, status, code, message)
}
