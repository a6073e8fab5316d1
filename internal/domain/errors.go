package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound is returned when no clinic matches the request host.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrTenantSuspended blocks access to a suspended clinic without deleting its data.
	ErrTenantSuspended = errors.New("tenant suspended")
	// ErrTenantCancelled blocks access to a cancelled clinic.
	ErrTenantCancelled = errors.New("tenant cancelled")
	// ErrMissingTenantContext means a scoped operation ran without a resolved tenant.
	ErrMissingTenantContext = errors.New("missing tenant context")
	// ErrDirectoryUnavailable marks a retryable tenant directory failure.
	ErrDirectoryUnavailable = errors.New("tenant directory unavailable")
	// ErrMainSite is returned when the host is the marketing site rather than a clinic.
	ErrMainSite = errors.New("main site host")

	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidSubdomain  = errors.New("invalid subdomain")
	ErrLimitExceeded     = errors.New("tenant limit exceeded")
	ErrValidation        = errors.New("validation failed")
)

// IsAccessBlocked reports whether err denies access to an existing tenant.
func IsAccessBlocked(err error) bool {
	return errors.Is(err, ErrTenantSuspended) || errors.Is(err, ErrTenantCancelled)
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
