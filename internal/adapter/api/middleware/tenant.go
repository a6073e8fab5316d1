package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/V4T54L/vetclinic/internal/adapter/api/respond"
	"github.com/V4T54L/vetclinic/internal/domain"
)

// RetryAfterSeconds is sent with 503 responses when the directory is unavailable.
const RetryAfterSeconds = 5

// Resolver maps a request host to its tenant.
type Resolver interface {
	Resolve(ctx context.Context, host string) (*domain.Tenant, error)
}

type mainSiteKey struct{}

func isMainSite(ctx context.Context) bool {
	v, _ := ctx.Value(mainSiteKey{}).(bool)
	return v
}

// Tenant resolves r.Host and attaches the tenant to the request context.
// Requests for unknown, blocked or unresolvable clinics never reach next.
func Tenant(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, err := resolver.Resolve(r.Context(), r.Host)
			switch {
			case err == nil:
				setLogTenant(r.Context(), tenant.Subdomain)
				next.ServeHTTP(w, r.WithContext(domain.WithTenant(r.Context(), tenant)))
			case errors.Is(err, domain.ErrMainSite):
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), mainSiteKey{}, true)))
			case errors.Is(err, domain.ErrTenantNotFound):
				respond.Error(w, http.StatusNotFound, respond.CodeClinicNotFound, fmt.Sprintf("no clinic is registered for %s", r.Host))
			case domain.IsAccessBlocked(err):
				respond.Error(w, http.StatusForbidden, respond.CodeClinicBlocked, "access to this clinic is blocked: "+err.Error())
			case errors.Is(err, domain.ErrDirectoryUnavailable):
				logger.Warn("tenant directory unavailable", "host", r.Host, "error", err)
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
				respond.Error(w, http.StatusServiceUnavailable, respond.CodeUnavailable, "clinic directory is temporarily unavailable")
			default:
				respond.Err(w, logger, err)
			}
		})
	}
}

// RequireTenant guards routes that touch clinic data. Main-site requests get
// 404; a request that reaches it without a tenant is a wiring bug, which
// panics in development and fails with 500 otherwise.
func RequireTenant(development bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := domain.TenantFrom(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			if isMainSite(r.Context()) {
				respond.Error(w, http.StatusNotFound, respond.CodeNotAClinic, "this endpoint is only served on clinic hosts")
				return
			}
			logger.Error("scoped route reached without tenant context", "method", r.Method, "path", r.URL.Path, "host", r.Host)
			if development {
				panic(fmt.Errorf("%w: %s %s", domain.ErrMissingTenantContext, r.Method, r.URL.Path))
			}
			respond.Error(w, http.StatusInternalServerError, respond.CodeMissingTenant, http.StatusText(http.StatusInternalServerError))
		})
	}
}
