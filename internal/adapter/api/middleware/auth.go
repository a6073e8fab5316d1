package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/vetclinic/internal/adapter/api/respond"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/pkg/auth"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey is a middleware factory that checks for a valid key in the
// X-Admin-Key header.
func AdminKey(repo domain.AdminKeyRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if key == "" {
				logger.Warn("admin key missing from request", "remote_addr", r.RemoteAddr)
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "admin key required")
				return
			}

			isValid, err := repo.IsValid(r.Context(), key)
			if err != nil {
				logger.Error("failed to validate admin key", "error", err)
				respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, http.StatusText(http.StatusInternalServerError))
				return
			}

			if !isValid {
				logger.Warn("invalid admin key provided", "remote_addr", r.RemoteAddr)
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "invalid admin key")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, "admin-key:"+keyHint(key))))
		})
	}
}

// keyHint identifies a key in audit records without storing it.
func keyHint(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

type actorKey struct{}

// ActorFrom returns who authenticated the admin request.
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return "unknown"
}

type claimsKey struct{}

// ClaimsFrom returns the staff session claims attached by StaffAuth.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// StaffAuth requires a bearer token issued for the request's clinic. A token
// from another clinic is rejected even when its signature is valid.
func StaffAuth(issuer *auth.Issuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "bearer token required")
				return
			}

			claims, err := issuer.Validate(token)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "invalid token")
				return
			}

			tenant, ok := domain.TenantFrom(r.Context())
			if !ok || claims.TenantID != tenant.ID {
				logger.Warn("token presented to another clinic", "token_tenant", claims.TenantID, "host", r.Host)
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "token was not issued for this clinic")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
