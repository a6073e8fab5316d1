package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/vetclinic/internal/adapter/api/respond"
	"github.com/V4T54L/vetclinic/internal/adapter/metrics"
	"github.com/V4T54L/vetclinic/internal/adapter/repository/memory"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/pkg/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubResolver struct {
	tenants map[string]*domain.Tenant
	err     error
}

func (s stubResolver) Resolve(_ context.Context, host string) (*domain.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.tenants[host]; ok {
		return t, nil
	}
	return nil, domain.ErrTenantNotFound
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) respond.ErrorBody {
	t.Helper()
	var body respond.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

// tenantEcho reports which tenant the handler saw.
var tenantEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if t, ok := domain.TenantFrom(r.Context()); ok {
		fmt.Fprint(w, t.Subdomain)
		return
	}
	fmt.Fprint(w, "none")
})

func TestTenant_Outcomes(t *testing.T) {
	clinic := &domain.Tenant{ID: uuid.New(), Subdomain: "clinic3", Status: domain.TenantStatusActive}

	tests := []struct {
		name       string
		resolver   stubResolver
		host       string
		wantStatus int
		wantCode   string
		wantBody   string
	}{
		{
			name:       "resolved",
			resolver:   stubResolver{tenants: map[string]*domain.Tenant{"clinic3.example.com": clinic}},
			host:       "clinic3.example.com",
			wantStatus: http.StatusOK,
			wantBody:   "clinic3",
		},
		{
			name:       "unknown clinic",
			resolver:   stubResolver{},
			host:       "nope.example.com",
			wantStatus: http.StatusNotFound,
			wantCode:   respond.CodeClinicNotFound,
		},
		{
			name:       "suspended clinic",
			resolver:   stubResolver{err: fmt.Errorf("clinic3: %w", domain.ErrTenantSuspended)},
			host:       "clinic3.example.com",
			wantStatus: http.StatusForbidden,
			wantCode:   respond.CodeClinicBlocked,
		},
		{
			name:       "cancelled clinic",
			resolver:   stubResolver{err: domain.ErrTenantCancelled},
			host:       "clinic3.example.com",
			wantStatus: http.StatusForbidden,
			wantCode:   respond.CodeClinicBlocked,
		},
		{
			name:       "main site continues without tenant",
			resolver:   stubResolver{err: domain.ErrMainSite},
			host:       "example.com",
			wantStatus: http.StatusOK,
			wantBody:   "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Tenant(tt.resolver, discardLogger())(tenantEcho)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
			} else {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestTenant_DirectoryUnavailableSetsRetryAfter(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h := Tenant(stubResolver{err: fmt.Errorf("lookup: %w", domain.ErrDirectoryUnavailable)}, discardLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "clinic3.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, respond.CodeUnavailable, decodeError(t, rec).Error)
}

func TestTenant_NoLeakageBetweenRequests(t *testing.T) {
	a := &domain.Tenant{ID: uuid.New(), Subdomain: "clinica", Status: domain.TenantStatusActive}
	b := &domain.Tenant{ID: uuid.New(), Subdomain: "clinicb", Status: domain.TenantStatusActive}
	h := Tenant(stubResolver{tenants: map[string]*domain.Tenant{
		"clinica.example.com": a,
		"clinicb.example.com": b,
	}}, discardLogger())(tenantEcho)

	for i := 0; i < 10; i++ {
		for _, host := range []string{"clinica.example.com", "clinicb.example.com", "ghost.example.com"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = host
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			switch host {
			case "clinica.example.com":
				assert.Equal(t, "clinica", rec.Body.String())
			case "clinicb.example.com":
				assert.Equal(t, "clinicb", rec.Body.String())
			default:
				assert.Equal(t, http.StatusNotFound, rec.Code)
			}
		}
	}
}

func TestRequireTenant(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("tenant present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/clients", nil)
		req = req.WithContext(domain.WithTenant(req.Context(), &domain.Tenant{ID: uuid.New()}))
		rec := httptest.NewRecorder()
		RequireTenant(false, discardLogger())(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("main site", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/clients", nil)
		req = req.WithContext(context.WithValue(req.Context(), mainSiteKey{}, true))
		rec := httptest.NewRecorder()
		RequireTenant(true, discardLogger())(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, respond.CodeNotAClinic, decodeError(t, rec).Error)
	})

	t.Run("missing in production", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireTenant(false, discardLogger())(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, respond.CodeMissingTenant, decodeError(t, rec).Error)
	})

	t.Run("missing in development panics", func(t *testing.T) {
		h := RequireTenant(true, discardLogger())(ok)
		assert.Panics(t, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/clients", nil))
		})
	})
}

func TestAdminKey(t *testing.T) {
	var actor string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = ActorFrom(r.Context())
	})
	h := AdminKey(memory.NewAdminKeys("super-secret-key"), discardLogger())(next)

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{name: "missing", key: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong", key: "guess", wantStatus: http.StatusUnauthorized},
		{name: "valid", key: "super-secret-key", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
			if tt.key != "" {
				req.Header.Set(AdminKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
	assert.Equal(t, "admin-key:****-key", actor)
}

func TestStaffAuth(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour)
	tenantA := &domain.Tenant{ID: uuid.New(), Subdomain: "clinica"}
	tenantB := &domain.Tenant{ID: uuid.New(), Subdomain: "clinicb"}
	staffID := uuid.New()
	token, err := issuer.Generate(staffID, tenantA.ID, string(domain.RoleVet))
	require.NoError(t, err)

	var seen *auth.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFrom(r.Context())
	})
	h := StaffAuth(issuer, discardLogger())(next)

	serve := func(tenant *domain.Tenant, header string) int {
		req := httptest.NewRequest(http.MethodGet, "/clients", nil)
		req = req.WithContext(domain.WithTenant(req.Context(), tenant))
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(tenantA, ""))
	assert.Equal(t, http.StatusUnauthorized, serve(tenantA, "Bearer not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, serve(tenantB, "Bearer "+token))
	assert.Nil(t, seen)

	assert.Equal(t, http.StatusOK, serve(tenantA, "Bearer "+token))
	require.NotNil(t, seen)
	assert.Equal(t, staffID, seen.StaffID)
}

func TestLogging_CountsByStatus(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	clinic := &domain.Tenant{ID: uuid.New(), Subdomain: "clinic3", Status: domain.TenantStatusActive}
	resolver := stubResolver{tenants: map[string]*domain.Tenant{"clinic3.example.com": clinic}}
	h := Logging(discardLogger(), m)(Tenant(resolver, discardLogger())(tenantEcho))

	for _, host := range []string{"clinic3.example.com", "clinic3.example.com", "ghost.example.com"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("404")))
}
