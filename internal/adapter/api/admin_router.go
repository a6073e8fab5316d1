package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/vetclinic/internal/adapter/api/handler"
	"github.com/V4T54L/vetclinic/internal/adapter/api/middleware"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// AdminRouterDeps are the collaborators of the operator-facing router.
type AdminRouterDeps struct {
	Logger    *slog.Logger
	Gatherer  prometheus.Gatherer
	AdminKeys domain.AdminKeyRepository
	Tenants   *usecase.TenantAdmin
	Audit     handler.AuditStreamAdmin
}

// NewAdminRouter creates and configures the HTTP router for tenant
// administration. It is served on a separate listener from clinic traffic.
func NewAdminRouter(deps AdminRouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(deps.Logger, nil))
	r.Use(chimw.Recoverer)

	h := handler.NewTenantHandler(deps.Tenants, deps.Audit, deps.Logger)

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminKey(deps.AdminKeys, deps.Logger))

		r.Get("/tenants", h.ListTenants)
		r.Post("/tenants", h.CreateTenant)
		r.Get("/tenants/{subdomain}", h.GetTenant)
		r.Patch("/tenants/{subdomain}", h.UpdateTenant)
		r.Post("/tenants/{subdomain}/status", h.ChangeStatus)
		r.Post("/tenants/{subdomain}/staff", h.AddStaff)

		r.Get("/audit", h.AuditStats)
		r.Post("/audit/dlq/trim", h.TrimDLQ)
	})

	return r
}
