package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/vetclinic/internal/adapter/api/middleware"
	"github.com/V4T54L/vetclinic/internal/adapter/api/respond"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// AuditStreamAdmin inspects and maintains the buffered audit stream.
type AuditStreamAdmin interface {
	Stats(ctx context.Context) (*domain.AuditStreamStats, error)
	TrimDLQ(ctx context.Context, maxLen int64) (int64, error)
}

// TenantHandler handles HTTP requests for tenant administration.
type TenantHandler struct {
	admin  *usecase.TenantAdmin
	audit  AuditStreamAdmin
	logger *slog.Logger
}

// NewTenantHandler creates a new TenantHandler. audit may be nil when no
// audit stream is configured.
func NewTenantHandler(admin *usecase.TenantAdmin, audit AuditStreamAdmin, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{admin: admin, audit: audit, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *TenantHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTenants handles GET /admin/tenants?status=
func (h *TenantHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	status := domain.TenantStatus(r.URL.Query().Get("status"))
	tenants, err := h.admin.ListTenants(r.Context(), status)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	if tenants == nil {
		tenants = []domain.Tenant{}
	}
	respond.JSON(w, http.StatusOK, tenants)
}

// CreateTenant handles POST /admin/tenants
func (h *TenantHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var in usecase.CreateTenantInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.admin.CreateTenant(r.Context(), middleware.ActorFrom(r.Context()), in)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, t)
}

// GetTenant handles GET /admin/tenants/{subdomain}
func (h *TenantHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.admin.GetTenant(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, t)
}

// UpdateTenant handles PATCH /admin/tenants/{subdomain}
func (h *TenantHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	var upd usecase.ProfileUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	t, err := h.admin.UpdateProfile(r.Context(), middleware.ActorFrom(r.Context()), chi.URLParam(r, "subdomain"), upd)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, t)
}

type statusRequest struct {
	Status domain.TenantStatus `json:"status"`
}

// ChangeStatus handles POST /admin/tenants/{subdomain}/status
func (h *TenantHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.admin.ChangeStatus(r.Context(), middleware.ActorFrom(r.Context()), chi.URLParam(r, "subdomain"), req.Status)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, t)
}

// AddStaff handles POST /admin/tenants/{subdomain}/staff
func (h *TenantHandler) AddStaff(w http.ResponseWriter, r *http.Request) {
	var in usecase.NewStaffInput
	if !decodeJSON(w, r, &in) {
		return
	}
	member, err := h.admin.AddStaff(r.Context(), middleware.ActorFrom(r.Context()), chi.URLParam(r, "subdomain"), in)
	if err != nil {
		respond.Err(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, member)
}

// AuditStats handles GET /admin/audit
func (h *TenantHandler) AuditStats(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "audit stream is not configured")
		return
	}
	stats, err := h.audit.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to read audit stream stats", "error", err)
		respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, http.StatusText(http.StatusInternalServerError))
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}

// TrimDLQ handles POST /admin/audit/dlq/trim?maxlen=
func (h *TenantHandler) TrimDLQ(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "audit stream is not configured")
		return
	}
	maxLen, err := strconv.ParseInt(r.URL.Query().Get("maxlen"), 10, 64)
	if err != nil || maxLen < 0 {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "maxlen must be a non-negative integer")
		return
	}
	trimmed, err := h.audit.TrimDLQ(r.Context(), maxLen)
	if err != nil {
		h.logger.Error("failed to trim audit DLQ", "error", err)
		respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, http.StatusText(http.StatusInternalServerError))
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int64{"trimmed_count": trimmed})
}
