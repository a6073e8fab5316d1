package handler

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/vetclinic/internal/adapter/api/respond"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// BrandingHandler serves the presentation config of the resolved clinic.
type BrandingHandler struct {
	logger *slog.Logger
}

func NewBrandingHandler(logger *slog.Logger) *BrandingHandler {
	return &BrandingHandler{logger: logger}
}

// GET /api/v1/branding
func (h *BrandingHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := domain.TenantFrom(r.Context())
	if !ok {
		respond.Err(w, h.logger, domain.ErrMissingTenantContext)
		return
	}
	respond.JSON(w, http.StatusOK, usecase.BrandingFor(tenant))
}
