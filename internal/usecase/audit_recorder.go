package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/adapter/metrics"
	"github.com/V4T54L/vetclinic/internal/adapter/pii"
	"github.com/V4T54L/vetclinic/internal/domain"
)

// AuditRecorder enriches, redacts and buffers tenant audit events.
type AuditRecorder struct {
	repo     domain.AuditRepository
	redactor *pii.Redactor
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewAuditRecorder creates a new AuditRecorder. m may be nil.
func NewAuditRecorder(repo domain.AuditRepository, redactor *pii.Redactor, logger *slog.Logger, m *metrics.Metrics) *AuditRecorder {
	return &AuditRecorder{
		repo:     repo,
		redactor: redactor,
		logger:   logger,
		metrics:  m,
	}
}

// Record buffers an audit event for tenantID. metadata is marshalled to JSON.
func (uc *AuditRecorder) Record(ctx context.Context, tenantID uuid.UUID, action, actor string, metadata map[string]any) error {
	event := domain.AuditEvent{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Action:     action,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		event.Metadata = raw
	}

	if err := uc.redactor.Redact(&event); err != nil {
		// Never ship metadata we could not inspect.
		uc.logger.Warn("failed to redact audit metadata, dropping metadata", "error", err, "event_id", event.ID)
		event.Metadata = nil
	}

	if err := uc.repo.BufferEvent(ctx, event); err != nil {
		uc.logger.Error("failed to buffer audit event", "error", err, "event_id", event.ID, "action", action)
		uc.count("error_buffer")
		return err
	}
	uc.count("buffered")
	return nil
}

func (uc *AuditRecorder) count(status string) {
	if uc.metrics != nil {
		uc.metrics.AuditEvents.WithLabelValues(status).Inc()
	}
}
