package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/vetclinic/internal/domain"
)

const auditTempTable = "tenant_audit_events_import"

// AuditRepository implements the sink half of domain.AuditRepository.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// WriteBatch stages events with COPY into a temp table and upserts them on
// event_id, so a redelivered batch is written once.
func (r *AuditRepository) WriteBatch(ctx context.Context, events []domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+auditTempTable+` (LIKE tenant_audit_events INCLUDING DEFAULTS) ON COMMIT DROP`)
	if err != nil {
		return err
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(auditTempTable, "event_id", "tenant_id", "action", "actor", "occurred_at", "metadata", "pii_redacted"))
	if err != nil {
		return err
	}

	for _, event := range events {
		_, err = stmt.ExecContext(ctx, event.ID, event.TenantID, event.Action, event.Actor, event.OccurredAt, metadataValue(event.Metadata), event.PIIRedacted)
		if err != nil {
			_ = stmt.Close()
			return err
		}
	}
	// Flush the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO tenant_audit_events (event_id, tenant_id, action, actor, occurred_at, metadata, pii_redacted)
		SELECT event_id, tenant_id, action, actor, occurred_at, metadata, pii_redacted FROM `+auditTempTable+`
		ON CONFLICT (event_id) DO NOTHING
	`)
	if err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	r.logger.Debug("wrote audit batch", "count", len(events))
	return nil
}

// metadataValue sends JSON as text so COPY does not encode it as bytea.
func metadataValue(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

var errNotImplemented = errors.New("method not implemented for the postgres audit sink")

func (r *AuditRepository) BufferEvent(ctx context.Context, event domain.AuditEvent) error {
	return errNotImplemented
}

func (r *AuditRepository) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.AuditEvent, error) {
	return nil, errNotImplemented
}

func (r *AuditRepository) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	return errNotImplemented
}

func (r *AuditRepository) MoveToDLQ(ctx context.Context, events []domain.AuditEvent) error {
	return errNotImplemented
}
