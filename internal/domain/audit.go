package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded for tenant mutations.
const (
	AuditTenantCreated       = "tenant.created"
	AuditTenantUpdated       = "tenant.updated"
	AuditTenantStatusChanged = "tenant.status_changed"
	AuditStaffAdded          = "tenant.staff_added"
)

// AuditEvent records one authoritative change to a tenant.
type AuditEvent struct {
	ID              string          `json:"event_id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	Action          string          `json:"action"`
	Actor           string          `json:"actor"`
	OccurredAt      time.Time       `json:"occurred_at"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	PIIRedacted     bool            `json:"pii_redacted,omitempty"`
	StreamMessageID string          `json:"-"`
}

// AuditGroupInfo describes a consumer group on the audit stream.
type AuditGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// AuditStreamStats summarizes the audit buffer and its dead-letter stream.
type AuditStreamStats struct {
	Stream    string           `json:"stream"`
	Length    int64            `json:"length"`
	DLQStream string           `json:"dlq_stream"`
	DLQLength int64            `json:"dlq_length"`
	Groups    []AuditGroupInfo `json:"groups"`
}
