package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Every clinic repository takes a Scope as its first argument after the
// context. Implementations must derive the tenant predicate from the Scope
// and fail with ErrMissingTenantContext when it is unscoped.

// ClientRepository stores clinic clients.
type ClientRepository interface {
	Create(ctx context.Context, scope Scope, c *Client) error
	Get(ctx context.Context, scope Scope, id uuid.UUID) (*Client, error)
	List(ctx context.Context, scope Scope, limit, offset int) ([]Client, error)
	Update(ctx context.Context, scope Scope, c *Client) error
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
	Count(ctx context.Context, scope Scope) (int, error)
}

// PetRepository stores pets. Create verifies the owning client under the same scope.
type PetRepository interface {
	Create(ctx context.Context, scope Scope, p *Pet) error
	Get(ctx context.Context, scope Scope, id uuid.UUID) (*Pet, error)
	ListByClient(ctx context.Context, scope Scope, clientID uuid.UUID) ([]Pet, error)
	Update(ctx context.Context, scope Scope, p *Pet) error
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
}

// AppointmentRepository stores appointments. Create verifies the pet under the same scope.
type AppointmentRepository interface {
	Create(ctx context.Context, scope Scope, a *Appointment) error
	Get(ctx context.Context, scope Scope, id uuid.UUID) (*Appointment, error)
	ListBetween(ctx context.Context, scope Scope, from, to time.Time) ([]Appointment, error)
	UpdateStatus(ctx context.Context, scope Scope, id uuid.UUID, status AppointmentStatus) error
}

// StaffRepository stores clinic staff accounts.
type StaffRepository interface {
	Create(ctx context.Context, scope Scope, s *Staff) error
	Get(ctx context.Context, scope Scope, id uuid.UUID) (*Staff, error)
	GetByEmail(ctx context.Context, scope Scope, email string) (*Staff, error)
	List(ctx context.Context, scope Scope) ([]Staff, error)
	Count(ctx context.Context, scope Scope) (int, error)
}

// AuditRepository defines buffering and sinking of tenant audit events.
type AuditRepository interface {
	// BufferEvent adds a single audit event to the durable buffer.
	BufferEvent(ctx context.Context, event AuditEvent) error

	// ReadBatch reads a batch of events from the buffer for a specific consumer.
	ReadBatch(ctx context.Context, group, consumer string, count int) ([]AuditEvent, error)

	// WriteBatch writes a batch of events to the final structured sink.
	WriteBatch(ctx context.Context, events []AuditEvent) error

	// Acknowledge marks events as processed in the buffer.
	Acknowledge(ctx context.Context, group string, messageIDs ...string) error

	// MoveToDLQ parks events that could not be sunk.
	MoveToDLQ(ctx context.Context, events []AuditEvent) error
}

// AdminKeyRepository validates keys for the tenant administration API.
type AdminKeyRepository interface {
	// IsValid checks if the provided key is valid and active.
	// Implementations should handle caching to reduce database load.
	IsValid(ctx context.Context, key string) (bool, error)
}
