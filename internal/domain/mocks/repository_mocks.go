package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/domain"
)

// MockAuditRepository is a mock implementation of domain.AuditRepository for testing.
type MockAuditRepository struct {
	mu              sync.Mutex
	BufferedEvents  []domain.AuditEvent
	WrittenEvents   []domain.AuditEvent
	AckedMessageIDs []string
	DLQEvents       []domain.AuditEvent
	ReadBatchResult []domain.AuditEvent
	BufferErr       error
	ReadErr         error
	WriteErr        error
	AckErr          error
	DLQErr          error
	WriteCalls      int
}

func (m *MockAuditRepository) BufferEvent(ctx context.Context, event domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BufferErr != nil {
		return m.BufferErr
	}
	m.BufferedEvents = append(m.BufferedEvents, event)
	return nil
}

func (m *MockAuditRepository) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.ReadBatchResult, nil
}

func (m *MockAuditRepository) WriteBatch(ctx context.Context, events []domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteCalls++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.WrittenEvents = append(m.WrittenEvents, events...)
	return nil
}

func (m *MockAuditRepository) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockAuditRepository) MoveToDLQ(ctx context.Context, events []domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DLQErr != nil {
		return m.DLQErr
	}
	m.DLQEvents = append(m.DLQEvents, events...)
	return nil
}

// Buffered returns a snapshot of the buffered events.
func (m *MockAuditRepository) Buffered() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEvent(nil), m.BufferedEvents...)
}

// FlakyDirectory wraps a TenantDirectory and fails host lookups with
// domain.ErrDirectoryUnavailable while Failures is positive.
type FlakyDirectory struct {
	domain.TenantDirectory

	mu       sync.Mutex
	Failures int
	Lookups  int
}

func (d *FlakyDirectory) fail() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Lookups++
	if d.Failures > 0 {
		d.Failures--
		return fmt.Errorf("find tenant: %w: connection refused", domain.ErrDirectoryUnavailable)
	}
	return nil
}

func (d *FlakyDirectory) FindBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	return d.TenantDirectory.FindBySubdomain(ctx, subdomain)
}

func (d *FlakyDirectory) FindByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	return d.TenantDirectory.FindByDomain(ctx, host)
}

// LookupCount returns how many host lookups reached the directory.
func (d *FlakyDirectory) LookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Lookups
}

// MockInvalidator records cache invalidations.
type MockInvalidator struct {
	mu        sync.Mutex
	Keys      []string
	TenantIDs []uuid.UUID
	Err       error
}

func (m *MockInvalidator) InvalidateTenant(ctx context.Context, tenantID uuid.UUID, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Keys = append(m.Keys, keys...)
	m.TenantIDs = append(m.TenantIDs, tenantID)
	return m.Err
}
