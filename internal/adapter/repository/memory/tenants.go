package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/domain"
)

// TenantDirectory implements domain.TenantDirectory in memory.
type TenantDirectory struct {
	s *Store
}

func cloneTenant(t domain.Tenant) *domain.Tenant {
	t.Theme.Features = maps.Clone(t.Theme.Features)
	return &t
}

func (d *TenantDirectory) find(match func(domain.Tenant) bool) (*domain.Tenant, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	for _, t := range d.s.tenants {
		if match(t) {
			return cloneTenant(t), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *TenantDirectory) FindBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	return d.find(func(t domain.Tenant) bool { return t.Subdomain == subdomain })
}

func (d *TenantDirectory) FindByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	return d.find(func(t domain.Tenant) bool { return t.Domain != "" && strings.EqualFold(t.Domain, host) })
}

func (d *TenantDirectory) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	t, ok := d.s.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTenant(t), nil
}

func (d *TenantDirectory) List(ctx context.Context, status domain.TenantStatus) ([]domain.Tenant, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	out := make([]domain.Tenant, 0, len(d.s.tenants))
	for _, t := range d.s.tenants {
		if status == "" || t.Status == status {
			out = append(out, *cloneTenant(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subdomain < out[j].Subdomain })
	return out, nil
}

// conflicts reports whether t's unique keys collide with another tenant.
// Callers hold the write lock.
func (d *TenantDirectory) conflicts(t *domain.Tenant) bool {
	for id, other := range d.s.tenants {
		if id == t.ID {
			continue
		}
		if other.Subdomain == t.Subdomain {
			return true
		}
		if t.Domain != "" && strings.EqualFold(other.Domain, t.Domain) {
			return true
		}
	}
	return false
}

func (d *TenantDirectory) Create(ctx context.Context, t *domain.Tenant) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if _, exists := d.s.tenants[t.ID]; exists || d.conflicts(t) {
		return domain.ErrConflict
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	d.s.tenants[t.ID] = *cloneTenant(*t)
	return nil
}

func (d *TenantDirectory) Update(ctx context.Context, t *domain.Tenant) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	current, ok := d.s.tenants[t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if d.conflicts(t) {
		return domain.ErrConflict
	}
	// Status only changes through UpdateStatus.
	t.Status = current.Status
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	d.s.tenants[t.ID] = *cloneTenant(*t)
	return nil
}

func (d *TenantDirectory) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TenantStatus) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	current, ok := d.s.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != from {
		return domain.ErrConflict
	}
	current.Status = to
	current.UpdatedAt = time.Now().UTC()
	d.s.tenants[id] = current
	return nil
}
