package domain

import (
	"context"

	"github.com/google/uuid"
)

// Scope binds data access to exactly one tenant. Its fields are unexported so
// a Scope can only come from NewScope or ScopeFrom; the zero value is an
// unscoped access attempt and fails closed.
type Scope struct {
	tenantID uuid.UUID
}

// NewScope returns a Scope for t. Tenants that are not servable cannot be scoped.
func NewScope(t *Tenant) (Scope, error) {
	if t == nil || t.ID == uuid.Nil {
		return Scope{}, ErrMissingTenantContext
	}
	if err := t.AccessError(); err != nil {
		return Scope{}, err
	}
	return Scope{tenantID: t.ID}, nil
}

// TenantID returns the scoped tenant id, or ErrMissingTenantContext for the zero Scope.
func (s Scope) TenantID() (uuid.UUID, error) {
	if s.tenantID == uuid.Nil {
		return uuid.Nil, ErrMissingTenantContext
	}
	return s.tenantID, nil
}

// Owns reports whether an entity's tenant id belongs to this scope.
func (s Scope) Owns(tenantID uuid.UUID) bool {
	return s.tenantID != uuid.Nil && s.tenantID == tenantID
}

func (s Scope) String() string {
	if s.tenantID == uuid.Nil {
		return "<unscoped>"
	}
	return s.tenantID.String()
}

type tenantContextKey struct{}

// WithTenant returns a child context carrying the resolved tenant.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// TenantFrom returns the tenant attached to ctx, if any.
func TenantFrom(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(*Tenant)
	return t, ok && t != nil
}

// ScopeFrom builds a Scope from the tenant attached to ctx.
func ScopeFrom(ctx context.Context) (Scope, error) {
	t, ok := TenantFrom(ctx)
	if !ok {
		return Scope{}, ErrMissingTenantContext
	}
	return NewScope(t)
}
