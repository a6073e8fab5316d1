package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// CacheInvalidator evicts a tenant's resolver cache entries.
type CacheInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID, keys ...string) error
}

// Invalidators fans an invalidation out to every member, in order.
type Invalidators []CacheInvalidator

func (inv Invalidators) InvalidateTenant(ctx context.Context, tenantID uuid.UUID, keys ...string) error {
	var errs []error
	for _, i := range inv {
		if err := i.InvalidateTenant(ctx, tenantID, keys...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InvalidateTenant evicts keys from this process's cache.
func (r *TenantResolver) InvalidateTenant(_ context.Context, _ uuid.UUID, keys ...string) error {
	r.Invalidate(keys...)
	return nil
}
