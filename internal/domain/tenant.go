package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the lifecycle state of a clinic account.
type TenantStatus string

const (
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusCancelled TenantStatus = "cancelled"
)

// tenantTransitions lists every permitted status change. Cancelled is terminal.
var tenantTransitions = map[TenantStatus][]TenantStatus{
	TenantStatusTrial:     {TenantStatusActive, TenantStatusCancelled},
	TenantStatusActive:    {TenantStatusSuspended, TenantStatusCancelled},
	TenantStatusSuspended: {TenantStatusActive, TenantStatusCancelled},
}

// Valid reports whether s is a known status.
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusTrial, TenantStatusActive, TenantStatusSuspended, TenantStatusCancelled:
		return true
	}
	return false
}

// Servable reports whether requests for a tenant in this status may be served.
func (s TenantStatus) Servable() bool {
	return s == TenantStatusTrial || s == TenantStatusActive
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s TenantStatus) CanTransitionTo(next TenantStatus) bool {
	for _, allowed := range tenantTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Palette holds the clinic's brand colors as CSS color strings.
type Palette struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
	Accent    string `json:"accent,omitempty"`
}

// Theme is the presentation configuration stored with a tenant.
type Theme struct {
	Palette    Palette         `json:"palette"`
	LogoURL    string          `json:"logo_url,omitempty"`
	FaviconURL string          `json:"favicon_url,omitempty"`
	Features   map[string]bool `json:"features,omitempty"`
}

// Limits caps the resources a tenant may use. Zero means unlimited.
type Limits struct {
	MaxStaff       int `json:"max_staff"`
	MaxClients     int `json:"max_clients"`
	StorageQuotaMB int `json:"storage_quota_mb"`
}

// Owner is the clinic owner's contact record.
type Owner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Tenant represents one veterinary clinic and its isolated slice of data.
type Tenant struct {
	ID        uuid.UUID    `json:"id"`
	Subdomain string       `json:"subdomain"`
	Domain    string       `json:"domain,omitempty"` // explicit custom domain, empty when only the subdomain is used
	Name      string       `json:"name"`
	Theme     Theme        `json:"theme"`
	Plan      string       `json:"plan"`
	Status    TenantStatus `json:"status"`
	Limits    Limits       `json:"limits"`
	Owner     Owner        `json:"owner"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TransitionTo moves the tenant to next, enforcing the status state machine.
func (t *Tenant) TransitionTo(next TenantStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// AccessError returns the error a request for this tenant must fail with,
// or nil when the tenant is servable.
func (t *Tenant) AccessError() error {
	switch t.Status {
	case TenantStatusSuspended:
		return ErrTenantSuspended
	case TenantStatusCancelled:
		return ErrTenantCancelled
	}
	return nil
}

// SubdomainCacheKey and DomainCacheKey namespace resolver cache keys so a
// bare host such as "clinica" never collides with the subdomain "clinica".
func SubdomainCacheKey(subdomain string) string { return "sub:" + subdomain }

func DomainCacheKey(host string) string { return "dom:" + host }

// CacheKeys returns the resolver cache keys under which the tenant may be stored.
func (t *Tenant) CacheKeys() []string {
	keys := []string{SubdomainCacheKey(t.Subdomain)}
	if t.Domain != "" {
		keys = append(keys, DomainCacheKey(t.Domain))
	}
	return keys
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

var reservedSubdomains = map[string]struct{}{
	"www":    {},
	"api":    {},
	"admin":  {},
	"app":    {},
	"mail":   {},
	"static": {},
}

// NormalizeSubdomain lower-cases and validates a subdomain label.
func NormalizeSubdomain(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !subdomainPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSubdomain, s)
	}
	if _, reserved := reservedSubdomains[s]; reserved {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidSubdomain, s)
	}
	return s, nil
}

// TenantDirectory is the durable store of tenant records.
// Implementations return ErrNotFound on a miss and wrap transport or driver
// failures with ErrDirectoryUnavailable.
type TenantDirectory interface {
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	List(ctx context.Context, status TenantStatus) ([]Tenant, error)
	Create(ctx context.Context, t *Tenant) error
	Update(ctx context.Context, t *Tenant) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to TenantStatus) error
}
