package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/pkg/auth"
)

// CreateTenantInput is the signup payload for a new clinic.
type CreateTenantInput struct {
	Subdomain string        `json:"subdomain"`
	Domain    string        `json:"domain,omitempty"`
	Name      string        `json:"name"`
	Plan      string        `json:"plan,omitempty"`
	Theme     *domain.Theme `json:"theme,omitempty"`
	Limits    domain.Limits `json:"limits"`
	Owner     domain.Owner  `json:"owner"`
}

// ProfileUpdate changes a tenant's profile. Nil fields are left untouched.
type ProfileUpdate struct {
	Name   *string        `json:"name,omitempty"`
	Domain *string        `json:"domain,omitempty"`
	Plan   *string        `json:"plan,omitempty"`
	Theme  *domain.Theme  `json:"theme,omitempty"`
	Limits *domain.Limits `json:"limits,omitempty"`
	Owner  *domain.Owner  `json:"owner,omitempty"`
}

// NewStaffInput seeds a staff account for a tenant.
type NewStaffInput struct {
	Email    string           `json:"email"`
	Name     string           `json:"name"`
	Role     domain.StaffRole `json:"role"`
	Password string           `json:"password"`
}

const minPasswordLength = 8

// TenantAdmin is the single authoritative path for tenant mutations. Every
// change invalidates resolver caches and is recorded in the audit trail.
type TenantAdmin struct {
	directory   domain.TenantDirectory
	staff       domain.StaffRepository
	invalidator CacheInvalidator
	audit       *AuditRecorder
	logger      *slog.Logger
}

func NewTenantAdmin(directory domain.TenantDirectory, staff domain.StaffRepository, invalidator CacheInvalidator, audit *AuditRecorder, logger *slog.Logger) *TenantAdmin {
	return &TenantAdmin{
		directory:   directory,
		staff:       staff,
		invalidator: invalidator,
		audit:       audit,
		logger:      logger.With("component", "tenant_admin"),
	}
}

// CreateTenant registers a clinic in trial status.
func (uc *TenantAdmin) CreateTenant(ctx context.Context, actor string, in CreateTenantInput) (*domain.Tenant, error) {
	subdomain, err := domain.NormalizeSubdomain(in.Subdomain)
	if err != nil {
		return nil, err
	}
	customDomain, err := normalizeDomain(in.Domain)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if err := validateLimits(in.Limits); err != nil {
		return nil, err
	}

	theme := BaselineTheme()
	if in.Theme != nil {
		theme = *in.Theme
	}
	plan := in.Plan
	if plan == "" {
		plan = "trial"
	}

	tenant := &domain.Tenant{
		Subdomain: subdomain,
		Domain:    customDomain,
		Name:      name,
		Theme:     theme,
		Plan:      plan,
		Status:    domain.TenantStatusTrial,
		Limits:    in.Limits,
		Owner:     in.Owner,
	}
	if err := uc.directory.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("create tenant %q: %w", subdomain, err)
	}

	// A negative lookup for this host may still be cached elsewhere.
	uc.invalidate(ctx, tenant)
	uc.record(ctx, tenant, domain.AuditTenantCreated, actor, map[string]any{
		"subdomain":   tenant.Subdomain,
		"domain":      tenant.Domain,
		"name":        tenant.Name,
		"plan":        tenant.Plan,
		"owner_email": tenant.Owner.Email,
		"owner_phone": tenant.Owner.Phone,
	})

	uc.logger.Info("tenant created", "tenant_id", tenant.ID, "subdomain", tenant.Subdomain)
	return tenant, nil
}

// GetTenant returns the tenant registered under subdomain regardless of status.
func (uc *TenantAdmin) GetTenant(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	return uc.directory.FindBySubdomain(ctx, strings.ToLower(strings.TrimSpace(subdomain)))
}

// ListTenants returns tenants, optionally filtered by status.
func (uc *TenantAdmin) ListTenants(ctx context.Context, status domain.TenantStatus) ([]domain.Tenant, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return uc.directory.List(ctx, status)
}

// UpdateProfile applies upd to the tenant and invalidates its cache entries,
// including the previous custom domain when it changes.
func (uc *TenantAdmin) UpdateProfile(ctx context.Context, actor, subdomain string, upd ProfileUpdate) (*domain.Tenant, error) {
	tenant, err := uc.GetTenant(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if tenant.Status == domain.TenantStatusCancelled {
		return nil, domain.ErrTenantCancelled
	}
	staleKeys := tenant.CacheKeys()

	var changed []string
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrValidation)
		}
		tenant.Name = name
		changed = append(changed, "name")
	}
	if upd.Domain != nil {
		d, err := normalizeDomain(*upd.Domain)
		if err != nil {
			return nil, err
		}
		tenant.Domain = d
		changed = append(changed, "domain")
	}
	if upd.Plan != nil {
		tenant.Plan = *upd.Plan
		changed = append(changed, "plan")
	}
	if upd.Theme != nil {
		tenant.Theme = *upd.Theme
		changed = append(changed, "theme")
	}
	if upd.Limits != nil {
		if err := validateLimits(*upd.Limits); err != nil {
			return nil, err
		}
		tenant.Limits = *upd.Limits
		changed = append(changed, "limits")
	}
	if upd.Owner != nil {
		tenant.Owner = *upd.Owner
		changed = append(changed, "owner")
	}
	if len(changed) == 0 {
		return tenant, nil
	}

	if err := uc.directory.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("update tenant %q: %w", tenant.Subdomain, err)
	}

	uc.invalidate(ctx, tenant, staleKeys...)
	metadata := map[string]any{"changed": changed}
	if upd.Owner != nil {
		metadata["owner_email"] = tenant.Owner.Email
		metadata["owner_phone"] = tenant.Owner.Phone
	}
	uc.record(ctx, tenant, domain.AuditTenantUpdated, actor, metadata)
	return tenant, nil
}

// ChangeStatus moves the tenant through the status state machine. The
// directory write is conditional on the current status so concurrent
// changes cannot skip a state.
func (uc *TenantAdmin) ChangeStatus(ctx context.Context, actor, subdomain string, next domain.TenantStatus) (*domain.Tenant, error) {
	tenant, err := uc.GetTenant(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	from := tenant.Status
	if err := tenant.TransitionTo(next); err != nil {
		return nil, err
	}

	if err := uc.directory.UpdateStatus(ctx, tenant.ID, from, next); err != nil {
		return nil, fmt.Errorf("change status of %q: %w", tenant.Subdomain, err)
	}

	uc.invalidate(ctx, tenant)
	uc.record(ctx, tenant, domain.AuditTenantStatusChanged, actor, map[string]any{
		"from": string(from),
		"to":   string(next),
	})

	uc.logger.Info("tenant status changed", "tenant_id", tenant.ID, "subdomain", tenant.Subdomain, "from", from, "to", next)
	return tenant, nil
}

// AddStaff creates a staff account under the tenant, honouring Limits.MaxStaff.
// Suspended and cancelled tenants cannot be scoped, so they reject this write.
func (uc *TenantAdmin) AddStaff(ctx context.Context, actor, subdomain string, in NewStaffInput) (*domain.Staff, error) {
	tenant, err := uc.GetTenant(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	scope, err := domain.NewScope(tenant)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrValidation)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, in.Role)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	if tenant.Limits.MaxStaff > 0 {
		n, err := uc.staff.Count(ctx, scope)
		if err != nil {
			return nil, err
		}
		if n >= tenant.Limits.MaxStaff {
			return nil, fmt.Errorf("%w: max_staff is %d", domain.ErrLimitExceeded, tenant.Limits.MaxStaff)
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	member := &domain.Staff{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		PasswordHash: hash,
		Active:       true,
	}
	if err := uc.staff.Create(ctx, scope, member); err != nil {
		return nil, err
	}

	uc.record(ctx, tenant, domain.AuditStaffAdded, actor, map[string]any{
		"staff_id": member.ID.String(),
		"role":     string(member.Role),
		"email":    member.Email,
	})
	return member, nil
}

func (uc *TenantAdmin) invalidate(ctx context.Context, t *domain.Tenant, extra ...string) {
	keys := append(t.CacheKeys(), extra...)
	if err := uc.invalidator.InvalidateTenant(ctx, t.ID, keys...); err != nil {
		// Local eviction already happened; peers fall back to the cache TTL.
		uc.logger.Warn("tenant cache invalidation incomplete", "tenant_id", t.ID, "keys", keys, "error", err)
	}
}

func (uc *TenantAdmin) record(ctx context.Context, t *domain.Tenant, action, actor string, metadata map[string]any) {
	if err := uc.audit.Record(ctx, t.ID, action, actor, metadata); err != nil {
		uc.logger.Error("audit event lost", "tenant_id", t.ID, "action", action, "error", err)
	}
}

func normalizeDomain(d string) (string, error) {
	d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
	if d == "" {
		return "", nil
	}
	if !strings.Contains(d, ".") || strings.ContainsAny(d, ":/ @") {
		return "", fmt.Errorf("%w: invalid domain %q", domain.ErrValidation, d)
	}
	return d, nil
}

func validateLimits(l domain.Limits) error {
	if l.MaxStaff < 0 || l.MaxClients < 0 || l.StorageQuotaMB < 0 {
		return fmt.Errorf("%w: limits cannot be negative", domain.ErrValidation)
	}
	return nil
}

// IsClientError reports whether err is caused by the request rather than the service.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrInvalidSubdomain) ||
		errors.Is(err, domain.ErrInvalidTransition)
}
