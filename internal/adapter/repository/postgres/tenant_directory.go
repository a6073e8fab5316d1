package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/domain"
)

const tenantColumns = `id, subdomain, domain, name, theme, plan, status,
	max_staff, max_clients, storage_quota_mb, owner_name, owner_email, owner_phone,
	created_at, updated_at`

// TenantDirectory implements domain.TenantDirectory on the tenants table.
type TenantDirectory struct {
	db *sql.DB
}

func NewTenantDirectory(db *sql.DB) *TenantDirectory {
	return &TenantDirectory{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var (
		t            domain.Tenant
		customDomain sql.NullString
		theme        []byte
	)
	err := row.Scan(
		&t.ID,
		&t.Subdomain,
		&customDomain,
		&t.Name,
		&theme,
		&t.Plan,
		&t.Status,
		&t.Limits.MaxStaff,
		&t.Limits.MaxClients,
		&t.Limits.StorageQuotaMB,
		&t.Owner.Name,
		&t.Owner.Email,
		&t.Owner.Phone,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Domain = customDomain.String
	if len(theme) > 0 {
		if err := json.Unmarshal(theme, &t.Theme); err != nil {
			return nil, fmt.Errorf("decode theme of tenant %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

// directoryError wraps failures other than not-found and conflict as
// ErrDirectoryUnavailable so the resolver can retry them.
func directoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	classified := classify(op, err)
	if errors.Is(classified, domain.ErrNotFound) || errors.Is(classified, domain.ErrConflict) {
		return classified
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrDirectoryUnavailable, err)
}

func (d *TenantDirectory) findOne(ctx context.Context, op, where string, arg any) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE ` + where
	t, err := scanTenant(d.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, directoryError(op, err)
	}
	return t, nil
}

func (d *TenantDirectory) FindBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	return d.findOne(ctx, "find tenant by subdomain", `subdomain = $1`, subdomain)
}

// FindByDomain matches case-insensitively through tenants_domain_lower_key.
func (d *TenantDirectory) FindByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	return d.findOne(ctx, "find tenant by domain", `lower(domain) = $1`, strings.ToLower(host))
}

func (d *TenantDirectory) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return d.findOne(ctx, "find tenant by id", `id = $1`, id)
}

func (d *TenantDirectory) List(ctx context.Context, status domain.TenantStatus) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE ($1 = '' OR status = $1) ORDER BY subdomain`
	rows, err := d.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, directoryError("list tenants", err)
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, directoryError("list tenants", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, directoryError("list tenants", err)
	}
	return out, nil
}

func (d *TenantDirectory) Create(ctx context.Context, t *domain.Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	theme, err := json.Marshal(t.Theme)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = d.db.ExecContext(ctx, query,
		t.ID,
		t.Subdomain,
		nullString(t.Domain),
		t.Name,
		theme,
		t.Plan,
		string(t.Status),
		t.Limits.MaxStaff,
		t.Limits.MaxClients,
		t.Limits.StorageQuotaMB,
		t.Owner.Name,
		t.Owner.Email,
		t.Owner.Phone,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return directoryError("create tenant", err)
}

// Update writes the profile fields. Status only changes through UpdateStatus.
func (d *TenantDirectory) Update(ctx context.Context, t *domain.Tenant) error {
	theme, err := json.Marshal(t.Theme)
	if err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tenants SET
			domain = $2, name = $3, theme = $4, plan = $5,
			max_staff = $6, max_clients = $7, storage_quota_mb = $8,
			owner_name = $9, owner_email = $10, owner_phone = $11,
			updated_at = $12
		WHERE id = $1
	`
	res, err := d.db.ExecContext(ctx, query,
		t.ID,
		nullString(t.Domain),
		t.Name,
		theme,
		t.Plan,
		t.Limits.MaxStaff,
		t.Limits.MaxClients,
		t.Limits.StorageQuotaMB,
		t.Owner.Name,
		t.Owner.Email,
		t.Owner.Phone,
		t.UpdatedAt,
	)
	if err != nil {
		return directoryError("update tenant", err)
	}
	return requireRow(res)
}

// UpdateStatus moves the tenant from one status to another. A tenant whose
// current status is not from yields ErrConflict.
func (d *TenantDirectory) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TenantStatus) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE tenants SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return directoryError("update tenant status", err)
	}
	if err := requireRow(res); err != nil {
		if _, findErr := d.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return fmt.Errorf("tenant status changed concurrently: %w", domain.ErrConflict)
	}
	return nil
}
