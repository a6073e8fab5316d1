package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/vetclinic/internal/adapter/metrics"
	"github.com/V4T54L/vetclinic/internal/domain"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var tenantRowColumns = []string{
	"id", "subdomain", "domain", "name", "theme", "plan", "status",
	"max_staff", "max_clients", "storage_quota_mb", "owner_name", "owner_email", "owner_phone",
	"created_at", "updated_at",
}

func tenantRow(id uuid.UUID, subdomain string, status domain.TenantStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tenantRowColumns).AddRow(
		id.String(), subdomain, nil, "Clinic "+subdomain,
		[]byte(`{"palette":{"primary":"#0f766e"},"features":{"whatsapp":true}}`),
		"pro", string(status), 5, 100, 1024, "Dr. Vega", "vega@example.com", "", now, now,
	)
}

func scopeFor(t *testing.T, id uuid.UUID) domain.Scope {
	t.Helper()
	scope, err := domain.NewScope(&domain.Tenant{ID: id, Status: domain.TenantStatusActive})
	require.NoError(t, err)
	return scope
}

func TestTenantDirectory_FindBySubdomain(t *testing.T) {
	db, mock := setupMockDB(t)
	dir := NewTenantDirectory(db)
	id := uuid.New()

	mock.ExpectQuery(`FROM tenants WHERE subdomain = \$1`).
		WithArgs("clinic3").
		WillReturnRows(tenantRow(id, "clinic3", domain.TenantStatusActive))

	tenant, err := dir.FindBySubdomain(context.Background(), "clinic3")
	require.NoError(t, err)
	assert.Equal(t, id, tenant.ID)
	assert.Equal(t, domain.TenantStatusActive, tenant.Status)
	assert.Equal(t, "", tenant.Domain)
	assert.Equal(t, "#0f766e", tenant.Theme.Palette.Primary)
	assert.True(t, tenant.Theme.Features["whatsapp"])
	assert.Equal(t, 100, tenant.Limits.MaxClients)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantDirectory_ErrorClassification(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`FROM tenants WHERE lower\(domain\) = \$1`).
			WithArgs("vets.example.org").
			WillReturnError(sql.ErrNoRows)

		_, err := NewTenantDirectory(db).FindByDomain(context.Background(), "VETS.Example.org")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NotErrorIs(t, err, domain.ErrDirectoryUnavailable)
	})

	t.Run("driver failure is retryable", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`FROM tenants WHERE subdomain = \$1`).
			WillReturnError(errors.New("connection refused"))

		_, err := NewTenantDirectory(db).FindBySubdomain(context.Background(), "clinic3")
		assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unique violation", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`INSERT INTO tenants`).
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err := NewTenantDirectory(db).Create(context.Background(), &domain.Tenant{Subdomain: "clinic3", Status: domain.TenantStatusTrial})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestTenantDirectory_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	tenant := &domain.Tenant{Subdomain: "clinic3", Domain: "vets.example.org", Name: "Clinic 3", Plan: "trial", Status: domain.TenantStatusTrial}

	mock.ExpectExec(`INSERT INTO tenants`).
		WithArgs(sqlmock.AnyArg(), "clinic3", "vets.example.org", "Clinic 3", sqlmock.AnyArg(), "trial", "trial",
			0, 0, 0, "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewTenantDirectory(db).Create(context.Background(), tenant))
	assert.NotEqual(t, uuid.Nil, tenant.ID)
	assert.False(t, tenant.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantDirectory_UpdateStatus(t *testing.T) {
	id := uuid.New()

	t.Run("applies transition", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE tenants SET status = \$3`).
			WithArgs(id, "active", "suspended").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewTenantDirectory(db).UpdateStatus(context.Background(), id, domain.TenantStatusActive, domain.TenantStatusSuspended)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale from status", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE tenants SET status = \$3`).
			WithArgs(id, "active", "suspended").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM tenants WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(tenantRow(id, "clinic3", domain.TenantStatusCancelled))

		err := NewTenantDirectory(db).UpdateStatus(context.Background(), id, domain.TenantStatusActive, domain.TenantStatusSuspended)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("missing tenant", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE tenants SET status = \$3`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM tenants WHERE id = \$1`).
			WillReturnError(sql.ErrNoRows)

		err := NewTenantDirectory(db).UpdateStatus(context.Background(), id, domain.TenantStatusActive, domain.TenantStatusSuspended)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestClientRepository_QueriesAreTenantScoped(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewClientRepository(db)
	tenantID, clientID := uuid.New(), uuid.New()
	scope := scopeFor(t, tenantID)

	mock.ExpectQuery(`FROM clients WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs(tenantID, clientID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM clients WHERE tenant_id = \$1`).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(`DELETE FROM clients WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs(tenantID, clientID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Get(context.Background(), scope, clientID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := repo.Count(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	err = repo.Delete(context.Background(), scope, clientID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientRepository_CreateForcesScopeTenant(t *testing.T) {
	db, mock := setupMockDB(t)
	tenantID := uuid.New()
	client := &domain.Client{TenantID: uuid.New(), FirstName: "Ana", LastName: "Ruiz"}

	mock.ExpectExec(`INSERT INTO clients`).
		WithArgs(tenantID, sqlmock.AnyArg(), "Ana", "Ruiz", "", "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewClientRepository(db).Create(context.Background(), scopeFor(t, tenantID), client))
	assert.Equal(t, tenantID, client.TenantID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScopedRepositories_RejectUnscopedAccess(t *testing.T) {
	db, mock := setupMockDB(t)
	var unscoped domain.Scope

	_, err := NewClientRepository(db).List(context.Background(), unscoped, 10, 0)
	assert.ErrorIs(t, err, domain.ErrMissingTenantContext)
	_, err = NewPetRepository(db).Get(context.Background(), unscoped, uuid.New())
	assert.ErrorIs(t, err, domain.ErrMissingTenantContext)
	_, err = NewAppointmentRepository(db).ListBetween(context.Background(), unscoped, time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrMissingTenantContext)
	_, err = NewStaffRepository(db).GetByEmail(context.Background(), unscoped, "vet@example.com")
	assert.ErrorIs(t, err, domain.ErrMissingTenantContext)

	// No statement reached the database.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPetRepository_ForeignClientIsNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	tenantID := uuid.New()

	mock.ExpectExec(`INSERT INTO pets`).
		WillReturnError(&pq.Error{Code: foreignKeyViolation})

	err := NewPetRepository(db).Create(context.Background(), scopeFor(t, tenantID), &domain.Pet{ClientID: uuid.New(), Name: "Toby", Species: "dog"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStaffRepository_GetByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	tenantID, staffID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM staff WHERE tenant_id = \$1 AND lower\(email\) = lower\(\$2\)`).
		WithArgs(tenantID, "vet@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "email", "name", "role", "password_hash", "active", "created_at", "updated_at"}).
			AddRow(staffID.String(), tenantID.String(), "vet@example.com", "Ana", "vet", "hash", true, now, now))

	member, err := NewStaffRepository(db).GetByEmail(context.Background(), scopeFor(t, tenantID), "vet@example.com")
	require.NoError(t, err)
	assert.Equal(t, staffID, member.ID)
	assert.Equal(t, domain.RoleVet, member.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminKeyRepository_IsValidCaches(t *testing.T) {
	db, mock := setupMockDB(t)
	m := metrics.New(prometheus.NewRegistry())
	repo := NewAdminKeyRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, m)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("key-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("bad").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	for i := 0; i < 3; i++ {
		ok, err := repo.IsValid(context.Background(), "key-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.IsValid(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.IsValid(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AdminKeyCacheHits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AdminKeyCacheMiss))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminKeyRepository_DoesNotCacheErrors(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAdminKeyRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, nil)

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("db down"))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.IsValid(context.Background(), "key-1")
	assert.Error(t, err)
	ok, err := repo.IsValid(context.Background(), "key-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdminKeyRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAdminKeyRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, nil)

	mock.ExpectExec(`INSERT INTO admin_keys`).
		WithArgs("key-1", "ops laptop", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO admin_keys`).
		WithArgs("key-1", "", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	require.NoError(t, repo.Create(context.Background(), "key-1", "ops laptop", nil))
	err := repo.Create(context.Background(), "key-1", "", nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_WriteBatch(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAuditRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tenantID := uuid.New()
	events := []domain.AuditEvent{
		{ID: "e1", TenantID: tenantID, Action: domain.AuditTenantCreated, Actor: "ops", OccurredAt: time.Now(), Metadata: []byte(`{"plan":"pro"}`)},
		{ID: "e2", TenantID: tenantID, Action: domain.AuditTenantStatusChanged, Actor: "ops", OccurredAt: time.Now()},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE tenant_audit_events_import`).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(`COPY`)
	prep.ExpectExec().WithArgs("e1", tenantID, domain.AuditTenantCreated, "ops", sqlmock.AnyArg(), `{"plan":"pro"}`, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("e2", tenantID, domain.AuditTenantStatusChanged, "ops", sqlmock.AnyArg(), nil, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO tenant_audit_events .* ON CONFLICT \(event_id\) DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.WriteBatch(context.Background(), events))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_WriteBatchRollsBackOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAuditRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.WriteBatch(context.Background(), []domain.AuditEvent{{ID: "e1", TenantID: uuid.New()}})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
