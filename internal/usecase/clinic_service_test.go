package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/vetclinic/internal/adapter/repository/memory"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/pkg/auth"
)

type clinicFixture struct {
	store   *memory.Store
	issuer  *auth.Issuer
	service *ClinicService
}

func newClinicFixture() *clinicFixture {
	store := memory.NewStore()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	repos := ClinicRepositories{
		Clients:      store.Clients(),
		Pets:         store.Pets(),
		Appointments: store.Appointments(),
		Staff:        store.Staff(),
	}
	return &clinicFixture{store: store, issuer: issuer, service: NewClinicService(repos, issuer, discardLogger())}
}

func (f *clinicFixture) tenantCtx(t *testing.T, subdomain string, limits domain.Limits) (context.Context, *domain.Tenant) {
	t.Helper()
	tenant := &domain.Tenant{Subdomain: subdomain, Name: subdomain, Status: domain.TenantStatusActive, Limits: limits}
	require.NoError(t, f.store.Tenants().Create(context.Background(), tenant))
	return domain.WithTenant(context.Background(), tenant), tenant
}

func TestClinicService_RequiresTenant(t *testing.T) {
	f := newClinicFixture()

	_, err := f.service.ListClients(context.Background(), 10, 0)
	assert.ErrorIs(t, err, domain.ErrMissingTenantContext)

	err = f.service.CreateClient(context.Background(), &domain.Client{FirstName: "a", LastName: "b"})
	assert.ErrorIs(t, err, domain.ErrMissingTenantContext)
}

func TestClinicService_ClientLimit(t *testing.T) {
	f := newClinicFixture()
	ctx, _ := f.tenantCtx(t, "clinic3", domain.Limits{MaxClients: 1})

	require.NoError(t, f.service.CreateClient(ctx, &domain.Client{FirstName: "Ana", LastName: "Ruiz"}))
	err := f.service.CreateClient(ctx, &domain.Client{FirstName: "Luis", LastName: "Mora"})
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)
}

func TestClinicService_CrossTenantReferences(t *testing.T) {
	f := newClinicFixture()
	ctxA, _ := f.tenantCtx(t, "clinica", domain.Limits{})
	ctxB, _ := f.tenantCtx(t, "clinicb", domain.Limits{})

	client := &domain.Client{FirstName: "Ana", LastName: "Ruiz"}
	require.NoError(t, f.service.CreateClient(ctxA, client))
	pet := &domain.Pet{Name: "Toby", Species: "dog"}
	require.NoError(t, f.service.CreatePet(ctxA, client.ID, pet))

	_, err := f.service.GetClient(ctxB, client.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.service.ListPets(ctxB, client.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = f.service.CreatePet(ctxB, client.ID, &domain.Pet{Name: "Rex", Species: "dog"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	start := time.Now().Add(time.Hour)
	err = f.service.CreateAppointment(ctxB, &domain.Appointment{PetID: pet.ID, StartsAt: start, EndsAt: start.Add(30 * time.Minute)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pets, err := f.service.ListPets(ctxA, client.ID)
	require.NoError(t, err)
	assert.Len(t, pets, 1)
}

func TestClinicService_Appointments(t *testing.T) {
	f := newClinicFixture()
	ctx, _ := f.tenantCtx(t, "clinic3", domain.Limits{})

	client := &domain.Client{FirstName: "Ana", LastName: "Ruiz"}
	require.NoError(t, f.service.CreateClient(ctx, client))
	pet := &domain.Pet{Name: "Toby", Species: "dog"}
	require.NoError(t, f.service.CreatePet(ctx, client.ID, pet))

	start := time.Now().UTC().Add(2 * time.Hour)
	appt := &domain.Appointment{PetID: pet.ID, StartsAt: start, EndsAt: start.Add(30 * time.Minute), Status: domain.AppointmentCompleted}
	require.NoError(t, f.service.CreateAppointment(ctx, appt))
	assert.Equal(t, domain.AppointmentScheduled, appt.Status)

	list, err := f.service.ListAppointments(ctx, start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)

	updated, err := f.service.UpdateAppointmentStatus(ctx, appt.ID, domain.AppointmentCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentCheckedIn, updated.Status)

	_, err = f.service.UpdateAppointmentStatus(ctx, appt.ID, "teleported")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.service.ListAppointments(ctx, start, start.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestClinicService_Login(t *testing.T) {
	f := newClinicFixture()
	ctxA, tenantA := f.tenantCtx(t, "clinica", domain.Limits{})
	ctxB, _ := f.tenantCtx(t, "clinicb", domain.Limits{})

	hash, err := auth.HashPassword("s3cretpass")
	require.NoError(t, err)
	scope, err := domain.NewScope(tenantA)
	require.NoError(t, err)
	member := &domain.Staff{Email: "vet@example.com", Role: domain.RoleVet, PasswordHash: hash, Active: true}
	require.NoError(t, f.store.Staff().Create(context.Background(), scope, member))

	res, err := f.service.Login(ctxA, "VET@example.com", "s3cretpass")
	require.NoError(t, err)
	claims, err := f.issuer.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, tenantA.ID, claims.TenantID)
	assert.Equal(t, member.ID, claims.StaffID)
	assert.Equal(t, "vet", claims.Role)

	_, err = f.service.Login(ctxA, "vet@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Same email at another clinic does not authenticate.
	_, err = f.service.Login(ctxB, "vet@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.service.GetClient(ctxA, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
