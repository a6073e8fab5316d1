package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/pkg/auth"
)

// ErrInvalidCredentials is returned for any failed staff login.
var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ClinicRepositories groups the scoped repositories behind the clinic API.
type ClinicRepositories struct {
	Clients      domain.ClientRepository
	Pets         domain.PetRepository
	Appointments domain.AppointmentRepository
	Staff        domain.StaffRepository
}

// ClinicService serves one request's clinic. Every method reads the tenant
// from ctx, so a request without a resolved tenant cannot touch data.
type ClinicService struct {
	repos  ClinicRepositories
	issuer *auth.Issuer
	logger *slog.Logger
}

func NewClinicService(repos ClinicRepositories, issuer *auth.Issuer, logger *slog.Logger) *ClinicService {
	return &ClinicService{repos: repos, issuer: issuer, logger: logger.With("component", "clinic_service")}
}

func scopeFor(ctx context.Context) (*domain.Tenant, domain.Scope, error) {
	tenant, ok := domain.TenantFrom(ctx)
	if !ok {
		return nil, domain.Scope{}, domain.ErrMissingTenantContext
	}
	scope, err := domain.NewScope(tenant)
	if err != nil {
		return nil, domain.Scope{}, err
	}
	return tenant, scope, nil
}

// LoginResult is returned by a successful staff login.
type LoginResult struct {
	Token string        `json:"token"`
	Staff *domain.Staff `json:"staff"`
}

// Login authenticates a staff member of the request's clinic. The same email
// registered at another clinic does not match.
func (s *ClinicService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	tenant, scope, err := scopeFor(ctx)
	if err != nil {
		return nil, err
	}
	member, err := s.repos.Staff.GetByEmail(ctx, scope, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !member.Active || !auth.CheckPasswordHash(password, member.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issuer.Generate(member.ID, tenant.ID, string(member.Role))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	s.logger.Info("staff logged in", "tenant_id", tenant.ID, "staff_id", member.ID)
	return &LoginResult{Token: token, Staff: member}, nil
}

func (s *ClinicService) ListClients(ctx context.Context, limit, offset int) ([]domain.Client, error) {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Clients.List(ctx, scope, limit, offset)
}

// CreateClient stores c under the request's clinic, honouring Limits.MaxClients.
func (s *ClinicService) CreateClient(ctx context.Context, c *domain.Client) error {
	tenant, scope, err := scopeFor(ctx)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if tenant.Limits.MaxClients > 0 {
		n, err := s.repos.Clients.Count(ctx, scope)
		if err != nil {
			return err
		}
		if n >= tenant.Limits.MaxClients {
			return fmt.Errorf("%w: max_clients is %d", domain.ErrLimitExceeded, tenant.Limits.MaxClients)
		}
	}
	c.ID = uuid.Nil
	return s.repos.Clients.Create(ctx, scope, c)
}

func (s *ClinicService) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repos.Clients.Get(ctx, scope, id)
}

func (s *ClinicService) UpdateClient(ctx context.Context, id uuid.UUID, c *domain.Client) error {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.ID = id
	return s.repos.Clients.Update(ctx, scope, c)
}

func (s *ClinicService) DeleteClient(ctx context.Context, id uuid.UUID) error {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return err
	}
	return s.repos.Clients.Delete(ctx, scope, id)
}

func (s *ClinicService) ListPets(ctx context.Context, clientID uuid.UUID) ([]domain.Pet, error) {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return nil, err
	}
	// A foreign client id reads as missing rather than as an empty list.
	if _, err := s.repos.Clients.Get(ctx, scope, clientID); err != nil {
		return nil, err
	}
	return s.repos.Pets.ListByClient(ctx, scope, clientID)
}

func (s *ClinicService) CreatePet(ctx context.Context, clientID uuid.UUID, p *domain.Pet) error {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return err
	}
	p.ID = uuid.Nil
	p.ClientID = clientID
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repos.Pets.Create(ctx, scope, p)
}

func (s *ClinicService) GetPet(ctx context.Context, id uuid.UUID) (*domain.Pet, error) {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repos.Pets.Get(ctx, scope, id)
}

func (s *ClinicService) UpdatePet(ctx context.Context, id uuid.UUID, p *domain.Pet) error {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return err
	}
	current, err := s.repos.Pets.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	p.ID = id
	p.ClientID = current.ClientID
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repos.Pets.Update(ctx, scope, p)
}

func (s *ClinicService) DeletePet(ctx context.Context, id uuid.UUID) error {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return err
	}
	return s.repos.Pets.Delete(ctx, scope, id)
}

// ListAppointments returns appointments starting in [from, to). A zero range
// defaults to the next seven days.
func (s *ClinicService) ListAppointments(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if to.IsZero() {
		to = from.Add(7 * 24 * time.Hour)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: to must be after from", domain.ErrValidation)
	}
	return s.repos.Appointments.ListBetween(ctx, scope, from, to)
}

func (s *ClinicService) CreateAppointment(ctx context.Context, a *domain.Appointment) error {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return err
	}
	a.ID = uuid.Nil
	a.Status = domain.AppointmentScheduled
	return s.repos.Appointments.Create(ctx, scope, a)
}

func (s *ClinicService) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (*domain.Appointment, error) {
	_, scope, err := scopeFor(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown appointment status %q", domain.ErrValidation, status)
	}
	if err := s.repos.Appointments.UpdateStatus(ctx, scope, id, status); err != nil {
		return nil, err
	}
	return s.repos.Appointments.Get(ctx, scope, id)
}
