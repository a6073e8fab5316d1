package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/domain"
)

func clientTenant(c domain.Client) uuid.UUID { return c.TenantID }
func petTenant(p domain.Pet) uuid.UUID { return p.TenantID }
func appointmentTenant(a domain.Appointment) uuid.UUID { return a.TenantID }
func staffTenant(s domain.Staff) uuid.UUID { return s.TenantID }

// ClientRepository implements domain.ClientRepository in memory.
type ClientRepository struct {
	s *Store
}

func (r *ClientRepository) Create(ctx context.Context, scope domain.Scope, c *domain.Client) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, exists := r.s.clients[c.ID]; exists {
		return domain.ErrConflict
	}
	now := time.Now().UTC()
	c.TenantID = tenantID
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.clients[c.ID] = *c
	return nil
}

func (r *ClientRepository) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Client, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := lookup(r.s.clients, id, clientTenant, tenantID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *ClientRepository) List(ctx context.Context, scope domain.Scope, limit, offset int) ([]domain.Client, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	var out []domain.Client
	for _, c := range r.s.clients {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, limit, offset), nil
}

func (r *ClientRepository) Update(ctx context.Context, scope domain.Scope, c *domain.Client) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := lookup(r.s.clients, c.ID, clientTenant, tenantID)
	if !ok {
		return domain.ErrNotFound
	}
	c.TenantID = tenantID
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	r.s.clients[c.ID] = *c
	return nil
}

func (r *ClientRepository) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := lookup(r.s.clients, id, clientTenant, tenantID); !ok {
		return domain.ErrNotFound
	}
	delete(r.s.clients, id)
	for petID, p := range r.s.pets {
		if p.TenantID == tenantID && p.ClientID == id {
			r.s.deletePetLocked(tenantID, petID)
		}
	}
	return nil
}

func (r *ClientRepository) Count(ctx context.Context, scope domain.Scope) (int, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, c := range r.s.clients {
		if c.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// PetRepository implements domain.PetRepository in memory.
type PetRepository struct {
	s *Store
}

func (r *PetRepository) Create(ctx context.Context, scope domain.Scope, p *domain.Pet) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := lookup(r.s.clients, p.ClientID, clientTenant, tenantID); !ok {
		return domain.ErrNotFound
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, exists := r.s.pets[p.ID]; exists {
		return domain.ErrConflict
	}
	now := time.Now().UTC()
	p.TenantID = tenantID
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.pets[p.ID] = *p
	return nil
}

func (r *PetRepository) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Pet, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := lookup(r.s.pets, id, petTenant, tenantID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *PetRepository) ListByClient(ctx context.Context, scope domain.Scope, clientID uuid.UUID) ([]domain.Pet, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Pet
	for _, p := range r.s.pets {
		if p.TenantID == tenantID && p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *PetRepository) Update(ctx context.Context, scope domain.Scope, p *domain.Pet) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := lookup(r.s.pets, p.ID, petTenant, tenantID)
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := lookup(r.s.clients, p.ClientID, clientTenant, tenantID); !ok {
		return domain.ErrNotFound
	}
	p.TenantID = tenantID
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	r.s.pets[p.ID] = *p
	return nil
}

func (r *PetRepository) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := lookup(r.s.pets, id, petTenant, tenantID); !ok {
		return domain.ErrNotFound
	}
	r.s.deletePetLocked(tenantID, id)
	return nil
}

// deletePetLocked removes a pet and its appointments, mirroring the ON DELETE
// CASCADE of the SQL schema. The caller holds s.mu.
func (s *Store) deletePetLocked(tenantID, petID uuid.UUID) {
	delete(s.pets, petID)
	for id, a := range s.appointments {
		if a.TenantID == tenantID && a.PetID == petID {
			delete(s.appointments, id)
		}
	}
}

// AppointmentRepository implements domain.AppointmentRepository in memory.
type AppointmentRepository struct {
	s *Store
}

func (r *AppointmentRepository) Create(ctx context.Context, scope domain.Scope, a *domain.Appointment) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := lookup(r.s.pets, a.PetID, petTenant, tenantID); !ok {
		return domain.ErrNotFound
	}
	if a.StaffID != nil {
		if _, ok := lookup(r.s.staff, *a.StaffID, staffTenant, tenantID); !ok {
			return domain.ErrNotFound
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = domain.AppointmentScheduled
	}
	now := time.Now().UTC()
	a.TenantID = tenantID
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.appointments[a.ID] = *a
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Appointment, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := lookup(r.s.appointments, id, appointmentTenant, tenantID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (r *AppointmentRepository) ListBetween(ctx context.Context, scope domain.Scope, from, to time.Time) ([]domain.Appointment, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Appointment
	for _, a := range r.s.appointments {
		if a.TenantID == tenantID && !a.StartsAt.Before(from) && a.StartsAt.Before(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, scope domain.Scope, id uuid.UUID, status domain.AppointmentStatus) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := lookup(r.s.appointments, id, appointmentTenant, tenantID)
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	r.s.appointments[id] = a
	return nil
}

// StaffRepository implements domain.StaffRepository in memory.
type StaffRepository struct {
	s *Store
}

func (r *StaffRepository) Create(ctx context.Context, scope domain.Scope, st *domain.Staff) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.staff {
		if other.TenantID == tenantID && strings.EqualFold(other.Email, st.Email) {
			return domain.ErrConflict
		}
	}
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	now := time.Now().UTC()
	st.TenantID = tenantID
	st.CreatedAt, st.UpdatedAt = now, now
	r.s.staff[st.ID] = *st
	return nil
}

func (r *StaffRepository) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Staff, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := lookup(r.s.staff, id, staffTenant, tenantID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (r *StaffRepository) GetByEmail(ctx context.Context, scope domain.Scope, email string) (*domain.Staff, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, st := range r.s.staff {
		if st.TenantID == tenantID && strings.EqualFold(st.Email, email) {
			return &st, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *StaffRepository) List(ctx context.Context, scope domain.Scope) ([]domain.Staff, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Staff
	for _, st := range r.s.staff {
		if st.TenantID == tenantID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *StaffRepository) Count(ctx context.Context, scope domain.Scope) (int, error) {
	list, err := r.List(ctx, scope)
	return len(list), err
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
