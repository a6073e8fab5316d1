// Package memory holds in-process implementations of the tenant directory and
// the scoped clinic repositories. It backs STORAGE_DRIVER=memory in
// development and the isolation tests.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/domain"
)

// Store is the shared state behind every repository in this package.
type Store struct {
	mu           sync.RWMutex
	tenants      map[uuid.UUID]domain.Tenant
	clients      map[uuid.UUID]domain.Client
	pets         map[uuid.UUID]domain.Pet
	appointments map[uuid.UUID]domain.Appointment
	staff        map[uuid.UUID]domain.Staff
}

func NewStore() *Store {
	return &Store{
		tenants:      make(map[uuid.UUID]domain.Tenant),
		clients:      make(map[uuid.UUID]domain.Client),
		pets:         make(map[uuid.UUID]domain.Pet),
		appointments: make(map[uuid.UUID]domain.Appointment),
		staff:        make(map[uuid.UUID]domain.Staff),
	}
}

func (s *Store) Tenants() *TenantDirectory { return &TenantDirectory{s: s} }
func (s *Store) Clients() *ClientRepository { return &ClientRepository{s: s} }
func (s *Store) Pets() *PetRepository { return &PetRepository{s: s} }
func (s *Store) Appointments() *AppointmentRepository { return &AppointmentRepository{s: s} }
func (s *Store) Staff() *StaffRepository { return &StaffRepository{s: s} }

// lookup returns the entity with id from m only if it belongs to the scope.
func lookup[T any](m map[uuid.UUID]T, id uuid.UUID, tenantOf func(T) uuid.UUID, tenantID uuid.UUID) (T, bool) {
	v, ok := m[id]
	if !ok || tenantOf(v) != tenantID {
		var zero T
		return zero, false
	}
	return v, true
}
