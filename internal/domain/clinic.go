package domain

import (
	"time"

	"github.com/google/uuid"
)

// Client is a pet owner registered with a clinic.
type Client struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to store a client.
func (c *Client) Validate() error {
	if c.FirstName == "" || c.LastName == "" {
		return validationError("first_name and last_name are required")
	}
	return nil
}

// Pet is an animal owned by a client.
type Pet struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	ClientID  uuid.UUID  `json:"client_id"`
	Name      string     `json:"name"`
	Species   string     `json:"species"`
	Breed     string     `json:"breed,omitempty"`
	Sex       string     `json:"sex,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Microchip string     `json:"microchip,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (p *Pet) Validate() error {
	if p.Name == "" || p.Species == "" {
		return validationError("name and species are required")
	}
	if p.ClientID == uuid.Nil {
		return validationError("client_id is required")
	}
	return nil
}

// AppointmentStatus tracks a visit from booking to completion.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCheckedIn AppointmentStatus = "checked_in"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCheckedIn, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

// Appointment is a booked visit for a pet.
type Appointment struct {
	ID        uuid.UUID         `json:"id"`
	TenantID  uuid.UUID         `json:"tenant_id"`
	PetID     uuid.UUID         `json:"pet_id"`
	StaffID   *uuid.UUID        `json:"staff_id,omitempty"`
	StartsAt  time.Time         `json:"starts_at"`
	EndsAt    time.Time         `json:"ends_at"`
	Reason    string            `json:"reason,omitempty"`
	Status    AppointmentStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (a *Appointment) Validate() error {
	if a.PetID == uuid.Nil {
		return validationError("pet_id is required")
	}
	if a.StartsAt.IsZero() || !a.EndsAt.After(a.StartsAt) {
		return validationError("ends_at must be after starts_at")
	}
	return nil
}

// StaffRole is the permission level of a clinic staff member.
type StaffRole string

const (
	RoleOwner     StaffRole = "owner"
	RoleVet       StaffRole = "vet"
	RoleNurse     StaffRole = "nurse"
	RoleReception StaffRole = "reception"
)

func (r StaffRole) Valid() bool {
	switch r {
	case RoleOwner, RoleVet, RoleNurse, RoleReception:
		return true
	}
	return false
}

// Staff is a clinic employee who can sign in to the clinic's workspace.
type Staff struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         StaffRole `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
