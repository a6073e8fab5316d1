package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/domain"
)

// Every statement in this file binds the scope's tenant id as $1.

const clientColumns = `id, tenant_id, first_name, last_name, email, phone, address, notes, created_at, updated_at`

// ClientRepository implements domain.ClientRepository.
type ClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func scanClient(row rowScanner) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientRepository) Create(ctx context.Context, scope domain.Scope, c *domain.Client) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.TenantID = tenantID
	c.CreatedAt, c.UpdatedAt = now, now

	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES ($2, $1, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query, tenantID, c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.Notes, c.CreatedAt, c.UpdatedAt)
	return classify("create client", err)
}

func (r *ClientRepository) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Client, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + clientColumns + ` FROM clients WHERE tenant_id = $1 AND id = $2`
	c, err := scanClient(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, classify("get client", err)
	}
	return c, nil
}

func (r *ClientRepository) List(ctx context.Context, scope domain.Scope, limit, offset int) ([]domain.Client, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + clientColumns + ` FROM clients
		WHERE tenant_id = $1
		ORDER BY last_name, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, classify("list clients", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, classify("list clients", err)
		}
		out = append(out, *c)
	}
	return out, classify("list clients", rows.Err())
}

func (r *ClientRepository) Update(ctx context.Context, scope domain.Scope, c *domain.Client) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	c.TenantID = tenantID
	c.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE clients SET
			first_name = $3, last_name = $4, email = $5, phone = $6,
			address = $7, notes = $8, updated_at = $9
		WHERE tenant_id = $1 AND id = $2
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query, tenantID, c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.Notes, c.UpdatedAt).Scan(&c.CreatedAt)
	return classify("update client", err)
}

func (r *ClientRepository) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return classify("delete client", err)
	}
	return requireRow(res)
}

func (r *ClientRepository) Count(ctx context.Context, scope domain.Scope) (int, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE tenant_id = $1`, tenantID).Scan(&n)
	return n, classify("count clients", err)
}

const petColumns = `id, tenant_id, client_id, name, species, breed, sex, birth_date, microchip, notes, created_at, updated_at`

// PetRepository implements domain.PetRepository. The composite foreign key
// on (tenant_id, client_id) rejects references to another tenant's client.
type PetRepository struct {
	db *sql.DB
}

func NewPetRepository(db *sql.DB) *PetRepository {
	return &PetRepository{db: db}
}

func scanPet(row rowScanner) (*domain.Pet, error) {
	var (
		p     domain.Pet
		birth sql.NullTime
	)
	err := row.Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Name, &p.Species, &p.Breed, &p.Sex, &birth, &p.Microchip, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if birth.Valid {
		p.BirthDate = &birth.Time
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PetRepository) Create(ctx context.Context, scope domain.Scope, p *domain.Pet) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.TenantID = tenantID
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO pets (` + petColumns + `)
		VALUES ($2, $1, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query, tenantID, p.ID, p.ClientID, p.Name, p.Species, p.Breed, p.Sex, nullTime(p.BirthDate), p.Microchip, p.Notes, p.CreatedAt, p.UpdatedAt)
	return classify("create pet", err)
}

func (r *PetRepository) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Pet, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + petColumns + ` FROM pets WHERE tenant_id = $1 AND id = $2`
	p, err := scanPet(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, classify("get pet", err)
	}
	return p, nil
}

func (r *PetRepository) ListByClient(ctx context.Context, scope domain.Scope, clientID uuid.UUID) ([]domain.Pet, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + petColumns + ` FROM pets WHERE tenant_id = $1 AND client_id = $2 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, tenantID, clientID)
	if err != nil {
		return nil, classify("list pets", err)
	}
	defer rows.Close()

	var out []domain.Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, classify("list pets", err)
		}
		out = append(out, *p)
	}
	return out, classify("list pets", rows.Err())
}

func (r *PetRepository) Update(ctx context.Context, scope domain.Scope, p *domain.Pet) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	p.TenantID = tenantID
	p.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE pets SET
			client_id = $3, name = $4, species = $5, breed = $6, sex = $7,
			birth_date = $8, microchip = $9, notes = $10, updated_at = $11
		WHERE tenant_id = $1 AND id = $2
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query, tenantID, p.ID, p.ClientID, p.Name, p.Species, p.Breed, p.Sex, nullTime(p.BirthDate), p.Microchip, p.Notes, p.UpdatedAt).Scan(&p.CreatedAt)
	return classify("update pet", err)
}

func (r *PetRepository) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM pets WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return classify("delete pet", err)
	}
	return requireRow(res)
}

const appointmentColumns = `id, tenant_id, pet_id, staff_id, starts_at, ends_at, reason, status, created_at, updated_at`

// AppointmentRepository implements domain.AppointmentRepository.
type AppointmentRepository struct {
	db *sql.DB
}

func NewAppointmentRepository(db *sql.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func scanAppointment(row rowScanner) (*domain.Appointment, error) {
	var (
		a       domain.Appointment
		staffID uuid.NullUUID
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.PetID, &staffID, &a.StartsAt, &a.EndsAt, &a.Reason, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if staffID.Valid {
		a.StaffID = &staffID.UUID
	}
	return &a, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (r *AppointmentRepository) Create(ctx context.Context, scope domain.Scope, a *domain.Appointment) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
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

	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($2, $1, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query, tenantID, a.ID, a.PetID, nullUUID(a.StaffID), a.StartsAt, a.EndsAt, a.Reason, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return classify("create appointment", err)
}

func (r *AppointmentRepository) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Appointment, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = $1 AND id = $2`
	a, err := scanAppointment(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, classify("get appointment", err)
	}
	return a, nil
}

func (r *AppointmentRepository) ListBetween(ctx context.Context, scope domain.Scope, from, to time.Time) ([]domain.Appointment, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + appointmentColumns + ` FROM appointments
		WHERE tenant_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, classify("list appointments", err)
	}
	defer rows.Close()

	var out []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, classify("list appointments", err)
		}
		out = append(out, *a)
	}
	return out, classify("list appointments", rows.Err())
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, scope domain.Scope, id uuid.UUID, status domain.AppointmentStatus) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET status = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, string(status),
	)
	if err != nil {
		return classify("update appointment status", err)
	}
	return requireRow(res)
}

const staffColumns = `id, tenant_id, email, name, role, password_hash, active, created_at, updated_at`

// StaffRepository implements domain.StaffRepository. Emails are unique per
// tenant, case-insensitively.
type StaffRepository struct {
	db *sql.DB
}

func NewStaffRepository(db *sql.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func scanStaff(row rowScanner) (*domain.Staff, error) {
	var s domain.Staff
	err := row.Scan(&s.ID, &s.TenantID, &s.Email, &s.Name, &s.Role, &s.PasswordHash, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StaffRepository) Create(ctx context.Context, scope domain.Scope, s *domain.Staff) error {
	tenantID, err := scope.TenantID()
	if err != nil {
		return err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.TenantID = tenantID
	s.CreatedAt, s.UpdatedAt = now, now

	query := `
		INSERT INTO staff (` + staffColumns + `)
		VALUES ($2, $1, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query, tenantID, s.ID, s.Email, s.Name, string(s.Role), s.PasswordHash, s.Active, s.CreatedAt, s.UpdatedAt)
	return classify("create staff", err)
}

func (r *StaffRepository) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Staff, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + staffColumns + ` FROM staff WHERE tenant_id = $1 AND id = $2`
	s, err := scanStaff(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, classify("get staff", err)
	}
	return s, nil
}

func (r *StaffRepository) GetByEmail(ctx context.Context, scope domain.Scope, email string) (*domain.Staff, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + staffColumns + ` FROM staff WHERE tenant_id = $1 AND lower(email) = lower($2)`
	s, err := scanStaff(r.db.QueryRowContext(ctx, query, tenantID, email))
	if err != nil {
		return nil, classify("get staff by email", err)
	}
	return s, nil
}

func (r *StaffRepository) List(ctx context.Context, scope domain.Scope) ([]domain.Staff, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE tenant_id = $1 ORDER BY email`, tenantID)
	if err != nil {
		return nil, classify("list staff", err)
	}
	defer rows.Close()

	var out []domain.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, classify("list staff", err)
		}
		out = append(out, *s)
	}
	return out, classify("list staff", rows.Err())
}

func (r *StaffRepository) Count(ctx context.Context, scope domain.Scope) (int, error) {
	tenantID, err := scope.TenantID()
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staff WHERE tenant_id = $1`, tenantID).Scan(&n)
	return n, classify("count staff", err)
}
