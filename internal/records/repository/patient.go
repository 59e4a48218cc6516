package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
)

// Patient represents a patient record
type Patient struct {
	ID               string     `db:"id" json:"id"`
	FullName         string     `db:"full_name" json:"full_name"`
	NationalID       *string    `db:"national_id" json:"national_id,omitempty"`
	BirthDate        *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex              *string    `db:"sex" json:"sex,omitempty"`
	Phone            *string    `db:"phone" json:"phone,omitempty"`
	Email            *string    `db:"email" json:"email,omitempty"`
	Address          *string    `db:"address" json:"address,omitempty"`
	City             *string    `db:"city" json:"city,omitempty"`
	State            *string    `db:"state" json:"state,omitempty"`
	PostalCode       *string    `db:"postal_code" json:"postal_code,omitempty"`
	InsurancePlan    *string    `db:"insurance_plan" json:"insurance_plan,omitempty"`
	InsuranceNumber  *string    `db:"insurance_number" json:"insurance_number,omitempty"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	CreatedBy        *string    `db:"created_by" json:"created_by,omitempty"`
}

// PatientRepository handles patient data access
type PatientRepository struct {
	db *database.DB
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *database.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// Create inserts a new patient
func (r *PatientRepository) Create(ctx context.Context, patient *Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.New().String()
	}

	query := `
		INSERT INTO patients (
			id, full_name, national_id, birth_date, sex, phone, email, address,
			city, state, postal_code, insurance_plan, insurance_number,
			emergency_contact, notes, is_active, created_by
		) VALUES (
			:id, :full_name, :national_id, :birth_date, :sex, :phone, :email, :address,
			:city, :state, :postal_code, :insurance_plan, :insurance_number,
			:emergency_contact, :notes, :is_active, :created_by
		)
		RETURNING created_at`

	rows, err := r.db.NamedQueryContext(ctx, query, patient)
	if err != nil {
		return database.MapPQError(err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&patient.CreatedAt); err != nil {
			return errors.Internal("failed to scan created patient")
		}
	}

	return nil
}

// GetByID gets a patient by ID
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	var patient Patient
	query := `SELECT * FROM patients WHERE id = $1 AND is_active = true`

	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("patient")
		}
		return nil, database.MapPQError(err)
	}

	return &patient, nil
}

// List lists active patients with search and pagination. Search matches
// name, national ID and phone.
func (r *PatientRepository) List(ctx context.Context, search string, page, perPage int) ([]*Patient, int64, error) {
	where := ` WHERE is_active = true`
	args := []interface{}{}

	if search != "" {
		args = append(args, "%"+search+"%")
		where += ` AND (full_name ILIKE $1 OR national_id ILIKE $1 OR phone ILIKE $1)`
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM patients`+where, args...); err != nil {
		return nil, 0, database.MapPQError(err)
	}

	args = append(args, perPage)
	limitPos := len(args)
	args = append(args, (page-1)*perPage)
	offsetPos := len(args)

	query := fmt.Sprintf(
		`SELECT * FROM patients%s ORDER BY full_name LIMIT $%d OFFSET $%d`,
		where, limitPos, offsetPos,
	)

	var patients []*Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, database.MapPQError(err)
	}

	return patients, total, nil
}

// Update updates a patient's record
func (r *PatientRepository) Update(ctx context.Context, patient *Patient) error {
	query := `
		UPDATE patients
		SET full_name = :full_name,
		    national_id = :national_id,
		    birth_date = :birth_date,
		    sex = :sex,
		    phone = :phone,
		    email = :email,
		    address = :address,
		    city = :city,
		    state = :state,
		    postal_code = :postal_code,
		    insurance_plan = :insurance_plan,
		    insurance_number = :insurance_number,
		    emergency_contact = :emergency_contact,
		    notes = :notes
		WHERE id = :id AND is_active = true`

	result, err := r.db.NamedExecContext(ctx, query, patient)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("patient")
	}

	return nil
}

// SoftDelete marks a patient as inactive. The clinical history stays intact.
func (r *PatientRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE patients SET is_active = false WHERE id = $1 AND is_active = true`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("patient")
	}

	return nil
}

// Count counts active patients
func (r *PatientRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM patients WHERE is_active = true`

	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, database.MapPQError(err)
	}

	return count, nil
}
