package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
)

// Appointment statuses
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

// Appointment represents a scheduled visit
type Appointment struct {
	ID          string    `db:"id" json:"id"`
	PatientID   string    `db:"patient_id" json:"patient_id"`
	DoctorID    string    `db:"doctor_id" json:"doctor_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	VisitType   *string   `db:"visit_type" json:"visit_type,omitempty"`
	Reason      *string   `db:"reason" json:"reason,omitempty"`
	Diagnosis   *string   `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	Status      string    `db:"status" json:"status"`
	Fee         *float64  `db:"fee" json:"fee,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
}

// AppointmentDetail joins patient and doctor names onto an appointment
type AppointmentDetail struct {
	Appointment
	PatientName string `db:"patient_name" json:"patient_name"`
	DoctorName  string `db:"doctor_name" json:"doctor_name"`
}

// AppointmentRepository handles appointment data access
type AppointmentRepository struct {
	db *database.DB
}

// NewAppointmentRepository creates a new appointment repository
func NewAppointmentRepository(db *database.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts a new appointment
func (r *AppointmentRepository) Create(ctx context.Context, appt *Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	if appt.Status == "" {
		appt.Status = AppointmentScheduled
	}

	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, scheduled_at, visit_type, reason,
			diagnosis, notes, status, fee, created_by
		) VALUES (
			:id, :patient_id, :doctor_id, :scheduled_at, :visit_type, :reason,
			:diagnosis, :notes, :status, :fee, :created_by
		)
		RETURNING created_at`

	rows, err := r.db.NamedQueryContext(ctx, query, appt)
	if err != nil {
		return database.MapPQError(err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&appt.CreatedAt); err != nil {
			return errors.Internal("failed to scan created appointment")
		}
	}

	return nil
}

// GetByID gets an appointment by ID
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	var appt Appointment
	query := `SELECT * FROM appointments WHERE id = $1`

	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("appointment")
		}
		return nil, database.MapPQError(err)
	}

	return &appt, nil
}

const appointmentDetailSelect = `
	SELECT a.*, p.full_name AS patient_name, u.full_name AS doctor_name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users u ON u.id = a.doctor_id`

// ListByRange lists appointments scheduled within [from, to)
func (r *AppointmentRepository) ListByRange(ctx context.Context, from, to time.Time) ([]*AppointmentDetail, error) {
	var appts []*AppointmentDetail
	query := appointmentDetailSelect + `
	WHERE a.scheduled_at >= $1 AND a.scheduled_at < $2
	ORDER BY a.scheduled_at`

	if err := r.db.SelectContext(ctx, &appts, query, from, to); err != nil {
		return nil, database.MapPQError(err)
	}

	return appts, nil
}

// ListByPatient lists a patient's appointments, newest first
func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]*AppointmentDetail, error) {
	var appts []*AppointmentDetail
	query := appointmentDetailSelect + `
	WHERE a.patient_id = $1
	ORDER BY a.scheduled_at DESC`

	if err := r.db.SelectContext(ctx, &appts, query, patientID); err != nil {
		return nil, database.MapPQError(err)
	}

	return appts, nil
}

// ListByDoctor lists a doctor's appointments within [from, to)
func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]*AppointmentDetail, error) {
	var appts []*AppointmentDetail
	query := appointmentDetailSelect + `
	WHERE a.doctor_id = $1 AND a.scheduled_at >= $2 AND a.scheduled_at < $3
	ORDER BY a.scheduled_at`

	if err := r.db.SelectContext(ctx, &appts, query, doctorID, from, to); err != nil {
		return nil, database.MapPQError(err)
	}

	return appts, nil
}

// Update updates an appointment's editable fields
func (r *AppointmentRepository) Update(ctx context.Context, appt *Appointment) error {
	query := `
		UPDATE appointments
		SET scheduled_at = :scheduled_at,
		    visit_type = :visit_type,
		    reason = :reason,
		    diagnosis = :diagnosis,
		    notes = :notes,
		    fee = :fee
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, appt)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("appointment")
	}

	return nil
}

// UpdateStatus transitions an appointment's status
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE appointments SET status = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("appointment")
	}

	return nil
}

// CountByStatusInRange counts appointments in [from, to) with the given status
func (r *AppointmentRepository) CountByStatusInRange(ctx context.Context, status string, from, to time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM appointments WHERE status = $1 AND scheduled_at >= $2 AND scheduled_at < $3`

	if err := r.db.GetContext(ctx, &count, query, status, from, to); err != nil {
		return 0, database.MapPQError(err)
	}

	return count, nil
}
