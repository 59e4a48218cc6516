package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
)

// Prescription statuses
const (
	PrescriptionActive    = "active"
	PrescriptionDispensed = "dispensed"
	PrescriptionCancelled = "cancelled"
)

// Prescription represents an issued prescription
type Prescription struct {
	ID            string    `db:"id" json:"id"`
	AppointmentID *string   `db:"appointment_id" json:"appointment_id,omitempty"`
	PatientID     string    `db:"patient_id" json:"patient_id"`
	DoctorID      string    `db:"doctor_id" json:"doctor_id"`
	IssuedAt      time.Time `db:"issued_at" json:"issued_at"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	Status        string    `db:"status" json:"status"`
}

// PrescriptionItem is one medication line on a prescription
type PrescriptionItem struct {
	ID             string  `db:"id" json:"id"`
	PrescriptionID string  `db:"prescription_id" json:"prescription_id"`
	MedicationID   string  `db:"medication_id" json:"medication_id"`
	Dosage         string  `db:"dosage" json:"dosage"`
	Quantity       int     `db:"quantity" json:"quantity"`
	Frequency      string  `db:"frequency" json:"frequency"`
	Duration       *string `db:"duration" json:"duration,omitempty"`
	Instructions   *string `db:"instructions" json:"instructions,omitempty"`
}

// PrescriptionDetail is a prescription with its items and joined names
type PrescriptionDetail struct {
	Prescription
	PatientName string              `db:"patient_name" json:"patient_name"`
	DoctorName  string              `db:"doctor_name" json:"doctor_name"`
	Items       []*PrescriptionItem `db:"-" json:"items"`
}

// PrescriptionRepository handles prescription data access
type PrescriptionRepository struct {
	db *database.DB
}

// NewPrescriptionRepository creates a new prescription repository
func NewPrescriptionRepository(db *database.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

// Create inserts a prescription and its items in one transaction
func (r *PrescriptionRepository) Create(ctx context.Context, p *Prescription, items []*PrescriptionItem) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = PrescriptionActive
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO prescriptions (id, appointment_id, patient_id, doctor_id, notes, status)
			VALUES (:id, :appointment_id, :patient_id, :doctor_id, :notes, :status)
			RETURNING issued_at`

		rows, err := tx.NamedQuery(query, p)
		if err != nil {
			return database.MapPQError(err)
		}
		if rows.Next() {
			if err := rows.Scan(&p.IssuedAt); err != nil {
				rows.Close()
				return errors.Internal("failed to scan created prescription")
			}
		}
		rows.Close()

		for _, item := range items {
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			item.PrescriptionID = p.ID

			itemQuery := `
				INSERT INTO prescription_items (id, prescription_id, medication_id, dosage, quantity, frequency, duration, instructions)
				VALUES (:id, :prescription_id, :medication_id, :dosage, :quantity, :frequency, :duration, :instructions)`

			if _, err := tx.NamedExecContext(ctx, itemQuery, item); err != nil {
				return database.MapPQError(err)
			}
		}

		return nil
	})
}

const prescriptionDetailSelect = `
	SELECT pr.*, p.full_name AS patient_name, u.full_name AS doctor_name
	FROM prescriptions pr
	JOIN patients p ON p.id = pr.patient_id
	JOIN users u ON u.id = pr.doctor_id`

// GetByID gets a prescription with its items
func (r *PrescriptionRepository) GetByID(ctx context.Context, id string) (*PrescriptionDetail, error) {
	var detail PrescriptionDetail
	query := prescriptionDetailSelect + ` WHERE pr.id = $1`

	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("prescription")
		}
		return nil, database.MapPQError(err)
	}

	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Items = items

	return &detail, nil
}

// GetItems gets the items of one prescription
func (r *PrescriptionRepository) GetItems(ctx context.Context, prescriptionID string) ([]*PrescriptionItem, error) {
	var items []*PrescriptionItem
	query := `SELECT * FROM prescription_items WHERE prescription_id = $1 ORDER BY id`

	if err := r.db.SelectContext(ctx, &items, query, prescriptionID); err != nil {
		return nil, database.MapPQError(err)
	}

	return items, nil
}

// ListByPatient lists a patient's prescriptions, newest first, items included
func (r *PrescriptionRepository) ListByPatient(ctx context.Context, patientID string) ([]*PrescriptionDetail, error) {
	query := prescriptionDetailSelect + ` WHERE pr.patient_id = $1 ORDER BY pr.issued_at DESC`
	return r.listWithItems(ctx, query, patientID)
}

// ListByStatus lists prescriptions in the given status, oldest first so the
// pharmacy works the queue in order.
func (r *PrescriptionRepository) ListByStatus(ctx context.Context, status string) ([]*PrescriptionDetail, error) {
	query := prescriptionDetailSelect + ` WHERE pr.status = $1 ORDER BY pr.issued_at`
	return r.listWithItems(ctx, query, status)
}

func (r *PrescriptionRepository) listWithItems(ctx context.Context, query string, args ...interface{}) ([]*PrescriptionDetail, error) {
	var details []*PrescriptionDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, database.MapPQError(err)
	}

	for _, detail := range details {
		items, err := r.GetItems(ctx, detail.ID)
		if err != nil {
			return nil, err
		}
		detail.Items = items
	}

	return details, nil
}

// GetForUpdate locks a prescription row inside a transaction. Used during
// dispensation so two pharmacists cannot dispense the same prescription.
func (r *PrescriptionRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Prescription, error) {
	var p Prescription
	query := `SELECT * FROM prescriptions WHERE id = $1 FOR UPDATE`

	if err := tx.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("prescription")
		}
		return nil, database.MapPQError(err)
	}

	return &p, nil
}

// UpdateStatusTx transitions a prescription's status inside a caller-owned
// transaction.
func (r *PrescriptionRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id, status string) error {
	query := `UPDATE prescriptions SET status = $1 WHERE id = $2`

	result, err := tx.ExecContext(ctx, query, status, id)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("prescription")
	}

	return nil
}

// UpdateStatus transitions a prescription's status
func (r *PrescriptionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE prescriptions SET status = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return database.MapPQError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NotFound("prescription")
	}

	return nil
}

// CountByStatus counts prescriptions in the given status
func (r *PrescriptionRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM prescriptions WHERE status = $1`

	if err := r.db.GetContext(ctx, &count, query, status); err != nil {
		return 0, database.MapPQError(err)
	}

	return count, nil
}
