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

// Lot represents a dated, quantity-tracked batch of a single medication.
// current_quantity is only ever mutated through movements; expiry_date and
// initial_quantity are fixed at creation.
type Lot struct {
	ID              string     `db:"id" json:"id"`
	MedicationID    string     `db:"medication_id" json:"medication_id"`
	LotNumber       string     `db:"lot_number" json:"lot_number"`
	ManufactureDate *time.Time `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate      time.Time  `db:"expiry_date" json:"expiry_date"`
	InitialQuantity int        `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity int        `db:"current_quantity" json:"current_quantity"`
	UnitPrice       *float64   `db:"unit_price" json:"unit_price,omitempty"`
	Supplier        *string    `db:"supplier" json:"supplier,omitempty"`
	StorageLocation *string    `db:"storage_location" json:"storage_location,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	ReceivedAt      time.Time  `db:"received_at" json:"received_at"`
	ReceivedBy      string     `db:"received_by" json:"received_by"`
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create creates a new lot. The caller must have set CurrentQuantity equal to
// InitialQuantity; later changes go through the ledger only.
func (r *LotRepository) Create(ctx context.Context, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lots (
			id, medication_id, lot_number, manufacture_date, expiry_date,
			initial_quantity, current_quantity, unit_price, supplier,
			storage_location, notes, is_active, received_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING received_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		lot.ID, lot.MedicationID, lot.LotNumber, lot.ManufactureDate, lot.ExpiryDate,
		lot.InitialQuantity, lot.CurrentQuantity, lot.UnitPrice, lot.Supplier,
		lot.StorageLocation, lot.Notes, lot.IsActive, lot.ReceivedBy,
	).Scan(&lot.ReceivedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// GetForUpdate locks the lot row for the duration of the transaction.
// Serializes concurrent movements against the same lot.
func (r *LotRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// SetQuantity updates the lot's current quantity within a ledger transaction.
func (r *LotRepository) SetQuantity(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error {
	query := `UPDATE lots SET current_quantity = $2 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}
	return nil
}

// ListByMedication lists active lots for a medication, soonest expiry first
// so dispensation consumes first-expired-first-out.
func (r *LotRepository) ListByMedication(ctx context.Context, medicationID string) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE medication_id = $1 AND is_active = true
		ORDER BY expiry_date, lot_number
	`
	if err := r.db.SelectContext(ctx, &lots, query, medicationID); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListActive lists all active lots, optionally filtered by storage location.
func (r *LotRepository) ListActive(ctx context.Context, location string) ([]*Lot, error) {
	var lots []*Lot

	if location != "" {
		query := `
			SELECT * FROM lots
			WHERE is_active = true AND storage_location = $1
			ORDER BY expiry_date, lot_number
		`
		if err := r.db.SelectContext(ctx, &lots, query, location); err != nil {
			return nil, err
		}
		return lots, nil
	}

	query := `SELECT * FROM lots WHERE is_active = true ORDER BY expiry_date, lot_number`
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, err
	}
	return lots, nil
}

// GetTotalStock sums current quantities across a medication's active lots.
func (r *LotRepository) GetTotalStock(ctx context.Context, medicationID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(current_quantity) FROM lots WHERE medication_id = $1 AND is_active = true`
	if err := r.db.GetContext(ctx, &total, query, medicationID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// GetExpiringLots gets active lots with remaining stock expiring within days.
func (r *LotRepository) GetExpiringLots(ctx context.Context, withinDays int) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE is_active = true AND current_quantity > 0
		AND expiry_date <= CURRENT_DATE + INTERVAL '1 day' * $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, withinDays); err != nil {
		return nil, err
	}
	return lots, nil
}

// Deactivate soft-deletes a lot. The row survives because movements
// reference it.
func (r *LotRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE lots SET is_active = false WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}
	return nil
}
