package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medstock/medstock-backend/pkg/database"
)

// Movement types
const (
	MovementInflow  = "inflow"
	MovementOutflow = "outflow"
)

// Movement is one immutable ledger entry against a lot.
type Movement struct {
	ID               string    `db:"id" json:"id"`
	LotID            string    `db:"lot_id" json:"lot_id"`
	MovementType     string    `db:"movement_type" json:"movement_type"`
	Quantity         int       `db:"quantity" json:"quantity"`
	Reason           *string   `db:"reason" json:"reason,omitempty"`
	PrescriptionID   *string   `db:"prescription_id" json:"prescription_id,omitempty"`
	PreviousQuantity int       `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      int       `db:"new_quantity" json:"new_quantity"`
	PerformedBy      string    `db:"performed_by" json:"performed_by"`
	PerformedAt      time.Time `db:"performed_at" json:"performed_at"`
}

// DailyOutflow is one day's aggregate outflow for a medication.
type DailyOutflow struct {
	Day      time.Time `db:"day" json:"day"`
	Quantity int       `db:"quantity" json:"quantity"`
}

// MovementRepository handles ledger persistence
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Insert appends a movement within a ledger transaction. Movements are
// never updated or deleted.
func (r *MovementRepository) Insert(ctx context.Context, tx *sqlx.Tx, m *Movement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO movements (
			id, lot_id, movement_type, quantity, reason, prescription_id,
			previous_quantity, new_quantity, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING performed_at
	`

	err := tx.QueryRowxContext(ctx, query,
		m.ID, m.LotID, m.MovementType, m.Quantity, m.Reason, m.PrescriptionID,
		m.PreviousQuantity, m.NewQuantity, m.PerformedBy,
	).Scan(&m.PerformedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListByLot lists movements for a lot, newest first.
func (r *MovementRepository) ListByLot(ctx context.Context, lotID string) ([]*Movement, error) {
	var movements []*Movement
	query := `SELECT * FROM movements WHERE lot_id = $1 ORDER BY performed_at DESC`
	if err := r.db.SelectContext(ctx, &movements, query, lotID); err != nil {
		return nil, err
	}
	return movements, nil
}

// ListByMedication lists movements across a medication's lots within a
// date range, newest first.
func (r *MovementRepository) ListByMedication(ctx context.Context, medicationID string, from, to time.Time) ([]*Movement, error) {
	var movements []*Movement
	query := `
		SELECT m.* FROM movements m
		JOIN lots l ON m.lot_id = l.id
		WHERE l.medication_id = $1
		AND m.performed_at >= $2 AND m.performed_at < $3
		ORDER BY m.performed_at DESC
	`
	if err := r.db.SelectContext(ctx, &movements, query, medicationID, from, to); err != nil {
		return nil, err
	}
	return movements, nil
}

// TypeTotal is an aggregate of movement quantities by type.
type TypeTotal struct {
	MovementType string `db:"movement_type" json:"movement_type"`
	Total        int    `db:"total" json:"total"`
	Count        int    `db:"count" json:"count"`
}

// TotalsByType aggregates movement quantities per type within [from, to).
func (r *MovementRepository) TotalsByType(ctx context.Context, from, to time.Time) ([]*TypeTotal, error) {
	var totals []*TypeTotal
	query := `
		SELECT movement_type, COALESCE(SUM(quantity), 0) AS total, COUNT(*) AS count
		FROM movements
		WHERE performed_at >= $1 AND performed_at < $2
		GROUP BY movement_type
	`
	if err := r.db.SelectContext(ctx, &totals, query, from, to); err != nil {
		return nil, err
	}
	return totals, nil
}

// DailyOutflows aggregates outflow quantities per calendar day for a
// medication's active lots over the trailing window. Days with no outflow
// produce no row; the estimator divides by the rows returned.
func (r *MovementRepository) DailyOutflows(ctx context.Context, medicationID string, windowDays int) ([]*DailyOutflow, error) {
	var rows []*DailyOutflow
	query := `
		SELECT DATE(m.performed_at) AS day, SUM(m.quantity) AS quantity
		FROM movements m
		JOIN lots l ON m.lot_id = l.id
		WHERE l.medication_id = $1
		AND l.is_active = true
		AND m.movement_type = 'outflow'
		AND m.performed_at >= CURRENT_DATE - INTERVAL '1 day' * $2
		GROUP BY DATE(m.performed_at)
		ORDER BY day DESC
	`
	if err := r.db.SelectContext(ctx, &rows, query, medicationID, windowDays); err != nil {
		return nil, err
	}
	return rows, nil
}
