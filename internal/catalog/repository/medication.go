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

// Medication represents a catalog entry. Identity is immutable; descriptive
// fields can change; deletion is always soft because lots and prescriptions
// reference the row.
type Medication struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	ActiveIngredient    *string   `db:"active_ingredient" json:"active_ingredient,omitempty"`
	Manufacturer        *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	Category            *string   `db:"category" json:"category,omitempty"`
	Presentation        *string   `db:"presentation" json:"presentation,omitempty"`
	Concentration       *string   `db:"concentration" json:"concentration,omitempty"`
	Controlled          bool      `db:"controlled" json:"controlled"`
	StorageTemperature  *string   `db:"storage_temperature" json:"storage_temperature,omitempty"`
	AdministrationRoute *string   `db:"administration_route" json:"administration_route,omitempty"`
	Notes               *string   `db:"notes" json:"notes,omitempty"`
	IsActive            bool      `db:"is_active" json:"is_active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	CreatedBy           string    `db:"created_by" json:"created_by"`
}

// MedicationRepository handles medication persistence
type MedicationRepository struct {
	db *database.DB
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *database.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// Create creates a new medication
func (r *MedicationRepository) Create(ctx context.Context, med *Medication) error {
	if med.ID == "" {
		med.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medications (
			id, name, active_ingredient, manufacturer, category, presentation,
			concentration, controlled, storage_temperature, administration_route,
			notes, is_active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		med.ID, med.Name, med.ActiveIngredient, med.Manufacturer, med.Category,
		med.Presentation, med.Concentration, med.Controlled, med.StorageTemperature,
		med.AdministrationRoute, med.Notes, med.IsActive, med.CreatedBy,
	).Scan(&med.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a medication by ID
func (r *MedicationRepository) GetByID(ctx context.Context, id string) (*Medication, error) {
	var med Medication
	query := `SELECT * FROM medications WHERE id = $1`
	if err := r.db.GetContext(ctx, &med, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medication")
		}
		return nil, err
	}
	return &med, nil
}

// List lists active medications with optional name/ingredient search and
// category filter.
func (r *MedicationRepository) List(ctx context.Context, search, category string, page, perPage int) ([]*Medication, int64, error) {
	where := `WHERE is_active = true`
	args := []interface{}{}

	if search != "" {
		args = append(args, "%"+search+"%")
		where += ` AND (name ILIKE $1 OR active_ingredient ILIKE $1)`
	}
	if category != "" {
		args = append(args, category)
		where += fmt.Sprintf(` AND category = $%d`, len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM medications ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := fmt.Sprintf(`SELECT * FROM medications %s ORDER BY name LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	var meds []*Medication
	if err := r.db.SelectContext(ctx, &meds, query, args...); err != nil {
		return nil, 0, err
	}
	return meds, total, nil
}

// Update updates the mutable descriptive fields of a medication
func (r *MedicationRepository) Update(ctx context.Context, med *Medication) error {
	query := `
		UPDATE medications SET
			name = $2, active_ingredient = $3, manufacturer = $4, category = $5,
			presentation = $6, concentration = $7, controlled = $8,
			storage_temperature = $9, administration_route = $10, notes = $11
		WHERE id = $1 AND is_active = true
	`

	result, err := r.db.ExecContext(ctx, query,
		med.ID, med.Name, med.ActiveIngredient, med.Manufacturer, med.Category,
		med.Presentation, med.Concentration, med.Controlled, med.StorageTemperature,
		med.AdministrationRoute, med.Notes,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medication")
	}
	return nil
}

// SoftDelete marks a medication inactive. Rows are never hard-deleted.
func (r *MedicationRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE medications SET is_active = false WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medication")
	}
	return nil
}

// GetAllActive gets all active medications
func (r *MedicationRepository) GetAllActive(ctx context.Context) ([]*Medication, error) {
	var meds []*Medication
	query := `SELECT * FROM medications WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &meds, query); err != nil {
		return nil, err
	}
	return meds, nil
}

// CountActive counts active medications
func (r *MedicationRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM medications WHERE is_active = true`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, err
	}
	return count, nil
}

