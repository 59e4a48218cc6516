package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medstock/medstock-backend/internal/stock/repository"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedgerRoundTrip exercises the lot and movement repositories against a
// real PostgreSQL instance: receive a lot, apply movements transactionally
// and verify the database-level non-negativity constraint.
func TestLedgerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
	require.NoError(t, err)
	defer container.Terminate(ctx)

	sqlxDB, err := container.Connect()
	require.NoError(t, err)
	defer sqlxDB.Close()

	require.NoError(t, container.ApplySchema(ctx, sqlxDB))

	db := database.FromSqlx(sqlxDB, logger.New("test", "test"))
	lotRepo := repository.NewLotRepository(db)
	movementRepo := repository.NewMovementRepository(db)

	userID := uuid.New().String()
	medicationID := uuid.New().String()
	_, err = sqlxDB.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, full_name, role) VALUES ($1, 'tester', 'x', 'Test User', 'pharmacist')`,
		userID)
	require.NoError(t, err)
	_, err = sqlxDB.ExecContext(ctx,
		`INSERT INTO medications (id, name) VALUES ($1, 'Amoxicillin 500mg')`,
		medicationID)
	require.NoError(t, err)

	lot := &repository.Lot{
		MedicationID:    medicationID,
		LotNumber:       "L-2026-001",
		ExpiryDate:      time.Now().AddDate(1, 0, 0),
		InitialQuantity: 100,
		CurrentQuantity: 100,
		IsActive:        true,
		ReceivedBy:      userID,
	}
	require.NoError(t, lotRepo.Create(ctx, lot))
	assert.NotEmpty(t, lot.ID)
	assert.False(t, lot.ReceivedAt.IsZero())

	t.Run("outflow adjusts lot inside a transaction", func(t *testing.T) {
		err := db.Transaction(ctx, func(tx *sqlx.Tx) error {
			locked, err := lotRepo.GetForUpdate(ctx, tx, lot.ID)
			if err != nil {
				return err
			}

			movement := &repository.Movement{
				LotID:            locked.ID,
				MovementType:     repository.MovementOutflow,
				Quantity:         30,
				PreviousQuantity: locked.CurrentQuantity,
				NewQuantity:      locked.CurrentQuantity - 30,
				PerformedBy:      userID,
			}
			if err := movementRepo.Insert(ctx, tx, movement); err != nil {
				return err
			}
			return lotRepo.SetQuantity(ctx, tx, locked.ID, movement.NewQuantity)
		})
		require.NoError(t, err)

		got, err := lotRepo.GetByID(ctx, lot.ID)
		require.NoError(t, err)
		assert.Equal(t, 70, got.CurrentQuantity)

		total, err := lotRepo.GetTotalStock(ctx, medicationID)
		require.NoError(t, err)
		assert.Equal(t, 70, total)
	})

	t.Run("movements are recorded against the lot", func(t *testing.T) {
		movements, err := movementRepo.ListByLot(ctx, lot.ID)
		require.NoError(t, err)
		require.Len(t, movements, 1)
		assert.Equal(t, repository.MovementOutflow, movements[0].MovementType)
		assert.Equal(t, 30, movements[0].Quantity)
	})

	t.Run("database rejects a negative quantity", func(t *testing.T) {
		err := db.Transaction(ctx, func(tx *sqlx.Tx) error {
			return lotRepo.SetQuantity(ctx, tx, lot.ID, -1)
		})
		require.Error(t, err)

		// The failed transaction must not have changed the lot.
		got, err := lotRepo.GetByID(ctx, lot.ID)
		require.NoError(t, err)
		assert.Equal(t, 70, got.CurrentQuantity)
	})

	t.Run("daily outflow aggregate", func(t *testing.T) {
		backdate := func(daysAgo, quantity, before int) {
			_, err := sqlxDB.ExecContext(ctx,
				`INSERT INTO movements (id, lot_id, movement_type, quantity, previous_quantity, new_quantity, performed_by, performed_at)
				 VALUES ($1, $2, 'outflow', $3, $4, $5, $6, CURRENT_DATE - INTERVAL '1 day' * $7)`,
				uuid.New().String(), lot.ID, quantity, before, before-quantity, userID, daysAgo)
			require.NoError(t, err)
		}
		backdate(2, 10, 100)
		backdate(2, 5, 90)
		backdate(5, 7, 85)

		rows, err := movementRepo.DailyOutflows(ctx, medicationID, 30)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		// Newest day first; same-day movements are summed.
		assert.Equal(t, 30, rows[0].Quantity)
		assert.Equal(t, 15, rows[1].Quantity)
		assert.Equal(t, 7, rows[2].Quantity)
	})

	t.Run("expiring lots report", func(t *testing.T) {
		soon := &repository.Lot{
			MedicationID:    medicationID,
			LotNumber:       "L-2026-002",
			ExpiryDate:      time.Now().AddDate(0, 0, 10),
			InitialQuantity: 5,
			CurrentQuantity: 5,
			IsActive:        true,
			ReceivedBy:      userID,
		}
		require.NoError(t, lotRepo.Create(ctx, soon))

		expiring, err := lotRepo.GetExpiringLots(ctx, 30)
		require.NoError(t, err)
		require.Len(t, expiring, 1)
		assert.Equal(t, soon.ID, expiring[0].ID)
	})
}
