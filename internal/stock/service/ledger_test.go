package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/stock/repository"
	"github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/principal"
	"github.com/medstock/medstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(mockDB *testutil.MockDB) *service.LedgerService {
	log := logger.New("test", "test")
	return service.NewLedgerService(
		mockDB.DB,
		repository.NewLotRepository(mockDB.DB),
		repository.NewMovementRepository(mockDB.DB),
		catalogrepo.NewMedicationRepository(mockDB.DB),
		nil,
		log,
	)
}

func pharmacistContext() context.Context {
	return principal.WithPrincipal(context.Background(), &principal.Principal{
		ID:       "user-1",
		Username: "mlopez",
		FullName: "Maria Lopez",
		Role:     "pharmacist",
	})
}

func lockedLotRows(quantity int) *sqlmock.Rows {
	return testutil.MockRows(
		"id", "medication_id", "lot_number", "expiry_date",
		"initial_quantity", "current_quantity", "is_active", "received_at", "received_by",
	).AddRow(
		"lot-1", "med-1", "L-001", time.Now().AddDate(0, 0, 90),
		100, quantity, true, time.Now(), "user-0",
	)
}

func TestLedgerService_ApplyMovement_Outflow(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-1").
		WillReturnRows(lockedLotRows(30))
	mockDB.ExpectQuery(`INSERT INTO movements`).
		WillReturnRows(testutil.MockRows("performed_at").AddRow(time.Now()))
	mockDB.ExpectExec(`UPDATE lots SET current_quantity = $2 WHERE id = $1`).
		WithArgs("lot-1", 18).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	movement, err := newLedger(mockDB).ApplyMovement(pharmacistContext(), &service.ApplyMovementInput{
		LotID:        "lot-1",
		MovementType: repository.MovementOutflow,
		Quantity:     12,
	})
	require.NoError(t, err)

	assert.Equal(t, 30, movement.PreviousQuantity)
	assert.Equal(t, 18, movement.NewQuantity)
	assert.Equal(t, "user-1", movement.PerformedBy)
	assert.NotEmpty(t, movement.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_ApplyMovement_Inflow(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-1").
		WillReturnRows(lockedLotRows(30))
	mockDB.ExpectQuery(`INSERT INTO movements`).
		WillReturnRows(testutil.MockRows("performed_at").AddRow(time.Now()))
	mockDB.ExpectExec(`UPDATE lots SET current_quantity = $2 WHERE id = $1`).
		WithArgs("lot-1", 80).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	movement, err := newLedger(mockDB).ApplyMovement(pharmacistContext(), &service.ApplyMovementInput{
		LotID:        "lot-1",
		MovementType: repository.MovementInflow,
		Quantity:     50,
	})
	require.NoError(t, err)

	assert.Equal(t, 80, movement.NewQuantity)

	mockDB.ExpectationsWereMet(t)
}

// An outflow larger than the available quantity rolls the transaction back
// and leaves the lot untouched. The movement is rejected, never clamped.
func TestLedgerService_ApplyMovement_InsufficientStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-1").
		WillReturnRows(lockedLotRows(30))
	mockDB.ExpectRollback()

	_, err := newLedger(mockDB).ApplyMovement(pharmacistContext(), &service.ApplyMovementInput{
		LotID:        "lot-1",
		MovementType: repository.MovementOutflow,
		Quantity:     50,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "30", appErr.Details["available"])
	assert.Equal(t, "50", appErr.Details["requested"])

	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_ApplyMovement_InactiveLot(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	inactive := testutil.MockRows(
		"id", "medication_id", "lot_number", "expiry_date",
		"initial_quantity", "current_quantity", "is_active", "received_at", "received_by",
	).AddRow(
		"lot-1", "med-1", "L-001", time.Now().AddDate(0, 0, 90),
		100, 30, false, time.Now(), "user-0",
	)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-1").
		WillReturnRows(inactive)
	mockDB.ExpectRollback()

	_, err := newLedger(mockDB).ApplyMovement(pharmacistContext(), &service.ApplyMovementInput{
		LotID:        "lot-1",
		MovementType: repository.MovementInflow,
		Quantity:     10,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_ApplyMovement_RejectsBadInput(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	ledger := newLedger(mockDB)

	_, err := ledger.ApplyMovement(pharmacistContext(), &service.ApplyMovementInput{
		LotID:        "lot-1",
		MovementType: repository.MovementOutflow,
		Quantity:     0,
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = ledger.ApplyMovement(pharmacistContext(), &service.ApplyMovementInput{
		LotID:        "lot-1",
		MovementType: "transfer",
		Quantity:     5,
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}
