package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/records/repository"
	"github.com/medstock/medstock-backend/internal/records/service"
	stockrepo "github.com/medstock/medstock-backend/internal/stock/repository"
	stockservice "github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/principal"
	"github.com/medstock/medstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrescriptionService(mockDB *testutil.MockDB) *service.PrescriptionService {
	log := logger.New("test", "test")
	lotRepo := stockrepo.NewLotRepository(mockDB.DB)
	ledger := stockservice.NewLedgerService(
		mockDB.DB,
		lotRepo,
		stockrepo.NewMovementRepository(mockDB.DB),
		catalogrepo.NewMedicationRepository(mockDB.DB),
		nil,
		log,
	)
	return service.NewPrescriptionService(
		mockDB.DB,
		repository.NewPrescriptionRepository(mockDB.DB),
		repository.NewPatientRepository(mockDB.DB),
		lotRepo,
		ledger,
		nil,
		log,
	)
}

func dispenserContext() context.Context {
	return principal.WithPrincipal(context.Background(), &principal.Principal{
		ID:       "user-1",
		Username: "mlopez",
		FullName: "Maria Lopez",
		Role:     "pharmacist",
	})
}

func prescriptionRows(status string) *sqlmock.Rows {
	return testutil.MockRows(
		"id", "patient_id", "doctor_id", "issued_at", "status",
	).AddRow(
		"rx-1", "patient-1", "doctor-1", time.Now(), status,
	)
}

func itemRows(quantity int) *sqlmock.Rows {
	return testutil.MockRows(
		"id", "prescription_id", "medication_id", "dosage", "quantity", "frequency",
	).AddRow(
		"item-1", "rx-1", "med-1", "500mg", quantity, "every 8 hours",
	)
}

func medicationLotRows() *sqlmock.Rows {
	cols := []string{
		"id", "medication_id", "lot_number", "expiry_date",
		"initial_quantity", "current_quantity", "is_active", "received_at", "received_by",
	}
	return testutil.MockRows(cols...).
		AddRow("lot-a", "med-1", "L-A", time.Now().AddDate(0, 0, 40), 100, 20, true, time.Now(), "user-0").
		AddRow("lot-b", "med-1", "L-B", time.Now().AddDate(0, 0, 200), 100, 50, true, time.Now(), "user-0")
}

func singleLotRows(id string, quantity int) *sqlmock.Rows {
	return testutil.MockRows(
		"id", "medication_id", "lot_number", "expiry_date",
		"initial_quantity", "current_quantity", "is_active", "received_at", "received_by",
	).AddRow(
		id, "med-1", "L-X", time.Now().AddDate(0, 0, 40), 100, quantity, true, time.Now(), "user-0",
	)
}

// Dispensing draws from the lots expiring first and flips the prescription
// to dispensed in the same transaction.
func TestPrescriptionService_Dispense(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM prescriptions WHERE id = $1 FOR UPDATE`).
		WithArgs("rx-1").
		WillReturnRows(prescriptionRows(repository.PrescriptionActive))
	mockDB.ExpectQuery(`SELECT * FROM prescription_items WHERE prescription_id = $1 ORDER BY id`).
		WithArgs("rx-1").
		WillReturnRows(itemRows(30))
	mockDB.ExpectQuery(`WHERE medication_id = $1 AND is_active = true`).
		WithArgs("med-1").
		WillReturnRows(medicationLotRows())

	// Lot A expires first: drained to zero. The dispenser and the ledger
	// each take the row lock before the draw.
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-a").
		WillReturnRows(singleLotRows("lot-a", 20))
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-a").
		WillReturnRows(singleLotRows("lot-a", 20))
	mockDB.ExpectQuery(`INSERT INTO movements`).
		WillReturnRows(testutil.MockRows("performed_at").AddRow(time.Now()))
	mockDB.ExpectExec(`UPDATE lots SET current_quantity = $2 WHERE id = $1`).
		WithArgs("lot-a", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Lot B covers the remaining 10 units.
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-b").
		WillReturnRows(singleLotRows("lot-b", 50))
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-b").
		WillReturnRows(singleLotRows("lot-b", 50))
	mockDB.ExpectQuery(`INSERT INTO movements`).
		WillReturnRows(testutil.MockRows("performed_at").AddRow(time.Now()))
	mockDB.ExpectExec(`UPDATE lots SET current_quantity = $2 WHERE id = $1`).
		WithArgs("lot-b", 40).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mockDB.ExpectExec(`UPDATE prescriptions SET status = $1 WHERE id = $2`).
		WithArgs(repository.PrescriptionDispensed, "rx-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	// Reload after commit
	mockDB.ExpectQuery(`SELECT pr.*, p.full_name AS patient_name, u.full_name AS doctor_name`).
		WithArgs("rx-1").
		WillReturnRows(testutil.MockRows(
			"id", "patient_id", "doctor_id", "issued_at", "status", "patient_name", "doctor_name",
		).AddRow(
			"rx-1", "patient-1", "doctor-1", time.Now(), repository.PrescriptionDispensed, "John Smith", "Dr. Doe",
		))
	mockDB.ExpectQuery(`SELECT * FROM prescription_items WHERE prescription_id = $1 ORDER BY id`).
		WithArgs("rx-1").
		WillReturnRows(itemRows(30))

	detail, err := newPrescriptionService(mockDB).Dispense(dispenserContext(), "rx-1")
	require.NoError(t, err)

	assert.Equal(t, repository.PrescriptionDispensed, detail.Status)
	require.Len(t, detail.Items, 1)

	mockDB.ExpectationsWereMet(t)
}

// A prescription whose items cannot be covered by current stock rolls the
// whole dispensation back, including the draws already applied.
func TestPrescriptionService_Dispense_InsufficientStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM prescriptions WHERE id = $1 FOR UPDATE`).
		WithArgs("rx-1").
		WillReturnRows(prescriptionRows(repository.PrescriptionActive))
	mockDB.ExpectQuery(`SELECT * FROM prescription_items WHERE prescription_id = $1 ORDER BY id`).
		WithArgs("rx-1").
		WillReturnRows(itemRows(100))
	mockDB.ExpectQuery(`WHERE medication_id = $1 AND is_active = true`).
		WithArgs("med-1").
		WillReturnRows(medicationLotRows())

	for _, lot := range []struct {
		id  string
		qty int
	}{{"lot-a", 20}, {"lot-b", 50}} {
		mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
			WithArgs(lot.id).
			WillReturnRows(singleLotRows(lot.id, lot.qty))
		mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
			WithArgs(lot.id).
			WillReturnRows(singleLotRows(lot.id, lot.qty))
		mockDB.ExpectQuery(`INSERT INTO movements`).
			WillReturnRows(testutil.MockRows("performed_at").AddRow(time.Now()))
		mockDB.ExpectExec(`UPDATE lots SET current_quantity = $2 WHERE id = $1`).
			WithArgs(lot.id, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mockDB.ExpectRollback()

	_, err := newPrescriptionService(mockDB).Dispense(dispenserContext(), "rx-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "70", appErr.Details["available"])
	assert.Equal(t, "100", appErr.Details["requested"])

	mockDB.ExpectationsWereMet(t)
}

// When a lot shrinks between the listing and the locked read, the error
// reports the locked quantity, not the stale one.
func TestPrescriptionService_Dispense_LotShrank(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM prescriptions WHERE id = $1 FOR UPDATE`).
		WithArgs("rx-1").
		WillReturnRows(prescriptionRows(repository.PrescriptionActive))
	mockDB.ExpectQuery(`SELECT * FROM prescription_items WHERE prescription_id = $1 ORDER BY id`).
		WithArgs("rx-1").
		WillReturnRows(itemRows(30))

	// The listing still reports 40 units, but only 10 survive the lock.
	mockDB.ExpectQuery(`WHERE medication_id = $1 AND is_active = true`).
		WithArgs("med-1").
		WillReturnRows(singleLotRows("lot-a", 40))
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-a").
		WillReturnRows(singleLotRows("lot-a", 10))
	mockDB.ExpectQuery(`SELECT * FROM lots WHERE id = $1 FOR UPDATE`).
		WithArgs("lot-a").
		WillReturnRows(singleLotRows("lot-a", 10))
	mockDB.ExpectQuery(`INSERT INTO movements`).
		WillReturnRows(testutil.MockRows("performed_at").AddRow(time.Now()))
	mockDB.ExpectExec(`UPDATE lots SET current_quantity = $2 WHERE id = $1`).
		WithArgs("lot-a", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectRollback()

	_, err := newPrescriptionService(mockDB).Dispense(dispenserContext(), "rx-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "10", appErr.Details["available"])
	assert.Equal(t, "30", appErr.Details["requested"])

	mockDB.ExpectationsWereMet(t)
}

func TestPrescriptionService_Dispense_NotActive(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM prescriptions WHERE id = $1 FOR UPDATE`).
		WithArgs("rx-1").
		WillReturnRows(prescriptionRows(repository.PrescriptionDispensed))
	mockDB.ExpectRollback()

	_, err := newPrescriptionService(mockDB).Dispense(dispenserContext(), "rx-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	mockDB.ExpectationsWereMet(t)
}
