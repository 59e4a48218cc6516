package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/stock/events"
	"github.com/medstock/medstock-backend/internal/stock/repository"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/principal"
)

// LedgerService owns the stock ledger: lot intake and movement application.
// Every quantity change goes through ApplyMovement inside one transaction
// that locks the lot row, so concurrent outflows serialize and the
// non-negative invariant holds under load.
type LedgerService struct {
	db             *database.DB
	lotRepo        *repository.LotRepository
	movementRepo   *repository.MovementRepository
	medicationRepo *catalogrepo.MedicationRepository
	publisher      *events.StockEventPublisher
	logger         *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *database.DB,
	lotRepo *repository.LotRepository,
	movementRepo *repository.MovementRepository,
	medicationRepo *catalogrepo.MedicationRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		db:             db,
		lotRepo:        lotRepo,
		movementRepo:   movementRepo,
		medicationRepo: medicationRepo,
		publisher:      publisher,
		logger:         log,
	}
}

// ReceiveLotInput is the intake request for a new lot.
type ReceiveLotInput struct {
	MedicationID    string     `json:"medication_id" validate:"required,uuid"`
	LotNumber       string     `json:"lot_number" validate:"required"`
	ManufactureDate *time.Time `json:"manufacture_date"`
	ExpiryDate      time.Time  `json:"expiry_date" validate:"required"`
	InitialQuantity int        `json:"initial_quantity" validate:"required,gt=0"`
	UnitPrice       *float64   `json:"unit_price"`
	Supplier        *string    `json:"supplier"`
	StorageLocation *string    `json:"storage_location"`
	Notes           *string    `json:"notes"`
}

// ReceiveLot creates a lot with current quantity equal to its initial
// quantity. The lot's expiry date and initial quantity are immutable after
// this point; all later changes go through movements.
func (s *LedgerService) ReceiveLot(ctx context.Context, input *ReceiveLotInput) (*repository.Lot, error) {
	p := principal.MustFromContext(ctx)

	if input.ExpiryDate.IsZero() {
		return nil, errors.Validation(map[string]string{"expiry_date": "this field is required"})
	}
	if input.InitialQuantity <= 0 {
		return nil, errors.Validation(map[string]string{"initial_quantity": "must be a positive integer"})
	}

	med, err := s.medicationRepo.GetByID(ctx, input.MedicationID)
	if err != nil {
		return nil, err
	}
	if !med.IsActive {
		return nil, errors.NotFound("medication")
	}

	lot := &repository.Lot{
		MedicationID:    input.MedicationID,
		LotNumber:       input.LotNumber,
		ManufactureDate: input.ManufactureDate,
		ExpiryDate:      input.ExpiryDate,
		InitialQuantity: input.InitialQuantity,
		CurrentQuantity: input.InitialQuantity,
		UnitPrice:       input.UnitPrice,
		Supplier:        input.Supplier,
		StorageLocation: input.StorageLocation,
		Notes:           input.Notes,
		IsActive:        true,
		ReceivedBy:      p.ID,
	}

	if err := s.lotRepo.Create(ctx, lot); err != nil {
		return nil, err
	}

	s.publisher.PublishLotReceived(ctx, lot)

	s.logger.Info().
		Str("lot_id", lot.ID).
		Str("medication_id", lot.MedicationID).
		Int("initial_quantity", lot.InitialQuantity).
		Msg("lot received")

	return lot, nil
}

// ApplyMovementInput is a request to append one ledger entry.
type ApplyMovementInput struct {
	LotID          string  `json:"lot_id" validate:"required,uuid"`
	MovementType   string  `json:"movement_type" validate:"required,oneof=inflow outflow"`
	Quantity       int     `json:"quantity" validate:"required,gt=0"`
	Reason         *string `json:"reason"`
	PrescriptionID *string `json:"prescription_id"`
}

// ApplyMovement appends a movement and adjusts the owning lot in one
// transaction. Inflow has no upper bound; outflow beyond the available
// quantity is rejected with InsufficientStock, never clamped.
func (s *LedgerService) ApplyMovement(ctx context.Context, input *ApplyMovementInput) (*repository.Movement, error) {
	p := principal.MustFromContext(ctx)

	if input.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be a positive integer"})
	}
	if input.MovementType != repository.MovementInflow && input.MovementType != repository.MovementOutflow {
		return nil, errors.Validation(map[string]string{"movement_type": "must be one of: inflow, outflow"})
	}

	var movement *repository.Movement
	var medicationID string

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		lot, err := s.lotRepo.GetForUpdate(ctx, tx, input.LotID)
		if err != nil {
			return err
		}
		if !lot.IsActive {
			return errors.NotFound("lot")
		}
		medicationID = lot.MedicationID

		newQuantity := lot.CurrentQuantity
		switch input.MovementType {
		case repository.MovementInflow:
			newQuantity += input.Quantity
		case repository.MovementOutflow:
			if input.Quantity > lot.CurrentQuantity {
				return errors.InsufficientStock(lot.CurrentQuantity, input.Quantity)
			}
			newQuantity -= input.Quantity
		}

		movement = &repository.Movement{
			LotID:            lot.ID,
			MovementType:     input.MovementType,
			Quantity:         input.Quantity,
			Reason:           input.Reason,
			PrescriptionID:   input.PrescriptionID,
			PreviousQuantity: lot.CurrentQuantity,
			NewQuantity:      newQuantity,
			PerformedBy:      p.ID,
		}

		if err := s.movementRepo.Insert(ctx, tx, movement); err != nil {
			return err
		}

		return s.lotRepo.SetQuantity(ctx, tx, lot.ID, newQuantity)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishMovementApplied(ctx, movement, medicationID)

	s.logger.Info().
		Str("movement_id", movement.ID).
		Str("lot_id", movement.LotID).
		Str("movement_type", movement.MovementType).
		Int("quantity", movement.Quantity).
		Int("new_quantity", movement.NewQuantity).
		Str("performed_by", p.ID).
		Msg("movement applied")

	return movement, nil
}

// ApplyMovementTx is ApplyMovement running inside a caller-owned
// transaction. Used by dispensation so prescription status and outflows
// commit or roll back together. Events are the caller's responsibility.
func (s *LedgerService) ApplyMovementTx(ctx context.Context, tx *sqlx.Tx, input *ApplyMovementInput) (*repository.Movement, error) {
	p := principal.MustFromContext(ctx)

	lot, err := s.lotRepo.GetForUpdate(ctx, tx, input.LotID)
	if err != nil {
		return nil, err
	}
	if !lot.IsActive {
		return nil, errors.NotFound("lot")
	}

	newQuantity := lot.CurrentQuantity
	switch input.MovementType {
	case repository.MovementInflow:
		newQuantity += input.Quantity
	case repository.MovementOutflow:
		if input.Quantity > lot.CurrentQuantity {
			return nil, errors.InsufficientStock(lot.CurrentQuantity, input.Quantity)
		}
		newQuantity -= input.Quantity
	default:
		return nil, errors.Validation(map[string]string{"movement_type": "must be one of: inflow, outflow"})
	}

	movement := &repository.Movement{
		LotID:            lot.ID,
		MovementType:     input.MovementType,
		Quantity:         input.Quantity,
		Reason:           input.Reason,
		PrescriptionID:   input.PrescriptionID,
		PreviousQuantity: lot.CurrentQuantity,
		NewQuantity:      newQuantity,
		PerformedBy:      p.ID,
	}

	if err := s.movementRepo.Insert(ctx, tx, movement); err != nil {
		return nil, err
	}

	if err := s.lotRepo.SetQuantity(ctx, tx, lot.ID, newQuantity); err != nil {
		return nil, err
	}

	return movement, nil
}

// GetLot returns a lot together with its derived status.
func (s *LedgerService) GetLot(ctx context.Context, id string) (*LotWithStatus, error) {
	lot, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LotWithStatus{Lot: lot, Status: Classify(lot, time.Now())}, nil
}

// LotWithStatus pairs a lot with its classifier result.
type LotWithStatus struct {
	*repository.Lot
	Status LotStatus `json:"status"`
}

// ListLots lists active lots with derived status, optionally filtered by
// medication, storage location and status.
func (s *LedgerService) ListLots(ctx context.Context, medicationID, location string, status LotStatus) ([]*LotWithStatus, error) {
	var lots []*repository.Lot
	var err error

	if medicationID != "" {
		lots, err = s.lotRepo.ListByMedication(ctx, medicationID)
	} else {
		lots, err = s.lotRepo.ListActive(ctx, location)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := make([]*LotWithStatus, 0, len(lots))
	for _, lot := range lots {
		ls := &LotWithStatus{Lot: lot, Status: Classify(lot, now)}
		if status != "" && ls.Status != status {
			continue
		}
		result = append(result, ls)
	}
	return result, nil
}

// ListMovementsByLot lists the ledger for one lot.
func (s *LedgerService) ListMovementsByLot(ctx context.Context, lotID string) ([]*repository.Movement, error) {
	if _, err := s.lotRepo.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.movementRepo.ListByLot(ctx, lotID)
}

// ListMovementsByMedication lists movements across a medication's lots in
// a date range.
func (s *LedgerService) ListMovementsByMedication(ctx context.Context, medicationID string, from, to time.Time) ([]*repository.Movement, error) {
	if _, err := s.medicationRepo.GetByID(ctx, medicationID); err != nil {
		return nil, err
	}
	return s.movementRepo.ListByMedication(ctx, medicationID, from, to)
}
