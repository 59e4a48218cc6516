package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/medstock/medstock-backend/internal/records/events"
	"github.com/medstock/medstock-backend/internal/records/repository"
	stockrepo "github.com/medstock/medstock-backend/internal/stock/repository"
	stockservice "github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/database"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/principal"
)

// PrescriptionService handles prescriptions and their dispensation
type PrescriptionService struct {
	db          *database.DB
	repo        *repository.PrescriptionRepository
	patientRepo *repository.PatientRepository
	lotRepo     *stockrepo.LotRepository
	ledger      *stockservice.LedgerService
	publisher   *events.RecordsEventPublisher
	logger      *logger.Logger
}

// NewPrescriptionService creates a new prescription service
func NewPrescriptionService(
	db *database.DB,
	repo *repository.PrescriptionRepository,
	patientRepo *repository.PatientRepository,
	lotRepo *stockrepo.LotRepository,
	ledger *stockservice.LedgerService,
	publisher *events.RecordsEventPublisher,
	log *logger.Logger,
) *PrescriptionService {
	return &PrescriptionService{
		db:          db,
		repo:        repo,
		patientRepo: patientRepo,
		lotRepo:     lotRepo,
		ledger:      ledger,
		publisher:   publisher,
		logger:      log,
	}
}

// PrescriptionItemInput is one medication line on a new prescription
type PrescriptionItemInput struct {
	MedicationID string  `json:"medication_id" validate:"required,uuid"`
	Dosage       string  `json:"dosage" validate:"required"`
	Quantity     int     `json:"quantity" validate:"required,gt=0"`
	Frequency    string  `json:"frequency" validate:"required"`
	Duration     *string `json:"duration"`
	Instructions *string `json:"instructions"`
}

// IssueInput is the input for issuing a prescription
type IssueInput struct {
	AppointmentID *string                  `json:"appointment_id" validate:"omitempty,uuid"`
	PatientID     string                   `json:"patient_id" validate:"required,uuid"`
	Notes         *string                  `json:"notes"`
	Items         []*PrescriptionItemInput `json:"items" validate:"required,min=1,dive"`
}

// Issue creates a prescription with its items. The caller becomes the
// prescribing doctor.
func (s *PrescriptionService) Issue(ctx context.Context, input *IssueInput) (*repository.PrescriptionDetail, error) {
	p := principal.MustFromContext(ctx)

	if _, err := s.patientRepo.GetByID(ctx, input.PatientID); err != nil {
		return nil, err
	}

	prescription := &repository.Prescription{
		AppointmentID: input.AppointmentID,
		PatientID:     input.PatientID,
		DoctorID:      p.ID,
		Notes:         input.Notes,
		Status:        repository.PrescriptionActive,
	}

	items := make([]*repository.PrescriptionItem, 0, len(input.Items))
	for _, in := range input.Items {
		items = append(items, &repository.PrescriptionItem{
			MedicationID: in.MedicationID,
			Dosage:       in.Dosage,
			Quantity:     in.Quantity,
			Frequency:    in.Frequency,
			Duration:     in.Duration,
			Instructions: in.Instructions,
		})
	}

	if err := s.repo.Create(ctx, prescription, items); err != nil {
		return nil, err
	}

	s.publisher.PublishPrescriptionIssued(ctx, prescription, len(items))
	s.logger.Info().
		Str("prescription_id", prescription.ID).
		Str("patient_id", prescription.PatientID).
		Int("items", len(items)).
		Msg("prescription issued")

	return s.repo.GetByID(ctx, prescription.ID)
}

// GetPrescription gets a prescription with its items
func (s *PrescriptionService) GetPrescription(ctx context.Context, id string) (*repository.PrescriptionDetail, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPatient lists a patient's prescriptions
func (s *PrescriptionService) ListByPatient(ctx context.Context, patientID string) ([]*repository.PrescriptionDetail, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// ListPending lists active prescriptions waiting to be dispensed
func (s *PrescriptionService) ListPending(ctx context.Context) ([]*repository.PrescriptionDetail, error) {
	return s.repo.ListByStatus(ctx, repository.PrescriptionActive)
}

// Cancel cancels an active prescription
func (s *PrescriptionService) Cancel(ctx context.Context, id string) error {
	prescription, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if prescription.Status != repository.PrescriptionActive {
		return errors.Conflict("only active prescriptions can be cancelled")
	}

	return s.repo.UpdateStatus(ctx, id, repository.PrescriptionCancelled)
}

// Dispense fulfils an active prescription. Every item is drawn from the
// lots expiring first, and the outflows plus the status change commit in
// one transaction. If any item cannot be covered by current stock the
// whole dispensation rolls back.
func (s *PrescriptionService) Dispense(ctx context.Context, id string) (*repository.PrescriptionDetail, error) {
	p := principal.MustFromContext(ctx)

	var patientID string
	var movementIDs []string

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		prescription, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if prescription.Status != repository.PrescriptionActive {
			return errors.Conflict("prescription is " + prescription.Status)
		}
		patientID = prescription.PatientID

		items, err := s.repo.GetItems(ctx, id)
		if err != nil {
			return err
		}

		reason := "prescription dispensation"
		for _, item := range items {
			// The listing fixes the FEFO order; quantities are only trusted
			// once each lot row is locked.
			lots, err := s.lotRepo.ListByMedication(ctx, item.MedicationID)
			if err != nil {
				return err
			}

			remaining := item.Quantity
			available := 0
			for _, lot := range lots {
				if remaining == 0 {
					break
				}

				locked, err := s.lotRepo.GetForUpdate(ctx, tx, lot.ID)
				if err != nil {
					return err
				}
				available += locked.CurrentQuantity
				if locked.CurrentQuantity == 0 {
					continue
				}

				take := remaining
				if take > locked.CurrentQuantity {
					take = locked.CurrentQuantity
				}

				movement, err := s.ledger.ApplyMovementTx(ctx, tx, &stockservice.ApplyMovementInput{
					LotID:          lot.ID,
					MovementType:   stockrepo.MovementOutflow,
					Quantity:       take,
					Reason:         &reason,
					PrescriptionID: &id,
				})
				if err != nil {
					return err
				}

				movementIDs = append(movementIDs, movement.ID)
				remaining -= take
			}

			if remaining > 0 {
				// available holds the locked quantities actually seen, so the
				// error reports real stock even when lots shrank after listing.
				return errors.InsufficientStock(available, item.Quantity)
			}
		}

		return s.repo.UpdateStatusTx(ctx, tx, id, repository.PrescriptionDispensed)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishPrescriptionDispensed(ctx, id, patientID, p.ID, movementIDs)
	s.logger.Info().
		Str("prescription_id", id).
		Str("dispensed_by", p.ID).
		Int("movements", len(movementIDs)).
		Msg("prescription dispensed")

	return s.repo.GetByID(ctx, id)
}
