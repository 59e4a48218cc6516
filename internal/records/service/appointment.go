package service

import (
	"context"
	"time"

	identityrepo "github.com/medstock/medstock-backend/internal/identity/repository"
	"github.com/medstock/medstock-backend/internal/records/events"
	"github.com/medstock/medstock-backend/internal/records/repository"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/permissions"
	"github.com/medstock/medstock-backend/pkg/principal"
)

// AgendaDays is the span of the weekly agenda view
const AgendaDays = 7

// validTransitions holds the allowed appointment status transitions.
// Completed, cancelled and no_show are terminal.
var validTransitions = map[string][]string{
	repository.AppointmentScheduled: {
		repository.AppointmentCompleted,
		repository.AppointmentCancelled,
		repository.AppointmentNoShow,
	},
}

// AppointmentService handles appointment scheduling
type AppointmentService struct {
	repo        *repository.AppointmentRepository
	patientRepo *repository.PatientRepository
	userRepo    *identityrepo.UserRepository
	publisher   *events.RecordsEventPublisher
	logger      *logger.Logger
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(
	repo *repository.AppointmentRepository,
	patientRepo *repository.PatientRepository,
	userRepo *identityrepo.UserRepository,
	publisher *events.RecordsEventPublisher,
	log *logger.Logger,
) *AppointmentService {
	return &AppointmentService{
		repo:        repo,
		patientRepo: patientRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		logger:      log,
	}
}

// ScheduleInput is the input for scheduling an appointment
type ScheduleInput struct {
	PatientID   string   `json:"patient_id" validate:"required,uuid"`
	DoctorID    string   `json:"doctor_id" validate:"required,uuid"`
	ScheduledAt string   `json:"scheduled_at" validate:"required"`
	VisitType   *string  `json:"visit_type"`
	Reason      *string  `json:"reason"`
	Notes       *string  `json:"notes"`
	Fee         *float64 `json:"fee" validate:"omitempty,gte=0"`
}

// Schedule books a new appointment. The doctor must be an active user
// holding the doctor role.
func (s *AppointmentService) Schedule(ctx context.Context, input *ScheduleInput) (*repository.Appointment, error) {
	scheduledAt, err := time.Parse(time.RFC3339, input.ScheduledAt)
	if err != nil {
		return nil, errors.BadRequest("scheduled_at must be an RFC 3339 timestamp")
	}
	if scheduledAt.Before(time.Now()) {
		return nil, errors.BadRequest("scheduled_at cannot be in the past")
	}

	if _, err := s.patientRepo.GetByID(ctx, input.PatientID); err != nil {
		return nil, err
	}

	doctor, err := s.userRepo.GetByID(ctx, input.DoctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != permissions.RoleDoctor || !doctor.IsActive {
		return nil, errors.BadRequest("doctor_id must reference an active doctor")
	}

	appt := &repository.Appointment{
		PatientID:   input.PatientID,
		DoctorID:    input.DoctorID,
		ScheduledAt: scheduledAt,
		VisitType:   input.VisitType,
		Reason:      input.Reason,
		Notes:       input.Notes,
		Fee:         input.Fee,
		Status:      repository.AppointmentScheduled,
	}
	if p := principal.FromContext(ctx); p != nil && !p.IsSystem() {
		appt.CreatedBy = &p.ID
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}

	s.publisher.PublishAppointmentScheduled(ctx, appt)
	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("patient_id", appt.PatientID).
		Str("doctor_id", appt.DoctorID).
		Time("scheduled_at", appt.ScheduledAt).
		Msg("appointment scheduled")

	return appt, nil
}

// GetAppointment gets an appointment by ID
func (s *AppointmentService) GetAppointment(ctx context.Context, id string) (*repository.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Agenda returns the appointments of the next AgendaDays days starting at
// the given day.
func (s *AppointmentService) Agenda(ctx context.Context, from time.Time) ([]*repository.AppointmentDetail, error) {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	return s.repo.ListByRange(ctx, day, day.AddDate(0, 0, AgendaDays))
}

// ListByPatient lists a patient's appointment history
func (s *AppointmentService) ListByPatient(ctx context.Context, patientID string) ([]*repository.AppointmentDetail, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// ListByDoctor lists a doctor's appointments within a range
func (s *AppointmentService) ListByDoctor(ctx context.Context, doctorID string, from, to time.Time) ([]*repository.AppointmentDetail, error) {
	return s.repo.ListByDoctor(ctx, doctorID, from, to)
}

// UpdateInput is the input for updating an appointment
type UpdateInput struct {
	ScheduledAt string   `json:"scheduled_at" validate:"required"`
	VisitType   *string  `json:"visit_type"`
	Reason      *string  `json:"reason"`
	Diagnosis   *string  `json:"diagnosis"`
	Notes       *string  `json:"notes"`
	Fee         *float64 `json:"fee" validate:"omitempty,gte=0"`
}

// Update updates a scheduled appointment. Terminal appointments cannot be
// edited.
func (s *AppointmentService) Update(ctx context.Context, id string, input *UpdateInput) (*repository.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != repository.AppointmentScheduled {
		return nil, errors.Conflict("only scheduled appointments can be edited")
	}

	scheduledAt, err := time.Parse(time.RFC3339, input.ScheduledAt)
	if err != nil {
		return nil, errors.BadRequest("scheduled_at must be an RFC 3339 timestamp")
	}

	appt.ScheduledAt = scheduledAt
	appt.VisitType = input.VisitType
	appt.Reason = input.Reason
	appt.Diagnosis = input.Diagnosis
	appt.Notes = input.Notes
	appt.Fee = input.Fee

	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}

	return appt, nil
}

// Transition moves an appointment to a new status
func (s *AppointmentService) Transition(ctx context.Context, id, status string) error {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	allowed := false
	for _, next := range validTransitions[appt.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Conflict("cannot transition appointment from " + appt.Status + " to " + status)
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	s.logger.Info().
		Str("appointment_id", id).
		Str("from", appt.Status).
		Str("to", status).
		Msg("appointment status changed")

	return nil
}
