package events

import (
	"context"

	"github.com/medstock/medstock-backend/internal/records/repository"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/messaging"
)

// RecordsEventPublisher publishes clinical records events
type RecordsEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewRecordsEventPublisher creates a new records event publisher
func NewRecordsEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*RecordsEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeEvents, "medstock-server", log)
	if err != nil {
		return nil, err
	}

	return &RecordsEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishAppointmentScheduled publishes an appointment scheduled event
func (p *RecordsEventPublisher) PublishAppointmentScheduled(ctx context.Context, appt *repository.Appointment) {
	if p == nil {
		return
	}

	data := messaging.AppointmentScheduledEvent{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		ScheduledAt:   appt.ScheduledAt,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAppointmentScheduled, data); err != nil {
		p.logger.Error().Err(err).Str("appointment_id", appt.ID).Msg("failed to publish appointment scheduled event")
	}
}

// PublishPrescriptionIssued publishes a prescription issued event
func (p *RecordsEventPublisher) PublishPrescriptionIssued(ctx context.Context, pr *repository.Prescription, itemCount int) {
	if p == nil {
		return
	}

	data := messaging.PrescriptionIssuedEvent{
		PrescriptionID: pr.ID,
		PatientID:      pr.PatientID,
		DoctorID:       pr.DoctorID,
		ItemCount:      itemCount,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPrescriptionIssued, data); err != nil {
		p.logger.Error().Err(err).Str("prescription_id", pr.ID).Msg("failed to publish prescription issued event")
	}
}

// PublishPrescriptionDispensed publishes a prescription dispensed event
func (p *RecordsEventPublisher) PublishPrescriptionDispensed(ctx context.Context, prescriptionID, patientID, dispensedBy string, movementIDs []string) {
	if p == nil {
		return
	}

	data := messaging.PrescriptionDispensedEvent{
		PrescriptionID: prescriptionID,
		PatientID:      patientID,
		MovementIDs:    movementIDs,
		DispensedBy:    dispensedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPrescriptionDispensed, data); err != nil {
		p.logger.Error().Err(err).Str("prescription_id", prescriptionID).Msg("failed to publish prescription dispensed event")
	}
}
