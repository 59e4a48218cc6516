package events

import (
	"context"

	"github.com/medstock/medstock-backend/internal/stock/repository"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/messaging"
)

// StockEventPublisher publishes stock-related events
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeEvents, "medstock-server", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishLotReceived publishes a lot received event
func (p *StockEventPublisher) PublishLotReceived(ctx context.Context, lot *repository.Lot) {
	if p == nil {
		return
	}

	data := messaging.LotReceivedEvent{
		LotID:           lot.ID,
		MedicationID:    lot.MedicationID,
		LotNumber:       lot.LotNumber,
		InitialQuantity: lot.InitialQuantity,
		ExpiryDate:      lot.ExpiryDate,
		ReceivedBy:      lot.ReceivedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotReceived, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot received event")
	}
}

// PublishMovementApplied publishes a movement applied event
func (p *StockEventPublisher) PublishMovementApplied(ctx context.Context, m *repository.Movement, medicationID string) {
	if p == nil {
		return
	}

	data := messaging.MovementAppliedEvent{
		MovementID:       m.ID,
		LotID:            m.LotID,
		MedicationID:     medicationID,
		MovementType:     m.MovementType,
		Quantity:         m.Quantity,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		PrescriptionID:   m.PrescriptionID,
		PerformedBy:      m.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementApplied, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", m.ID).Msg("failed to publish movement applied event")
	}
}

// PublishAlertRaised publishes a stock alert event
func (p *StockEventPublisher) PublishAlertRaised(ctx context.Context, alertType, severity, message, medicationID, lotID string) {
	if p == nil {
		return
	}

	data := messaging.AlertRaisedEvent{
		AlertType:    alertType,
		Severity:     severity,
		Message:      message,
		MedicationID: medicationID,
		LotID:        lotID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertRaised, data); err != nil {
		p.logger.Error().Err(err).Str("medication_id", medicationID).Msg("failed to publish alert event")
	}
}
