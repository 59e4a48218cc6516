package events

import (
	"context"

	"github.com/medstock/medstock-backend/internal/identity/repository"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/messaging"
)

// IdentityEventPublisher publishes identity-related events
type IdentityEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewIdentityEventPublisher creates a new identity event publisher
func NewIdentityEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*IdentityEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeEvents, "medstock-server", log)
	if err != nil {
		return nil, err
	}

	return &IdentityEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishUserCreated publishes a user created event
func (p *IdentityEventPublisher) PublishUserCreated(ctx context.Context, user *repository.User) {
	if p == nil {
		return
	}

	data := messaging.UserCreatedEvent{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
	if user.CreatedBy != nil {
		data.CreatedBy = *user.CreatedBy
	}

	if err := p.publisher.Publish(ctx, messaging.EventUserCreated, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to publish user created event")
	}
}
