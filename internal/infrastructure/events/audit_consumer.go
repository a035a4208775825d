package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/contracts"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

type AuditConsumer struct {
	rabbitmq *messaging.RabbitMQ
	repo     domain.ChatAuditRepository
	logger   logging.Logger
}

func NewAuditConsumer(rabbitmq *messaging.RabbitMQ, repo domain.ChatAuditRepository, logger logging.Logger) *AuditConsumer {
	return &AuditConsumer{
		rabbitmq: rabbitmq,
		repo:     repo,
		logger:   logger,
	}
}

// Listen consumes the audit queue until ctx is cancelled.
func (c *AuditConsumer) Listen(ctx context.Context) error {
	return c.rabbitmq.ConsumeMessages(ctx, messaging.AuditQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		return c.Handle(ctx, msg.Body)
	})
}

// Handle decodes one delivery body and writes it to the audit log.
func (c *AuditConsumer) Handle(ctx context.Context, body []byte) error {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(body, &message); err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to unmarshal message", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	var event domain.ChatEvent
	if err := json.Unmarshal(message.Data, &event); err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to unmarshal chat event", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return err
	}
	if event.RoomID == "" || event.Type == "" {
		return fmt.Errorf("chat event without room or type")
	}

	if err := c.repo.Log(ctx, domain.NewAuditLog(event)); err != nil {
		c.logger.Error(logging.MongoDB, logging.Consume, "failed to write audit log", map[logging.ExtraKey]any{
			logging.RoomID:       event.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	c.logger.Debug(logging.RabbitMQ, logging.Consume, "audit log written", map[logging.ExtraKey]any{
		logging.RoomID: event.RoomID,
		"EventType":    string(event.Type),
	})
	return nil
}
