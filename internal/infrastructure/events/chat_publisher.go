package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/contracts"
)

// MessagePublisher is the part of messaging.RabbitMQ the publisher needs.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, msg contracts.AmqpMessage) error
}

type ChatPublisher struct {
	rabbitmq MessagePublisher
}

func NewChatPublisher(rabbitmq MessagePublisher) *ChatPublisher {
	return &ChatPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *ChatPublisher) Publish(ctx context.Context, event domain.ChatEvent) error {
	key, err := RoutingKey(event.Type)
	if err != nil {
		return err
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, key, contracts.AmqpMessage{
		ClientID: event.ClientID,
		Data:     eventJSON,
	})
}

// RoutingKey maps an event type to the AMQP routing key it is published under.
func RoutingKey(t domain.ChatEventType) (string, error) {
	switch t {
	case domain.EventMemberJoined:
		return contracts.EventMemberJoined, nil
	case domain.EventMemberLeft:
		return contracts.EventMemberLeft, nil
	case domain.EventMessageSent:
		return contracts.EventMessageSent, nil
	case domain.EventMessageTranslated:
		return contracts.EventMessageTranslated, nil
	case domain.EventRoomCleared:
		return contracts.EventRoomCleared, nil
	case domain.EventPresenceCleared:
		return contracts.EventPresenceCleared, nil
	default:
		return "", fmt.Errorf("unknown chat event type %q", t)
	}
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.ChatEvent) error { return nil }
