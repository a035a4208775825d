package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ChatEventType string

const (
	EventMemberJoined      ChatEventType = "member_joined"
	EventMemberLeft        ChatEventType = "member_left"
	EventMessageSent       ChatEventType = "message_sent"
	EventMessageTranslated ChatEventType = "message_translated"
	EventRoomCleared       ChatEventType = "room_cleared"
	EventPresenceCleared   ChatEventType = "presence_cleared"
)

type ChatAuditLog struct {
	ID        string         `bson:"_id" json:"id"`
	RoomID    string         `bson:"room_id" json:"roomId"`
	EventType ChatEventType  `bson:"event_type" json:"eventType"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type ChatAuditRepository interface {
	Log(ctx context.Context, log *ChatAuditLog) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]ChatAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

// ChatEvent is what the application layer emits when room state changes.
type ChatEvent struct {
	Type      ChatEventType  `json:"type"`
	RoomID    string         `json:"roomId"`
	ClientID  string         `json:"clientId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventPublisher delivers chat events to an external bus. Implementations
// must not block the caller for long; failures are reported, not retried.
type EventPublisher interface {
	Publish(ctx context.Context, event ChatEvent) error
}

func NewChatEvent(eventType ChatEventType, roomID, clientID string, metadata map[string]any) ChatEvent {
	return ChatEvent{
		Type:      eventType,
		RoomID:    roomID,
		ClientID:  clientID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

func NewAuditLog(event ChatEvent) *ChatAuditLog {
	metadata := map[string]any{}
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	if event.ClientID != "" {
		metadata["client_id"] = event.ClientID
	}

	return &ChatAuditLog{
		ID:        uuid.NewString(),
		RoomID:    event.RoomID,
		EventType: event.Type,
		Timestamp: event.Timestamp,
		Metadata:  metadata,
	}
}
