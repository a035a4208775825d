package contracts

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	ClientID string `json:"clientId,omitempty"`
	Data     []byte `json:"data"`
}

// Routing keys - using consistent event/command patterns
const (
	EventMemberJoined      = "member.joined"
	EventMemberLeft        = "member.left"
	EventMessageSent       = "message.sent"
	EventMessageTranslated = "message.translated"
	EventRoomCleared       = "room.cleared"
	EventPresenceCleared   = "presence.cleared"
)

// AuditRoutingKeys are the events persisted to the audit log.
var AuditRoutingKeys = []string{
	EventMemberJoined,
	EventMemberLeft,
	EventMessageSent,
	EventMessageTranslated,
	EventRoomCleared,
	EventPresenceCleared,
}
