package ws

// Server to client events.
const (
	PresenceSnapshot = "presence.snapshot"
	MessagesSnapshot = "messages.snapshot"
	TypingChanged    = "typing.changed"

	ErrorEvent = "error"
)

// Client to server commands.
const (
	HeartbeatCommand    = "heartbeat"
	SendMessageCommand  = "message.send"
	ShowOriginalCommand = "message.show_original"
	LeaveCommand        = "leave"
)
