package ws

import (
	"encoding/json"
	"errors"

	"github.com/hilthontt/parley/internal/domain"
)

type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data"`
}

// Command is an inbound frame. Data is decoded by the handler for Type.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Payload structs
type PresencePayload struct {
	Members []domain.PresenceRecord `json:"members"`
}

type MessagesPayload struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type TypingPayload struct {
	Typing *domain.TypingIndicator `json:"typing"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

type HeartbeatPayload struct {
	Name     *string `json:"name,omitempty"`
	Language *string `json:"language,omitempty"`
}

type SendMessagePayload struct {
	Text string `json:"text"`
}

type ShowOriginalPayload struct {
	MessageID    string `json:"messageId"`
	ShowOriginal bool   `json:"showOriginal"`
}

func NewPresenceSnapshot(roomID string, members []domain.PresenceRecord) *WSMessage {
	if members == nil {
		members = []domain.PresenceRecord{}
	}
	return &WSMessage{
		Type:   PresenceSnapshot,
		RoomID: roomID,
		Data:   PresencePayload{Members: members},
	}
}

func NewMessagesSnapshot(roomID string, msgs []domain.ChatMessage) *WSMessage {
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return &WSMessage{
		Type:   MessagesSnapshot,
		RoomID: roomID,
		Data:   MessagesPayload{Messages: msgs},
	}
}

func NewTypingChanged(roomID string, ind *domain.TypingIndicator) *WSMessage {
	return &WSMessage{
		Type:   TypingChanged,
		RoomID: roomID,
		Data:   TypingPayload{Typing: ind},
	}
}

func NewError(roomID, code, message string) *WSMessage {
	return &WSMessage{
		Type:   ErrorEvent,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// NewCommandError maps a failed command to an error event the page can act on.
func NewCommandError(roomID string, err error) *WSMessage {
	switch {
	case errors.Is(err, domain.ErrReadOnly):
		return NewError(roomID, "READ_ONLY", "Spectators cannot send messages")
	case errors.Is(err, domain.ErrNotJoined):
		return NewError(roomID, "NOT_JOINED", "Join the room first")
	case errors.Is(err, domain.ErrSendFailed):
		msg := NewError(roomID, "SEND_FAILED", "Message failed to send")
		payload := msg.Data.(ErrorPayload)
		payload.Retry = true
		msg.Data = payload
		return msg
	case errors.Is(err, ErrUnknownCommand):
		return NewError(roomID, "UNKNOWN_COMMAND", err.Error())
	default:
		return NewError(roomID, "INVALID_COMMAND", err.Error())
	}
}
