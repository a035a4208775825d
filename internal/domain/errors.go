package domain

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotJoined       = errors.New("client has not joined the room")
	ErrReadOnly        = errors.New("spectators cannot send messages")
	ErrSendFailed      = errors.New("message failed to send")
	ErrInvalidRole     = errors.New("invalid role")
)
