// Package transport defines the storage and change-feed contract shared by
// the room state backends and picks one of them at startup.
package transport

import "github.com/hilthontt/parley/internal/domain"

const (
	NameRemote  = "remote"
	NameLocal   = "local"
	NamePolling = "polling"
)

// Backend bundles the three room state repositories behind one transport.
// A process uses exactly one backend for its whole lifetime.
type Backend interface {
	Name() string
	Presence() domain.PresenceRepository
	Messages() domain.MessageRepository
	Typing() domain.TypingRepository
	Close() error
}
