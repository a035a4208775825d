// Package local keeps room state in process memory and pushes every change to
// in-process subscribers. It serves a single instance; nothing is shared with
// other processes and nothing survives a restart.
package local

import (
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
)

type Options struct {
	StaleAfter     time.Duration
	TypingFreshFor time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

type Backend struct {
	presence *presenceRepository
	messages *messageRepository
	typing   *typingRepository
}

func New(opts Options) *Backend {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.TypingFreshFor <= 0 {
		opts.TypingFreshFor = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Backend{
		presence: &presenceRepository{
			rooms:      make(map[string]map[string]domain.PresenceRecord),
			staleAfter: opts.StaleAfter,
			now:        opts.Now,
			hub:        feed.NewHub[[]domain.PresenceRecord](),
		},
		messages: &messageRepository{
			rooms: make(map[string][]domain.ChatMessage),
			now:   opts.Now,
			hub:   feed.NewHub[[]domain.ChatMessage](),
		},
		typing: &typingRepository{
			rooms:    make(map[string]domain.TypingIndicator),
			freshFor: opts.TypingFreshFor,
			now:      opts.Now,
			hub:      feed.NewHub[*domain.TypingIndicator](),
		},
	}
}

func (b *Backend) Name() string { return "local" }

func (b *Backend) Presence() domain.PresenceRepository { return b.presence }

func (b *Backend) Messages() domain.MessageRepository { return b.messages }

func (b *Backend) Typing() domain.TypingRepository { return b.typing }

func (b *Backend) Close() error {
	b.presence.hub.Close()
	b.messages.hub.Close()
	b.typing.hub.Close()
	return nil
}
