package local

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
)

type typingRepository struct {
	rooms    map[string]domain.TypingIndicator
	freshFor time.Duration
	now      func() time.Time
	hub      *feed.Hub[*domain.TypingIndicator]
	mu       sync.RWMutex
}

// current must be called with mu held.
func (r *typingRepository) current(roomID string) *domain.TypingIndicator {
	ind, ok := r.rooms[roomID]
	if !ok || !ind.Active(r.now(), r.freshFor) {
		return nil
	}
	return &ind
}

func (r *typingRepository) Set(ctx context.Context, roomID string, sender domain.Role, isTyping bool) error {
	if roomID == "" || !sender.IsParticipant() {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[roomID] = domain.TypingIndicator{
		Sender:    sender,
		IsTyping:  isTyping,
		Timestamp: r.now(),
	}
	r.hub.Publish(roomID, r.current(roomID))
	return nil
}

func (r *typingRepository) Get(ctx context.Context, roomID string) (*domain.TypingIndicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current(roomID), nil
}

func (r *typingRepository) Subscribe(ctx context.Context, roomID string, fn func(*domain.TypingIndicator)) (domain.Unsubscribe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hub.Subscribe(roomID, r.current(roomID), fn), nil
}
