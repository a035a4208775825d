package local

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
)

type messageRepository struct {
	rooms map[string][]domain.ChatMessage // roomID -> messages in insertion order
	now   func() time.Time
	hub   *feed.Hub[[]domain.ChatMessage]
	mu    sync.RWMutex
}

// snapshot must be called with mu held.
func (r *messageRepository) snapshot(roomID string) []domain.ChatMessage {
	msgs := make([]domain.ChatMessage, len(r.rooms[roomID]))
	copy(msgs, r.rooms[roomID])
	domain.SortMessages(msgs)
	return msgs
}

func (r *messageRepository) Add(ctx context.Context, roomID string, msg domain.NewMessage) (*domain.ChatMessage, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := msg.Build(roomID, r.now())
	r.rooms[roomID] = append(r.rooms[roomID], *stored)

	r.hub.Publish(roomID, r.snapshot(roomID))
	return stored, nil
}

func (r *messageRepository) Update(ctx context.Context, roomID, id string, patch domain.MessagePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.rooms[roomID]
	for i := range msgs {
		if msgs[i].ID != id {
			continue
		}
		if msgs[i].Apply(patch, r.now()) {
			r.hub.Publish(roomID, r.snapshot(roomID))
		}
		return nil
	}
	return domain.ErrMessageNotFound
}

func (r *messageRepository) List(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(roomID), nil
}

func (r *messageRepository) Subscribe(ctx context.Context, roomID string, fn func([]domain.ChatMessage)) (domain.Unsubscribe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hub.Subscribe(roomID, r.snapshot(roomID), fn), nil
}

func (r *messageRepository) Clear(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomID)
	r.hub.Publish(roomID, []domain.ChatMessage{})
	return nil
}
