package remote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
	"github.com/redis/go-redis/v9"
)

type typingRepository struct {
	b        *Backend
	freshFor time.Duration
	hub      *feed.Hub[*domain.TypingIndicator]
}

func (r *typingRepository) Set(ctx context.Context, roomID string, sender domain.Role, isTyping bool) error {
	if roomID == "" || !sender.IsParticipant() {
		return domain.ErrInvalidInput
	}

	now, err := r.b.now(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(domain.TypingIndicator{Sender: sender, IsTyping: isTyping, Timestamp: now})
	if err != nil {
		return err
	}

	if err := r.b.client.Set(ctx, r.b.keys.typing(roomID), data, 2*r.freshFor).Err(); err != nil {
		return err
	}

	r.b.notify(ctx, kindTyping, roomID)
	return nil
}

func (r *typingRepository) Get(ctx context.Context, roomID string) (*domain.TypingIndicator, error) {
	data, err := r.b.client.Get(ctx, r.b.keys.typing(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ind domain.TypingIndicator
	if err := json.Unmarshal(data, &ind); err != nil {
		return nil, err
	}

	now, err := r.b.now(ctx)
	if err != nil {
		return nil, err
	}
	if !ind.Active(now, r.freshFor) {
		return nil, nil
	}
	return &ind, nil
}

func (r *typingRepository) Subscribe(ctx context.Context, roomID string, fn func(*domain.TypingIndicator)) (domain.Unsubscribe, error) {
	return subscribe(r.b, r.hub, roomID, func() (*domain.TypingIndicator, error) {
		return r.Get(ctx, roomID)
	}, fn)
}
