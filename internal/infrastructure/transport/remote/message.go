package remote

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

type messageRepository struct {
	b   *Backend
	hub *feed.Hub[[]domain.ChatMessage]
}

func (r *messageRepository) Add(ctx context.Context, roomID string, msg domain.NewMessage) (*domain.ChatMessage, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	now, err := r.b.now(ctx)
	if err != nil {
		return nil, err
	}
	stored := msg.Build(roomID, now)

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if err := r.b.client.HSet(ctx, r.b.keys.messages(roomID), stored.ID, data).Err(); err != nil {
		return nil, err
	}

	r.b.notify(ctx, kindMessages, roomID)
	return stored, nil
}

// Update applies the patch inside WATCH/MULTI so a concurrent writer cannot
// overwrite a translation that has already been stored.
func (r *messageRepository) Update(ctx context.Context, roomID, id string, patch domain.MessagePatch) error {
	key := r.b.keys.messages(roomID)
	changed := false

	txf := func(tx *redis.Tx) error {
		changed = false

		data, err := tx.HGet(ctx, key, id).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrMessageNotFound
		}
		if err != nil {
			return err
		}

		var msg domain.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}

		now, err := r.b.now(ctx)
		if err != nil {
			return err
		}
		if !msg.Apply(patch, now) {
			return nil
		}

		updated, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, updated)
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.b.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		if changed {
			r.b.notify(ctx, kindMessages, roomID)
		}
		return nil
	}
	return redis.TxFailedErr
}

func (r *messageRepository) List(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	raw, err := r.b.client.HGetAll(ctx, r.b.keys.messages(roomID)).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.ChatMessage, 0, len(raw))
	for _, v := range raw {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

func (r *messageRepository) Subscribe(ctx context.Context, roomID string, fn func([]domain.ChatMessage)) (domain.Unsubscribe, error) {
	return subscribe(r.b, r.hub, roomID, func() ([]domain.ChatMessage, error) {
		return r.List(ctx, roomID)
	}, fn)
}

func (r *messageRepository) Clear(ctx context.Context, roomID string) error {
	if err := r.b.client.Del(ctx, r.b.keys.messages(roomID)).Err(); err != nil {
		return err
	}
	r.b.notify(ctx, kindMessages, roomID)
	return nil
}
