package polling

import (
	"context"
	"errors"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

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

	stored := msg.Build(roomID, r.b.now())
	row := newMessageRow(stored)
	if err := r.b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	r.b.refresh(ctx, roomID, refreshMessages(r))
	return stored, nil
}

func (r *messageRepository) Update(ctx context.Context, roomID, id string, patch domain.MessagePatch) error {
	changed := false

	err := r.b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row messageRow
		q := tx.Where("room_id = ? AND id = ?", roomID, id)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrMessageNotFound
			}
			return err
		}

		msg := row.toDomain()
		if !msg.Apply(patch, r.b.now()) {
			return nil
		}
		changed = true

		return tx.Model(&messageRow{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"translated_text": msg.TranslatedText,
				"show_original":   msg.ShowOriginal,
				"is_translating":  msg.IsTranslating,
				"updated_at":      msg.UpdatedAt,
			}).Error
	})
	if err != nil {
		return err
	}

	if changed {
		r.b.refresh(ctx, roomID, refreshMessages(r))
	}
	return nil
}

func (r *messageRepository) List(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	var rows []messageRow
	err := r.b.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.ChatMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toDomain())
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

func (r *messageRepository) Subscribe(ctx context.Context, roomID string, fn func([]domain.ChatMessage)) (domain.Unsubscribe, error) {
	return subscribe(r.b, "messages", r.hub, roomID, func() ([]domain.ChatMessage, error) {
		return r.List(ctx, roomID)
	}, fn)
}

func (r *messageRepository) Clear(ctx context.Context, roomID string) error {
	if err := r.b.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&messageRow{}).Error; err != nil {
		return err
	}
	r.b.refresh(ctx, roomID, refreshMessages(r))
	return nil
}
