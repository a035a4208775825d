package polling

import (
	"context"
	"errors"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

	row := typingRow{
		RoomID:    roomID,
		Sender:    string(sender),
		IsTyping:  isTyping,
		Timestamp: r.b.now(),
	}
	err := r.b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sender", "is_typing", "timestamp"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	r.b.refresh(ctx, roomID, refreshTyping(r))
	return nil
}

func (r *typingRepository) Get(ctx context.Context, roomID string) (*domain.TypingIndicator, error) {
	var row typingRow
	err := r.b.db.WithContext(ctx).Where("room_id = ?", roomID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ind := &domain.TypingIndicator{
		Sender:    domain.Role(row.Sender),
		IsTyping:  row.IsTyping,
		Timestamp: row.Timestamp,
	}
	if !ind.Active(r.b.now(), r.freshFor) {
		return nil, nil
	}
	return ind, nil
}

func (r *typingRepository) Subscribe(ctx context.Context, roomID string, fn func(*domain.TypingIndicator)) (domain.Unsubscribe, error) {
	return subscribe(r.b, "typing", r.hub, roomID, func() (*domain.TypingIndicator, error) {
		return r.Get(ctx, roomID)
	}, fn)
}
