package polling

import (
	"context"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
	"gorm.io/gorm/clause"
)

type presenceRepository struct {
	b          *Backend
	staleAfter time.Duration
	hub        *feed.Hub[[]domain.PresenceRecord]
}

func (r *presenceRepository) Update(ctx context.Context, roomID string, record domain.PresenceRecord) error {
	if roomID == "" || record.ClientID == "" {
		return domain.ErrInvalidInput
	}

	row := presenceRow{
		RoomID:   roomID,
		ClientID: record.ClientID,
		Name:     record.Name,
		Role:     string(record.Role),
		Language: record.Language,
		LastSeen: r.b.now(),
	}
	err := r.b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "language", "last_seen"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	r.b.refresh(ctx, roomID, refreshPresence(r))
	return nil
}

func (r *presenceRepository) Remove(ctx context.Context, roomID, clientID string) error {
	res := r.b.db.WithContext(ctx).
		Where("room_id = ? AND client_id = ?", roomID, clientID).
		Delete(&presenceRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		r.b.refresh(ctx, roomID, refreshPresence(r))
	}
	return nil
}

func (r *presenceRepository) List(ctx context.Context, roomID string) ([]domain.PresenceRecord, error) {
	var rows []presenceRow
	err := r.b.db.WithContext(ctx).
		Where("room_id = ? AND last_seen >= ?", roomID, r.b.now().Add(-r.staleAfter)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.PresenceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	domain.SortPresence(records)
	return records, nil
}

func (r *presenceRepository) Subscribe(ctx context.Context, roomID string, fn func([]domain.PresenceRecord)) (domain.Unsubscribe, error) {
	return subscribe(r.b, "presence", r.hub, roomID, func() ([]domain.PresenceRecord, error) {
		return r.List(ctx, roomID)
	}, fn)
}

func (r *presenceRepository) RemoveStale(ctx context.Context, olderThan time.Duration) (int, error) {
	before := r.b.now().Add(-olderThan)

	var rooms []string
	err := r.b.db.WithContext(ctx).Model(&presenceRow{}).
		Where("last_seen < ?", before).
		Distinct("room_id").Pluck("room_id", &rooms).Error
	if err != nil {
		return 0, err
	}
	if len(rooms) == 0 {
		return 0, nil
	}

	res := r.b.db.WithContext(ctx).Where("last_seen < ?", before).Delete(&presenceRow{})
	if res.Error != nil {
		return 0, res.Error
	}

	for _, roomID := range rooms {
		r.b.refresh(ctx, roomID, refreshPresence(r))
	}
	return int(res.RowsAffected), nil
}

func (r *presenceRepository) Clear(ctx context.Context, roomID string) error {
	if err := r.b.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&presenceRow{}).Error; err != nil {
		return err
	}
	r.b.refresh(ctx, roomID, refreshPresence(r))
	return nil
}
