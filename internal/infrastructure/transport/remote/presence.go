package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
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

	now, err := r.b.now(ctx)
	if err != nil {
		return err
	}
	record.LastSeen = now

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	key := r.b.keys.presence(roomID)
	pipe := r.b.client.TxPipeline()
	pipe.HSet(ctx, key, record.ClientID, data)
	// An abandoned room disappears on its own once nobody refreshes it.
	pipe.Expire(ctx, key, 2*r.staleAfter)
	pipe.SAdd(ctx, r.b.keys.presenceRooms(), roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	r.b.notify(ctx, kindPresence, roomID)
	return nil
}

func (r *presenceRepository) Remove(ctx context.Context, roomID, clientID string) error {
	n, err := r.b.client.HDel(ctx, r.b.keys.presence(roomID), clientID).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		r.b.notify(ctx, kindPresence, roomID)
	}
	return nil
}

func (r *presenceRepository) all(ctx context.Context, roomID string) ([]domain.PresenceRecord, error) {
	raw, err := r.b.client.HGetAll(ctx, r.b.keys.presence(roomID)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]domain.PresenceRecord, 0, len(raw))
	for _, v := range raw {
		var rec domain.PresenceRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *presenceRepository) List(ctx context.Context, roomID string) ([]domain.PresenceRecord, error) {
	records, err := r.all(ctx, roomID)
	if err != nil {
		return nil, err
	}
	now, err := r.b.now(ctx)
	if err != nil {
		return nil, err
	}

	fresh := records[:0]
	for _, rec := range records {
		if rec.Fresh(now, r.staleAfter) {
			fresh = append(fresh, rec)
		}
	}
	domain.SortPresence(fresh)
	return fresh, nil
}

func (r *presenceRepository) Subscribe(ctx context.Context, roomID string, fn func([]domain.PresenceRecord)) (domain.Unsubscribe, error) {
	return subscribe(r.b, r.hub, roomID, func() ([]domain.PresenceRecord, error) {
		return r.List(ctx, roomID)
	}, fn)
}

// RemoveStale measures age against the Redis clock, which is the clock Update
// stamps LastSeen with.
func (r *presenceRepository) RemoveStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now, err := r.b.now(ctx)
	if err != nil {
		return 0, err
	}
	before := now.Add(-olderThan)

	rooms, err := r.b.client.SMembers(ctx, r.b.keys.presenceRooms()).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, roomID := range rooms {
		records, err := r.all(ctx, roomID)
		if err != nil {
			return removed, err
		}

		var stale []string
		for _, rec := range records {
			if rec.LastSeen.Before(before) {
				stale = append(stale, rec.ClientID)
			}
		}

		if len(stale) > 0 {
			n, err := r.b.client.HDel(ctx, r.b.keys.presence(roomID), stale...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
			r.b.notify(ctx, kindPresence, roomID)
		}

		if len(records) == len(stale) {
			if err := r.b.client.SRem(ctx, r.b.keys.presenceRooms(), roomID).Err(); err != nil {
				return removed, err
			}
		}
	}
	return removed, nil
}

func (r *presenceRepository) Clear(ctx context.Context, roomID string) error {
	pipe := r.b.client.TxPipeline()
	pipe.Del(ctx, r.b.keys.presence(roomID))
	pipe.SRem(ctx, r.b.keys.presenceRooms(), roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	r.b.notify(ctx, kindPresence, roomID)
	return nil
}
