package local

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
)

type presenceRepository struct {
	rooms      map[string]map[string]domain.PresenceRecord // roomID -> clientID -> record
	staleAfter time.Duration
	now        func() time.Time
	hub        *feed.Hub[[]domain.PresenceRecord]
	mu         sync.RWMutex
}

// snapshot must be called with mu held.
func (r *presenceRepository) snapshot(roomID string) []domain.PresenceRecord {
	now := r.now()
	records := make([]domain.PresenceRecord, 0, len(r.rooms[roomID]))
	for _, rec := range r.rooms[roomID] {
		if rec.Fresh(now, r.staleAfter) {
			records = append(records, rec)
		}
	}
	domain.SortPresence(records)
	return records
}

func (r *presenceRepository) Update(ctx context.Context, roomID string, record domain.PresenceRecord) error {
	if roomID == "" || record.ClientID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[string]domain.PresenceRecord)
		r.rooms[roomID] = room
	}
	record.LastSeen = r.now()
	room[record.ClientID] = record

	r.hub.Publish(roomID, r.snapshot(roomID))
	return nil
}

func (r *presenceRepository) Remove(ctx context.Context, roomID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	if _, ok := room[clientID]; !ok {
		return nil
	}
	delete(room, clientID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}

	r.hub.Publish(roomID, r.snapshot(roomID))
	return nil
}

func (r *presenceRepository) List(ctx context.Context, roomID string) ([]domain.PresenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(roomID), nil
}

func (r *presenceRepository) Subscribe(ctx context.Context, roomID string, fn func([]domain.PresenceRecord)) (domain.Unsubscribe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hub.Subscribe(roomID, r.snapshot(roomID), fn), nil
}

func (r *presenceRepository) RemoveStale(ctx context.Context, olderThan time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.now().Add(-olderThan)

	removed := 0
	for roomID, room := range r.rooms {
		changed := false
		for clientID, rec := range room {
			if rec.LastSeen.Before(before) {
				delete(room, clientID)
				removed++
				changed = true
			}
		}
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
		if changed {
			r.hub.Publish(roomID, r.snapshot(roomID))
		}
	}
	return removed, nil
}

func (r *presenceRepository) Clear(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomID)
	r.hub.Publish(roomID, []domain.PresenceRecord{})
	return nil
}
