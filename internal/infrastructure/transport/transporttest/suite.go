// Package transporttest holds the behaviour every transport backend must share.
package transporttest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Backends under test must be configured with these windows.
const (
	StaleAfter     = 2 * time.Minute
	TypingFreshFor = 10 * time.Second
)

type Backend interface {
	Presence() domain.PresenceRepository
	Messages() domain.MessageRepository
	Typing() domain.TypingRepository
}

// Harness is a freshly created backend plus control over the clock it stamps
// records with. Advance accepts negative durations.
type Harness struct {
	Backend Backend
	Advance func(d time.Duration)
}

const eventually = 2 * time.Second

func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Run("presence upsert keeps one record per client", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Presence()

		require.NoError(t, repo.Update(ctx, "room", record("b", "Bob", domain.RoleParticipantB)))
		require.NoError(t, repo.Update(ctx, "room", record("a", "Ann", domain.RoleParticipantA)))
		require.NoError(t, repo.Update(ctx, "room", record("a", "Anna", domain.RoleParticipantA)))

		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ClientID)
		assert.Equal(t, "Anna", got[0].Name)
		assert.Equal(t, domain.RoleParticipantB, got[1].Role)
		assert.False(t, got[0].LastSeen.IsZero())
	})

	t.Run("presence is scoped by room", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Presence()

		require.NoError(t, repo.Update(ctx, "one", record("a", "Ann", domain.RoleParticipantA)))

		got, err := repo.List(ctx, "two")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("stale presence is hidden and swept", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Presence()

		require.NoError(t, repo.Update(ctx, "room", record("old", "Old", domain.RoleParticipantA)))
		h.Advance(StaleAfter + time.Second)
		require.NoError(t, repo.Update(ctx, "room", record("new", "New", domain.RoleParticipantB)))

		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new", got[0].ClientID)

		removed, err := repo.RemoveStale(ctx, StaleAfter)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		removed, err = repo.RemoveStale(ctx, StaleAfter)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("sweep keeps records written just now", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Presence()

		require.NoError(t, repo.Update(ctx, "room", record("a", "Ann", domain.RoleParticipantA)))
		h.Advance(StaleAfter - time.Second)

		removed, err := repo.RemoveStale(ctx, StaleAfter)
		require.NoError(t, err)
		assert.Zero(t, removed)

		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, domain.RoleParticipantA, got[0].Role)
	})

	t.Run("presence remove and clear", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Presence()

		require.NoError(t, repo.Update(ctx, "room", record("a", "Ann", domain.RoleParticipantA)))
		require.NoError(t, repo.Update(ctx, "room", record("b", "Bob", domain.RoleParticipantB)))

		require.NoError(t, repo.Remove(ctx, "room", "a"))
		require.NoError(t, repo.Remove(ctx, "room", "missing"))
		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ClientID)

		require.NoError(t, repo.Clear(ctx, "room"))
		got, err = repo.List(ctx, "room")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("presence subscription sees snapshot then changes", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Presence()

		require.NoError(t, repo.Update(ctx, "room", record("a", "Ann", domain.RoleParticipantA)))

		var latest latestValue[[]domain.PresenceRecord]
		unsub, err := repo.Subscribe(ctx, "room", latest.set)
		require.NoError(t, err)
		defer unsub()

		require.Eventually(t, func() bool {
			v, ok := latest.get()
			return ok && len(v) == 1
		}, eventually, 10*time.Millisecond)

		require.NoError(t, repo.Update(ctx, "room", record("b", "Bob", domain.RoleParticipantB)))
		require.Eventually(t, func() bool {
			v, _ := latest.get()
			return len(v) == 2
		}, eventually, 10*time.Millisecond)

		require.NoError(t, repo.Remove(ctx, "room", "a"))
		require.Eventually(t, func() bool {
			v, _ := latest.get()
			return len(v) == 1 && v[0].ClientID == "b"
		}, eventually, 10*time.Millisecond)
	})

	t.Run("messages are ordered by creation", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Messages()

		first, err := repo.Add(ctx, "room", newMessage("hello", domain.RoleParticipantA))
		require.NoError(t, err)
		h.Advance(time.Millisecond)
		second, err := repo.Add(ctx, "room", newMessage("hola", domain.RoleParticipantB))
		require.NoError(t, err)

		assert.NotEmpty(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.False(t, second.CreatedAt.Before(first.CreatedAt))

		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, second.ID, got[1].ID)
		assert.Equal(t, "hello", got[0].Text)
		assert.Nil(t, got[0].TranslatedText)
	})

	t.Run("listing orders by creation time not insertion", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Messages()

		late, err := repo.Add(ctx, "room", newMessage("late", domain.RoleParticipantA))
		require.NoError(t, err)
		h.Advance(-time.Minute)
		early, err := repo.Add(ctx, "room", newMessage("early", domain.RoleParticipantB))
		require.NoError(t, err)
		h.Advance(30 * time.Second)
		middle, err := repo.Add(ctx, "room", newMessage("middle", domain.RoleParticipantA))
		require.NoError(t, err)

		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{early.ID, middle.ID, late.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("equal creation times fall back to id order", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Messages()

		ids := make([]string, 0, 4)
		for _, text := range []string{"one", "two", "three", "four"} {
			msg, err := repo.Add(ctx, "room", newMessage(text, domain.RoleParticipantA))
			require.NoError(t, err)
			ids = append(ids, msg.ID)
		}
		sort.Strings(ids)

		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		require.Len(t, got, 4)
		for i, msg := range got {
			assert.True(t, msg.CreatedAt.Equal(got[0].CreatedAt))
			assert.Equal(t, ids[i], msg.ID)
		}
	})

	t.Run("spectators cannot add messages", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.Backend.Messages().Add(context.Background(), "room", newMessage("hi", domain.RoleSpectator))
		assert.ErrorIs(t, err, domain.ErrReadOnly)
	})

	t.Run("message patch merges and translation is write once", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Messages()

		msg := newMessage("hello", domain.RoleParticipantA)
		msg.IsTranslating = true
		stored, err := repo.Add(ctx, "room", msg)
		require.NoError(t, err)

		first, second, no, yes := "hola", "bonjour", false, true
		require.NoError(t, repo.Update(ctx, "room", stored.ID, domain.MessagePatch{
			TranslatedText: &first,
			IsTranslating:  &no,
		}))
		require.NoError(t, repo.Update(ctx, "room", stored.ID, domain.MessagePatch{
			TranslatedText: &second,
			ShowOriginal:   &yes,
		}))

		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].TranslatedText)
		assert.Equal(t, "hola", *got[0].TranslatedText)
		assert.False(t, got[0].IsTranslating)
		assert.True(t, got[0].ShowOriginal)
		assert.Equal(t, "hello", got[0].Text)
	})

	t.Run("unknown message update", func(t *testing.T) {
		h := newHarness(t)
		yes := true
		err := h.Backend.Messages().Update(context.Background(), "room", "missing", domain.MessagePatch{ShowOriginal: &yes})
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})

	t.Run("messages clear and subscription", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Messages()

		var latest latestValue[[]domain.ChatMessage]
		unsub, err := repo.Subscribe(ctx, "room", latest.set)
		require.NoError(t, err)
		defer unsub()

		require.Eventually(t, func() bool {
			v, ok := latest.get()
			return ok && len(v) == 0
		}, eventually, 10*time.Millisecond)

		_, err = repo.Add(ctx, "room", newMessage("hello", domain.RoleParticipantA))
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			v, _ := latest.get()
			return len(v) == 1
		}, eventually, 10*time.Millisecond)

		require.NoError(t, repo.Clear(ctx, "room"))
		require.Eventually(t, func() bool {
			v, _ := latest.get()
			return len(v) == 0
		}, eventually, 10*time.Millisecond)

		got, err := repo.List(ctx, "room")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("typing freshness and last writer wins", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Typing()

		got, err := repo.Get(ctx, "room")
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, repo.Set(ctx, "room", domain.RoleParticipantA, true))
		require.NoError(t, repo.Set(ctx, "room", domain.RoleParticipantB, true))
		got, err = repo.Get(ctx, "room")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.RoleParticipantB, got.Sender)

		h.Advance(TypingFreshFor + time.Second)
		got, err = repo.Get(ctx, "room")
		require.NoError(t, err)
		assert.Nil(t, got, "indicator older than the freshness window is hidden")

		require.NoError(t, repo.Set(ctx, "room", domain.RoleParticipantA, true))
		require.NoError(t, repo.Set(ctx, "room", domain.RoleParticipantA, false))
		got, err = repo.Get(ctx, "room")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("typing subscription", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		repo := h.Backend.Typing()

		var latest latestValue[*domain.TypingIndicator]
		unsub, err := repo.Subscribe(ctx, "room", latest.set)
		require.NoError(t, err)
		defer unsub()

		require.NoError(t, repo.Set(ctx, "room", domain.RoleParticipantB, true))
		require.Eventually(t, func() bool {
			v, _ := latest.get()
			return v != nil && v.IsTyping && v.Sender == domain.RoleParticipantB
		}, eventually, 10*time.Millisecond)

		require.NoError(t, repo.Set(ctx, "room", domain.RoleParticipantB, false))
		require.Eventually(t, func() bool {
			v, ok := latest.get()
			return ok && v == nil
		}, eventually, 10*time.Millisecond)
	})
}

func record(clientID, name string, role domain.Role) domain.PresenceRecord {
	return domain.PresenceRecord{ClientID: clientID, Name: name, Role: role, Language: "en"}
}

func newMessage(text string, sender domain.Role) domain.NewMessage {
	return domain.NewMessage{Text: text, Sender: sender, SenderName: string(sender)}
}

type latestValue[T any] struct {
	mu sync.Mutex
	v  T
	ok bool
}

func (l *latestValue[T]) set(v T) {
	l.mu.Lock()
	l.v, l.ok = v, true
	l.mu.Unlock()
}

func (l *latestValue[T]) get() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v, l.ok
}
