package ws

import (
	"net/http/httptest"
	"testing"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id, roomID string, buffer int) *Client {
	return &Client{
		Message: make(chan *WSMessage, buffer),
		ID:      id,
		RoomID:  roomID,
	}
}

func TestBroadcastToMissingRoom(t *testing.T) {
	rm := NewRoomManager(nil, nil, nil)
	err := rm.BroadcastToRoom(NewTypingChanged("nope", nil))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSlowClientDropsMessages(t *testing.T) {
	m := metrics.New()
	rm := NewRoomManager(nil, nil, m)
	cl := newTestClient("a", "r1", 1)
	_, first := rm.AddClient(cl)
	require.True(t, first)

	require.NoError(t, rm.BroadcastToRoom(NewTypingChanged("r1", nil)))
	require.NoError(t, rm.BroadcastToRoom(NewTypingChanged("r1", nil)))

	assert.Len(t, cl.Message, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WSDropped))
}

func TestRemoveLastClientRunsUnsubscribe(t *testing.T) {
	rm := NewRoomManager(nil, nil, nil)
	a := newTestClient("a", "r1", 4)
	b := newTestClient("b", "r1", 4)
	room, first := rm.AddClient(a)
	assert.True(t, first)
	_, first = rm.AddClient(b)
	assert.False(t, first)

	calls := 0
	require.True(t, rm.SetSubscriptions(room, []domain.Unsubscribe{func() { calls++ }}))

	rm.RemoveClient(a)
	assert.Equal(t, 0, calls)
	rm.RemoveClient(b)
	assert.Equal(t, 1, calls)

	_, ok := rm.GetRoom("r1")
	assert.False(t, ok)

	// The channel is closed exactly once even if removal repeats.
	rm.RemoveClient(b)
	_, open := <-b.Message
	assert.False(t, open)
}

func TestSetSubscriptionsOnGoneRoomCancelsThem(t *testing.T) {
	rm := NewRoomManager(nil, nil, nil)
	a := newTestClient("a", "r1", 4)
	room, _ := rm.AddClient(a)
	rm.RemoveClient(a)

	calls := 0
	assert.False(t, rm.SetSubscriptions(room, []domain.Unsubscribe{func() { calls++ }}))
	assert.Equal(t, 1, calls)
}

func TestSetSubscriptionsIgnoresReopenedRoom(t *testing.T) {
	rm := NewRoomManager(nil, nil, nil)
	a := newTestClient("a", "r1", 4)
	old, _ := rm.AddClient(a)
	rm.RemoveClient(a)

	b := newTestClient("b", "r1", 4)
	current, first := rm.AddClient(b)
	require.True(t, first)

	stale := 0
	assert.False(t, rm.SetSubscriptions(old, []domain.Unsubscribe{func() { stale++ }}))
	assert.Equal(t, 1, stale)

	fresh := 0
	require.True(t, rm.SetSubscriptions(current, []domain.Unsubscribe{func() { fresh++ }}))
	rm.RemoveClient(b)
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, stale)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://chat.example.com"})

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://chat.example.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}
