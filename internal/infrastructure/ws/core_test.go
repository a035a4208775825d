package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeeds struct {
	presence *feed.Hub[[]domain.PresenceRecord]
	messages *feed.Hub[[]domain.ChatMessage]
	typing   *feed.Hub[*domain.TypingIndicator]

	mu         sync.Mutex
	subscribed map[string]int
	gates      map[string]chan struct{}
}

func newFakeFeeds() *fakeFeeds {
	return &fakeFeeds{
		presence:   feed.NewHub[[]domain.PresenceRecord](),
		messages:   feed.NewHub[[]domain.ChatMessage](),
		typing:     feed.NewHub[*domain.TypingIndicator](),
		subscribed: make(map[string]int),
		gates:      make(map[string]chan struct{}),
	}
}

// hold makes presence subscriptions for roomID wait until the returned
// function is called.
func (f *fakeFeeds) hold(roomID string) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[roomID] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeFeeds) count(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[roomID]++
}

func (f *fakeFeeds) subscriptions(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[roomID]
}

func (f *fakeFeeds) SubscribePresence(ctx context.Context, roomID string, fn func([]domain.PresenceRecord)) (domain.Unsubscribe, error) {
	f.mu.Lock()
	gate := f.gates[roomID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.count(roomID)
	return f.presence.Subscribe(roomID, []domain.PresenceRecord{}, fn), nil
}

func (f *fakeFeeds) SubscribeMessages(_ context.Context, roomID string, fn func([]domain.ChatMessage)) (domain.Unsubscribe, error) {
	return f.messages.Subscribe(roomID, []domain.ChatMessage{}, fn), nil
}

func (f *fakeFeeds) SubscribeTyping(_ context.Context, roomID string, fn func(*domain.TypingIndicator)) (domain.Unsubscribe, error) {
	return f.typing.Subscribe(roomID, nil, fn), nil
}

type recordingHandler struct {
	mu           sync.Mutex
	commands     []Command
	disconnected []string
	err          error
}

func (h *recordingHandler) HandleCommand(_ context.Context, _ *Client, cmd Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
	return h.err
}

func (h *recordingHandler) Disconnected(_ context.Context, cl *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, cl.ID)
}

func (h *recordingHandler) commandTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.commands))
	for _, c := range h.commands {
		out = append(out, c.Type)
	}
	return out
}

func (h *recordingHandler) disconnectedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.disconnected...)
}

type hubFixture struct {
	feeds   *fakeFeeds
	handler *recordingHandler
	core    *Core
	rm      *RoomManager
	metrics *metrics.Metrics
	server  *httptest.Server
	stop    context.CancelFunc
	readers sync.WaitGroup
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	f := &hubFixture{
		feeds:   newFakeFeeds(),
		handler: &recordingHandler{},
		metrics: metrics.New(),
	}
	f.rm = NewRoomManager([]string{"*"}, nil, f.metrics)
	f.core = NewCore(f.rm, f.feeds, f.handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	f.stop = cancel
	go f.core.Run(ctx)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.rm.Upgrade(w, r)
		if err != nil {
			return
		}
		cl := NewClient(conn, r.URL.Query().Get("client"), r.URL.Query().Get("room"))
		select {
		case f.core.Register() <- cl:
		case <-f.core.Done():
			_ = conn.Close()
			return
		}
		go cl.WriteMessage()
		f.readers.Add(1)
		go func() {
			defer f.readers.Done()
			cl.ReadMessage(f.core)
		}()
	}))

	t.Cleanup(func() {
		f.server.Close()
		cancel()
	})
	return f
}

func (f *hubFixture) dial(t *testing.T, roomID, clientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?room=" + roomID + "&client=" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}

// readUntil reads frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string, match func(frame) bool) frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", want)
		if f.Type == want && (match == nil || match(f)) {
			return f
		}
	}
}

func TestCoreDeliversInitialSnapshots(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "r1", "c1")

	// The three feeds deliver independently, so order is not fixed.
	got := map[string]frame{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(got) < 3 {
		var fr frame
		require.NoError(t, conn.ReadJSON(&fr))
		got[fr.Type] = fr
	}

	assert.Equal(t, "r1", got[PresenceSnapshot].RoomID)
	assert.JSONEq(t, `{"members":[]}`, string(got[PresenceSnapshot].Data))
	assert.JSONEq(t, `{"messages":[]}`, string(got[MessagesSnapshot].Data))
	assert.JSONEq(t, `{"typing":null}`, string(got[TypingChanged].Data))
}

func TestCoreBroadcastsFeedChangesToRoom(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "r1", "a")
	readUntil(t, a, PresenceSnapshot, nil)

	b := f.dial(t, "r1", "b")
	other := f.dial(t, "r2", "c")
	readUntil(t, b, PresenceSnapshot, nil)
	readUntil(t, other, PresenceSnapshot, nil)

	f.feeds.messages.Publish("r1", []domain.ChatMessage{{ID: "m1", RoomID: "r1", Text: "hola"}})

	hasMessage := func(fr frame) bool { return strings.Contains(string(fr.Data), `"m1"`) }
	readUntil(t, a, MessagesSnapshot, hasMessage)
	readUntil(t, b, MessagesSnapshot, hasMessage)

	// One feed subscription per room regardless of how many clients it has.
	assert.Equal(t, 1, f.feeds.subscriptions("r1"))
	assert.Equal(t, 1, f.feeds.subscriptions("r2"))
}

func TestLateJoinerReceivesCachedSnapshot(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "r1", "a")
	readUntil(t, a, PresenceSnapshot, nil)

	f.feeds.presence.Publish("r1", []domain.PresenceRecord{{ClientID: "a", Name: "Ana"}})
	readUntil(t, a, PresenceSnapshot, func(fr frame) bool { return strings.Contains(string(fr.Data), "Ana") })

	b := f.dial(t, "r1", "b")
	readUntil(t, b, PresenceSnapshot, func(fr frame) bool { return strings.Contains(string(fr.Data), "Ana") })
}

func TestCommandsReachHandler(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "r1", "a")
	readUntil(t, conn, PresenceSnapshot, nil)

	require.NoError(t, conn.WriteJSON(Command{Type: SendMessageCommand, Data: json.RawMessage(`{"text":"hi"}`)}))
	require.NoError(t, conn.WriteJSON(Command{Type: HeartbeatCommand}))

	assert.Eventually(t, func() bool {
		types := f.handler.commandTypes()
		return len(types) == 2 && types[0] == SendMessageCommand && types[1] == HeartbeatCommand
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFailedCommandsReturnErrorEvent(t *testing.T) {
	f := newHubFixture(t)
	f.handler.err = domain.ErrReadOnly
	conn := f.dial(t, "r1", "spectator")
	readUntil(t, conn, PresenceSnapshot, nil)

	require.NoError(t, conn.WriteJSON(Command{Type: SendMessageCommand, Data: json.RawMessage(`{"text":"hi"}`)}))
	e := readUntil(t, conn, ErrorEvent, nil)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(e.Data, &payload))
	assert.Equal(t, "READ_ONLY", payload.Code)
}

func TestMalformedCommandIsRejected(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "r1", "a")
	readUntil(t, conn, PresenceSnapshot, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	e := readUntil(t, conn, ErrorEvent, nil)
	assert.Contains(t, string(e.Data), "INVALID_COMMAND")
	assert.Empty(t, f.handler.commandTypes())
}

func TestDisconnectTearsDownRoom(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "r1", "a")
	readUntil(t, conn, PresenceSnapshot, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.WSConnections))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		ids := f.handler.disconnectedIDs()
		return len(ids) == 1 && ids[0] == "a"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.rm.ClientCount("r1"))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.WSConnections))
	assert.False(t, f.feeds.presence.HasSubscribers("r1"))
}

func TestSlowRoomSubscriptionDoesNotStallOtherRooms(t *testing.T) {
	f := newHubFixture(t)
	release := f.feeds.hold("slow")
	defer release()

	slow := f.dial(t, "slow", "a")
	fast := f.dial(t, "fast", "b")
	readUntil(t, fast, PresenceSnapshot, nil)

	release()
	readUntil(t, slow, PresenceSnapshot, nil)
	assert.Equal(t, 1, f.feeds.subscriptions("slow"))
}

func TestReadersExitAfterCoreStops(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "r1", "a")
	readUntil(t, conn, PresenceSnapshot, nil)

	f.stop()
	<-f.core.Done()
	require.NoError(t, conn.Close())

	exited := make(chan struct{})
	go func() {
		f.readers.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("connection reader still blocked after the hub stopped")
	}
}

func TestNewCommandErrorCodes(t *testing.T) {
	tests := []struct {
		err   error
		code  string
		retry bool
	}{
		{domain.ErrReadOnly, "READ_ONLY", false},
		{domain.ErrNotJoined, "NOT_JOINED", false},
		{domain.ErrSendFailed, "SEND_FAILED", true},
		{ErrUnknownCommand, "UNKNOWN_COMMAND", false},
		{domain.ErrInvalidInput, "INVALID_COMMAND", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			msg := NewCommandError("r1", tt.err)
			payload, ok := msg.Data.(ErrorPayload)
			require.True(t, ok)
			assert.Equal(t, ErrorEvent, msg.Type)
			assert.Equal(t, tt.code, payload.Code)
			assert.Equal(t, tt.retry, payload.Retry)
		})
	}
}
