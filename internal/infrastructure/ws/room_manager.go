package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
)

var ErrRoomNotFound = errors.New("room not found")

// snapshotKinds are the event types whose latest value is replayed to
// clients that connect after it was broadcast.
var snapshotKinds = []string{PresenceSnapshot, MessagesSnapshot, TypingChanged}

type WSRoom struct {
	ID      string
	Clients map[*Client]struct{}

	latest      map[string]*WSMessage // event type -> last broadcast
	unsubscribe []domain.Unsubscribe
}

type RoomManager struct {
	rooms    map[string]*WSRoom // roomID → WSRoom
	upgrader websocket.Upgrader
	logger   logging.Logger
	metrics  *metrics.Metrics
	mu       sync.RWMutex
}

func NewRoomManager(allowedOrigins []string, logger logging.Logger, m *metrics.Metrics) *RoomManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RoomManager{
		rooms: make(map[string]*WSRoom),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:  logger,
		metrics: m,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Upgrade switches the connection to WebSocket. Cookies already set on w are
// carried on the handshake response.
func (rm *RoomManager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	var header http.Header
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header = http.Header{"Set-Cookie": cookies}
	}
	return rm.upgrader.Upgrade(w, r, header)
}

// AddClient adds cl to its room and reports whether the room was empty.
// Clients joining a live room get the cached snapshots straight away.
func (rm *RoomManager) AddClient(cl *Client) (*WSRoom, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[cl.RoomID]
	if !ok {
		room = &WSRoom{
			ID:      cl.RoomID,
			Clients: make(map[*Client]struct{}),
			latest:  make(map[string]*WSMessage),
		}
		rm.rooms[cl.RoomID] = room
	}
	room.Clients[cl] = struct{}{}

	if rm.metrics != nil {
		rm.metrics.WSConnections.Inc()
	}

	for _, kind := range snapshotKinds {
		if msg, ok := room.latest[kind]; ok {
			rm.deliver(cl, msg)
		}
	}
	return room, !ok
}

// SetSubscriptions records the feed subscriptions to cancel once room empties.
// It returns false, and cancels them itself, when room is already gone, even
// if a newer room with the same id has opened since.
func (rm *RoomManager) SetSubscriptions(room *WSRoom, unsubs []domain.Unsubscribe) bool {
	rm.mu.Lock()
	ok := rm.rooms[room.ID] == room
	if ok {
		room.unsubscribe = append(room.unsubscribe, unsubs...)
	}
	rm.mu.Unlock()

	if !ok {
		for _, u := range unsubs {
			u()
		}
	}
	return ok
}

// RemoveClient drops cl and tears the room down when it was the last client.
func (rm *RoomManager) RemoveClient(cl *Client) {
	rm.mu.Lock()

	var unsubs []domain.Unsubscribe
	if room, ok := rm.rooms[cl.RoomID]; ok {
		if _, ok := room.Clients[cl]; ok {
			delete(room.Clients, cl)
			cl.close()
			if rm.metrics != nil {
				rm.metrics.WSConnections.Dec()
			}

			if len(room.Clients) == 0 {
				unsubs = room.unsubscribe
				delete(rm.rooms, cl.RoomID)
			}
		}
	}
	rm.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func (rm *RoomManager) GetRoom(roomID string) (*WSRoom, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	r, ok := rm.rooms[roomID]
	return r, ok
}

// ClientCount returns the number of connected clients in roomID.
func (rm *RoomManager) ClientCount(roomID string) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if r, ok := rm.rooms[roomID]; ok {
		return len(r.Clients)
	}
	return 0
}

// HasClient reports whether any connection in roomID belongs to clientID.
func (rm *RoomManager) HasClient(roomID, clientID string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if r, ok := rm.rooms[roomID]; ok {
		for cl := range r.Clients {
			if cl.ID == clientID {
				return true
			}
		}
	}
	return false
}

func (rm *RoomManager) BroadcastToRoom(msg *WSMessage) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[msg.RoomID]
	if !ok {
		return ErrRoomNotFound
	}

	room.latest[msg.Type] = msg
	for cl := range room.Clients {
		rm.deliver(cl, msg)
	}
	return nil
}

// Close tears down every room.
func (rm *RoomManager) Close() {
	rm.mu.Lock()
	rooms := rm.rooms
	rm.rooms = make(map[string]*WSRoom)
	rm.mu.Unlock()

	for _, room := range rooms {
		for _, u := range room.unsubscribe {
			u()
		}
		for cl := range room.Clients {
			cl.close()
		}
	}
}

func (rm *RoomManager) deliver(cl *Client, msg *WSMessage) {
	if cl.send(msg) {
		return
	}
	// Client is too slow – drop the message; the next snapshot carries the full state.
	rm.logger.Warn(logging.WebSocket, logging.Subscription, "client buffer full, dropping message", map[logging.ExtraKey]any{
		logging.ClientID: cl.ID,
		logging.RoomID:   cl.RoomID,
	})
	if rm.metrics != nil {
		rm.metrics.WSDropped.Inc()
	}
}
