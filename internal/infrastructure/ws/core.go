package ws

import (
	"context"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
)

const subscribeTimeout = 10 * time.Second

// Feeds are the room state change feeds the hub relays to browsers.
type Feeds interface {
	SubscribePresence(ctx context.Context, roomID string, fn func([]domain.PresenceRecord)) (domain.Unsubscribe, error)
	SubscribeMessages(ctx context.Context, roomID string, fn func([]domain.ChatMessage)) (domain.Unsubscribe, error)
	SubscribeTyping(ctx context.Context, roomID string, fn func(*domain.TypingIndicator)) (domain.Unsubscribe, error)
}

// CommandHandler executes inbound commands on behalf of a client.
type CommandHandler interface {
	HandleCommand(ctx context.Context, client *Client, cmd Command) error
	// Disconnected runs after a client's connection is gone.
	Disconnected(ctx context.Context, client *Client)
}

type Core struct {
	roomMgr    *RoomManager
	feeds      Feeds
	handler    CommandHandler
	logger     logging.Logger
	register   chan *Client
	unregister chan *Client
	broadcast  chan *WSMessage
	done       chan struct{}
}

func NewCore(roomMgr *RoomManager, feeds Feeds, handler CommandHandler, logger logging.Logger) *Core {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Core{
		roomMgr:    roomMgr,
		feeds:      feeds,
		handler:    handler,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *WSMessage, 256),
		done:       make(chan struct{}),
	}
}

func (c *Core) Run(ctx context.Context) {
	defer func() {
		close(c.done)
		c.roomMgr.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case cl := <-c.register:
			// Subscribing may wait on the store; other rooms keep flowing meanwhile.
			if room, first := c.roomMgr.AddClient(cl); first {
				go c.subscribe(room)
			}

		case cl := <-c.unregister:
			c.roomMgr.RemoveClient(cl)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
				defer cancel()
				c.handler.Disconnected(ctx, cl)
			}()

		case msg := <-c.broadcast:
			if err := c.roomMgr.BroadcastToRoom(msg); err != nil {
				c.logger.Debug(logging.WebSocket, logging.Subscription, "broadcast to empty room dropped", map[logging.ExtraKey]any{
					logging.RoomID: msg.RoomID,
				})
			}
		}
	}
}

// subscribe attaches the room to the three change feeds. Each feed delivers
// its current snapshot first, which reaches the client that opened the room.
func (c *Core) subscribe(room *WSRoom) {
	roomID := room.ID
	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	var unsubs []domain.Unsubscribe
	fail := func(feed string, err error) {
		c.logger.Error(logging.WebSocket, logging.Subscription, "failed to subscribe to room feed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			"Feed":               feed,
			logging.ErrorMessage: err.Error(),
		})
	}

	if u, err := c.feeds.SubscribePresence(ctx, roomID, func(members []domain.PresenceRecord) {
		c.publish(NewPresenceSnapshot(roomID, members))
	}); err != nil {
		fail("presence", err)
	} else {
		unsubs = append(unsubs, u)
	}

	if u, err := c.feeds.SubscribeMessages(ctx, roomID, func(msgs []domain.ChatMessage) {
		c.publish(NewMessagesSnapshot(roomID, msgs))
	}); err != nil {
		fail("messages", err)
	} else {
		unsubs = append(unsubs, u)
	}

	if u, err := c.feeds.SubscribeTyping(ctx, roomID, func(ind *domain.TypingIndicator) {
		c.publish(NewTypingChanged(roomID, ind))
	}); err != nil {
		fail("typing", err)
	} else {
		unsubs = append(unsubs, u)
	}

	c.roomMgr.SetSubscriptions(room, unsubs)
}

func (c *Core) publish(msg *WSMessage) {
	select {
	case c.broadcast <- msg:
	case <-c.done:
	}
}

func (c *Core) Register() chan<- *Client {
	return c.register
}

// Done is closed once Run has returned.
func (c *Core) Done() <-chan struct{} {
	return c.done
}

func (c *Core) Unregister() chan<- *Client {
	return c.unregister
}

func (c *Core) Broadcast() chan<- *WSMessage {
	return c.broadcast
}
