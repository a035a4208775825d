package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
	commandTimeout = 10 * time.Second
)

var ErrUnknownCommand = errors.New("unknown command")

type Client struct {
	conn    *connWrapper
	Message chan *WSMessage
	ID      string `json:"id"`
	RoomID  string `json:"roomId"`

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, id, roomID string) *Client {
	return &Client{
		conn:    newConnWrapper(conn),
		Message: make(chan *WSMessage, 64), // buffered to avoid dead-locks on slow clients
		ID:      id,
		RoomID:  roomID,
	}
}

// send queues msg without blocking. It reports false when the client is
// gone or its buffer is full.
func (c *Client) send(msg *WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Message <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Message)
	}
}

func (c *Client) ReadMessage(core *Core) {
	defer func() {
		select {
		case core.Unregister() <- c:
		case <-core.Done():
		}
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				core.logger.Warn(logging.WebSocket, logging.Subscription, "ws read error", map[logging.ExtraKey]any{
					logging.ClientID:     c.ID,
					logging.RoomID:       c.RoomID,
					logging.ErrorMessage: err.Error(),
				})
			}
			break
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.send(NewError(c.RoomID, "INVALID_COMMAND", "Malformed command"))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err = core.handler.HandleCommand(ctx, c, cmd)
		cancel()

		if err != nil {
			core.logger.Debug(logging.WebSocket, logging.Send, "ws command rejected", map[logging.ExtraKey]any{
				logging.ClientID:     c.ID,
				logging.RoomID:       c.RoomID,
				logging.ErrorMessage: fmt.Sprintf("%s: %v", cmd.Type, err),
			})
			c.send(NewCommandError(c.RoomID, err))
		}
	}
}

func (c *Client) WriteMessage() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Message:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WritePing(); err != nil {
				return
			}
		}
	}
}
