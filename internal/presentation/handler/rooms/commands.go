package rooms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/parley/internal/application/chat"
	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
)

// Commands executes WebSocket commands against the chat service.
type Commands struct {
	service            *chat.Service
	roomManager        *ws.RoomManager
	logger             logging.Logger
	removeOnDisconnect bool
}

func NewCommands(service *chat.Service, roomManager *ws.RoomManager, logger logging.Logger, removeOnDisconnect bool) *Commands {
	return &Commands{
		service:            service,
		roomManager:        roomManager,
		logger:             logger,
		removeOnDisconnect: removeOnDisconnect,
	}
}

// HandleCommand runs a WebSocket command for client.
func (h *Commands) HandleCommand(ctx context.Context, client *ws.Client, cmd ws.Command) error {
	switch cmd.Type {
	case ws.HeartbeatCommand:
		var p ws.HeartbeatPayload
		if err := decode(cmd, &p); err != nil {
			return err
		}
		_, err := h.service.Heartbeat(ctx, client.RoomID, client.ID, chat.ProfileUpdate{
			Name:     p.Name,
			Language: p.Language,
		})
		return err

	case ws.SendMessageCommand:
		var p ws.SendMessagePayload
		if err := decode(cmd, &p); err != nil {
			return err
		}
		_, err := h.service.Send(ctx, client.RoomID, client.ID, p.Text)
		return err

	case ws.ShowOriginalCommand:
		var p ws.ShowOriginalPayload
		if err := decode(cmd, &p); err != nil {
			return err
		}
		if p.MessageID == "" {
			return fmt.Errorf("%w: messageId is required", domain.ErrInvalidInput)
		}
		return h.service.ToggleOriginal(ctx, client.RoomID, p.MessageID, p.ShowOriginal)

	case ws.LeaveCommand:
		return h.service.Leave(ctx, client.RoomID, client.ID)

	default:
		return fmt.Errorf("%w: %q", ws.ErrUnknownCommand, cmd.Type)
	}
}

// Disconnected drops the presence record of a client whose last connection
// closed. Staleness filtering still covers clients that never reconnect.
func (h *Commands) Disconnected(ctx context.Context, client *ws.Client) {
	if !h.removeOnDisconnect || h.roomManager.HasClient(client.RoomID, client.ID) {
		return
	}
	if err := h.service.Leave(ctx, client.RoomID, client.ID); err != nil {
		h.logger.Debug(logging.WebSocket, logging.Leave, "presence removal on disconnect failed", map[logging.ExtraKey]any{
			logging.RoomID:       client.RoomID,
			logging.ClientID:     client.ID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

func decode(cmd ws.Command, dst any) error {
	if len(cmd.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.Data, dst); err != nil {
		return fmt.Errorf("%w: malformed %s payload", domain.ErrInvalidInput, cmd.Type)
	}
	return nil
}
