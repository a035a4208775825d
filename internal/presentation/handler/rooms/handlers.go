package rooms

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/parley/internal/application/chat"
	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/json"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
	"github.com/hilthontt/parley/internal/presentation/utils"
)

type Handler struct {
	service            *chat.Service
	roomManager        *ws.RoomManager
	core               *ws.Core
	logger             logging.Logger
	persistentIdentity bool
}

func NewHandler(
	service *chat.Service,
	roomManager *ws.RoomManager,
	core *ws.Core,
	logger logging.Logger,
	persistentIdentity bool,
) *Handler {
	return &Handler{
		service:            service,
		roomManager:        roomManager,
		core:               core,
		logger:             logger,
		persistentIdentity: persistentIdentity,
	}
}

// JoinRoomHandler godoc
// @Summary      Join a room
// @Description  Registers the caller in the room and assigns a role. The first two distinct clients become participants, later ones spectators. Rejoining keeps the role.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Param        request body joinRequest true "Display name and language"
// @Success      200 {object} joinResponse
// @Failure      400 {object} map[string]interface{} "Validation error"
// @Failure      500 {object} map[string]interface{} "Internal server error"
// @Router       /rooms/{roomId}/join [post]
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	var req joinRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	clientID := utils.GetOrCreateClientID(w, r, h.persistentIdentity)

	member, err := h.service.Join(r.Context(), roomID, clientID, req.Name, req.Language)
	if err != nil {
		h.writeServiceError(w, roomID, err)
		return
	}

	json.Write(w, http.StatusOK, joinResponse{
		ClientID: clientID,
		Member:   *member,
		Members:  h.service.Presence(r.Context(), roomID),
	})
}

// HeartbeatHandler godoc
// @Summary      Refresh presence
// @Description  Keeps the caller's presence record fresh and optionally changes name or language. An expired record is rejoined when a name is supplied.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Param        request body heartbeatRequest false "Profile changes"
// @Success      200 {object} memberResponse
// @Failure      400 {object} map[string]interface{} "Validation error"
// @Failure      404 {object} map[string]interface{} "Caller is not in the room"
// @Router       /rooms/{roomId}/heartbeat [post]
func (h *Handler) HeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	var req heartbeatRequest
	if r.ContentLength != 0 {
		if err := json.Read(r, &req); err != nil {
			json.WriteValidationError(w, err)
			return
		}
	}

	clientID := utils.GetClientIDFromRequest(r)
	if clientID == "" {
		json.WriteError(w, http.StatusNotFound, domain.ErrNotJoined, "Join the room first")
		return
	}

	member, err := h.service.Heartbeat(r.Context(), roomID, clientID, chat.ProfileUpdate{
		Name:     req.Name,
		Language: req.Language,
	})
	if err != nil {
		h.writeServiceError(w, roomID, err)
		return
	}

	json.Write(w, http.StatusOK, memberResponse{ClientID: clientID, Member: *member})
}

// LeaveHandler godoc
// @Summary      Leave a room
// @Description  Removes the caller's presence record. Leaving twice is not an error.
// @Tags         rooms
// @Param        roomId path string true "Room ID"
// @Success      204
// @Failure      500 {object} map[string]interface{} "Internal server error"
// @Router       /rooms/{roomId}/leave [post]
func (h *Handler) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	clientID := utils.GetClientIDFromRequest(r)
	if clientID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.service.Leave(r.Context(), roomID, clientID); err != nil {
		json.WriteInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPresenceHandler godoc
// @Summary      List room members
// @Description  Returns the members seen within the freshness window, participants first.
// @Tags         rooms
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} presenceResponse
// @Router       /rooms/{roomId}/presence [get]
func (h *Handler) GetPresenceHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	json.Write(w, http.StatusOK, presenceResponse{Members: h.service.Presence(r.Context(), roomID)})
}

// ClearPresenceHandler godoc
// @Summary      Clear room members
// @Description  Administrative reset of every presence record in the room.
// @Tags         rooms
// @Param        roomId path string true "Room ID"
// @Success      204
// @Router       /rooms/{roomId}/presence [delete]
func (h *Handler) ClearPresenceHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	if err := h.service.ClearPresence(r.Context(), roomID); err != nil {
		h.logger.Error(logging.Presence, logging.Cleanup, "failed to clear presence", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTypingHandler godoc
// @Summary      Typing indicator
// @Description  Returns the indicator while a translation is in progress, otherwise 204.
// @Tags         rooms
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} domain.TypingIndicator
// @Success      204
// @Router       /rooms/{roomId}/typing [get]
func (h *Handler) GetTypingHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	ind := h.service.Typing(r.Context(), roomID)
	if ind == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	json.Write(w, http.StatusOK, ind)
}

// SubscribeHandler godoc
// @Summary      Subscribe to room changes
// @Description  Upgrades to a WebSocket that streams presence, message and typing snapshots and accepts heartbeat, message.send, message.show_original and leave commands.
// @Tags         rooms
// @Param        roomId path string true "Room ID"
// @Success      101
// @Failure      400 {object} map[string]interface{} "Invalid room ID"
// @Router       /rooms/{roomId}/ws [get]
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if err := domain.ValidateRoomID(roomID); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	clientID := utils.GetOrCreateClientID(w, r, h.persistentIdentity)

	conn, err := h.roomManager.Upgrade(w, r)
	if err != nil {
		h.logger.Warn(logging.WebSocket, logging.Subscription, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := ws.NewClient(conn, clientID, roomID)
	select {
	case h.core.Register() <- client:
	case <-h.core.Done():
		_ = conn.Close()
		return
	}

	go client.WriteMessage()
	go client.ReadMessage(h.core)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, roomID string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRole):
		json.WriteValidationError(w, err)
	case errors.Is(err, domain.ErrNotJoined):
		json.WriteError(w, http.StatusNotFound, err, "Join the room first")
	default:
		h.logger.Error(logging.Presence, logging.ExternalService, "room operation failed", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
	}
}
