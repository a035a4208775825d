package messages

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/parley/internal/application/chat"
	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/json"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/presentation/utils"
)

type Handler struct {
	service *chat.Service
	logger  logging.Logger
}

func NewHandler(service *chat.Service, logger logging.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// GetMessagesHandler godoc
// @Summary      List messages
// @Description  Returns the room's messages ordered by creation time.
// @Tags         messages
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} messagesResponse
// @Router       /rooms/{roomId}/messages [get]
func (h *Handler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	json.Write(w, http.StatusOK, messagesResponse{Messages: h.service.Messages(r.Context(), roomID)})
}

// SendMessageHandler godoc
// @Summary      Send a message
// @Description  Stores a message from the caller. When the other participant reads another language the message is returned with isTranslating set and the translation follows asynchronously.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Param        request body sendMessageRequest true "Message text"
// @Success      201 {object} domain.ChatMessage
// @Failure      400 {object} map[string]interface{} "Validation error"
// @Failure      403 {object} map[string]interface{} "Spectators are read-only"
// @Failure      404 {object} map[string]interface{} "Caller is not in the room"
// @Failure      503 {object} map[string]interface{} "Message failed to send, retry"
// @Router       /rooms/{roomId}/messages [post]
func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	var req sendMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	clientID := utils.GetClientIDFromRequest(r)
	if clientID == "" {
		json.WriteError(w, http.StatusNotFound, domain.ErrNotJoined, "Join the room first")
		return
	}

	msg, err := h.service.Send(r.Context(), roomID, clientID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrReadOnly):
			json.WriteError(w, http.StatusForbidden, err, "Spectators cannot send messages")
		case errors.Is(err, domain.ErrNotJoined):
			json.WriteError(w, http.StatusNotFound, err, "Join the room first")
		case errors.Is(err, domain.ErrInvalidInput):
			json.WriteValidationError(w, err)
		case errors.Is(err, domain.ErrSendFailed):
			json.WriteError(w, http.StatusServiceUnavailable, err, "Message failed to send. Please try again.")
		default:
			h.logger.Error(logging.Chat, logging.Send, "unexpected send failure", map[logging.ExtraKey]any{
				logging.RoomID:       roomID,
				logging.ClientID:     clientID,
				logging.ErrorMessage: err.Error(),
			})
			json.WriteInternalError(w, err)
		}
		return
	}

	json.Write(w, http.StatusCreated, msg)
}

// UpdateMessageHandler godoc
// @Summary      Toggle original text
// @Description  Switches a message between its translation and the original text.
// @Tags         messages
// @Accept       json
// @Param        roomId path string true "Room ID"
// @Param        messageId path string true "Message ID"
// @Param        request body updateMessageRequest true "Display flag"
// @Success      204
// @Failure      400 {object} map[string]interface{} "Validation error"
// @Router       /rooms/{roomId}/messages/{messageId} [patch]
func (h *Handler) UpdateMessageHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	messageID := chi.URLParam(r, "messageId")

	var req updateMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if req.ShowOriginal == nil {
		json.WriteBadRequestError(w, "showOriginal is required")
		return
	}

	if err := h.service.ToggleOriginal(r.Context(), roomID, messageID, *req.ShowOriginal); err != nil {
		h.logger.Error(logging.Chat, logging.Update, "failed to update message", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.MessageID:    messageID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearMessagesHandler godoc
// @Summary      Reset the room
// @Description  Deletes every message in the room.
// @Tags         messages
// @Param        roomId path string true "Room ID"
// @Success      204
// @Router       /rooms/{roomId}/messages [delete]
func (h *Handler) ClearMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	if err := h.service.ClearChat(r.Context(), roomID); err != nil {
		h.logger.Error(logging.Chat, logging.Cleanup, "failed to clear messages", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
