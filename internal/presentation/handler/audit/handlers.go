package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/json"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Handler struct {
	repo   domain.ChatAuditRepository
	logger logging.Logger
}

func NewHandler(repo domain.ChatAuditRepository, logger logging.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type auditResponse struct {
	Logs []domain.ChatAuditLog `json:"logs"`
}

// GetAuditLogHandler godoc
// @Summary      Room audit trail
// @Description  Returns the newest audit entries of a room. Only mounted when the audit store is configured.
// @Tags         audit
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Param        limit query int false "Maximum entries (default 50, max 500)"
// @Success      200 {object} auditResponse
// @Failure      400 {object} map[string]interface{} "Invalid limit"
// @Router       /rooms/{roomId}/audit [get]
func (h *Handler) GetAuditLogHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLimit {
			json.WriteBadRequestError(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	logs, err := h.repo.GetByRoomID(r.Context(), roomID, limit)
	if err != nil {
		h.logger.Error(logging.MongoDB, logging.ExternalService, "failed to read audit log", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, auditResponse{Logs: logs})
}
