package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/parley/internal/infrastructure/json"
)

type Handler struct {
	startTime time.Time
	backend   string
	primary   bool
	healthy   atomic.Bool
}

// NewHandler reports backend as the active synchronisation backend. primary
// tells whether the primary translation provider is configured.
func NewHandler(backend string, primary bool) *Handler {
	h := &Handler{
		startTime: time.Now(),
		backend:   backend,
		primary:   primary,
	}
	h.healthy.Store(true)
	return h
}

// SetUnhealthy makes every probe fail, used while shutting down.
func (h *Handler) SetUnhealthy() {
	h.healthy.Store(false)
}

// GetHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API, including uptime, the active sync backend and the translation mode
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is healthy"
// @Failure      503 {object} healthResponse "Service is unhealthy"
// @Router       /health [get]
// @Router       /healthz [get]
// @Router       /ready [get]
// @Router       /live [get]
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Backend:   h.backend,
		Translate: "fallback",
	}
	if h.primary {
		resp.Translate = "primary"
	}

	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}
	json.Write(w, http.StatusOK, resp)
}
