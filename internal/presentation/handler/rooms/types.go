package rooms

import "github.com/hilthontt/parley/internal/domain"

type joinRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

type joinResponse struct {
	ClientID string                  `json:"clientId"`
	Member   domain.PresenceRecord   `json:"member"`
	Members  []domain.PresenceRecord `json:"members"`
}

type heartbeatRequest struct {
	Name     *string `json:"name,omitempty"`
	Language *string `json:"language,omitempty"`
}

type memberResponse struct {
	ClientID string                `json:"clientId"`
	Member   domain.PresenceRecord `json:"member"`
}

type presenceResponse struct {
	Members []domain.PresenceRecord `json:"members"`
}
