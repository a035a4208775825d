package domain

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hilthontt/parley/internal/infrastructure/validate"
)

// Unsubscribe detaches a subscription. It is safe to call more than once.
type Unsubscribe func()

type PresenceRecord struct {
	ClientID string    `json:"clientId"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Language string    `json:"language,omitempty"`
	LastSeen time.Time `json:"lastSeen"`
}

// Fresh reports whether the record was seen within window of now.
func (p PresenceRecord) Fresh(now time.Time, window time.Duration) bool {
	return !p.LastSeen.Before(now.Add(-window))
}

type PresenceRepository interface {
	// Update upserts the record keyed by ClientID and stamps LastSeen.
	Update(ctx context.Context, roomID string, record PresenceRecord) error
	Remove(ctx context.Context, roomID, clientID string) error
	// List returns the records that are still within the freshness window.
	List(ctx context.Context, roomID string) ([]PresenceRecord, error)
	Subscribe(ctx context.Context, roomID string, fn func([]PresenceRecord)) (Unsubscribe, error)
	// RemoveStale deletes records older than olderThan in every room. The
	// cutoff is taken from the same clock that stamps LastSeen.
	RemoveStale(ctx context.Context, olderThan time.Duration) (int, error)
	Clear(ctx context.Context, roomID string) error
}

var (
	validateName = validate.Field("name",
		validate.Required(),
		validate.MaxLength(40),
		validate.Printable(false),
	)

	validateLanguage = validate.Field("language", validate.Optional(
		validate.Matches(`^[a-zA-Z]{2,3}([-_][a-zA-Z0-9]{2,8})*$`, "must be a language code such as en or pt-BR"),
	))

	validateRoomID = validate.Field("room",
		validate.Required(),
		validate.MaxLength(64),
		validate.Matches(`^[a-zA-Z0-9_-]+$`, "may only contain letters, numbers, underscores, and hyphens"),
	)
)

// NewPresenceRecord validates and normalises the user supplied fields.
func NewPresenceRecord(clientID, name, language string, role Role) (*PresenceRecord, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrInvalidInput
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	language, err := NormalizeLanguage(language)
	if err != nil {
		return nil, err
	}

	return &PresenceRecord{
		ClientID: clientID,
		Name:     name,
		Role:     role,
		Language: language,
		LastSeen: time.Now(),
	}, nil
}

// NormalizeLanguage lowercases the primary subtag. An empty code is allowed.
func NormalizeLanguage(language string) (string, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		return "", nil
	}
	if err := validateLanguage(language); err != nil {
		return "", err
	}
	language = strings.ReplaceAll(language, "_", "-")
	if idx := strings.Index(language, "-"); idx > 0 {
		return strings.ToLower(language[:idx]) + language[idx:], nil
	}
	return strings.ToLower(language), nil
}

func ValidateRoomID(roomID string) error {
	return validateRoomID(roomID)
}

// SortPresence orders participants before spectators, then by client id.
func SortPresence(records []PresenceRecord) {
	rank := func(r Role) int {
		switch r {
		case RoleParticipantA:
			return 0
		case RoleParticipantB:
			return 1
		}
		return 2
	}
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := rank(records[i].Role), rank(records[j].Role)
		if ri != rj {
			return ri < rj
		}
		return records[i].ClientID < records[j].ClientID
	})
}
