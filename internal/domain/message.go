package domain

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/parley/internal/infrastructure/validate"
)

const maxMessageLength = 4000

type ChatMessage struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"roomId"`
	Text           string    `json:"text"`
	TranslatedText *string   `json:"translatedText,omitempty"`
	Sender         Role      `json:"sender"`
	SenderName     string    `json:"senderName"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ShowOriginal   bool      `json:"showOriginal"`
	IsTranslating  bool      `json:"isTranslating"`
}

// NewMessage carries the fields a sender supplies. ID and CreatedAt are
// assigned by the repository.
type NewMessage struct {
	Text          string
	Sender        Role
	SenderName    string
	IsTranslating bool
}

// MessagePatch lists the mutable fields of a message. Nil fields are left alone.
type MessagePatch struct {
	TranslatedText *string `json:"translatedText,omitempty"`
	ShowOriginal   *bool   `json:"showOriginal,omitempty"`
	IsTranslating  *bool   `json:"isTranslating,omitempty"`
}

func (p MessagePatch) Empty() bool {
	return p.TranslatedText == nil && p.ShowOriginal == nil && p.IsTranslating == nil
}

type MessageRepository interface {
	Add(ctx context.Context, roomID string, msg NewMessage) (*ChatMessage, error)
	// Update merges patch into the message. Unknown ids yield ErrMessageNotFound.
	Update(ctx context.Context, roomID, id string, patch MessagePatch) error
	// List returns the room's messages ordered by CreatedAt ascending.
	List(ctx context.Context, roomID string) ([]ChatMessage, error)
	Subscribe(ctx context.Context, roomID string, fn func([]ChatMessage)) (Unsubscribe, error)
	Clear(ctx context.Context, roomID string) error
}

var validateText = validate.Field("text",
	validate.Required(),
	validate.MaxLength(maxMessageLength),
	validate.Printable(true),
)

func (m NewMessage) Validate() error {
	if !m.Sender.IsParticipant() {
		return ErrReadOnly
	}
	return validateText(strings.TrimSpace(m.Text))
}

// Build materialises a stored message with a fresh id.
func (m NewMessage) Build(roomID string, createdAt time.Time) *ChatMessage {
	return &ChatMessage{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		Text:          m.Text,
		Sender:        m.Sender,
		SenderName:    m.SenderName,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
		IsTranslating: m.IsTranslating,
	}
}

// Apply merges the patch and reports whether anything changed.
// TranslatedText is write-once: a second value is ignored.
func (m *ChatMessage) Apply(p MessagePatch, now time.Time) bool {
	changed := false

	if p.TranslatedText != nil && m.TranslatedText == nil {
		text := *p.TranslatedText
		m.TranslatedText = &text
		changed = true
	}
	if p.ShowOriginal != nil && m.ShowOriginal != *p.ShowOriginal {
		m.ShowOriginal = *p.ShowOriginal
		changed = true
	}
	if p.IsTranslating != nil && m.IsTranslating != *p.IsTranslating {
		m.IsTranslating = *p.IsTranslating
		changed = true
	}

	if changed {
		m.UpdatedAt = now
	}
	return changed
}

// SortMessages orders messages by creation time, breaking ties by id.
func SortMessages(msgs []ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
