package polling

import (
	"time"

	"github.com/hilthontt/parley/internal/domain"
)

type presenceRow struct {
	RoomID   string    `gorm:"primaryKey;size:64"`
	ClientID string    `gorm:"primaryKey;size:128"`
	Name     string    `gorm:"size:64"`
	Role     string    `gorm:"size:16"`
	Language string    `gorm:"size:32"`
	LastSeen time.Time `gorm:"index"`
}

func (presenceRow) TableName() string { return "presence" }

func (r presenceRow) toDomain() domain.PresenceRecord {
	return domain.PresenceRecord{
		ClientID: r.ClientID,
		Name:     r.Name,
		Role:     domain.Role(r.Role),
		Language: r.Language,
		LastSeen: r.LastSeen,
	}
}

type messageRow struct {
	ID             string    `gorm:"primaryKey;size:36"`
	RoomID         string    `gorm:"size:64;index:idx_messages_room_created,priority:1"`
	Text           string    `gorm:"type:text"`
	TranslatedText *string   `gorm:"type:text"`
	Sender         string    `gorm:"size:16"`
	SenderName     string    `gorm:"size:64"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false;index:idx_messages_room_created,priority:2"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
	ShowOriginal   bool
	IsTranslating  bool
}

func (messageRow) TableName() string { return "messages" }

func newMessageRow(m *domain.ChatMessage) messageRow {
	return messageRow{
		ID:             m.ID,
		RoomID:         m.RoomID,
		Text:           m.Text,
		TranslatedText: m.TranslatedText,
		Sender:         string(m.Sender),
		SenderName:     m.SenderName,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		ShowOriginal:   m.ShowOriginal,
		IsTranslating:  m.IsTranslating,
	}
}

func (r messageRow) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:             r.ID,
		RoomID:         r.RoomID,
		Text:           r.Text,
		TranslatedText: r.TranslatedText,
		Sender:         domain.Role(r.Sender),
		SenderName:     r.SenderName,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ShowOriginal:   r.ShowOriginal,
		IsTranslating:  r.IsTranslating,
	}
}

type typingRow struct {
	RoomID    string `gorm:"primaryKey;size:64"`
	Sender    string `gorm:"size:16"`
	IsTyping  bool
	Timestamp time.Time
}

func (typingRow) TableName() string { return "typing" }
