package messages

import "github.com/hilthontt/parley/internal/domain"

type sendMessageRequest struct {
	Text string `json:"text"`
}

type updateMessageRequest struct {
	ShowOriginal *bool `json:"showOriginal"`
}

type messagesResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}
