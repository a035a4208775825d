package domain

import (
	"context"
	"time"
)

// TypingIndicator is the single per-room slot signalling that a participant's
// reply is being translated. The last writer wins.
type TypingIndicator struct {
	Sender    Role      `json:"sender"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}

// Active reports whether the indicator should be shown at now.
func (t *TypingIndicator) Active(now time.Time, freshFor time.Duration) bool {
	if t == nil || !t.IsTyping {
		return false
	}
	return now.Sub(t.Timestamp) <= freshFor
}

type TypingRepository interface {
	Set(ctx context.Context, roomID string, sender Role, isTyping bool) error
	// Get returns nil unless the indicator is typing and fresh.
	Get(ctx context.Context, roomID string) (*TypingIndicator, error)
	Subscribe(ctx context.Context, roomID string, fn func(*TypingIndicator)) (Unsubscribe, error)
}
