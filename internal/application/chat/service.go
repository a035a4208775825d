// Package chat implements the room workflow: joining and role assignment,
// presence heartbeats, sending messages and translating them for the other
// participant.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/hilthontt/parley/internal/infrastructure/translate"
)

// translationBudget bounds a whole gateway call including retries and fallbacks.
const translationBudget = 2 * time.Minute

// Store is the set of repositories the service runs on. transport.Backend
// satisfies it.
type Store interface {
	Presence() domain.PresenceRepository
	Messages() domain.MessageRepository
	Typing() domain.TypingRepository
}

type Translator interface {
	Translate(ctx context.Context, text, from, to string) string
}

type Options struct {
	StaleAfter       time.Duration
	CleanupInterval  time.Duration
	TypingMinVisible time.Duration
}

// ProfileUpdate carries optional changes sent along with a heartbeat.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Language *string `json:"language,omitempty"`
}

type Service struct {
	presence   domain.PresenceRepository
	messages   domain.MessageRepository
	typing     domain.TypingRepository
	translator Translator
	events     domain.EventPublisher
	logger     logging.Logger
	metrics    *metrics.Metrics
	opts       Options

	locksMu   sync.Mutex
	roomLocks map[string]*roomLock
	inflight  sync.WaitGroup
}

// roomLock is held only while some caller uses it, so rooms nobody touches
// leave no entry behind.
type roomLock struct {
	sync.Mutex
	refs int
}

func NewService(store Store, translator Translator, events domain.EventPublisher, logger logging.Logger, m *metrics.Metrics, opts Options) *Service {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	if opts.TypingMinVisible < 0 {
		opts.TypingMinVisible = 0
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Service{
		presence:   store.Presence(),
		messages:   store.Messages(),
		typing:     store.Typing(),
		translator: translator,
		events:     events,
		logger:     logger,
		metrics:    m,
		opts:       opts,
		roomLocks:  make(map[string]*roomLock),
	}
}

// lockRoom serialises presence changes of one room inside this process and
// returns the matching unlock.
func (s *Service) lockRoom(roomID string) func() {
	s.locksMu.Lock()
	l, ok := s.roomLocks[roomID]
	if !ok {
		l = &roomLock{}
		s.roomLocks[roomID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.roomLocks, roomID)
		}
		s.locksMu.Unlock()
	}
}

// Join registers clientID in the room and returns its record. Joins to one
// room are serialised inside this process so two newcomers cannot both be
// handed the same participant role. A client that is already present keeps
// its role.
func (s *Service) Join(ctx context.Context, roomID, clientID, name, language string) (*domain.PresenceRecord, error) {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, invalid(err)
	}

	defer s.lockRoom(roomID)()
	return s.join(ctx, roomID, clientID, name, language)
}

func (s *Service) join(ctx context.Context, roomID, clientID, name, language string) (*domain.PresenceRecord, error) {
	existing, err := s.presence.List(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}

	role := domain.AssignRole(existing, clientID)
	record, err := domain.NewPresenceRecord(clientID, name, language, role)
	if err != nil {
		return nil, invalid(err)
	}

	if err := s.presence.Update(ctx, roomID, *record); err != nil {
		return nil, fmt.Errorf("failed to update presence: %w", err)
	}

	if findClient(existing, clientID) == nil {
		s.logger.Info(logging.Chat, logging.Join, "client joined room", map[logging.ExtraKey]any{
			logging.RoomID:   roomID,
			logging.ClientID: clientID,
			logging.Role:     string(role),
		})
		if s.metrics != nil {
			s.metrics.Joins.WithLabelValues(string(role)).Inc()
		}
		s.publish(ctx, domain.NewChatEvent(domain.EventMemberJoined, roomID, clientID, map[string]any{
			"name": record.Name,
			"role": string(role),
		}))
	}

	return record, nil
}

// Heartbeat refreshes the client's record and applies profile changes. A
// client whose record has already expired is joined again, which requires a
// name. The read and the write happen under the room lock so a concurrent
// Leave cannot be undone by a stale copy of the record.
func (s *Service) Heartbeat(ctx context.Context, roomID, clientID string, update ProfileUpdate) (*domain.PresenceRecord, error) {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, invalid(err)
	}

	defer s.lockRoom(roomID)()

	records, err := s.presence.List(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}

	current := findClient(records, clientID)
	if current == nil {
		if update.Name == nil {
			return nil, domain.ErrNotJoined
		}
		language := ""
		if update.Language != nil {
			language = *update.Language
		}
		s.logger.Debug(logging.Chat, logging.Heartbeat, "presence expired, rejoining", map[logging.ExtraKey]any{
			logging.RoomID:   roomID,
			logging.ClientID: clientID,
		})
		return s.join(ctx, roomID, clientID, *update.Name, language)
	}

	name, language := current.Name, current.Language
	if update.Name != nil {
		name = *update.Name
	}
	if update.Language != nil {
		language = *update.Language
	}

	record, err := domain.NewPresenceRecord(clientID, name, language, current.Role)
	if err != nil {
		return nil, invalid(err)
	}
	if err := s.presence.Update(ctx, roomID, *record); err != nil {
		return nil, fmt.Errorf("failed to update presence: %w", err)
	}
	return record, nil
}

func (s *Service) Leave(ctx context.Context, roomID, clientID string) error {
	unlock := s.lockRoom(roomID)
	err := s.presence.Remove(ctx, roomID, clientID)
	unlock()
	if err != nil {
		s.logger.Warn(logging.Presence, logging.Leave, "failed to remove presence", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ClientID:     clientID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	s.publish(ctx, domain.NewChatEvent(domain.EventMemberLeft, roomID, clientID, nil))
	return nil
}

// Presence lists the live records of a room. Store failures are logged and
// reported as an empty room.
func (s *Service) Presence(ctx context.Context, roomID string) []domain.PresenceRecord {
	records, err := s.presence.List(ctx, roomID)
	if err != nil {
		s.logReadError(logging.Presence, roomID, err)
		return []domain.PresenceRecord{}
	}
	return records
}

// Member returns the live record of clientID, or nil.
func (s *Service) Member(ctx context.Context, roomID, clientID string) *domain.PresenceRecord {
	return findClient(s.Presence(ctx, roomID), clientID)
}

// Send stores a message from clientID. When the other participant reads a
// different language the message is flagged as translating and the
// translation runs in the background.
func (s *Service) Send(ctx context.Context, roomID, clientID, text string) (*domain.ChatMessage, error) {
	records, err := s.presence.List(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	sender := findClient(records, clientID)
	if sender == nil {
		return nil, domain.ErrNotJoined
	}
	if !sender.Role.IsParticipant() {
		return nil, domain.ErrReadOnly
	}

	var target string
	if other := findRole(records, sender.Role.Counterpart()); other != nil {
		target = other.Language
	}
	needsTranslation := sender.Language != "" && target != "" && !translate.SameLanguage(sender.Language, target)

	draft := domain.NewMessage{
		Text:          strings.TrimSpace(text),
		Sender:        sender.Role,
		SenderName:    sender.Name,
		IsTranslating: needsTranslation,
	}
	if err := draft.Validate(); err != nil {
		return nil, invalid(err)
	}

	msg, err := s.messages.Add(ctx, roomID, draft)
	if err != nil {
		s.logger.Error(logging.Chat, logging.Send, "failed to store message", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ClientID:     clientID,
			logging.ErrorMessage: err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	if s.metrics != nil {
		s.metrics.MessagesSent.Inc()
	}
	s.publish(ctx, domain.NewChatEvent(domain.EventMessageSent, roomID, clientID, map[string]any{
		"message_id": msg.ID,
		"sender":     string(msg.Sender),
	}))

	if needsTranslation {
		s.inflight.Add(1)
		go s.translate(*msg, sender.Language, target)
	}
	return msg, nil
}

// translate raises the typing indicator, waits for the gateway and stores the
// result right away. Only lowering the indicator waits for the minimum
// visible duration.
func (s *Service) translate(msg domain.ChatMessage, from, to string) {
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), translationBudget)
	defer cancel()

	started := time.Now()
	s.setTyping(ctx, msg.RoomID, msg.Sender, true)

	translated := s.translator.Translate(ctx, msg.Text, from, to)

	done := false
	if err := s.UpdateMessage(ctx, msg.RoomID, msg.ID, domain.MessagePatch{
		TranslatedText: &translated,
		IsTranslating:  &done,
	}); err != nil {
		s.logger.Error(logging.Translation, logging.Update, "failed to store translation", map[logging.ExtraKey]any{
			logging.RoomID:       msg.RoomID,
			logging.MessageID:    msg.ID,
			logging.ErrorMessage: err.Error(),
		})
	}

	if wait := s.opts.TypingMinVisible - time.Since(started); wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	s.setTyping(ctx, msg.RoomID, msg.Sender, false)

	s.publish(ctx, domain.NewChatEvent(domain.EventMessageTranslated, msg.RoomID, "", map[string]any{
		"message_id": msg.ID,
		"from":       from,
		"to":         to,
	}))
}

func (s *Service) setTyping(ctx context.Context, roomID string, sender domain.Role, isTyping bool) {
	if err := s.typing.Set(ctx, roomID, sender, isTyping); err != nil {
		s.logger.Warn(logging.Chat, logging.Typing, "failed to set typing indicator", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.Role:         string(sender),
			logging.ErrorMessage: err.Error(),
		})
	}
}

// UpdateMessage merges patch into a message. Unknown ids are logged and ignored.
func (s *Service) UpdateMessage(ctx context.Context, roomID, id string, patch domain.MessagePatch) error {
	if patch.Empty() {
		return nil
	}

	err := s.messages.Update(ctx, roomID, id, patch)
	if errors.Is(err, domain.ErrMessageNotFound) {
		s.logger.Warn(logging.Chat, logging.Update, "update for unknown message ignored", map[logging.ExtraKey]any{
			logging.RoomID:    roomID,
			logging.MessageID: id,
		})
		return nil
	}
	return err
}

func (s *Service) ToggleOriginal(ctx context.Context, roomID, id string, show bool) error {
	return s.UpdateMessage(ctx, roomID, id, domain.MessagePatch{ShowOriginal: &show})
}

func (s *Service) Messages(ctx context.Context, roomID string) []domain.ChatMessage {
	msgs, err := s.messages.List(ctx, roomID)
	if err != nil {
		s.logReadError(logging.Chat, roomID, err)
		return []domain.ChatMessage{}
	}
	return msgs
}

func (s *Service) Typing(ctx context.Context, roomID string) *domain.TypingIndicator {
	ind, err := s.typing.Get(ctx, roomID)
	if err != nil {
		s.logReadError(logging.Chat, roomID, err)
		return nil
	}
	return ind
}

func (s *Service) ClearChat(ctx context.Context, roomID string) error {
	if err := s.messages.Clear(ctx, roomID); err != nil {
		return err
	}
	s.publish(ctx, domain.NewChatEvent(domain.EventRoomCleared, roomID, "", nil))
	return nil
}

func (s *Service) ClearPresence(ctx context.Context, roomID string) error {
	unlock := s.lockRoom(roomID)
	err := s.presence.Clear(ctx, roomID)
	unlock()
	if err != nil {
		return err
	}
	s.publish(ctx, domain.NewChatEvent(domain.EventPresenceCleared, roomID, "", nil))
	return nil
}

func (s *Service) SubscribePresence(ctx context.Context, roomID string, fn func([]domain.PresenceRecord)) (domain.Unsubscribe, error) {
	return s.presence.Subscribe(ctx, roomID, fn)
}

func (s *Service) SubscribeMessages(ctx context.Context, roomID string, fn func([]domain.ChatMessage)) (domain.Unsubscribe, error) {
	return s.messages.Subscribe(ctx, roomID, fn)
}

func (s *Service) SubscribeTyping(ctx context.Context, roomID string, fn func(*domain.TypingIndicator)) (domain.Unsubscribe, error) {
	return s.typing.Subscribe(ctx, roomID, fn)
}

// Close waits for background translations to finish.
func (s *Service) Close() {
	s.inflight.Wait()
}

func (s *Service) publish(ctx context.Context, event domain.ChatEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish chat event", map[logging.ExtraKey]any{
			logging.RoomID:       event.RoomID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

func (s *Service) logReadError(cat logging.Category, roomID string, err error) {
	s.logger.Warn(cat, logging.ExternalService, "failed to read room state", map[logging.ExtraKey]any{
		logging.RoomID:       roomID,
		logging.ErrorMessage: err.Error(),
	})
}

// invalid marks a validation failure so callers can tell it from a store error.
func invalid(err error) error {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrReadOnly) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func findClient(records []domain.PresenceRecord, clientID string) *domain.PresenceRecord {
	for i := range records {
		if records[i].ClientID == clientID {
			return &records[i]
		}
	}
	return nil
}

func findRole(records []domain.PresenceRecord, role domain.Role) *domain.PresenceRecord {
	if role == "" {
		return nil
	}
	for i := range records {
		if records[i].Role == role {
			return &records[i]
		}
	}
	return nil
}
