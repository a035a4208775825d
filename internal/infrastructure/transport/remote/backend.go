// Package remote stores room state in Redis so several instances can serve
// the same rooms. Writes announce themselves on a pub/sub channel; every
// instance reacts by re-reading the affected room and pushing a fresh snapshot
// to its own subscribers.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
	"github.com/redis/go-redis/v9"
)

const reloadTimeout = 5 * time.Second

type kind string

const (
	kindPresence kind = "presence"
	kindMessages kind = "messages"
	kindTyping   kind = "typing"
)

type change struct {
	Kind   kind   `json:"kind"`
	RoomID string `json:"roomId"`
}

type Options struct {
	KeyPrefix      string
	Channel        string
	StaleAfter     time.Duration
	TypingFreshFor time.Duration
	Logger         logging.Logger
}

type Backend struct {
	client  redis.UniversalClient
	pubsub  *redis.PubSub
	channel string
	keys    keyspace
	logger  logging.Logger

	presence *presenceRepository
	messages *messageRepository
	typing   *typingRepository

	// reloadMu serialises read-then-publish so snapshots reach subscribers
	// in the order they were read.
	reloadMu sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// New subscribes to the change channel and returns once the subscription is
// confirmed. The backend takes ownership of client.
func New(ctx context.Context, client redis.UniversalClient, opts Options) (*Backend, error) {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "parley"
	}
	if opts.Channel == "" {
		opts.Channel = opts.KeyPrefix + ":changes"
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.TypingFreshFor <= 0 {
		opts.TypingFreshFor = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	pubsub := client.Subscribe(ctx, opts.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", opts.Channel, err)
	}

	b := &Backend{
		client:  client,
		pubsub:  pubsub,
		channel: opts.Channel,
		keys:    keyspace(opts.KeyPrefix),
		logger:  opts.Logger,
		done:    make(chan struct{}),
	}
	b.presence = &presenceRepository{b: b, staleAfter: opts.StaleAfter, hub: feed.NewHub[[]domain.PresenceRecord]()}
	b.messages = &messageRepository{b: b, hub: feed.NewHub[[]domain.ChatMessage]()}
	b.typing = &typingRepository{b: b, freshFor: opts.TypingFreshFor, hub: feed.NewHub[*domain.TypingIndicator]()}

	listenCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.listen(listenCtx)

	return b, nil
}

func (b *Backend) Name() string { return "remote" }

func (b *Backend) Presence() domain.PresenceRepository { return b.presence }

func (b *Backend) Messages() domain.MessageRepository { return b.messages }

func (b *Backend) Typing() domain.TypingRepository { return b.typing }

// Client exposes the connection so other components can share it.
func (b *Backend) Client() redis.UniversalClient { return b.client }

func (b *Backend) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	<-b.done

	b.presence.hub.Close()
	b.messages.hub.Close()
	b.typing.hub.Close()

	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *Backend) listen(ctx context.Context) {
	defer close(b.done)

	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(ctx, msg.Payload)
		}
	}
}

func (b *Backend) handle(ctx context.Context, payload string) {
	var c change
	if err := json.Unmarshal([]byte(payload), &c); err != nil || c.RoomID == "" {
		b.logger.Warn(logging.Redis, logging.Subscription, "invalid change notification", map[logging.ExtraKey]any{
			logging.ErrorMessage: fmt.Sprint(err),
		})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, reloadTimeout)
	defer cancel()

	if err := b.reload(ctx, c.Kind, c.RoomID); err != nil {
		b.logger.Warn(logging.Redis, logging.Subscription, "failed to reload room state", map[logging.ExtraKey]any{
			logging.RoomID:       c.RoomID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// reload re-reads one kind of room state and hands it to local subscribers.
func (b *Backend) reload(ctx context.Context, k kind, roomID string) error {
	b.reloadMu.Lock()
	defer b.reloadMu.Unlock()

	switch k {
	case kindPresence:
		if !b.presence.hub.HasSubscribers(roomID) {
			return nil
		}
		records, err := b.presence.List(ctx, roomID)
		if err != nil {
			return err
		}
		b.presence.hub.Publish(roomID, records)
	case kindMessages:
		if !b.messages.hub.HasSubscribers(roomID) {
			return nil
		}
		msgs, err := b.messages.List(ctx, roomID)
		if err != nil {
			return err
		}
		b.messages.hub.Publish(roomID, msgs)
	case kindTyping:
		if !b.typing.hub.HasSubscribers(roomID) {
			return nil
		}
		ind, err := b.typing.Get(ctx, roomID)
		if err != nil {
			return err
		}
		b.typing.hub.Publish(roomID, ind)
	default:
		return fmt.Errorf("unknown change kind %q", k)
	}
	return nil
}

// subscribe takes the initial snapshot and registers fn without letting a
// concurrent reload slip in between.
func subscribe[T any](b *Backend, hub *feed.Hub[T], roomID string, load func() (T, error), fn func(T)) (domain.Unsubscribe, error) {
	b.reloadMu.Lock()
	defer b.reloadMu.Unlock()

	initial, err := load()
	if err != nil {
		return nil, err
	}
	return hub.Subscribe(roomID, initial, fn), nil
}

func (b *Backend) notify(ctx context.Context, k kind, roomID string) {
	data, _ := json.Marshal(change{Kind: k, RoomID: roomID})
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Warn(logging.Redis, logging.Publish, "failed to publish change notification", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// now reads the Redis server clock so every instance stamps records the same way.
func (b *Backend) now(ctx context.Context) (time.Time, error) {
	t, err := b.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read server time: %w", err)
	}
	return t.UTC(), nil
}
