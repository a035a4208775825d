// Package polling keeps room state in a SQL database and discovers changes by
// polling it on a fixed interval. It is the fallback for deployments that share
// a database but have no Redis.
package polling

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/transport/feed"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pollTimeout = 5 * time.Second

type Options struct {
	Interval       time.Duration
	StaleAfter     time.Duration
	TypingFreshFor time.Duration
	Logger         logging.Logger
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

type Backend struct {
	db     *gorm.DB
	logger logging.Logger
	now    func() time.Time

	presence *presenceRepository
	messages *messageRepository
	typing   *typingRepository

	// mu serialises read-then-publish and guards the fingerprints.
	mu           sync.Mutex
	fingerprints map[string]uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// Open connects to the database named by driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported polling driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// New migrates the schema and starts the poll loop. The backend takes
// ownership of db.
func New(db *gorm.DB, opts Options) (*Backend, error) {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
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
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := db.AutoMigrate(&presenceRow{}, &messageRow{}, &typingRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate polling schema: %w", err)
	}

	b := &Backend{
		db:           db,
		logger:       opts.Logger,
		now:          func() time.Time { return opts.Now().UTC() },
		fingerprints: make(map[string]uint64),
		done:         make(chan struct{}),
	}
	b.presence = &presenceRepository{b: b, staleAfter: opts.StaleAfter, hub: feed.NewHub[[]domain.PresenceRecord]()}
	b.messages = &messageRepository{b: b, hub: feed.NewHub[[]domain.ChatMessage]()}
	b.typing = &typingRepository{b: b, freshFor: opts.TypingFreshFor, hub: feed.NewHub[*domain.TypingIndicator]()}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.poll(ctx, opts.Interval)

	return b, nil
}

func (b *Backend) Name() string { return "polling" }

func (b *Backend) Presence() domain.PresenceRepository { return b.presence }

func (b *Backend) Messages() domain.MessageRepository { return b.messages }

func (b *Backend) Typing() domain.TypingRepository { return b.typing }

func (b *Backend) Close() error {
	b.cancel()
	<-b.done

	b.presence.hub.Close()
	b.messages.hub.Close()
	b.typing.hub.Close()

	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) poll(ctx context.Context, interval time.Duration) {
	defer close(b.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pollOnce(ctx)
		}
	}
}

func (b *Backend) pollOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	for _, roomID := range b.presence.hub.Keys() {
		b.refresh(ctx, roomID, refreshPresence(b.presence))
	}
	for _, roomID := range b.messages.hub.Keys() {
		b.refresh(ctx, roomID, refreshMessages(b.messages))
	}
	for _, roomID := range b.typing.hub.Keys() {
		b.refresh(ctx, roomID, refreshTyping(b.typing))
	}
}

// refresher loads one kind of room state and publishes it when the
// fingerprint differs from the last published one.
type refresher struct {
	kind    string
	hasSubs func(roomID string) bool
	load    func(ctx context.Context, roomID string) (any, error)
	publish func(roomID string, v any)
}

func refreshPresence(r *presenceRepository) refresher {
	return refresher{
		kind:    "presence",
		hasSubs: r.hub.HasSubscribers,
		load: func(ctx context.Context, roomID string) (any, error) {
			return r.List(ctx, roomID)
		},
		publish: func(roomID string, v any) { r.hub.Publish(roomID, v.([]domain.PresenceRecord)) },
	}
}

func refreshMessages(r *messageRepository) refresher {
	return refresher{
		kind:    "messages",
		hasSubs: r.hub.HasSubscribers,
		load: func(ctx context.Context, roomID string) (any, error) {
			return r.List(ctx, roomID)
		},
		publish: func(roomID string, v any) { r.hub.Publish(roomID, v.([]domain.ChatMessage)) },
	}
}

func refreshTyping(r *typingRepository) refresher {
	return refresher{
		kind:    "typing",
		hasSubs: r.hub.HasSubscribers,
		load: func(ctx context.Context, roomID string) (any, error) {
			return r.Get(ctx, roomID)
		},
		publish: func(roomID string, v any) { r.hub.Publish(roomID, v.(*domain.TypingIndicator)) },
	}
}

func (b *Backend) refresh(ctx context.Context, roomID string, rf refresher) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := rf.kind + ":" + roomID
	if !rf.hasSubs(roomID) {
		delete(b.fingerprints, key)
		return
	}

	v, err := rf.load(ctx, roomID)
	if err != nil {
		b.logger.Warn(logging.Database, logging.Polling, "failed to poll room state", map[logging.ExtraKey]any{
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}
	b.publishIfChanged(key, roomID, v, rf.publish)
}

// publishIfChanged must be called with mu held.
func (b *Backend) publishIfChanged(key, roomID string, v any, publish func(string, any)) {
	fp := fingerprint(v)
	if last, ok := b.fingerprints[key]; ok && last == fp {
		return
	}
	b.fingerprints[key] = fp
	publish(roomID, v)
}

// subscribe brings existing subscribers up to date, then registers fn with
// the same snapshot.
func subscribe[T any](b *Backend, kind string, hub *feed.Hub[T], roomID string, load func() (T, error), fn func(T)) (domain.Unsubscribe, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, err := load()
	if err != nil {
		return nil, err
	}
	b.publishIfChanged(kind+":"+roomID, roomID, v, func(roomID string, v any) {
		hub.Publish(roomID, v.(T))
	})
	return hub.Subscribe(roomID, v, fn), nil
}

func fingerprint(v any) uint64 {
	data, _ := json.Marshal(v)
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}
