package main

import (
	"context"
	"expvar"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hilthontt/parley/internal/application/chat"
	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/events"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/messaging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/hilthontt/parley/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/parley/internal/infrastructure/tracing"
	"github.com/hilthontt/parley/internal/infrastructure/translate"
	"github.com/hilthontt/parley/internal/infrastructure/transport"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
	"github.com/hilthontt/parley/internal/persistence/db"
	"github.com/hilthontt/parley/internal/persistence/repository"
	"github.com/hilthontt/parley/internal/presentation/api"
	auditHandler "github.com/hilthontt/parley/internal/presentation/handler/audit"
	healthHandler "github.com/hilthontt/parley/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/parley/internal/presentation/handler/messages"
	roomHandler "github.com/hilthontt/parley/internal/presentation/handler/rooms"
	translateHandler "github.com/hilthontt/parley/internal/presentation/handler/translate"
	"github.com/redis/go-redis/v9"
)

const serviceName = "parley"

// @title        Parley API
// @version      1.0
// @description  Two-party chat with automatic translation, presence and typing indicators.
// @BasePath     /api
func main() {
	logger := logging.NewLogger(logging.NewDefaultConfig())
	defer logger.Sync()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to load config", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn(logging.General, logging.Startup, "sentry disabled", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingCfg := tracing.NewDefaultConfig(serviceName)
	tracingCfg.Enabled = cfg.Tracing.Enabled
	tracingCfg.Endpoint = cfg.Tracing.Endpoint
	shutdownTracer, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to init tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer shutdownTracer(context.Background())

	m := metrics.New()

	backend, err := transport.Select(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.BackendSelect, "failed to open sync backend", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer backend.Close()

	// Share rate limit buckets between instances when they already share Redis.
	var limiterCache ratelimiter.GetterSetter
	if shared, ok := backend.(interface{ Client() redis.UniversalClient }); ok {
		limiterCache = ratelimiter.NewRedis(shared.Client(), cfg.Redis.KeyPrefix+":")
	}
	limiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		Cache:            limiterCache,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})

	gateway := translate.New(cfg.Translation, logger, m)

	publisher, auditRepo, closeAudit := setupAudit(ctx, cfg, logger)
	defer closeAudit()

	service := chat.NewService(backend, gateway, publisher, logger, m, chat.Options{
		StaleAfter:       cfg.Presence.StaleAfter,
		CleanupInterval:  cfg.Presence.CleanupInterval,
		TypingMinVisible: cfg.Typing.MinVisible,
	})
	defer service.Close()
	go service.RunSweeper(ctx)

	roomManager := ws.NewRoomManager(cfg.HTTP.AllowedOrigins, logger, m)
	commands := roomHandler.NewCommands(service, roomManager, logger, cfg.Presence.RemoveOnDisconnect)
	core := ws.NewCore(roomManager, service, commands, logger)
	go core.Run(ctx)

	handlers := api.Handlers{
		Rooms:     roomHandler.NewHandler(service, roomManager, core, logger, cfg.Identity.Persistent),
		Messages:  messagesHandler.NewHandler(service, logger),
		Translate: translateHandler.NewHandler(gateway),
		Health:    healthHandler.NewHandler(backend.Name(), gateway.HasPrimary()),
	}
	if auditRepo != nil {
		handlers.Audit = auditHandler.NewHandler(auditRepo, logger)
	}

	app := api.NewApplication(*cfg, handlers, logger, limiter, m)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Error(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	// Stop the hub, sweeper and consumer before the deferred closers run.
	cancel()
}

// setupAudit connects the optional event bus and audit store. Either may be
// missing; chat keeps working without them.
func setupAudit(ctx context.Context, cfg *configs.Config, logger logging.Logger) (domain.EventPublisher, domain.ChatAuditRepository, func()) {
	if cfg.RabbitMQ.URI == "" {
		return events.NopPublisher{}, nil, func() {}
	}

	rmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI)
	if err != nil {
		logger.Warn(logging.RabbitMQ, logging.Startup, "event bus unavailable, chat events are dropped", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return events.NopPublisher{}, nil, func() {}
	}
	publisher := events.NewChatPublisher(rmq)

	if cfg.Mongo.URI == "" {
		return publisher, nil, rmq.Close
	}

	mongoCfg := db.NewMongoConfig(cfg.Mongo)
	client, err := db.NewMongoClient(ctx, mongoCfg, logger)
	if err != nil {
		logger.Warn(logging.MongoDB, logging.Startup, "audit store unavailable", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return publisher, nil, rmq.Close
	}

	repo := repository.NewChatAuditLogRepository(db.GetDatabase(client, mongoCfg))
	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := repo.EnsureIndexes(indexCtx); err != nil {
		logger.Warn(logging.MongoDB, logging.Startup, "failed to create audit indexes", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	cancel()

	consumer := events.NewAuditConsumer(rmq, repo, logger)
	go func() {
		if err := consumer.Listen(ctx); err != nil {
			logger.Error(logging.RabbitMQ, logging.Consume, "audit consumer stopped", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}()

	return publisher, repo, func() {
		rmq.Close()
		_ = db.DisconnectMongo(context.Background(), client)
	}
}
