package transport

import (
	"context"

	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/transport/local"
	"github.com/hilthontt/parley/internal/infrastructure/transport/polling"
	"github.com/hilthontt/parley/internal/infrastructure/transport/remote"
	"github.com/redis/go-redis/v9"
)

// Select picks the backend once at startup. Redis wins when it is configured
// and answers PING within the probe timeout; otherwise the configured fallback
// is used. The choice never changes for the lifetime of the process.
func Select(ctx context.Context, cfg *configs.Config, logger logging.Logger) (Backend, error) {
	if b := probeRemote(ctx, cfg, logger); b != nil {
		return b, nil
	}

	switch cfg.Sync.Fallback {
	case configs.FallbackPolling:
		db, err := polling.Open(cfg.Polling.Driver, cfg.Polling.DSN)
		if err != nil {
			return nil, err
		}
		b, err := polling.New(db, polling.Options{
			Interval:       cfg.Polling.Interval,
			StaleAfter:     cfg.Presence.StaleAfter,
			TypingFreshFor: cfg.Typing.FreshFor,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		logSelected(logger, b.Name())
		return b, nil
	default:
		b := local.New(local.Options{
			StaleAfter:     cfg.Presence.StaleAfter,
			TypingFreshFor: cfg.Typing.FreshFor,
		})
		logSelected(logger, b.Name())
		return b, nil
	}
}

func probeRemote(ctx context.Context, cfg *configs.Config, logger logging.Logger) Backend {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Sync.ProbeTimeout)
	defer cancel()

	if err := client.Ping(probeCtx).Err(); err != nil {
		logger.Warn(logging.Redis, logging.BackendSelect, "redis unreachable, using fallback backend", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		client.Close()
		return nil
	}

	b, err := remote.New(probeCtx, client, remote.Options{
		KeyPrefix:      cfg.Redis.KeyPrefix,
		Channel:        cfg.Redis.PubSubChannel,
		StaleAfter:     cfg.Presence.StaleAfter,
		TypingFreshFor: cfg.Typing.FreshFor,
		Logger:         logger,
	})
	if err != nil {
		logger.Warn(logging.Redis, logging.BackendSelect, "redis change feed unavailable, using fallback backend", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		client.Close()
		return nil
	}

	logSelected(logger, b.Name())
	return b
}

func logSelected(logger logging.Logger, name string) {
	logger.Info(logging.General, logging.BackendSelect, "sync backend selected", map[logging.ExtraKey]any{
		logging.Backend: name,
	})
}
