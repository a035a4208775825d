package transport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *configs.Config {
	cfg := &configs.Config{}
	cfg.Sync.Fallback = configs.FallbackLocal
	cfg.Sync.ProbeTimeout = 200 * time.Millisecond
	cfg.Presence.StaleAfter = 2 * time.Minute
	cfg.Typing.FreshFor = 10 * time.Second
	cfg.Redis.KeyPrefix = "test"
	cfg.Polling.Driver = "sqlite"
	cfg.Polling.Interval = 50 * time.Millisecond
	return cfg
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewNop()

	t.Run("no redis configured uses local", func(t *testing.T) {
		b, err := Select(ctx, testConfig(), logger)
		require.NoError(t, err)
		defer b.Close()
		assert.Equal(t, NameLocal, b.Name())
	})

	t.Run("reachable redis uses remote", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig()
		cfg.Redis.Address = mr.Addr()

		b, err := Select(ctx, cfg, logger)
		require.NoError(t, err)
		defer b.Close()
		assert.Equal(t, NameRemote, b.Name())
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := testConfig()
		cfg.Redis.Address = addr

		b, err := Select(ctx, cfg, logger)
		require.NoError(t, err)
		defer b.Close()
		assert.Equal(t, NameLocal, b.Name())
	})

	t.Run("polling fallback", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sync.Fallback = configs.FallbackPolling
		cfg.Polling.DSN = filepath.Join(t.TempDir(), "parley.db")

		b, err := Select(ctx, cfg, logger)
		require.NoError(t, err)
		defer b.Close()
		assert.Equal(t, NamePolling, b.Name())
	})
}
