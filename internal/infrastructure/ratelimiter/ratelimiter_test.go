package ratelimiter

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(cache GetterSetter, c *clock) *RateLimiter {
	rl := New(Options{
		MaxRatePerSecond: 2,
		MaxBurst:         3,
		Cache:            cache,
		CacheTTL:         time.Minute,
	})
	rl.now = c.now
	return rl
}

func TestTokenBucket(t *testing.T) {
	caches := map[string]func(t *testing.T) GetterSetter{
		"in-memory": func(t *testing.T) GetterSetter {
			im := NewInMemory()
			t.Cleanup(func() { im.Close() })
			return im
		},
		"redis": func(t *testing.T) GetterSetter {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return NewRedis(client, "test:")
		},
	}

	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			c := &clock{t: time.Unix(1_700_000_000, 0)}
			rl := newTestLimiter(newCache(t), c)

			for i := 0; i < 3; i++ {
				assert.True(t, rl.Allow("src"), "request %d within burst", i)
			}
			assert.False(t, rl.Allow("src"))
			assert.Equal(t, 0, rl.Remaining("src"))

			// Other sources have their own bucket.
			assert.True(t, rl.Allow("other"))

			// Two tokens per second refill.
			c.t = c.t.Add(time.Second)
			assert.Equal(t, 2, rl.Remaining("src"))
			assert.True(t, rl.Allow("src"))
			assert.True(t, rl.Allow("src"))
			assert.False(t, rl.Allow("src"))

			// Refill never exceeds the burst.
			c.t = c.t.Add(time.Hour)
			assert.Equal(t, 3, rl.Remaining("src"))
		})
	}
}

func TestRedisCacheMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err := NewRedis(client, "test:").Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheFailureFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	rl := newTestLimiter(NewRedis(client, "test:"), &clock{t: time.Now()})
	assert.True(t, rl.Allow("src"))
}

func TestGetSourceKey(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, SourceHeaderKey: "X-Forwarded-For"})

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", rl.GetSourceKey(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	assert.Equal(t, "203.0.113.9", rl.GetSourceKey(r))

	require.Equal(t, 1, rl.GetMaxBurst())
}
