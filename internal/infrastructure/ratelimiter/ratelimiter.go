package ratelimiter

import (
	"context"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	bucketKeyPrefix  = "rl:bucket:"
	defaultSourceKey = "X-RateLimit-Key"
	cacheTimeout     = 250 * time.Millisecond
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
}

// RateLimiter is a token bucket per source key. Bucket state lives in a
// GetterSetter so it can be shared through Redis.
type RateLimiter struct {
	maxRatePerMillisecond float64
	maxBurst              int
	cache                 GetterSetter
	cacheTTL              time.Duration
	sourceHeaderKey       string
	now                   func() time.Time
	// Per-key locks to ensure atomic operations for each source
	locks sync.Map // map[string]*sync.Mutex
}

func (rl *RateLimiter) getLock(sourceKey string) *sync.Mutex {
	lock, _ := rl.locks.LoadOrStore(sourceKey, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (rl *RateLimiter) getState(ctx context.Context, sourceKey string, now int64) Bucket {
	b, err := rl.cache.Get(ctx, bucketKeyPrefix+sourceKey)
	if err != nil {
		// Misses and cache failures both start from a full bucket (fail open).
		return Bucket{Tokens: float64(rl.maxBurst), LastFill: now}
	}
	return b
}

func (rl *RateLimiter) setState(ctx context.Context, sourceKey string, state Bucket) {
	_ = rl.cache.SetWithExpiration(ctx, bucketKeyPrefix+sourceKey, state, rl.cacheTTL)
}

func (rl *RateLimiter) refill(state Bucket, now int64) Bucket {
	elapsed := now - state.LastFill
	if elapsed <= 0 {
		return state
	}

	tokens := math.Min(state.Tokens+float64(elapsed)*rl.maxRatePerMillisecond, float64(rl.maxBurst))
	return Bucket{Tokens: tokens, LastFill: now}
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	now := rl.now().UnixMilli()
	state := rl.refill(rl.getState(ctx, sourceKey, now), now)

	return int(math.Floor(state.Tokens))
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	now := rl.now().UnixMilli()
	state := rl.refill(rl.getState(ctx, sourceKey, now), now)

	if state.Tokens >= 1 {
		state.Tokens--
		rl.setState(ctx, sourceKey, state)
		return true
	}

	rl.setState(ctx, sourceKey, state)
	return false
}

func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
		// X-Forwarded-For may carry a chain; the first hop is the client.
		if idx := strings.Index(key, ","); idx > 0 {
			key = key[:idx]
		}
		return strings.TrimSpace(key)
	}

	// Fall back to IP address
	return r.RemoteAddr
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	SourceHeaderKey  string
}

func New(options Options) *RateLimiter {
	if options.Cache == nil {
		options.Cache = NewInMemory()
	}

	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}

	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond // Reasonable default
	}

	if options.SourceHeaderKey == "" {
		options.SourceHeaderKey = defaultSourceKey
	}

	return &RateLimiter{
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              options.MaxBurst,
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		now:                   time.Now,
	}
}
