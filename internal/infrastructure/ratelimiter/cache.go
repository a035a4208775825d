package ratelimiter

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Bucket is the persisted token-bucket state of one source.
type Bucket struct {
	Tokens   float64 `json:"tokens"`
	LastFill int64   `json:"lastFill"` // Unix milliseconds
}

type GetterSetter interface {
	Get(ctx context.Context, key string) (Bucket, error)
	SetWithExpiration(ctx context.Context, key string, value Bucket, expiration time.Duration) error
	Close() error
}
