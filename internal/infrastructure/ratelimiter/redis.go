package ratelimiter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares bucket state between instances that use the same Redis.
// The client is owned by the caller.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedis(client redis.UniversalClient, keyPrefix string) *Redis {
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (c *Redis) Get(ctx context.Context, key string) (Bucket, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Bucket{}, ErrCacheMiss
		}
		return Bucket{}, err
	}

	var b Bucket
	if err := json.Unmarshal(data, &b); err != nil {
		return Bucket{}, err
	}
	return b, nil
}

func (c *Redis) SetWithExpiration(ctx context.Context, key string, value Bucket, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.keyPrefix+key, data, expiration).Err()
}

func (c *Redis) Close() error {
	return nil
}
