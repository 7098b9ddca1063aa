package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/mooncress/authcore/internal/cache"

	"github.com/redis/go-redis/v9"
)

// Cache implements cache.Cache on top of a Redis instance.
type Cache struct {
	client *redis.Client
}

var _ cache.Cache = (*Cache)(nil)

// New connects to the Redis instance at addr. db selects the logical
// database, password may be empty.
func New(addr, password string, db int) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewFromClient wraps an existing client, used by tests.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error { return c.client.Close() }
