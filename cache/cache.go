// Package cache holds the Redis-backed state of the indexer: the geocode response cache,
// the replication cursors and the dead letter journals.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound     = errors.New("key not found")
	ErrEncodeFailed = errors.New("failed to encode value")
	ErrDecodeFailed = errors.New("failed to decode value")
)

// keyspace namespaces the keys of one cache as "<prefix>:<key>"
type keyspace string

func (ks keyspace) key(k string) string {
	if ks == "" {
		return k
	}
	return string(ks) + ":" + k
}

// Cache stores values of type T under a key prefix, serialized by a Codec
type Cache[T any] struct {
	client redis.Cmdable
	codec  Codec[T]
	ks     keyspace
}

func New[T any](client redis.Cmdable, prefix string, codec Codec[T]) *Cache[T] {
	return &Cache[T]{client: client, codec: codec, ks: keyspace(prefix)}
}

// Set stores value under key. A zero ttl keeps it forever.
func (c *Cache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncodeFailed, key, err)
	}
	return c.client.Set(ctx, c.ks.key(key), data, ttl).Err()
}

// Get returns ErrNotFound if the key does not exist
func (c *Cache[T]) Get(ctx context.Context, key string) (T, error) {
	return c.unmarshal(key, c.client.Get(ctx, c.ks.key(key)))
}

// GetEx reads the key and resets its expiry to ttl
func (c *Cache[T]) GetEx(ctx context.Context, key string, ttl time.Duration) (T, error) {
	return c.unmarshal(key, c.client.GetEx(ctx, c.ks.key(key), ttl))
}

func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.ks.key(key)).Err()
}

func (c *Cache[T]) unmarshal(key string, cmd *redis.StringCmd) (T, error) {
	var value T
	data, err := cmd.Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return value, ErrNotFound
	case err != nil:
		return value, err
	}
	if value, err = c.codec.Unmarshal(data); err != nil {
		return value, fmt.Errorf("%w: %s: %w", ErrDecodeFailed, key, err)
	}
	return value, nil
}
