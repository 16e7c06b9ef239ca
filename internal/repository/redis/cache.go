package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a JSON read-through cache. A nil *Cache is valid and caches
// nothing, so callers never branch on whether redis is configured.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	if !c.enabled() {
		return "", false, nil
	}

	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return s, true, nil
}

func (c *Cache) SetString(
	ctx context.Context,
	key string,
	val string,
	ttl time.Duration,
) error {
	if !c.enabled() {
		return nil
	}

	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}

	return c.rdb.Del(ctx, keys...).Err()
}

func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	s, ok, err := c.GetString(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}

	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return zero, false, err
	}

	return out, true, nil
}

func SetJSON(
	ctx context.Context,
	c *Cache,
	key string,
	val any,
	ttl time.Duration,
) error {
	if !c.enabled() {
		return nil
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.SetString(ctx, key, string(b), ttl)
}

// GetOrSetJSON returns the cached value for key or loads, stores and returns
// it. Concurrent misses for one key share a single loader call. Cache read
// failures fall through to the loader; write failures are ignored.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if !c.enabled() {
		return loader(ctx)
	}

	if v, ok, err := GetJSON[T](ctx, c, key); err == nil && ok {
		return v, nil
	}

	vAny, err, _ := c.sf.Do(key, func() (any, error) {
		if v2, ok2, err2 := GetJSON[T](ctx, c, key); err2 == nil && ok2 {
			return v2, nil
		}
		v3, err3 := loader(ctx)
		if err3 != nil {
			return nil, err3
		}
		_ = SetJSON(ctx, c, key, v3, ttl)
		return v3, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := vAny.(T)
	if !ok {
		var zero T
		return zero, errors.New("type assertion failed")
	}

	return v, nil
}

// AvailabilityGen returns the current availability generation of a room type.
func (c *Cache) AvailabilityGen(ctx context.Context, roomTypeID int64) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}

	n, err := c.rdb.Get(ctx, KeyAvailabilityGen(roomTypeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return n, err
}

// InvalidateAvailability orphans every cached availability answer for the room type.
func (c *Cache) InvalidateAvailability(ctx context.Context, roomTypeID int64) error {
	if !c.enabled() {
		return nil
	}

	return c.rdb.Incr(ctx, KeyAvailabilityGen(roomTypeID)).Err()
}

// InvalidateRoom drops the cached room type, the cached listings and its
// availability answers.
func (c *Cache) InvalidateRoom(ctx context.Context, roomTypeID int64) error {
	if !c.enabled() {
		return nil
	}

	keys := append([]string{KeyRoom(roomTypeID)}, roomListKeys()...)
	if err := c.Del(ctx, keys...); err != nil {
		return err
	}

	return c.InvalidateAvailability(ctx, roomTypeID)
}
