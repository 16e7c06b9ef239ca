package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/staygo/internal/domain"
)

func TestKeys(t *testing.T) {
	in := civil.Date{Year: 2026, Month: time.August, Day: 1}
	out := in.AddDays(2)

	assert.Equal(t, "staygo:v1:room:7", KeyRoom(7))
	assert.Equal(t, "staygo:v1:room:7:avail:3:2026-08-01:2026-08-03", KeyAvailability(7, 3, in, out))
	assert.Equal(t, "staygo:v1:rooms:price_per_night:asc", KeyRoomList(domain.RoomSort{Field: "nope"}))
	assert.Equal(t, "staygo:v1:rooms:rating:desc", KeyRoomList(domain.RoomSort{Field: domain.SortByRating, Desc: true}))
	assert.Len(t, roomListKeys(), 8)
	assert.Equal(t, "staygo:v1:idem:bookings:5:abc", KeyIdemBooking(5, "abc"))
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	calls := 0

	for i := 0; i < 2; i++ {
		v, err := GetOrSetJSON(ctx, c, "k", time.Minute, func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 2, calls)

	gen, err := c.AvailabilityGen(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, gen)
	assert.NoError(t, c.InvalidateRoom(ctx, 1))
	assert.NoError(t, c.Del(ctx, "k"))
}

func TestNilCachePropagatesLoaderError(t *testing.T) {
	boom := errors.New("boom")
	_, err := GetOrSetJSON(context.Background(), (*Cache)(nil), "k", time.Minute, func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWindowRetry(t *testing.T) {
	assert.Equal(t, 40*time.Second, windowRetry(80_000, 60_000, 60_000))
	assert.Equal(t, time.Duration(0), windowRetry(200_000, 60_000, 60_000))
}

// The tests below need a disposable redis:
//
//	STAYGO_TEST_REDIS_ADDR=localhost:6379
func testClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("STAYGO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STAYGO_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	return rdb
}

func TestIntegrationCacheReadThrough(t *testing.T) {
	c := New(testClient(t))
	ctx := context.Background()
	key := "staygo:test:" + uuid.NewString()
	t.Cleanup(func() { _ = c.Del(context.Background(), key) })

	calls := 0
	load := func(ctx context.Context) (domain.Availability, error) {
		calls++
		return domain.Availability{RoomTypeID: 1, Available: true, Count: 2}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrSetJSON(ctx, c, key, time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 2, v.Count)
	}
	assert.Equal(t, 1, calls)
}

func TestIntegrationAvailabilityGeneration(t *testing.T) {
	c := New(testClient(t))
	ctx := context.Background()
	id := time.Now().UnixNano()
	t.Cleanup(func() { _ = c.Del(context.Background(), KeyAvailabilityGen(id)) })

	before, err := c.AvailabilityGen(ctx, id)
	require.NoError(t, err)
	require.NoError(t, c.InvalidateRoom(ctx, id))
	after, err := c.AvailabilityGen(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestIntegrationIdempotencyStore(t *testing.T) {
	s := NewIdempotencyStore(testClient(t), time.Minute)
	ctx := context.Background()
	key := KeyIdemBooking(1, uuid.NewString())
	t.Cleanup(func() { _ = s.Release(context.Background(), key) })

	ok, err := s.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	locked, err := s.IsLocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, s.SaveResult(ctx, key, `{"id":1}`))
	res, found, err := s.GetResult(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":1}`, res)
}

func TestIntegrationSlidingWindowLimiter(t *testing.T) {
	l := NewSlidingWindowLimiter(testClient(t), "test-"+uuid.NewString(), 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, _, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, current, retry, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 3, current)
	assert.Positive(t, retry)
}
