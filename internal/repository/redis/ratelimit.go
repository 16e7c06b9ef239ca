package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlidingWindowLimiter allows at most limit hits per id within window. Hits
// are kept as members of a sorted set scored by their unix millisecond, so
// every instance talking to the same redis shares the budget.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewSlidingWindowLimiter(
	rdb *redis.Client,
	scope string,
	limit int,
	window time.Duration,
) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records a hit for id and reports whether it fits the window. Rejected
// hits still count, so hammering a closed window keeps it closed.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, id string) (allowed bool, current int64, retryAfter time.Duration, err error) {
	const op = "redis.SlidingWindowLimiter.Allow"

	key := KeyRateLimit(l.scope, id)
	now := l.now().UnixMilli()
	win := l.window.Milliseconds()

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)

	// MULTI/EXEC keeps the trim and the count atomic per key
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "0", fmt.Sprint(now-win))
		p.ZAddNX(ctx, key, redis.Z{Score: float64(now), Member: uuid.NewString()})
		card = p.ZCard(ctx, key)
		oldest = p.ZRangeWithScores(ctx, key, 0, 0)
		p.PExpire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, 0, 0, fmt.Errorf("%s:%w", op, err)
	}

	current = card.Val()
	if current <= int64(l.limit) {
		return true, current, 0, nil
	}

	earliest := now - win
	if z := oldest.Val(); len(z) > 0 {
		earliest = int64(z[0].Score)
	}

	return false, current, windowRetry(now, win, earliest), nil
}

// windowRetry is how long until the oldest hit leaves the window.
func windowRetry(nowMs, windowMs, earliestMs int64) time.Duration {
	wait := windowMs - (nowMs - earliestMs)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait) * time.Millisecond
}
