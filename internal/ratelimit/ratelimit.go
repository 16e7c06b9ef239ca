// Package ratelimit is a per-key token bucket limiter for single-instance
// deployments that run without redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long an untouched bucket is kept before it is dropped.
const idleAfter = 10 * time.Minute

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Keyed allows limit events per window for each key, with bursts up to limit.
type Keyed struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets map[string]*entry
	now     func() time.Time
	sweepAt time.Time
}

func New(limit int, window time.Duration) *Keyed {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Keyed{
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		buckets: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow reports whether one more event for key fits. The signature matches the
// redis sliding window limiter; current is the number of tokens already spent.
func (k *Keyed) Allow(ctx context.Context, key string) (allowed bool, current int64, retryAfter time.Duration, err error) {
	if err := ctx.Err(); err != nil {
		return false, 0, 0, err
	}

	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	k.sweep(now)

	e, ok := k.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(k.every, k.burst)}
		k.buckets[key] = e
	}
	e.seen = now

	r := e.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, int64(k.burst), delay, nil
	}

	spent := int64(k.burst) - int64(e.lim.TokensAt(now))
	return true, spent, 0, nil
}

// sweep drops idle buckets at most once per idleAfter. Callers hold k.mu.
func (k *Keyed) sweep(now time.Time) {
	if now.Before(k.sweepAt) {
		return
	}
	for key, e := range k.buckets {
		if now.Sub(e.seen) > idleAfter {
			delete(k.buckets, key)
		}
	}
	k.sweepAt = now.Add(idleAfter)
}
