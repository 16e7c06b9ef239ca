// Package rangelock serializes work on overlapping date ranges of the same key.
//
// A holder blocks only callers whose key matches and whose range overlaps its
// own, so different room types and disjoint stays proceed in parallel.
package rangelock

import (
	"context"
	"sync"

	"github.com/kirinyoku/staygo/internal/domain"
)

type hold struct {
	stay domain.DateRange
	done chan struct{}
}

type Locker struct {
	mu   sync.Mutex
	held map[int64][]*hold
}

func New() *Locker {
	return &Locker{held: make(map[int64][]*hold)}
}

// Lock waits until no other holder of key overlaps stay, then takes the range.
// The returned release func is idempotent.
func (l *Locker) Lock(ctx context.Context, key int64, stay domain.DateRange) (func(), error) {
	for {
		l.mu.Lock()
		blocker := l.firstOverlap(key, stay)
		if blocker == nil {
			h := &hold{stay: stay, done: make(chan struct{})}
			l.held[key] = append(l.held[key], h)
			l.mu.Unlock()

			var once sync.Once
			return func() { once.Do(func() { l.release(key, h) }) }, nil
		}
		l.mu.Unlock()

		select {
		case <-blocker.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Held reports how many ranges are currently held for key.
func (l *Locker) Held(key int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held[key])
}

func (l *Locker) firstOverlap(key int64, stay domain.DateRange) *hold {
	for _, h := range l.held[key] {
		if h.stay.Overlaps(stay) {
			return h
		}
	}
	return nil
}

func (l *Locker) release(key int64, h *hold) {
	l.mu.Lock()
	holds := l.held[key]
	for i, x := range holds {
		if x == h {
			holds = append(holds[:i], holds[i+1:]...)
			break
		}
	}
	if len(holds) == 0 {
		delete(l.held, key)
	} else {
		l.held[key] = holds
	}
	l.mu.Unlock()

	close(h.done)
}
