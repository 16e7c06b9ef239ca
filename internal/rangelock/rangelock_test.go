package rangelock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/staygo/internal/domain"
)

func stay(t *testing.T, in, out string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(in, out)
	require.NoError(t, err)
	return r
}

func TestLockDisjointRangesDoNotBlock(t *testing.T) {
	l := New()
	ctx := context.Background()

	release1, err := l.Lock(ctx, 1, stay(t, "2026-05-01", "2026-05-03"))
	require.NoError(t, err)
	defer release1()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	// adjacent range, same key
	release2, err := l.Lock(ctx2, 1, stay(t, "2026-05-03", "2026-05-05"))
	require.NoError(t, err)
	defer release2()

	// overlapping range, other key
	release3, err := l.Lock(ctx2, 2, stay(t, "2026-05-01", "2026-05-03"))
	require.NoError(t, err)
	defer release3()

	assert.Equal(t, 2, l.Held(1))
	assert.Equal(t, 1, l.Held(2))
}

func TestLockOverlappingRangeWaits(t *testing.T) {
	l := New()
	ctx := context.Background()

	release, err := l.Lock(ctx, 1, stay(t, "2026-05-01", "2026-05-03"))
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := l.Lock(ctx, 1, stay(t, "2026-05-02", "2026-05-04"))
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("overlapping lock acquired while range held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	release() // idempotent

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken after release")
	}
}

func TestLockHonoursContext(t *testing.T) {
	l := New()

	release, err := l.Lock(context.Background(), 1, stay(t, "2026-05-01", "2026-05-03"))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, 1, stay(t, "2026-05-01", "2026-05-02"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockMutualExclusion(t *testing.T) {
	l := New()
	s := stay(t, "2026-08-01", "2026-08-03")

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), 9, s)
			if err != nil {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, l.Held(9))
}
