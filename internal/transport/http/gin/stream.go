package httpgin

import (
	"context"
	"sync"
)

// StreamHub wakes availability streams when a room type's inventory changed.
// Wake-ups coalesce: a slow stream sees one pending signal, not a backlog.
type StreamHub struct {
	mu     sync.Mutex
	subs   map[int64]map[chan struct{}]struct{}
	closed bool
}

func NewStreamHub() *StreamHub {
	return &StreamHub{subs: make(map[int64]map[chan struct{}]struct{})}
}

// Subscribe returns a signal channel and the func that unsubscribes it. The
// channel is closed when the hub shuts down.
func (h *StreamHub) Subscribe(roomTypeID int64) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[roomTypeID] == nil {
		h.subs[roomTypeID] = make(map[chan struct{}]struct{})
	}
	h.subs[roomTypeID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if h.closed {
				h.mu.Unlock()
				return
			}
			delete(h.subs[roomTypeID], ch)
			if len(h.subs[roomTypeID]) == 0 {
				delete(h.subs, roomTypeID)
			}
			h.mu.Unlock()
		})
	}
}

func (h *StreamHub) Notify(roomTypeID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[roomTypeID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// NotifyContext has the shape of a pub/sub handler.
func (h *StreamHub) NotifyContext(_ context.Context, roomTypeID int64) {
	h.Notify(roomTypeID)
}

// Close ends every open stream. It is registered as an http.Server shutdown hook.
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, set := range h.subs {
		for ch := range set {
			close(ch)
		}
	}
	h.subs = nil
}

func (h *StreamHub) Subscribers(roomTypeID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[roomTypeID])
}
