// Package broadcast propagates committed inventory changes: it invalidates
// cached availability, notifies other instances and publishes reservation
// events. Every collaborator is optional.
package broadcast

import (
	"context"
	"fmt"

	"github.com/kirinyoku/staygo/internal/domain"
	redisrepo "github.com/kirinyoku/staygo/internal/repository/redis"
)

type InventoryNotifier interface {
	PublishInventoryChanged(ctx context.Context, roomTypeID int64) error
}

type EventPublisher interface {
	PublishReservation(ctx context.Context, kind domain.EventKind, r domain.Reservation) error
}

// Broadcaster is safe to use as a nil pointer, in which case it does nothing.
type Broadcaster struct {
	cache    *redisrepo.Cache
	notifier InventoryNotifier
	events   EventPublisher
	onError  func(op string, err error)
	local    []func(roomTypeID int64)
}

type Option func(*Broadcaster)

func WithNotifier(n InventoryNotifier) Option {
	return func(b *Broadcaster) { b.notifier = n }
}

func WithEvents(p EventPublisher) Option {
	return func(b *Broadcaster) { b.events = p }
}

// WithErrorHandler receives failures of the best-effort side effects.
func WithErrorHandler(fn func(op string, err error)) Option {
	return func(b *Broadcaster) { b.onError = fn }
}

// WithLocalListener is called in-process for every changed room type. It is
// how a single instance without redis still feeds its change streams.
func WithLocalListener(fn func(roomTypeID int64)) Option {
	return func(b *Broadcaster) { b.local = append(b.local, fn) }
}

func New(cache *redisrepo.Cache, opts ...Option) *Broadcaster {
	b := &Broadcaster{cache: cache}
	for _, o := range opts {
		o(b)
	}
	return b
}

// RoomChanged runs after a room type definition changed.
func (b *Broadcaster) RoomChanged(ctx context.Context, roomTypeID int64) {
	if b == nil {
		return
	}

	b.report("broadcast.RoomChanged", b.cache.InvalidateRoom(ctx, roomTypeID))
	b.inventoryChanged(ctx, roomTypeID)
}

// ReservationChanged runs after a reservation was created or changed status.
func (b *Broadcaster) ReservationChanged(ctx context.Context, kind domain.EventKind, r domain.Reservation) {
	if b == nil {
		return
	}

	b.report("broadcast.ReservationChanged", b.cache.InvalidateAvailability(ctx, r.RoomTypeID))
	b.inventoryChanged(ctx, r.RoomTypeID)

	if b.events != nil {
		if err := b.events.PublishReservation(ctx, kind, r); err != nil {
			b.report("broadcast.ReservationChanged", fmt.Errorf("publish %s %s: %w", kind, r.ReferenceCode, err))
		}
	}
}

func (b *Broadcaster) inventoryChanged(ctx context.Context, roomTypeID int64) {
	if b.notifier != nil {
		b.report("broadcast.inventoryChanged", b.notifier.PublishInventoryChanged(ctx, roomTypeID))
	} else {
		for _, fn := range b.local {
			fn(roomTypeID)
		}
	}
}

func (b *Broadcaster) report(op string, err error) {
	if err != nil && b.onError != nil {
		b.onError(op, err)
	}
}
