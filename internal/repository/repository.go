package repository

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/kirinyoku/staygo/internal/domain"
)

type RoomTypeRepository interface {
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id int64) (*domain.RoomType, error)
	List(ctx context.Context, sort domain.RoomSort) ([]domain.RoomType, error)
	// Create fills ID and timestamps. ErrConflict on a duplicate name.
	Create(ctx context.Context, rt *domain.RoomType) error
	// Update overwrites every mutable column. ErrNotFound, ErrConflict.
	Update(ctx context.Context, rt *domain.RoomType) error
}

type ReservationRepository interface {
	// LockRange gives the calling transaction exclusive booking rights over
	// the room type for the given stay until it commits or rolls back.
	// Holders of non-overlapping stays and other room types are not blocked.
	// Returns ErrNotFound when the room type does not exist and ErrNoTx when
	// called outside RunTx.
	LockRange(ctx context.Context, roomTypeID int64, stay domain.DateRange) error
	// CountActiveOverlapping counts pending/confirmed reservations whose stay overlaps.
	CountActiveOverlapping(ctx context.Context, roomTypeID int64, stay domain.DateRange) (int, error)
	// ActiveStays lists stays of active reservations ending after from.
	ActiveStays(ctx context.Context, roomTypeID int64, from civil.Date) ([]domain.DateRange, error)
	// Create fills ID and timestamps. ErrConflict on a duplicate reference code.
	Create(ctx context.Context, r *domain.Reservation) error
	Get(ctx context.Context, id int64) (*domain.Reservation, error)
	GetByReference(ctx context.Context, code string) (*domain.Reservation, error)
	// List orders newest first.
	List(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, error)
	// UpdateStatus moves a reservation from one status to another only if it
	// is still in from. ErrNotFound if the id is unknown, ErrConflict if the
	// status changed underneath.
	UpdateStatus(ctx context.Context, id int64, from, to domain.ReservationStatus) (*domain.Reservation, error)
	// CompleteEnded marks confirmed reservations with check_out <= day as completed.
	CompleteEnded(ctx context.Context, day civil.Date) ([]domain.Reservation, error)
	Stats(ctx context.Context) (*domain.ReservationStats, error)
	DailyDemand(ctx context.Context, year int, month time.Month) ([]domain.DayDemand, error)
}

type PricingRepository interface {
	// Latest returns the most recently recorded snapshot, or ErrNotFound.
	Latest(ctx context.Context, roomTypeID int64, date civil.Date) (*domain.PricingSnapshot, error)
	Record(ctx context.Context, s *domain.PricingSnapshot) error
}

// Repos groups the repositories bound to one handle (pool or transaction).
type Repos interface {
	RoomTypes() RoomTypeRepository
	Reservations() ReservationRepository
	Pricing() PricingRepository
}

// Isolation is the isolation level a RunTx transaction asks for.
type Isolation int

const (
	Serializable Isolation = iota
	// ReadCommitted gives every statement a fresh snapshot. Only units that
	// take LockRange before their first dependent read may use it; the locks
	// then serialize them.
	ReadCommitted
)

type TxOptions struct {
	Isolation Isolation
}

type TxOption func(*TxOptions)

func WithIsolation(level Isolation) TxOption {
	return func(o *TxOptions) { o.Isolation = level }
}

// NewTxOptions applies opts over the serializable default.
func NewTxOptions(opts ...TxOption) TxOptions {
	o := TxOptions{Isolation: Serializable}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Store is the storage dependency of the services.
type Store interface {
	Repos
	// RunTx runs fn atomically. fn may be invoked more than once when the
	// backend asks for a retry, so it must not have side effects outside tx.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error, opts ...TxOption) error
}
