package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
	"github.com/kirinyoku/staygo/internal/service/availability"
	"github.com/kirinyoku/staygo/internal/service/broadcast"
	"github.com/kirinyoku/staygo/internal/service/pricing"
	"github.com/kirinyoku/staygo/internal/uow"
)

const referenceLength = 8

// Limiter is satisfied by both the redis sliding window and the in-process
// token bucket.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

type Config struct {
	// ReferenceAttempts bounds retries on reference code collisions.
	ReferenceAttempts int
	// NewReference generates candidate reference codes.
	NewReference func() string
}

type Service struct {
	store       repository.Store
	uow         *uow.UoW
	limiter     Limiter
	broadcaster *broadcast.Broadcaster
	cfg         Config
}

// NewReference returns the first eight hex digits of a random UUID, uppercased.
func NewReference() string {
	return strings.ToUpper(uuid.NewString()[:referenceLength])
}

func New(
	store repository.Store,
	limiter Limiter,
	broadcaster *broadcast.Broadcaster,
	cfg Config,
) *Service {
	if cfg.ReferenceAttempts <= 0 {
		cfg.ReferenceAttempts = 5
	}

	if cfg.NewReference == nil {
		cfg.NewReference = NewReference
	}

	return &Service{
		store:       store,
		uow:         uow.NewUoW(store),
		limiter:     limiter,
		broadcaster: broadcaster,
		cfg:         cfg,
	}
}

type Request struct {
	UserID     int64
	RoomTypeID int64
	CheckIn    civil.Date
	CheckOut   civil.Date
	// Guests defaults to 1 when zero.
	Guests int
	Notes  string
}

// Book validates the request, then re-checks availability, prices and
// persists the reservation as pending in one transaction holding the
// room type's range lock.
//
// Returns:
//   - *domain.Reservation: the pending reservation.
//   - error: domain.ErrRateLimited if the user exceeded the booking rate.
//   - error: domain.ErrNotFound if the room type does not exist.
//   - error: domain.ErrInvalidRange if check-out is not after check-in.
//   - error: domain.ErrInvalidArgument for a negative guest count.
//   - error: domain.ErrCapacityExceeded if there are more guests than the room holds.
//   - error: domain.ErrNoAvailability if every unit is taken for some night.
//   - error: domain.ErrInternal if no unique reference code could be generated.
func (s *Service) Book(ctx context.Context, req Request) (*domain.Reservation, error) {
	const op = "service.booking.Book"

	if s.limiter != nil {
		ok, _, retry, err := s.limiter.Allow(ctx, strconv.FormatInt(req.UserID, 10))
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: retry})
		}
	}

	rt, err := s.roomType(ctx, s.store, req.RoomTypeID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	stay, err := domain.NewDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	guests, err := checkGuests(req.Guests, rt.Capacity)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var res *domain.Reservation

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if err := tx.Reservations().LockRange(ctx, req.RoomTypeID, stay); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.RoomTypeNotFoundError{RoomTypeID: req.RoomTypeID}
			}
			return err
		}

		// total_units and capacity cannot change while the lock is held
		rt, err := s.roomType(ctx, tx, req.RoomTypeID)
		if err != nil {
			return err
		}
		if _, err := checkGuests(guests, rt.Capacity); err != nil {
			return err
		}

		left, err := availability.Remaining(ctx, tx, rt, stay)
		if err != nil {
			return err
		}
		if left <= 0 {
			return NoAvailabilityError{RoomTypeID: rt.ID, Stay: stay}
		}

		// the check-in night's rate applies to every night of the stay
		quote, err := pricing.QuoteWith(ctx, tx, rt, stay.CheckIn)
		if err != nil {
			return err
		}

		r := &domain.Reservation{
			UserID:      req.UserID,
			RoomTypeID:  rt.ID,
			CheckIn:     stay.CheckIn,
			CheckOut:    stay.CheckOut,
			GuestCount:  guests,
			TotalAmount: quote.Amount * int64(stay.Nights()),
			Notes:       strings.TrimSpace(req.Notes),
			Status:      domain.StatusPending,
		}
		if err := s.insertWithReference(ctx, tx, r); err != nil {
			return err
		}

		res = r

		after(func(ctx context.Context) {
			s.broadcaster.ReservationChanged(ctx, domain.EventReservationCreated, *r)
		})

		return nil
	}, repository.WithIsolation(repository.ReadCommitted))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (s *Service) insertWithReference(ctx context.Context, tx repository.Repos, r *domain.Reservation) error {
	for attempt := 0; attempt < s.cfg.ReferenceAttempts; attempt++ {
		r.ReferenceCode = s.cfg.NewReference()

		err := tx.Reservations().Create(ctx, r)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
	}

	return fmt.Errorf("no unique reference code after %d attempts:%w", s.cfg.ReferenceAttempts, domain.ErrInternal)
}

func (s *Service) roomType(ctx context.Context, repos repository.Repos, id int64) (*domain.RoomType, error) {
	rt, err := repos.RoomTypes().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.RoomTypeNotFoundError{RoomTypeID: id}
		}
		return nil, err
	}
	return rt, nil
}

func checkGuests(guests, capacity int) (int, error) {
	switch {
	case guests < 0:
		return 0, domain.InvalidArgumentError{Field: "guests", Reason: "must not be negative"}
	case guests == 0:
		guests = 1
	}

	if guests > capacity {
		return 0, CapacityExceededError{Guests: guests, Capacity: capacity}
	}

	return guests, nil
}
