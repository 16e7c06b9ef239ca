package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
	redisrepo "github.com/kirinyoku/staygo/internal/repository/redis"
)

type Config struct {
	// CacheTTL bounds how long a cached answer may be served. Writers bump
	// the room type's generation after commit, so entries normally die
	// earlier than that.
	CacheTTL time.Duration
}

type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store repository.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// Remaining is max(0, total_units - active reservations overlapping stay),
// read through repos. It never consults the cache.
func Remaining(ctx context.Context, repos repository.Repos, rt *domain.RoomType, stay domain.DateRange) (int, error) {
	const op = "service.availability.Remaining"

	taken, err := repos.Reservations().CountActiveOverlapping(ctx, rt.ID, stay)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return max(0, rt.TotalUnits-taken), nil
}

// Capacity returns how many more units of the room type can be booked for stay.
//
// Returns:
//   - int: remaining units, never negative.
//   - error: domain.ErrNotFound if the room type does not exist.
func (s *Service) Capacity(ctx context.Context, roomTypeID int64, stay domain.DateRange) (int, error) {
	const op = "service.availability.Capacity"

	rt, err := s.roomType(ctx, roomTypeID)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	n, err := Remaining(ctx, s.store, rt, stay)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return n, nil
}

// Check answers whether at least one unit is free for the whole stay. Answers
// are cached per room type, range and inventory generation.
//
// Returns:
//   - *domain.Availability: the answer with the remaining count.
//   - error: domain.ErrInvalidRange if checkOut is not after checkIn.
//   - error: domain.ErrNotFound if the room type does not exist.
func (s *Service) Check(ctx context.Context, roomTypeID int64, checkIn, checkOut civil.Date) (*domain.Availability, error) {
	const op = "service.availability.Check"

	stay, err := domain.NewDateRange(checkIn, checkOut)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	gen, err := s.cache.AvailabilityGen(ctx, roomTypeID)
	if err != nil {
		// a cache outage must not take availability down with it
		gen = -1
	}

	load := func(ctx context.Context) (domain.Availability, error) {
		n, err := s.Capacity(ctx, roomTypeID, stay)
		if err != nil {
			return domain.Availability{}, err
		}
		return domain.Availability{
			RoomTypeID: roomTypeID,
			CheckIn:    stay.CheckIn,
			CheckOut:   stay.CheckOut,
			Available:  n > 0,
			Count:      n,
		}, nil
	}

	var a domain.Availability
	if gen < 0 {
		a, err = load(ctx)
	} else {
		a, err = redisrepo.GetOrSetJSON(
			ctx,
			s.cache,
			redisrepo.KeyAvailability(roomTypeID, gen, stay.CheckIn, stay.CheckOut),
			s.cfg.CacheTTL,
			load,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &a, nil
}

// CheckAll reports remaining units of every room type for the stay, in
// catalogue price order.
func (s *Service) CheckAll(ctx context.Context, checkIn, checkOut civil.Date) ([]domain.RoomAvailability, error) {
	const op = "service.availability.CheckAll"

	stay, err := domain.NewDateRange(checkIn, checkOut)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	rooms, err := s.store.RoomTypes().List(ctx, domain.RoomSort{Field: domain.SortByPrice})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	out := make([]domain.RoomAvailability, 0, len(rooms))
	for i := range rooms {
		n, err := Remaining(ctx, s.store, &rooms[i], stay)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		out = append(out, domain.RoomAvailability{RoomType: rooms[i], AvailableUnits: n})
	}

	return out, nil
}

func (s *Service) roomType(ctx context.Context, id int64) (*domain.RoomType, error) {
	rt, err := s.store.RoomTypes().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.RoomTypeNotFoundError{RoomTypeID: id}
		}
		return nil, err
	}
	return rt, nil
}
