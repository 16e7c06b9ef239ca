package catalogue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
	redisrepo "github.com/kirinyoku/staygo/internal/repository/redis"
	"github.com/kirinyoku/staygo/internal/service/broadcast"
	"github.com/kirinyoku/staygo/internal/uow"
)

const (
	defaultRating = 4.0
	maxRating     = 5.0
)

type Config struct {
	RoomTTL time.Duration
	Now     func() time.Time
}

type Service struct {
	store       repository.Store
	cache       *redisrepo.Cache
	broadcaster *broadcast.Broadcaster
	uow         *uow.UoW
	cfg         Config
}

func New(
	store repository.Store,
	cache *redisrepo.Cache,
	broadcaster *broadcast.Broadcaster,
	cfg Config,
) *Service {
	if cfg.RoomTTL <= 0 {
		cfg.RoomTTL = 5 * time.Minute
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		store:       store,
		cache:       cache,
		broadcaster: broadcaster,
		uow:         uow.NewUoW(store),
		cfg:         cfg,
	}
}

// RoomInput is a complete room type definition. Rating defaults to 4.0.
type RoomInput struct {
	Name              string
	Description       string
	Capacity          int
	TotalUnits        int
	BasePricePerNight int64
	Amenities         []string
	ImageURL          string
	Rating            *float64
}

// RoomPatch changes only the fields that are set.
type RoomPatch struct {
	Name              *string
	Description       *string
	Capacity          *int
	TotalUnits        *int
	BasePricePerNight *int64
	Amenities         *[]string
	ImageURL          *string
	Rating            *float64
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.RoomType, error) {
	const op = "service.catalogue.Get"

	rt, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyRoom(id),
		s.cfg.RoomTTL,
		func(ctx context.Context) (domain.RoomType, error) {
			rt, err := s.store.RoomTypes().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.RoomType{}, domain.RoomTypeNotFoundError{RoomTypeID: id}
				}
				return domain.RoomType{}, err
			}
			return *rt, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &rt, nil
}

// List returns every room type; unknown sort fields fall back to price.
func (s *Service) List(ctx context.Context, sort domain.RoomSort) ([]domain.RoomType, error) {
	const op = "service.catalogue.List"

	sort = sort.Normalize()

	rooms, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyRoomList(sort),
		s.cfg.RoomTTL,
		func(ctx context.Context) ([]domain.RoomType, error) {
			return s.store.RoomTypes().List(ctx, sort)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return rooms, nil
}

// Create adds a room type.
//
// Returns:
//   - error: domain.ErrInvalidArgument for an invalid definition.
//   - error: domain.ErrConflict if the name is taken.
func (s *Service) Create(ctx context.Context, in RoomInput) (*domain.RoomType, error) {
	const op = "service.catalogue.Create"

	rt := domain.RoomType{
		Name:              strings.TrimSpace(in.Name),
		Description:       strings.TrimSpace(in.Description),
		Capacity:          in.Capacity,
		TotalUnits:        in.TotalUnits,
		BasePricePerNight: in.BasePricePerNight,
		Amenities:         cleanAmenities(in.Amenities),
		ImageURL:          strings.TrimSpace(in.ImageURL),
		Rating:            defaultRating,
	}
	if in.Rating != nil {
		rt.Rating = *in.Rating
	}

	if err := validate(&rt); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if err := tx.RoomTypes().Create(ctx, &rt); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return NameTakenError{Name: rt.Name}
			}
			return err
		}

		id := rt.ID
		after(func(ctx context.Context) {
			s.broadcaster.RoomChanged(ctx, id)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &rt, nil
}

// Update applies a partial change. It holds the room type's range lock from
// today onwards, so no booking can race a reduction of total_units, which is
// refused below the peak number of units booked on any night from today.
//
// Returns:
//   - error: domain.ErrNotFound if the room type does not exist.
//   - error: domain.ErrInvalidArgument for an invalid result.
//   - error: domain.ErrConflict if the name is taken or units are below bookings.
func (s *Service) Update(ctx context.Context, id int64, patch RoomPatch) (*domain.RoomType, error) {
	const op = "service.catalogue.Update"

	today := civil.DateOf(s.cfg.Now())
	horizon := domain.DateRange{CheckIn: today, CheckOut: domain.MaxDate}

	var out *domain.RoomType

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if err := tx.Reservations().LockRange(ctx, id, horizon); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.RoomTypeNotFoundError{RoomTypeID: id}
			}
			return err
		}

		rt, err := tx.RoomTypes().Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.RoomTypeNotFoundError{RoomTypeID: id}
			}
			return err
		}

		prevUnits := rt.TotalUnits
		patch.apply(rt)

		if err := validate(rt); err != nil {
			return err
		}

		if rt.TotalUnits < prevUnits {
			stays, err := tx.Reservations().ActiveStays(ctx, id, today)
			if err != nil {
				return err
			}
			if peak := domain.PeakOccupancy(clip(stays, today)); rt.TotalUnits < peak {
				return UnitsBelowBookedError{RoomTypeID: id, Requested: rt.TotalUnits, Booked: peak}
			}
		}

		if err := tx.RoomTypes().Update(ctx, rt); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return NameTakenError{Name: rt.Name}
			}
			if errors.Is(err, repository.ErrNotFound) {
				return domain.RoomTypeNotFoundError{RoomTypeID: id}
			}
			return err
		}

		out = rt
		after(func(ctx context.Context) {
			s.broadcaster.RoomChanged(ctx, id)
		})

		return nil
	}, repository.WithIsolation(repository.ReadCommitted))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SeedDefaults loads rooms into an empty catalogue and reports how many it added.
func (s *Service) SeedDefaults(ctx context.Context, rooms []RoomInput) (int, error) {
	const op = "service.catalogue.SeedDefaults"

	existing, err := s.store.RoomTypes().List(ctx, domain.RoomSort{})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i, in := range rooms {
		if _, err := s.Create(ctx, in); err != nil {
			return i, fmt.Errorf("%s:%w", op, err)
		}
	}

	return len(rooms), nil
}

func (p RoomPatch) apply(rt *domain.RoomType) {
	if p.Name != nil {
		rt.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		rt.Description = strings.TrimSpace(*p.Description)
	}
	if p.Capacity != nil {
		rt.Capacity = *p.Capacity
	}
	if p.TotalUnits != nil {
		rt.TotalUnits = *p.TotalUnits
	}
	if p.BasePricePerNight != nil {
		rt.BasePricePerNight = *p.BasePricePerNight
	}
	if p.Amenities != nil {
		rt.Amenities = cleanAmenities(*p.Amenities)
	}
	if p.ImageURL != nil {
		rt.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	if p.Rating != nil {
		rt.Rating = *p.Rating
	}
}

func validate(rt *domain.RoomType) error {
	switch {
	case rt.Name == "":
		return domain.InvalidArgumentError{Field: "name", Reason: "must not be empty"}
	case rt.Capacity <= 0:
		return domain.InvalidArgumentError{Field: "capacity", Reason: "must be positive"}
	case rt.TotalUnits < 0:
		return domain.InvalidArgumentError{Field: "total_units", Reason: "must not be negative"}
	case rt.BasePricePerNight < 0:
		return domain.InvalidArgumentError{Field: "base_price_per_night", Reason: "must not be negative"}
	case math.IsNaN(rt.Rating) || rt.Rating < 0 || rt.Rating > maxRating:
		return domain.InvalidArgumentError{Field: "rating", Reason: "must be between 0 and 5"}
	}
	return nil
}

func cleanAmenities(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// clip drops the nights before from, which no longer constrain inventory.
func clip(stays []domain.DateRange, from civil.Date) []domain.DateRange {
	out := make([]domain.DateRange, 0, len(stays))
	for _, st := range stays {
		if st.CheckIn.Before(from) {
			st.CheckIn = from
		}
		if st.CheckOut.After(st.CheckIn) {
			out = append(out, st)
		}
	}
	return out
}
