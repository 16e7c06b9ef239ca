package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
	redisrepo "github.com/kirinyoku/staygo/internal/repository/redis"
)

type Config struct {
	StatsTTL    time.Duration
	DefaultPage int
	MaxPage     int
}

type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store repository.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 30 * time.Second
	}

	if cfg.DefaultPage <= 0 {
		cfg.DefaultPage = 100
	}

	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 500
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// GetReservation returns a reservation to its owner or to an admin.
//
// Returns:
//   - error: domain.ErrNotFound if the reservation does not exist.
//   - error: domain.ErrForbidden if the actor is neither owner nor admin.
func (s *Service) GetReservation(
	ctx context.Context,
	id, actorUserID int64,
	role domain.Role,
) (*domain.Reservation, error) {
	const op = "service.query.GetReservation"

	r, err := s.store.Reservations().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, domain.ReservationNotFoundError{ReservationID: id})
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !r.OwnedBy(actorUserID, role) {
		return nil, fmt.Errorf("%s:%w", op, domain.ForbiddenError{ReservationID: id, UserID: actorUserID})
	}

	return r, nil
}

// GetByReference looks a reservation up by its reference code, which is
// matched case-insensitively.
func (s *Service) GetByReference(
	ctx context.Context,
	code string,
	actorUserID int64,
	role domain.Role,
) (*domain.Reservation, error) {
	const op = "service.query.GetByReference"

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%s:%w", op, domain.InvalidArgumentError{Field: "reference_code", Reason: "must not be empty"})
	}

	r, err := s.store.Reservations().GetByReference(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, domain.ReservationNotFoundError{Reference: code})
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !r.OwnedBy(actorUserID, role) {
		return nil, fmt.Errorf("%s:%w", op, domain.ForbiddenError{ReservationID: r.ID, UserID: actorUserID})
	}

	return r, nil
}

// ListForUser returns the user's reservations, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Reservation, error) {
	const op = "service.query.ListForUser"

	if userID <= 0 {
		return nil, fmt.Errorf("%s:%w", op, domain.InvalidArgumentError{Field: "user_id", Reason: "must be positive"})
	}

	out, err := s.list(ctx, domain.ReservationFilter{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListAll returns every reservation, optionally filtered by status.
//
// Parameters:
//   - status: empty for all statuses.
//   - limit: page size; non-positive means the default, capped at the maximum.
//   - offset: rows to skip.
func (s *Service) ListAll(
	ctx context.Context,
	status domain.ReservationStatus,
	limit, offset int,
) ([]domain.Reservation, error) {
	const op = "service.query.ListAll"

	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%s:%w", op, domain.InvalidArgumentError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)})
	}

	out, err := s.list(ctx, domain.ReservationFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) list(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, error) {
	if f.Limit <= 0 {
		f.Limit = s.cfg.DefaultPage
	}

	if f.Limit > s.cfg.MaxPage {
		f.Limit = s.cfg.MaxPage
	}

	if f.Offset < 0 {
		return nil, domain.InvalidArgumentError{Field: "offset", Reason: "must not be negative"}
	}

	out, err := s.store.Reservations().List(ctx, f)
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = []domain.Reservation{}
	}

	return out, nil
}

// Stats aggregates reservation counts and revenue. Results are cached briefly.
func (s *Service) Stats(ctx context.Context) (*domain.ReservationStats, error) {
	const op = "service.query.Stats"

	stats, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyStats(),
		s.cfg.StatsTTL,
		func(ctx context.Context) (domain.ReservationStats, error) {
			st, err := s.store.Reservations().Stats(ctx)
			if err != nil {
				return domain.ReservationStats{}, err
			}

			return *st, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &stats, nil
}

// DemandHeatmap counts active reservations per check-in day of the month.
// Days without bookings are omitted.
func (s *Service) DemandHeatmap(ctx context.Context, year int, month time.Month) ([]domain.DayDemand, error) {
	const op = "service.query.DemandHeatmap"

	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("%s:%w", op, domain.InvalidArgumentError{Field: "year", Reason: "must be between 1 and 9999"})
	}

	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%s:%w", op, domain.InvalidArgumentError{Field: "month", Reason: "must be between 1 and 12"})
	}

	days, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyHeatmap(year, month),
		s.cfg.StatsTTL,
		func(ctx context.Context) ([]domain.DayDemand, error) {
			out, err := s.store.Reservations().DailyDemand(ctx, year, month)
			if err != nil {
				return nil, err
			}
			if out == nil {
				out = []domain.DayDemand{}
			}
			return out, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return days, nil
}
