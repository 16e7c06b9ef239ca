package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
	"github.com/kirinyoku/staygo/internal/service/broadcast"
	"github.com/kirinyoku/staygo/internal/uow"
)

// casAttempts bounds re-reads when a concurrent transition wins the race.
const casAttempts = 3

type Config struct {
	Now func() time.Time
}

type Service struct {
	store       repository.Store
	uow         *uow.UoW
	broadcaster *broadcast.Broadcaster
	cfg         Config
}

func New(store repository.Store, broadcaster *broadcast.Broadcaster, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		store:       store,
		uow:         uow.NewUoW(store),
		broadcaster: broadcaster,
		cfg:         cfg,
	}
}

// Confirm moves a pending reservation to confirmed.
//
// Returns:
//   - error: domain.ErrNotFound if the reservation does not exist.
//   - error: domain.ErrInvalidTransition unless it is pending.
func (s *Service) Confirm(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "service.lifecycle.Confirm"

	res, err := s.transition(ctx, id, domain.StatusConfirmed, nil)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// Cancel moves a pending or confirmed reservation to cancelled on behalf of
// its owner or an admin. The units it held are free as soon as this returns.
//
// Returns:
//   - error: domain.ErrNotFound if the reservation does not exist.
//   - error: domain.ErrForbidden if the actor is neither owner nor admin.
//   - error: domain.ErrInvalidTransition if it is already cancelled or completed.
func (s *Service) Cancel(ctx context.Context, id, actorUserID int64, actorRole domain.Role) (*domain.Reservation, error) {
	const op = "service.lifecycle.Cancel"

	res, err := s.transition(ctx, id, domain.StatusCancelled, func(r *domain.Reservation) error {
		if !r.OwnedBy(actorUserID, actorRole) {
			return domain.ForbiddenError{ReservationID: r.ID, UserID: actorUserID}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// CompleteEnded marks every confirmed reservation whose stay ended on or
// before today as completed and returns how many changed.
func (s *Service) CompleteEnded(ctx context.Context) (int, error) {
	const op = "service.lifecycle.CompleteEnded"

	today := civil.DateOf(s.cfg.Now())

	var done []domain.Reservation
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		var err error
		done, err = tx.Reservations().CompleteEnded(ctx, today)
		if err != nil {
			return err
		}

		completed := done
		after(func(ctx context.Context) {
			for _, r := range completed {
				s.broadcaster.ReservationChanged(ctx, domain.EventReservationCompleted, r)
			}
		})

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return len(done), nil
}

// transition applies a compare-and-set status change. authorize runs against
// the stored reservation before the state machine is consulted. A lost race
// re-reads the reservation and re-validates.
func (s *Service) transition(
	ctx context.Context,
	id int64,
	to domain.ReservationStatus,
	authorize func(*domain.Reservation) error,
) (*domain.Reservation, error) {
	var out *domain.Reservation

	for attempt := 0; attempt < casAttempts; attempt++ {
		err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
			cur, err := tx.Reservations().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.ReservationNotFoundError{ReservationID: id}
				}
				return err
			}

			if authorize != nil {
				if err := authorize(cur); err != nil {
					return err
				}
			}

			if !cur.Status.CanTransitionTo(to) {
				return TransitionError{ReservationID: id, From: cur.Status, To: to}
			}

			updated, err := tx.Reservations().UpdateStatus(ctx, id, cur.Status, to)
			if err != nil {
				return err
			}

			out = updated
			after(func(ctx context.Context) {
				s.broadcaster.ReservationChanged(ctx, domain.EventFor(to), *updated)
			})

			return nil
		})
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return out, nil
	}

	return nil, fmt.Errorf("reservation %d kept changing underneath:%w", id, domain.ErrConflict)
}
