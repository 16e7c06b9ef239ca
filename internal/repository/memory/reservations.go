package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
)

const statsMonths = 12

type ReservationRepo struct {
	s  *Store
	tx *txState
}

// visible hides reservations inserted by other running transactions.
// Callers hold r.s.mu.
func (r *ReservationRepo) visible(id int64) bool {
	owner, ok := r.s.uncommitted[id]
	return !ok || owner == r.tx
}

// LockRange must not be called twice with overlapping stays of the same room
// type inside one transaction.
func (r *ReservationRepo) LockRange(ctx context.Context, roomTypeID int64, stay domain.DateRange) error {
	const op = "memory.ReservationRepo.LockRange"

	if r.tx == nil {
		return fmt.Errorf("%s:%w", op, repository.ErrNoTx)
	}

	r.s.mu.RLock()
	_, ok := r.s.rooms[roomTypeID]
	r.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	release, err := r.s.locks.Lock(ctx, roomTypeID, stay)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	r.tx.hold(release)

	return nil
}

func (r *ReservationRepo) CountActiveOverlapping(ctx context.Context, roomTypeID int64, stay domain.DateRange) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for id, res := range r.s.reservations {
		if !r.visible(id) {
			continue
		}
		if res.RoomTypeID == roomTypeID && res.Status.Active() && res.Stay().Overlaps(stay) {
			n++
		}
	}
	return n, nil
}

func (r *ReservationRepo) ActiveStays(ctx context.Context, roomTypeID int64, from civil.Date) ([]domain.DateRange, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.DateRange
	for id, res := range r.s.reservations {
		if !r.visible(id) {
			continue
		}
		if res.RoomTypeID == roomTypeID && res.Status.Active() && res.CheckOut.After(from) {
			out = append(out, res.Stay())
		}
	}
	return out, nil
}

func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	const op = "memory.ReservationRepo.Create"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[res.RoomTypeID]; !ok {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	if _, taken := r.s.byRef[res.ReferenceCode]; taken {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	r.s.nextResID++
	now := r.s.now().UTC()
	res.ID = r.s.nextResID
	res.CreatedAt = now
	res.UpdatedAt = now
	r.s.reservations[res.ID] = *res
	r.s.byRef[res.ReferenceCode] = res.ID

	if r.tx == nil {
		return nil
	}

	id, ref := res.ID, res.ReferenceCode
	r.s.uncommitted[id] = r.tx
	r.tx.mu.Lock()
	r.tx.inserted = append(r.tx.inserted, id)
	r.tx.mu.Unlock()

	r.tx.onRollback(func() {
		delete(r.s.reservations, id)
		delete(r.s.byRef, ref)
		delete(r.s.uncommitted, id)
	})

	return nil
}

func (r *ReservationRepo) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "memory.ReservationRepo.Get"

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	res, ok := r.s.reservations[id]
	if !ok || !r.visible(id) {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	return &res, nil
}

func (r *ReservationRepo) GetByReference(ctx context.Context, code string) (*domain.Reservation, error) {
	const op = "memory.ReservationRepo.GetByReference"

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.byRef[strings.ToUpper(code)]
	if !ok || !r.visible(id) {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	res := r.s.reservations[id]
	return &res, nil
}

func (r *ReservationRepo) List(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, error) {
	r.s.mu.RLock()
	var out []domain.Reservation
	for id, res := range r.s.reservations {
		if !r.visible(id) {
			continue
		}
		if f.UserID != 0 && res.UserID != f.UserID {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		out = append(out, res)
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Reservation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *ReservationRepo) UpdateStatus(
	ctx context.Context,
	id int64,
	from, to domain.ReservationStatus,
) (*domain.Reservation, error) {
	const op = "memory.ReservationRepo.UpdateStatus"

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.reservations[id]
	if !ok || !r.visible(id) {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	if prev.Status != from {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	next := prev
	next.Status = to
	next.UpdatedAt = r.s.now().UTC()
	r.s.reservations[id] = next

	r.tx.onRollback(func() { r.s.reservations[id] = prev })

	return &next, nil
}

func (r *ReservationRepo) CompleteEnded(ctx context.Context, day civil.Date) ([]domain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	var done []domain.Reservation
	for id, res := range r.s.reservations {
		if !r.visible(id) || res.Status != domain.StatusConfirmed || res.CheckOut.After(day) {
			continue
		}
		prev := res
		res.Status = domain.StatusCompleted
		res.UpdatedAt = now
		r.s.reservations[id] = res
		done = append(done, res)

		r.tx.onRollback(func() { r.s.reservations[prev.ID] = prev })
	}

	slices.SortFunc(done, func(a, b domain.Reservation) int { return cmp.Compare(a.ID, b.ID) })
	return done, nil
}

func (r *ReservationRepo) Stats(ctx context.Context) (*domain.ReservationStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st := &domain.ReservationStats{}
	byRoom := map[int64]*domain.RoomRevenue{}
	byMonth := map[string]*domain.MonthlyRevenue{}

	for id, res := range r.s.reservations {
		if !r.visible(id) {
			continue
		}
		st.Total++
		switch res.Status {
		case domain.StatusPending:
			st.Pending++
		case domain.StatusConfirmed:
			st.Confirmed++
		case domain.StatusCancelled:
			st.Cancelled++
		case domain.StatusCompleted:
			st.Completed++
		}

		if res.Status != domain.StatusConfirmed && res.Status != domain.StatusCompleted {
			continue
		}
		st.Revenue += res.TotalAmount

		rr, ok := byRoom[res.RoomTypeID]
		if !ok {
			rr = &domain.RoomRevenue{Name: r.s.rooms[res.RoomTypeID].Name}
			byRoom[res.RoomTypeID] = rr
		}
		rr.Bookings++
		rr.Revenue += res.TotalAmount

		month := fmt.Sprintf("%04d-%02d", res.CheckIn.Year, int(res.CheckIn.Month))
		mr, ok := byMonth[month]
		if !ok {
			mr = &domain.MonthlyRevenue{Month: month}
			byMonth[month] = mr
		}
		mr.Bookings++
		mr.Revenue += res.TotalAmount
	}

	for _, rr := range byRoom {
		st.ByRoom = append(st.ByRoom, *rr)
	}
	slices.SortFunc(st.ByRoom, func(a, b domain.RoomRevenue) int {
		if c := cmp.Compare(b.Bookings, a.Bookings); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	for _, mr := range byMonth {
		st.Monthly = append(st.Monthly, *mr)
	}
	slices.SortFunc(st.Monthly, func(a, b domain.MonthlyRevenue) int { return strings.Compare(b.Month, a.Month) })
	if len(st.Monthly) > statsMonths {
		st.Monthly = st.Monthly[:statsMonths]
	}

	return st, nil
}

func (r *ReservationRepo) DailyDemand(ctx context.Context, year int, month time.Month) ([]domain.DayDemand, error) {
	r.s.mu.RLock()
	counts := map[int]int64{}
	for id, res := range r.s.reservations {
		if !r.visible(id) {
			continue
		}
		if res.Status.Active() && res.CheckIn.Year == year && res.CheckIn.Month == month {
			counts[res.CheckIn.Day]++
		}
	}
	r.s.mu.RUnlock()

	out := make([]domain.DayDemand, 0, len(counts))
	for day, n := range counts {
		out = append(out, domain.DayDemand{Day: day, Bookings: n})
	}
	slices.SortFunc(out, func(a, b domain.DayDemand) int { return cmp.Compare(a.Day, b.Day) })
	return out, nil
}
