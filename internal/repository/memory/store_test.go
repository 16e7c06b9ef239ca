package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/repository"
)

func newRoom(t *testing.T, s *Store, name string, units int) domain.RoomType {
	t.Helper()
	rt := domain.RoomType{Name: name, Capacity: 2, TotalUnits: units, BasePricePerNight: 5000}
	require.NoError(t, s.RoomTypes().Create(context.Background(), &rt))
	return rt
}

func stay(t *testing.T, in, out string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(in, out)
	require.NoError(t, err)
	return r
}

func reservation(roomID int64, ref string, r domain.DateRange, status domain.ReservationStatus) *domain.Reservation {
	return &domain.Reservation{
		UserID:        1,
		RoomTypeID:    roomID,
		ReferenceCode: ref,
		CheckIn:       r.CheckIn,
		CheckOut:      r.CheckOut,
		GuestCount:    1,
		TotalAmount:   10000,
		Status:        status,
	}
}

func TestRoomTypeCreateRejectsDuplicateName(t *testing.T) {
	s := New()
	newRoom(t, s, "Standard", 3)

	dup := domain.RoomType{Name: "standard", Capacity: 1, TotalUnits: 1}
	err := s.RoomTypes().Create(context.Background(), &dup)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestRoomTypeListSorts(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, rt := range []domain.RoomType{
		{Name: "B", BasePricePerNight: 300, Rating: 4.1, Capacity: 2},
		{Name: "A", BasePricePerNight: 100, Rating: 4.9, Capacity: 4},
		{Name: "C", BasePricePerNight: 200, Rating: 3.0, Capacity: 1},
	} {
		require.NoError(t, s.RoomTypes().Create(ctx, &rt))
	}

	names := func(rooms []domain.RoomType) []string {
		var out []string
		for _, r := range rooms {
			out = append(out, r.Name)
		}
		return out
	}

	rooms, err := s.RoomTypes().List(ctx, domain.RoomSort{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, names(rooms))

	rooms, err = s.RoomTypes().List(ctx, domain.RoomSort{Field: domain.SortByRating, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(rooms))

	rooms, err = s.RoomTypes().List(ctx, domain.RoomSort{Field: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, names(rooms))
}

func TestLockRangeOutsideTx(t *testing.T) {
	s := New()
	rt := newRoom(t, s, "Standard", 1)

	err := s.Reservations().LockRange(context.Background(), rt.ID, stay(t, "2026-05-01", "2026-05-02"))
	assert.ErrorIs(t, err, repository.ErrNoTx)
}

func TestLockRangeUnknownRoom(t *testing.T) {
	s := New()
	err := s.RunTx(context.Background(), func(ctx context.Context, tx repository.Repos) error {
		return tx.Reservations().LockRange(ctx, 42, stay(t, "2026-05-01", "2026-05-02"))
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 2)
	boom := errors.New("boom")

	err := s.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		r := stay(t, "2026-05-01", "2026-05-03")
		if err := tx.Reservations().LockRange(ctx, rt.ID, r); err != nil {
			return err
		}
		if err := tx.Reservations().Create(ctx, reservation(rt.ID, "AAAAAAAA", r, domain.StatusPending)); err != nil {
			return err
		}
		upd := rt
		upd.TotalUnits = 9
		if err := tx.RoomTypes().Update(ctx, &upd); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Reservations().GetByReference(ctx, "AAAAAAAA")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := s.RoomTypes().Get(ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalUnits)
	assert.Equal(t, 0, s.locks.Held(rt.ID))
	assert.Empty(t, s.uncommitted)
}

func TestUncommittedInsertHiddenFromOtherHandles(t *testing.T) {
	s := New()
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 2)
	r := stay(t, "2026-05-01", "2026-05-03")

	err := s.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		res := reservation(rt.ID, "AAAAAAAA", r, domain.StatusPending)
		if err := tx.Reservations().Create(ctx, res); err != nil {
			return err
		}

		n, err := tx.Reservations().CountActiveOverlapping(ctx, rt.ID, r)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.Reservations().CountActiveOverlapping(ctx, rt.ID, r)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = s.Reservations().Get(ctx, res.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = s.Reservations().GetByReference(ctx, "AAAAAAAA")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		all, err := s.Reservations().List(ctx, domain.ReservationFilter{})
		require.NoError(t, err)
		assert.Empty(t, all)

		// the unique reference is still taken
		err = s.Reservations().Create(ctx, reservation(rt.ID, "AAAAAAAA", r, domain.StatusPending))
		assert.ErrorIs(t, err, repository.ErrConflict)

		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, s.uncommitted)

	n, err := s.Reservations().CountActiveOverlapping(ctx, rt.ID, r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Reservations().GetByReference(ctx, "AAAAAAAA")
	assert.NoError(t, err)
}

func TestRunTxCommitReleasesLocks(t *testing.T) {
	s := New()
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 2)
	r := stay(t, "2026-05-01", "2026-05-03")

	err := s.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		if err := tx.Reservations().LockRange(ctx, rt.ID, r); err != nil {
			return err
		}
		return tx.Reservations().Create(ctx, reservation(rt.ID, "AAAAAAAA", r, domain.StatusPending))
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.locks.Held(rt.ID))

	n, err := s.Reservations().CountActiveOverlapping(ctx, rt.ID, stay(t, "2026-05-02", "2026-05-04"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Reservations().CountActiveOverlapping(ctx, rt.ID, stay(t, "2026-05-03", "2026-05-05"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCreateDuplicateReference(t *testing.T) {
	s := New()
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 2)
	r := stay(t, "2026-05-01", "2026-05-03")

	require.NoError(t, s.Reservations().Create(ctx, reservation(rt.ID, "ABCDEF12", r, domain.StatusPending)))
	err := s.Reservations().Create(ctx, reservation(rt.ID, "ABCDEF12", r, domain.StatusPending))
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 2)
	res := reservation(rt.ID, "ABCDEF12", stay(t, "2026-05-01", "2026-05-03"), domain.StatusPending)
	require.NoError(t, s.Reservations().Create(ctx, res))

	got, err := s.Reservations().UpdateStatus(ctx, res.ID, domain.StatusPending, domain.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)

	_, err = s.Reservations().UpdateStatus(ctx, res.ID, domain.StatusPending, domain.StatusCancelled)
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.Reservations().UpdateStatus(ctx, 999, domain.StatusPending, domain.StatusCancelled)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCancelledReservationsDoNotCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 2)
	r := stay(t, "2026-05-01", "2026-05-03")

	require.NoError(t, s.Reservations().Create(ctx, reservation(rt.ID, "AAAAAAAA", r, domain.StatusCancelled)))
	require.NoError(t, s.Reservations().Create(ctx, reservation(rt.ID, "BBBBBBBB", r, domain.StatusCompleted)))
	require.NoError(t, s.Reservations().Create(ctx, reservation(rt.ID, "CCCCCCCC", r, domain.StatusConfirmed)))

	n, err := s.Reservations().CountActiveOverlapping(ctx, rt.ID, r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stays, err := s.Reservations().ActiveStays(ctx, rt.ID, r.CheckIn)
	require.NoError(t, err)
	assert.Len(t, stays, 1)
}

func TestCompleteEnded(t *testing.T) {
	s := New()
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 5)

	ended := reservation(rt.ID, "AAAAAAAA", stay(t, "2026-05-01", "2026-05-03"), domain.StatusConfirmed)
	pending := reservation(rt.ID, "BBBBBBBB", stay(t, "2026-05-01", "2026-05-03"), domain.StatusPending)
	ongoing := reservation(rt.ID, "CCCCCCCC", stay(t, "2026-05-02", "2026-05-04"), domain.StatusConfirmed)
	for _, r := range []*domain.Reservation{ended, pending, ongoing} {
		require.NoError(t, s.Reservations().Create(ctx, r))
	}

	done, err := s.Reservations().CompleteEnded(ctx, civil.Date{Year: 2026, Month: 5, Day: 3})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, ended.ID, done[0].ID)
	assert.Equal(t, domain.StatusCompleted, done[0].Status)

	got, err := s.Reservations().Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestListNewestFirstWithFilter(t *testing.T) {
	clock := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 5)
	r := stay(t, "2026-05-01", "2026-05-03")

	a := reservation(rt.ID, "AAAAAAAA", r, domain.StatusPending)
	b := reservation(rt.ID, "BBBBBBBB", r, domain.StatusConfirmed)
	c := reservation(rt.ID, "CCCCCCCC", r, domain.StatusPending)
	c.UserID = 2
	for _, x := range []*domain.Reservation{a, b, c} {
		require.NoError(t, s.Reservations().Create(ctx, x))
	}

	mine, err := s.Reservations().List(ctx, domain.ReservationFilter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b.ID, mine[0].ID)
	assert.Equal(t, a.ID, mine[1].ID)

	pendings, err := s.Reservations().List(ctx, domain.ReservationFilter{Status: domain.StatusPending, Limit: 1})
	require.NoError(t, err)
	require.Len(t, pendings, 1)
	assert.Equal(t, c.ID, pendings[0].ID)

	page, err := s.Reservations().List(ctx, domain.ReservationFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestStatsAndDailyDemand(t *testing.T) {
	s := New()
	ctx := context.Background()
	std := newRoom(t, s, "Standard", 5)
	dlx := newRoom(t, s, "Deluxe", 5)

	fixtures := []*domain.Reservation{
		reservation(std.ID, "AAAAAAAA", stay(t, "2026-05-01", "2026-05-03"), domain.StatusConfirmed),
		reservation(std.ID, "BBBBBBBB", stay(t, "2026-05-01", "2026-05-02"), domain.StatusCompleted),
		reservation(dlx.ID, "CCCCCCCC", stay(t, "2026-06-10", "2026-06-12"), domain.StatusConfirmed),
		reservation(dlx.ID, "DDDDDDDD", stay(t, "2026-05-07", "2026-05-08"), domain.StatusPending),
		reservation(dlx.ID, "EEEEEEEE", stay(t, "2026-05-07", "2026-05-08"), domain.StatusCancelled),
	}
	for _, r := range fixtures {
		require.NoError(t, s.Reservations().Create(ctx, r))
	}

	st, err := s.Reservations().Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.Total)
	assert.EqualValues(t, 1, st.Pending)
	assert.EqualValues(t, 2, st.Confirmed)
	assert.EqualValues(t, 1, st.Cancelled)
	assert.EqualValues(t, 1, st.Completed)
	assert.EqualValues(t, 30000, st.Revenue)
	require.Len(t, st.ByRoom, 2)
	assert.Equal(t, "Standard", st.ByRoom[0].Name)
	assert.EqualValues(t, 2, st.ByRoom[0].Bookings)
	require.Len(t, st.Monthly, 2)
	assert.Equal(t, "2026-06", st.Monthly[0].Month)

	demand, err := s.Reservations().DailyDemand(ctx, 2026, time.May)
	require.NoError(t, err)
	assert.Equal(t, []domain.DayDemand{{Day: 1, Bookings: 1}, {Day: 7, Bookings: 1}}, demand)
}

func TestPricingLatestWins(t *testing.T) {
	s := New()
	ctx := context.Background()
	rt := newRoom(t, s, "Standard", 5)
	day := civil.Date{Year: 2026, Month: 8, Day: 1}

	_, err := s.Pricing().Latest(ctx, rt.ID, day)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Pricing().Record(ctx, &domain.PricingSnapshot{RoomTypeID: rt.ID, Date: day, RecordedPrice: 5000, DemandFactor: 1.1}))
	require.NoError(t, s.Pricing().Record(ctx, &domain.PricingSnapshot{RoomTypeID: rt.ID, Date: day, RecordedPrice: 6000, DemandFactor: 1.2}))

	snap, err := s.Pricing().Latest(ctx, rt.ID, day)
	require.NoError(t, err)
	assert.EqualValues(t, 6000, snap.RecordedPrice)

	err = s.Pricing().Record(ctx, &domain.PricingSnapshot{RoomTypeID: 999, Date: day})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
